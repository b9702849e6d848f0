//go:build property
// +build property

package artifact_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/meow-stack/runscope/internal/artifact"
	rerrors "github.com/meow-stack/runscope/internal/errors"
)

var segments = []string{"..", ".", "", "logs", "out", "stdout.log", "a b", `..\..`, "x..y"}

func buildPath(idx []int, sep string) string {
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = segments[n]
	}
	return strings.Join(parts, sep)
}

// TestCleanRelPathNeverEscapes verifies accepted paths stay under the run.
// Property: CleanRelPath(p) ok => Join(base, result) is inside base
func TestCleanRelPathNeverEscapes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	base := filepath.FromSlash("/runs/r1")

	properties.Property("accepted paths stay inside the run directory", prop.ForAll(
		func(idx []int, backslash bool) bool {
			sep := "/"
			if backslash {
				sep = `\`
			}
			clean, err := artifact.CleanRelPath("r1", buildPath(idx, sep))
			if err != nil {
				return rerrors.HasCode(err, rerrors.CodePathTraversal)
			}
			joined := filepath.Join(base, filepath.FromSlash(clean))
			rel, err := filepath.Rel(base, joined)
			return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
		},
		gen.SliceOf(gen.IntRange(0, len(segments)-1)),
		gen.Bool(),
	))

	properties.Property("any parent segment is rejected", prop.ForAll(
		func(idx []int, at int) bool {
			idx = append(idx[:0:0], idx...)
			pos := at % (len(idx) + 1)
			idx = append(idx[:pos], append([]int{0}, idx[pos:]...)...)
			_, err := artifact.CleanRelPath("r1", buildPath(idx, "/"))
			return rerrors.HasCode(err, rerrors.CodePathTraversal)
		},
		gen.SliceOf(gen.IntRange(1, len(segments)-1)),
		gen.IntRange(0, 16),
	))

	properties.TestingRun(t)
}
