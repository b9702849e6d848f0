//go:build property
// +build property

package rundiff_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/rundiff"
	"github.com/meow-stack/runscope/internal/types"
)

var (
	fileNames = []string{"stdout.log", "result.json", "out/a.txt", "out/b.txt"}
	contents  = []string{"", "x", "y", "xy"} // index 0 means absent
)

func makeRun(dir, id string, states []int) (types.ResolvedRun, error) {
	runDir := filepath.Join(dir, id)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return types.ResolvedRun{}, err
	}
	for i, s := range states {
		if s == 0 || i >= len(fileNames) {
			continue
		}
		p := filepath.Join(runDir, filepath.FromSlash(fileNames[i]))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return types.ResolvedRun{}, err
		}
		if err := os.WriteFile(p, []byte(contents[s]), 0644); err != nil {
			return types.ResolvedRun{}, err
		}
	}
	return types.ResolvedRun{ID: id, Root: types.StorageRoot{Path: dir}, Dir: runDir}, nil
}

// TestDiffSymmetry verifies swapping the runs inverts every change kind.
// Property: Diff(b, a)[i].Change == Diff(a, b)[i].Change.Inverse()
func TestDiffSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	base := t.TempDir()
	engine := rundiff.New(artifact.New(nil, nil), 2, nil)
	ctx := context.Background()

	properties.Property("relabeling inverts changes and self-diff is unchanged", prop.ForAll(
		func(statesA, statesB []int) bool {
			dir, err := os.MkdirTemp(base, "case")
			if err != nil {
				return false
			}
			a, err := makeRun(dir, "a", statesA)
			if err != nil {
				return false
			}
			b, err := makeRun(dir, "b", statesB)
			if err != nil {
				return false
			}

			ab, err1 := engine.Diff(ctx, a, b, rundiff.Options{})
			ba, err2 := engine.Diff(ctx, b, a, rundiff.Options{})
			if err1 != nil || err2 != nil || len(ab) != len(ba) {
				return false
			}
			for i := range ab {
				if ab[i].RelPath != ba[i].RelPath || ab[i].Change.Inverse() != ba[i].Change {
					return false
				}
				if ab[i].SizeA != ba[i].SizeB || ab[i].SizeB != ba[i].SizeA {
					return false
				}
				wantSame := statesA[indexOf(ab[i].RelPath)] == statesB[indexOf(ab[i].RelPath)]
				if wantSame != (ab[i].Change == types.ChangeUnchanged) {
					return false
				}
			}

			self, err := engine.Diff(ctx, a, a, rundiff.Options{})
			if err != nil {
				return false
			}
			return !rundiff.Summarize(self).Changed()
		},
		gen.SliceOfN(len(fileNames), gen.IntRange(0, len(contents)-1)),
		gen.SliceOfN(len(fileNames), gen.IntRange(0, len(contents)-1)),
	))

	properties.TestingRun(t)
}

func indexOf(rel string) int {
	for i, n := range fileNames {
		if n == rel {
			return i
		}
	}
	return -1
}
