// Package testutil provides test fixtures and helpers for runscope.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meow-stack/runscope/internal/config"
	"github.com/meow-stack/runscope/internal/types"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

// Touch sets the modification time of path.
func Touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Failed to set mtime on %s: %v", path, err)
	}
}

// Roots is a temporary primary root plus legacy roots under one base
// directory. Root directories are created up front.
type Roots struct {
	Base    string
	Primary string
	Legacy  []string
}

// NewRoots creates a primary root at <base>/out and legacy roots at
// <base>/logs/runs, <base>/legacy1, <base>/legacy2, ...
func NewRoots(t *testing.T, legacy int) *Roots {
	t.Helper()
	base := t.TempDir()
	r := &Roots{Base: base, Primary: filepath.Join(base, "out")}
	for i := 0; i < legacy; i++ {
		p := filepath.Join(base, "logs", "runs")
		if i > 0 {
			p = filepath.Join(base, fmt.Sprintf("legacy%d", i))
		}
		r.Legacy = append(r.Legacy, p)
	}
	for _, p := range r.All() {
		if err := os.MkdirAll(p, 0755); err != nil {
			t.Fatalf("Failed to create root %s: %v", p, err)
		}
	}
	return r
}

// All returns every root path, highest precedence first.
func (r *Roots) All() []string {
	return append([]string{r.Primary}, r.Legacy...)
}

// Run creates run id under root with the given files, keyed by
// slash-separated relative path, and returns its directory.
func (r *Roots) Run(t *testing.T, root, id string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create run %s: %v", dir, err)
	}
	for rel, content := range files {
		WriteFile(t, filepath.Join(dir, filepath.FromSlash(rel)), content)
	}
	return dir
}

// Config returns a default configuration pointing at these roots.
func (r *Roots) Config() *config.Config {
	cfg := config.Default()
	cfg.Roots.Primary = r.Primary
	cfg.Roots.Legacy = append([]string(nil), r.Legacy...)
	return cfg
}

// Resolved builds the ResolvedRun a resolver would return for a run
// created with Run.
func (r *Roots) Resolved(root, id string) types.ResolvedRun {
	kind := types.RootKindLegacy
	priority := 0
	for i, p := range r.All() {
		if p == root {
			priority = i
		}
	}
	if root == r.Primary {
		kind = types.RootKindPrimary
	}
	return types.ResolvedRun{
		ID:   id,
		Root: types.StorageRoot{Path: root, Kind: kind, Priority: priority},
		Dir:  filepath.Join(root, id),
	}
}

// OverlapScenario builds the standard two-root layout: r100 in both the
// primary and legacy root with different stdout.log content, and r050
// only in the legacy root.
func OverlapScenario(t *testing.T) *Roots {
	t.Helper()
	r := NewRoots(t, 1)
	r.Run(t, r.Primary, "r100", map[string]string{
		"stdout.log": "primary copy\nERROR once\n",
		"run.yaml":   "status: ok\nstarted_at: \"2026-05-02T00:00:00Z\"\n",
	})
	r.Run(t, r.Legacy[0], "r100", map[string]string{
		"stdout.log": "legacy copy\n",
	})
	r.Run(t, r.Legacy[0], "r050", map[string]string{
		"stdout.log":  "older run\n",
		"result.json": `{"ok": false, "started_at": "2026-04-01T00:00:00Z"}`,
	})
	return r
}
