// Package resolver maps run identifiers to physical run directories across
// the configured storage roots.
//
// Precedence is a single ordered scan: the highest-precedence root holding a
// directory named after the identifier is authoritative. Every root is
// always consulted so callers learn whether shadowed copies exist.
package resolver

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/fsutil"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/roots"
	"github.com/meow-stack/runscope/internal/types"
)

// Resolver resolves identifiers against a root registry. It holds no state
// beyond its collaborators and is safe for concurrent use.
type Resolver struct {
	reg    *roots.Registry
	logger *slog.Logger
}

// New creates a Resolver.
func New(reg *roots.Registry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewForTest()
	}
	return &Resolver{reg: reg, logger: logger}
}

// Registry returns the registry the resolver scans.
func (r *Resolver) Registry() *roots.Registry {
	return r.reg
}

// ValidateID rejects values that cannot name a single directory entry
// directly under a root. Identifiers are opaque: surrounding whitespace is
// rejected, never trimmed, so one run cannot stand in for another.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return rerrors.RunNotFound(id)
	case strings.TrimSpace(id) != id:
		return rerrors.RunNotFound(id).
			WithDetail("reason", "identifier has surrounding whitespace")
	case id == "." || id == "..":
		return rerrors.PathTraversal(id, id, "identifier names a relative directory")
	case strings.ContainsAny(id, `/\`):
		return rerrors.PathTraversal(id, id, "identifier contains a path separator")
	case strings.ContainsRune(id, 0):
		return rerrors.PathTraversal(id, id, "identifier contains a NUL byte")
	}
	return nil
}

// Resolve returns the authoritative copy of id.
func (r *Resolver) Resolve(ctx context.Context, id string) (types.ResolvedRun, error) {
	all, err := r.ResolveAll(ctx, id)
	if err != nil {
		return types.ResolvedRun{}, err
	}
	return all[0], nil
}

// ResolveAll returns every copy of id, authoritative first. It fails with
// RunNotFound when no root contains the identifier.
func (r *Resolver) ResolveAll(ctx context.Context, id string) ([]types.ResolvedRun, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	rts := r.reg.Roots()
	dirs := make([]string, len(rts))
	failed := make([]string, len(rts))

	var g errgroup.Group
	for i, root := range rts {
		g.Go(func() error {
			dir, ok, err := r.lookup(ctx, root, id)
			if err != nil {
				// An unreachable root is treated as not holding the run.
				logging.WithRoot(r.logger, root.Path, string(root.Kind)).
					Warn("skipping root during resolution", "run_id", id, "error", err)
				failed[i] = root.Path
				return nil
			}
			if ok {
				dirs[i] = dir
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found []types.ResolvedRun
	for i, dir := range dirs {
		if dir == "" {
			continue
		}
		found = append(found, types.ResolvedRun{ID: id, Root: rts[i], Dir: dir})
	}

	if len(found) == 0 {
		nf := rerrors.RunNotFound(id)
		if unavailable := compact(failed); len(unavailable) > 0 {
			nf.WithDetail("unavailable_roots", unavailable)
		}
		return nil, nf
	}

	overlap := len(found) > 1
	for i := range found {
		found[i].Overlap = overlap
	}
	return found, nil
}

// lookup checks a single root for a directory named id. Entries that are
// not directories, and symlinked directories whose target leaves the root,
// are reported as absent.
func (r *Resolver) lookup(ctx context.Context, root types.StorageRoot, id string) (string, bool, error) {
	type hit struct {
		dir string
		ok  bool
	}
	res, err := roots.Guard(ctx, r.reg, root, func() (hit, error) {
		candidate := filepath.Join(root.Path, id)
		info, err := os.Stat(candidate)
		if err != nil {
			if fsutil.IsNotExist(err) {
				return hit{}, nil
			}
			return hit{}, rerrors.IOFailure(candidate, err).WithDetail("run_id", id)
		}
		if !info.IsDir() {
			return hit{}, nil
		}
		if fsutil.IsSymlink(candidate) {
			_, inside, err := fsutil.RealWithin(root.Path, candidate)
			if err != nil || !inside {
				r.logger.Warn("ignoring run directory symlinked outside its root",
					"run_id", id, "root", root.Path)
				return hit{}, nil
			}
		}
		return hit{dir: candidate, ok: true}, nil
	})
	return res.dir, res.ok, err
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
