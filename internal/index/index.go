// Package index enumerates runs across all storage roots and maintains the
// advisory summary cache.
package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/fsutil"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/resolver"
	"github.com/meow-stack/runscope/internal/roots"
	"github.com/meow-stack/runscope/internal/types"
)

// statsWorkers bounds concurrent summary computation in Summaries.
const statsWorkers = 8

// RootFailure records a root that could not be listed.
type RootFailure struct {
	Root   types.StorageRoot `json:"root"`
	Reason string            `json:"reason"`
	Err    error             `json:"-"`
}

// Listing is the result of enumerating every root.
type Listing struct {
	// IDs holds each visible run identifier exactly once, sorted.
	IDs []string `json:"ids"`

	// Unavailable lists roots that contributed nothing because they could
	// not be read. Missing roots are not listed here.
	Unavailable []RootFailure `json:"unavailable,omitempty"`
}

// Index lists runs and computes their summaries. It is safe for
// concurrent use.
type Index struct {
	reg        *roots.Registry
	res        *resolver.Resolver
	retryDelay time.Duration
	logger     *slog.Logger

	// readDir is os.ReadDir and readStamp is readStamp outside tests.
	readDir   func(string) ([]os.DirEntry, error)
	readStamp func(string) (stamp, error)

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates an Index over the resolver's roots. retryDelay is the pause
// before the single retry of a failed listing or stat.
func New(res *resolver.Resolver, retryDelay time.Duration, logger *slog.Logger) *Index {
	if logger == nil {
		logger = logging.NewForTest()
	}
	return &Index{
		reg:        res.Registry(),
		res:        res,
		retryDelay: retryDelay,
		logger:     logger,
		readDir:    os.ReadDir,
		readStamp:  readStamp,
		cache:      make(map[string]cacheEntry),
	}
}

// ListRuns returns every run identifier visible under any root. Roots are
// read concurrently; a root that is unreadable or stalls past the registry
// timeout is reported in Listing.Unavailable and contributes nothing.
func (x *Index) ListRuns(ctx context.Context) (Listing, error) {
	rts := x.reg.Roots()
	names := make([][]string, len(rts))
	failures := make([]error, len(rts))

	var g errgroup.Group
	for i, root := range rts {
		g.Go(func() error {
			names[i], failures[i] = x.listRoot(ctx, root)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Listing{}, err
	}

	var listing Listing
	seen := make(map[string]bool)
	for i, root := range rts {
		if err := failures[i]; err != nil {
			logging.WithRoot(x.logger, root.Path, string(root.Kind)).
				Warn("root unavailable, listing without it", "error", err)
			listing.Unavailable = append(listing.Unavailable, RootFailure{
				Root:   root,
				Reason: err.Error(),
				Err:    err,
			})
			continue
		}
		for _, name := range names[i] {
			if !seen[name] {
				seen[name] = true
				listing.IDs = append(listing.IDs, name)
			}
		}
	}
	slices.Sort(listing.IDs)
	return listing, nil
}

// listRoot reads the directory entries directly under root. A missing root
// yields no names and no error.
func (x *Index) listRoot(ctx context.Context, root types.StorageRoot) ([]string, error) {
	return roots.Guard(ctx, x.reg, root, func() ([]string, error) {
		entries, err := fsutil.Retry(ctx, x.retryDelay, func() ([]os.DirEntry, error) {
			return x.readDir(root.Path)
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logging.WithRoot(x.logger, root.Path, string(root.Kind)).Debug("root missing")
				return nil, nil
			}
			return nil, rerrors.RootUnavailable(root.Path, err).
				WithDetail("root_kind", string(root.Kind))
		}

		var names []string
		for _, e := range entries {
			if !isRunDir(root.Path, e) {
				continue
			}
			if err := resolver.ValidateID(e.Name()); err != nil {
				logging.WithRoot(x.logger, root.Path, string(root.Kind)).
					Debug("skipping unaddressable run directory", "name", e.Name())
				continue
			}
			names = append(names, e.Name())
		}
		return names, nil
	})
}

// isRunDir reports whether e names a run directory. A symlink counts when
// it points at a directory that stays inside the root.
func isRunDir(rootPath string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	path := filepath.Join(rootPath, e.Name())
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, inside, err := fsutil.RealWithin(rootPath, path)
	return err == nil && inside
}
