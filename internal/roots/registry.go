// Package roots holds the ordered set of storage roots that runs are
// discovered under, and bounds every filesystem access against them.
package roots

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/types"
)

// DefaultTimeout bounds a single filesystem access when no option overrides it.
const DefaultTimeout = 2 * time.Second

// Registry is the immutable, precedence-ordered list of storage roots.
// It is safe for concurrent use.
type Registry struct {
	roots   []types.StorageRoot
	timeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout sets the per-access timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// New builds a registry from a required primary root and optional legacy
// roots in precedence order. Every path must be absolute. Paths that clean
// to an already-registered root are dropped so a root never shadows itself.
// Roots are not required to exist.
func New(primary string, legacy []string, opts ...Option) (*Registry, error) {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return nil, rerrors.ConfigMissingField("roots.primary")
	}
	if !filepath.IsAbs(primary) {
		return nil, rerrors.ConfigInvalidValue("roots.primary", primary, "must be an absolute path")
	}

	r := &Registry{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}

	seen := map[string]bool{}
	add := func(path string, kind types.RootKind) {
		clean := filepath.Clean(path)
		if seen[clean] {
			return
		}
		seen[clean] = true
		r.roots = append(r.roots, types.StorageRoot{
			Path:     clean,
			Kind:     kind,
			Priority: len(r.roots),
		})
	}

	add(primary, types.RootKindPrimary)
	for i, p := range legacy {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !filepath.IsAbs(p) {
			return nil, rerrors.ConfigInvalidValue("roots.legacy", p, "must be an absolute path").
				WithDetail("index", i)
		}
		add(p, types.RootKindLegacy)
	}

	return r, nil
}

// Roots returns the roots, highest precedence first.
func (r *Registry) Roots() []types.StorageRoot {
	out := make([]types.StorageRoot, len(r.roots))
	copy(out, r.roots)
	return out
}

// Primary returns the primary root.
func (r *Registry) Primary() types.StorageRoot {
	return r.roots[0]
}

// Timeout returns the per-access timeout.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// Guard runs fn against root, bounded by the registry timeout and ctx.
// When the bound is hit, Guard returns a RootUnavailable error immediately;
// fn keeps running in the background until the filesystem call returns,
// and its result is discarded.
func Guard[T any](ctx context.Context, r *Registry, root types.StorageRoot, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		return res.val, res.err
	case <-ctx.Done():
		var zero T
		return zero, rerrors.RootUnavailable(root.Path, ctx.Err()).
			WithDetail("root_kind", string(root.Kind))
	}
}

// State reports whether root currently exists and can be read.
func (r *Registry) State(ctx context.Context, root types.StorageRoot) (types.RootState, error) {
	return Guard(ctx, r, root, func() (types.RootState, error) {
		f, err := os.Open(root.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return types.RootStateMissing, nil
			}
			return types.RootStateUnavailable, rerrors.RootUnavailable(root.Path, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return types.RootStateUnavailable, rerrors.RootUnavailable(root.Path, err)
		}
		if !info.IsDir() {
			return types.RootStateUnavailable, rerrors.RootUnavailable(root.Path, errors.New("not a directory"))
		}
		if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
			return types.RootStateUnavailable, rerrors.RootUnavailable(root.Path, err)
		}
		return types.RootStateAvailable, nil
	})
}

// RootStatus pairs a root with its observed state.
type RootStatus struct {
	Root  types.StorageRoot `json:"root"`
	State types.RootState   `json:"state"`
	Error string            `json:"error,omitempty"`
}

// Check reports the state of every root, probing them concurrently.
// The result is in precedence order.
func (r *Registry) Check(ctx context.Context) []RootStatus {
	out := make([]RootStatus, len(r.roots))
	var g errgroup.Group
	for i, root := range r.roots {
		g.Go(func() error {
			state, err := r.State(ctx, root)
			if rerrors.HasCode(err, rerrors.CodeRootUnavailable) {
				state = types.RootStateUnavailable
			}
			out[i] = RootStatus{Root: root, State: state}
			if err != nil {
				out[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
