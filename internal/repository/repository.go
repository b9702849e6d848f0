// Package repository is the single entry point for callers. It takes run
// identifiers, resolves them across roots and delegates to the index,
// artifact accessor, log search and diff engines.
package repository

import (
	"context"
	"io"
	"iter"
	"log/slog"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/config"
	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/index"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/logsearch"
	"github.com/meow-stack/runscope/internal/resolver"
	"github.com/meow-stack/runscope/internal/roots"
	"github.com/meow-stack/runscope/internal/rundiff"
	"github.com/meow-stack/runscope/internal/types"
)

// Selector picks which copy of an overlapping run an operation acts on.
type Selector struct {
	copy int
}

// Authoritative selects the highest-precedence copy. It is the default.
var Authoritative = Selector{}

// Copy selects the n-th copy in precedence order; Copy(0) is the
// authoritative one. Used to inspect shadowed legacy copies.
func Copy(n int) Selector {
	return Selector{copy: n}
}

// Index returns the precedence position the selector picks.
func (s Selector) Index() int {
	return s.copy
}

func pick(sel []Selector) Selector {
	if len(sel) == 0 {
		return Authoritative
	}
	return sel[0]
}

// Repository is the conflict-resolved view over all configured roots.
// It is safe for concurrent use.
type Repository struct {
	reg      *roots.Registry
	resolver *resolver.Resolver
	index    *index.Index
	accessor *artifact.Accessor
	search   *logsearch.Engine
	diff     *rundiff.Engine
	logger   *slog.Logger
}

// New builds a repository from configuration. handoff performs desktop
// actions and may be nil.
func New(cfg *config.Config, handoff artifact.Handoff, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = logging.NewForTest()
	}
	reg, err := roots.New(cfg.PrimaryRoot(), cfg.LegacyRoots(),
		roots.WithTimeout(cfg.Repository.RootTimeout))
	if err != nil {
		return nil, err
	}

	res := resolver.New(reg, logger)
	acc := artifact.New(handoff, logger)
	return &Repository{
		reg:      reg,
		resolver: res,
		index:    index.New(res, cfg.Repository.IORetryDelay, logger),
		accessor: acc,
		search:   logsearch.New(acc),
		diff:     rundiff.New(acc, cfg.Repository.HashWorkers, logger),
		logger:   logger,
	}, nil
}

// Roots returns the configured roots, highest precedence first.
func (r *Repository) Roots() []types.StorageRoot {
	return r.reg.Roots()
}

// CheckRoots checks every root.
func (r *Repository) CheckRoots(ctx context.Context) []roots.RootStatus {
	return r.reg.Check(ctx)
}

// ListRuns returns every visible run identifier exactly once.
func (r *Repository) ListRuns(ctx context.Context) (index.Listing, error) {
	return r.index.ListRuns(ctx)
}

// Summaries returns summaries of all runs, newest first.
func (r *Repository) Summaries(ctx context.Context, filter index.Filter) ([]types.RunSummary, index.Listing, error) {
	return r.index.Summaries(ctx, filter)
}

// Stats returns the summary of one run.
func (r *Repository) Stats(ctx context.Context, id string, sel ...Selector) (types.RunSummary, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return types.RunSummary{}, err
	}
	return r.index.StatsFor(ctx, run)
}

// Invalidate drops cached state for id.
func (r *Repository) Invalidate(id string) {
	r.index.Invalidate(id)
}

// Resolve returns the authoritative copy of id.
func (r *Repository) Resolve(ctx context.Context, id string) (types.ResolvedRun, error) {
	return r.resolver.Resolve(ctx, id)
}

// ResolveAll returns every copy of id, authoritative first.
func (r *Repository) ResolveAll(ctx context.Context, id string) ([]types.ResolvedRun, error) {
	return r.resolver.ResolveAll(ctx, id)
}

// Select resolves id and returns the copy sel picks. It logs through the
// logger carried by ctx, if any.
func (r *Repository) Select(ctx context.Context, id string, sel ...Selector) (types.ResolvedRun, error) {
	run, err := r.selectCopy(ctx, id, pick(sel))
	logger := logging.WithRun(logging.FromContext(ctx, r.logger), id)
	if err != nil {
		logger.Debug("run selection failed", "error", err)
		return types.ResolvedRun{}, err
	}
	logger.Debug("selected run copy", "dir", run.Dir,
		"root_kind", string(run.Root.Kind), "overlap", run.Overlap)
	return run, nil
}

func (r *Repository) selectCopy(ctx context.Context, id string, s Selector) (types.ResolvedRun, error) {
	if s.copy == 0 {
		return r.resolver.Resolve(ctx, id)
	}
	all, err := r.resolver.ResolveAll(ctx, id)
	if err != nil {
		return types.ResolvedRun{}, err
	}
	if s.copy < 0 || s.copy >= len(all) {
		return types.ResolvedRun{}, rerrors.RunNotFound(id).
			WithDetail("copy", s.copy).
			WithDetail("copies", len(all))
	}
	return all[s.copy], nil
}

// Open hands rel to the default viewer. "" opens the run folder.
func (r *Repository) Open(ctx context.Context, id, rel string, sel ...Selector) (artifact.Target, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return artifact.Target{}, err
	}
	return r.accessor.Open(ctx, run, rel)
}

// Reveal shows rel in the file manager.
func (r *Repository) Reveal(ctx context.Context, id, rel string, sel ...Selector) (artifact.Target, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return artifact.Target{}, err
	}
	return r.accessor.Reveal(ctx, run, rel)
}

// CopyPath puts the absolute path of rel on the clipboard.
func (r *Repository) CopyPath(ctx context.Context, id, rel string, sel ...Selector) (artifact.Target, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return artifact.Target{}, err
	}
	return r.accessor.CopyPath(ctx, run, rel)
}

// CopyTo copies rel into destDir and returns the new path.
func (r *Repository) CopyTo(ctx context.Context, id, rel, destDir string, sel ...Selector) (string, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return "", err
	}
	return r.accessor.CopyTo(ctx, run, rel, destDir)
}

// Read streams rel. The caller closes the reader.
func (r *Repository) Read(ctx context.Context, id, rel string, sel ...Selector) (io.ReadCloser, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return nil, err
	}
	return r.accessor.Read(ctx, run, rel)
}

// Artifacts lists the files of a run.
func (r *Repository) Artifacts(ctx context.Context, id string, filter artifact.Filter, sel ...Selector) ([]types.Artifact, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return nil, err
	}
	return r.accessor.List(ctx, run, filter)
}

// Search scans a run's log. The run is resolved afresh on every range.
func (r *Repository) Search(ctx context.Context, id, logRel, pattern string, opts logsearch.Options, sel ...Selector) iter.Seq2[types.LogMatch, error] {
	return func(yield func(types.LogMatch, error) bool) {
		run, err := r.Select(ctx, id, sel...)
		if err != nil {
			yield(types.LogMatch{}, err)
			return
		}
		for m, err := range r.search.Search(ctx, run, logRel, pattern, opts) {
			if !yield(m, err) {
				return
			}
		}
	}
}

// Count returns the number of lines in a run's log that match pattern.
func (r *Repository) Count(ctx context.Context, id, logRel, pattern string, opts logsearch.Options, sel ...Selector) (int, error) {
	run, err := r.Select(ctx, id, sel...)
	if err != nil {
		return 0, err
	}
	return r.search.Count(ctx, run, logRel, pattern, opts)
}

// Diff compares the authoritative copies of two runs.
func (r *Repository) Diff(ctx context.Context, idA, idB string, opts rundiff.Options) ([]types.DiffEntry, error) {
	a, b, err := r.resolvePair(ctx, idA, idB)
	if err != nil {
		return nil, err
	}
	return r.diff.Diff(ctx, a, b, opts)
}

// DiffDetail returns the unified line diff of rel between two runs.
func (r *Repository) DiffDetail(ctx context.Context, idA, idB, rel string) (string, error) {
	a, b, err := r.resolvePair(ctx, idA, idB)
	if err != nil {
		return "", err
	}
	return r.diff.Detail(ctx, a, b, rel)
}

// DiffCopies compares two copies of the same identifier, for example the
// authoritative run against a shadowed legacy copy.
func (r *Repository) DiffCopies(ctx context.Context, id string, a, b Selector, opts rundiff.Options) ([]types.DiffEntry, error) {
	runA, err := r.Select(ctx, id, a)
	if err != nil {
		return nil, err
	}
	runB, err := r.Select(ctx, id, b)
	if err != nil {
		return nil, err
	}
	return r.diff.Diff(ctx, runA, runB, opts)
}

func (r *Repository) resolvePair(ctx context.Context, idA, idB string) (types.ResolvedRun, types.ResolvedRun, error) {
	a, err := r.resolver.Resolve(ctx, idA)
	if err != nil {
		return types.ResolvedRun{}, types.ResolvedRun{}, err
	}
	b, err := r.resolver.Resolve(ctx, idB)
	if err != nil {
		return types.ResolvedRun{}, types.ResolvedRun{}, err
	}
	return a, b, nil
}
