package index

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/fsutil"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/roots"
	"github.com/meow-stack/runscope/internal/types"
)

// stamp validates a cached summary. It changes whenever the run directory
// or any of its metadata files is modified.
type stamp struct {
	dir  time.Time
	meta [len(metadataFiles)]time.Time
}

func (s stamp) equal(o stamp) bool {
	if !s.dir.Equal(o.dir) {
		return false
	}
	for i := range s.meta {
		if !s.meta[i].Equal(o.meta[i]) {
			return false
		}
	}
	return true
}

type cacheEntry struct {
	dir     string
	stamp   stamp
	summary types.RunSummary
}

// Filter narrows Summaries.
type Filter struct {
	// Status keeps only runs with one of these statuses. Empty keeps all.
	Status []types.RunStatus

	// Limit caps the number of summaries returned. Zero means no limit.
	Limit int
}

func (f Filter) keep(s types.RunSummary) bool {
	return len(f.Status) == 0 || slices.Contains(f.Status, s.Status)
}

// Stats returns the summary of the authoritative copy of id. A cached
// summary is reused only while its validation stamp still matches disk.
func (x *Index) Stats(ctx context.Context, id string) (types.RunSummary, error) {
	run, err := x.res.Resolve(ctx, id)
	if err != nil {
		return types.RunSummary{}, err
	}
	return x.StatsFor(ctx, run)
}

// StatsFor returns the summary of a specific resolved copy.
func (x *Index) StatsFor(ctx context.Context, run types.ResolvedRun) (types.RunSummary, error) {
	st, err := roots.Guard(ctx, x.reg, run.Root, func() (stamp, error) {
		return fsutil.Retry(ctx, x.retryDelay, func() (stamp, error) {
			return x.readStamp(run.Dir)
		})
	})
	if err != nil {
		return types.RunSummary{}, statsError(run, err)
	}

	key := run.Dir
	x.mu.Lock()
	entry, ok := x.cache[key]
	x.mu.Unlock()
	if ok && entry.stamp.equal(st) {
		return decorate(entry.summary, run), nil
	}

	summary, err := roots.Guard(ctx, x.reg, run.Root, func() (types.RunSummary, error) {
		return fsutil.Retry(ctx, x.retryDelay, func() (types.RunSummary, error) {
			return computeSummary(ctx, run, st)
		})
	})
	if err != nil {
		return types.RunSummary{}, statsError(run, err)
	}

	x.mu.Lock()
	x.cache[key] = cacheEntry{dir: run.Dir, stamp: st, summary: summary}
	x.mu.Unlock()

	logging.WithRun(x.logger, run.ID).Debug("computed run summary",
		"dir", run.Dir, "artifacts", summary.ArtifactCount)
	return decorate(summary, run), nil
}

// Summaries returns the summaries of every listed run, newest first. Runs
// that vanish between listing and stat are skipped.
func (x *Index) Summaries(ctx context.Context, filter Filter) ([]types.RunSummary, Listing, error) {
	listing, err := x.ListRuns(ctx)
	if err != nil {
		return nil, listing, err
	}

	results := make([]*types.RunSummary, len(listing.IDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statsWorkers)
	for i, id := range listing.IDs {
		g.Go(func() error {
			s, err := x.Stats(gctx, id)
			switch {
			case err == nil:
				results[i] = &s
			case rerrors.HasCode(err, rerrors.CodeRunNotFound):
				logging.WithRun(x.logger, id).Debug("run vanished during listing")
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				logging.WithRun(x.logger, id).Warn("skipping run summary", "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, listing, err
	}

	out := make([]types.RunSummary, 0, len(results))
	for _, s := range results {
		if s != nil && filter.keep(*s) {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b types.RunSummary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, listing, nil
}

// Invalidate drops every cached summary for id.
func (x *Index) Invalidate(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for key, entry := range x.cache {
		if entry.summary.ID == id {
			delete(x.cache, key)
		}
	}
}

// CacheLen returns the number of cached summaries.
func (x *Index) CacheLen() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.cache)
}

// statsError maps a failure that survived the retry onto the error
// taxonomy, naming the run and root it concerns.
func statsError(run types.ResolvedRun, err error) error {
	var re *rerrors.RepoError
	switch {
	case fsutil.IsNotExist(err):
		return rerrors.RunNotFound(run.ID)
	case errors.As(err, &re):
		return re.WithDetail("run_id", run.ID)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return rerrors.IOFailure(run.Dir, err).
		WithDetail("run_id", run.ID).
		WithDetail("root", run.Root.Path)
}

// decorate applies the fields that depend on resolution rather than on the
// directory contents.
func decorate(s types.RunSummary, run types.ResolvedRun) types.RunSummary {
	s.RootKind = run.Root.Kind
	s.Overlap = run.Overlap
	s.Dir = run.Dir
	return s
}

func readStamp(dir string) (stamp, error) {
	var st stamp
	info, err := os.Stat(dir)
	if err != nil {
		return st, err
	}
	if !info.IsDir() {
		return st, fs.ErrNotExist
	}
	st.dir = info.ModTime()
	for i, name := range metadataFiles {
		if fi, err := os.Stat(filepath.Join(dir, name)); err == nil {
			st.meta[i] = fi.ModTime()
		}
	}
	return st, nil
}

// computeSummary derives a summary from metadata files and a walk of the
// directory entries. Artifact bodies are never read.
func computeSummary(ctx context.Context, run types.ResolvedRun, st stamp) (types.RunSummary, error) {
	md := readMetadata(run.Dir)
	s := types.RunSummary{
		ID:      run.ID,
		Status:  md.Status,
		Subject: md.Subject,
	}

	switch {
	case md.StartedAt != nil:
		s.StartedAt = *md.StartedAt
	default:
		s.StartedAt = st.dir
	}
	switch {
	case md.EndedAt != nil:
		s.EndedAt = md.EndedAt
	case !st.meta[resultSlot].IsZero():
		ended := st.meta[resultSlot]
		s.EndedAt = &ended
	}

	walkRoot, err := filepath.EvalSymlinks(run.Dir)
	if err != nil {
		return types.RunSummary{}, err
	}
	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == walkRoot {
				return err
			}
			// Entries removed mid-walk are skipped.
			if fsutil.IsNotExist(err) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if fsutil.IsNotExist(err) {
				return nil
			}
			return err
		}
		s.ArtifactCount++
		s.SizeBytes += info.Size()
		return nil
	})
	if err != nil {
		return types.RunSummary{}, err
	}
	return s, nil
}
