// Package rundiff compares the artifact sets of two runs.
package rundiff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"github.com/meow-stack/runscope/internal/artifact"
	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/types"
)

// DefaultWorkers bounds concurrent hashing when none is configured.
const DefaultWorkers = 4

// detailContext is the number of unchanged lines around each hunk.
const detailContext = 3

// Source lists and reads artifacts of resolved runs. *artifact.Accessor
// implements it.
type Source interface {
	List(ctx context.Context, run types.ResolvedRun, filter artifact.Filter) ([]types.Artifact, error)
	Locate(ctx context.Context, run types.ResolvedRun, rel string) (artifact.Target, error)
	Read(ctx context.Context, run types.ResolvedRun, rel string) (io.ReadCloser, error)
}

// Options narrows the compared paths with doublestar patterns.
type Options struct {
	Include []string
	Exclude []string
}

func (o Options) filter() artifact.Filter {
	return artifact.Filter{Include: o.Include, Exclude: o.Exclude}
}

// Engine computes run diffs.
type Engine struct {
	src     Source
	workers int
	logger  *slog.Logger
}

// New creates an Engine hashing with at most workers files at a time.
func New(src Source, workers int, logger *slog.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = logging.NewForTest()
	}
	return &Engine{src: src, workers: workers, logger: logger}
}

// Diff classifies every path present in a or b, sorted by path.
// Content is hashed only when sizes are equal.
func (e *Engine) Diff(ctx context.Context, a, b types.ResolvedRun, opts Options) ([]types.DiffEntry, error) {
	filter := opts.filter()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var listA, listB []types.Artifact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		listA, err = e.src.List(gctx, a, filter)
		return err
	})
	g.Go(func() (err error) {
		listB, err = e.src.List(gctx, b, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inA := index(listA)
	inB := index(listB)
	union := make(map[string]struct{}, len(inA)+len(inB))
	for rel := range inA {
		union[rel] = struct{}{}
	}
	for rel := range inB {
		union[rel] = struct{}{}
	}
	paths := slices.Sorted(maps.Keys(union))

	entries := make([]types.DiffEntry, len(paths))
	var pending []int
	for i, rel := range paths {
		artA, okA := inA[rel]
		artB, okB := inB[rel]
		entry := types.DiffEntry{RelPath: rel, SizeA: -1, SizeB: -1}
		switch {
		case okA && !okB:
			entry.Change = types.ChangeRemoved
			entry.Kind = artA.Kind
			entry.SizeA = artA.SizeBytes
		case !okA && okB:
			entry.Change = types.ChangeAdded
			entry.Kind = artB.Kind
			entry.SizeB = artB.SizeBytes
		default:
			entry.Kind = artA.Kind
			entry.SizeA = artA.SizeBytes
			entry.SizeB = artB.SizeBytes
			if artA.SizeBytes != artB.SizeBytes {
				entry.Change = types.ChangeModified
			} else {
				pending = append(pending, i)
			}
		}
		entries[i] = entry
	}

	// Artifacts can vanish between listing and hashing. Such an entry is
	// classified from the side that still holds it, and dropped when both
	// copies are gone.
	gone := make([]bool, len(entries))
	hg, hctx := errgroup.WithContext(ctx)
	hg.SetLimit(e.workers)
	for _, i := range pending {
		hg.Go(func() error {
			rel := entries[i].RelPath
			ha, errA := e.hash(hctx, a, rel)
			if errA != nil && !rerrors.HasCode(errA, rerrors.CodeArtifactNotFound) {
				return errA
			}
			hb, errB := e.hash(hctx, b, rel)
			if errB != nil && !rerrors.HasCode(errB, rerrors.CodeArtifactNotFound) {
				return errB
			}
			switch {
			case errA != nil && errB != nil:
				gone[i] = true
			case errA != nil:
				entries[i].Change = types.ChangeAdded
				entries[i].SizeA = -1
			case errB != nil:
				entries[i].Change = types.ChangeRemoved
				entries[i].SizeB = -1
			case ha == hb:
				entries[i].Change = types.ChangeUnchanged
			default:
				entries[i].Change = types.ChangeModified
			}
			if errA != nil || errB != nil {
				e.logger.Debug("artifact vanished during diff", "path", rel,
					"run_a", a.ID, "run_b", b.ID)
			}
			return nil
		})
	}
	if err := hg.Wait(); err != nil {
		return nil, err
	}
	if slices.Contains(gone, true) {
		kept := entries[:0]
		for i, entry := range entries {
			if !gone[i] {
				kept = append(kept, entry)
			}
		}
		entries = kept
	}

	e.logger.Debug("diffed runs", "run_a", a.ID, "run_b", b.ID,
		"paths", len(entries), "hashed", len(pending))
	return entries, nil
}

// hash returns the hex SHA-256 of one artifact, streaming its content.
func (e *Engine) hash(ctx context.Context, run types.ResolvedRun, rel string) (string, error) {
	rc, err := e.src.Read(ctx, run, rel)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	h := sha256.New()
	if _, err := io.Copy(h, ctxReader{ctx, rc}); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", rerrors.IOFailure(rel, err).WithDetail("run_id", run.ID)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Detail returns a unified line diff of rel between a and b. A side where
// the path is absent diffs as empty. Binary artifacts have no line view.
func (e *Engine) Detail(ctx context.Context, a, b types.ResolvedRun, rel string) (string, error) {
	ta, errA := e.src.Locate(ctx, a, rel)
	tb, errB := e.src.Locate(ctx, b, rel)
	for _, err := range []error{errA, errB} {
		if err != nil && !rerrors.HasCode(err, rerrors.CodeArtifactNotFound) {
			return "", err
		}
	}
	if errA != nil && errB != nil {
		return "", errA
	}
	for _, t := range []artifact.Target{ta, tb} {
		switch t.Kind {
		case types.ArtifactKindBinary:
			return "", rerrors.BinaryArtifact(t.RelPath)
		case types.ArtifactKindDir:
			return "", rerrors.ArtifactNotFound(a.ID, t.RelPath).WithDetail("reason", "path is a directory")
		}
	}

	var linesA, linesB []string
	if errA == nil {
		text, err := e.readAll(ctx, a, rel)
		if err != nil {
			return "", err
		}
		linesA = difflib.SplitLines(text)
	}
	if errB == nil {
		text, err := e.readAll(ctx, b, rel)
		if err != nil {
			return "", err
		}
		linesB = difflib.SplitLines(text)
	}

	clean := ta.RelPath
	if errA != nil {
		clean = tb.RelPath
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        linesA,
		B:        linesB,
		FromFile: a.ID + "/" + clean,
		ToFile:   b.ID + "/" + clean,
		Context:  detailContext,
	})
}

func (e *Engine) readAll(ctx context.Context, run types.ResolvedRun, rel string) (string, error) {
	rc, err := e.src.Read(ctx, run, rel)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(ctxReader{ctx, rc})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", rerrors.IOFailure(rel, err).WithDetail("run_id", run.ID)
	}
	return string(data), nil
}

// Summary counts entries per change kind.
type Summary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Changed reports whether anything differs.
func (s Summary) Changed() bool {
	return s.Added+s.Removed+s.Modified > 0
}

// Summarize counts entries per change kind.
func Summarize(entries []types.DiffEntry) Summary {
	var s Summary
	for _, e := range entries {
		switch e.Change {
		case types.ChangeAdded:
			s.Added++
		case types.ChangeRemoved:
			s.Removed++
		case types.ChangeModified:
			s.Modified++
		case types.ChangeUnchanged:
			s.Unchanged++
		}
	}
	return s
}

func index(arts []types.Artifact) map[string]types.Artifact {
	m := make(map[string]types.Artifact, len(arts))
	for _, a := range arts {
		m[a.RelPath] = a
	}
	return m
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
