package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meow-stack/runscope/internal/artifact"
	"github.com/meow-stack/runscope/internal/config"
	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/index"
	"github.com/meow-stack/runscope/internal/launcher"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/logsearch"
	"github.com/meow-stack/runscope/internal/rundiff"
	"github.com/meow-stack/runscope/internal/testutil"
	"github.com/meow-stack/runscope/internal/types"
)

type env struct {
	repo    *Repository
	rec     *launcher.Recorder
	primary string
	legacy  string
}

// newEnv builds the overlap scenario: primary/r100 and legacy/{r100,r050}
// with distinct content.
func newEnv(t *testing.T) env {
	t.Helper()
	r := testutil.OverlapScenario(t)
	e := env{
		rec:     &launcher.Recorder{},
		primary: r.Primary,
		legacy:  r.Legacy[0],
	}
	cfg := r.Config()
	require.NoError(t, cfg.Validate())

	repo, err := New(cfg, e.rec, nil)
	require.NoError(t, err)
	e.repo = repo
	return e
}

func TestNew_ConfigurationError(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, nil, nil)
	assert.True(t, rerrors.HasCode(err, rerrors.CodeConfigMissingField))

	// Relative roots are rejected whatever their source; none is joined
	// onto the working directory.
	cfg.Roots.Primary = "out"
	_, err = New(cfg, nil, nil)
	assert.True(t, rerrors.HasCode(err, rerrors.CodeConfigInvalidValue), "relative file root: %v", err)

	cfg.ApplyEnv(func(key string) (string, bool) {
		if key == config.EnvPrimaryRoot {
			return "relative/from/env", true
		}
		return "", false
	})
	_, err = New(cfg, nil, nil)
	assert.True(t, rerrors.HasCode(err, rerrors.CodeConfigInvalidValue), "relative env root: %v", err)

	cfg.Roots.Primary = t.TempDir()
	cfg.Roots.Legacy = []string{"logs/runs"}
	_, err = New(cfg, nil, nil)
	assert.True(t, rerrors.HasCode(err, rerrors.CodeConfigInvalidValue), "relative legacy root: %v", err)
}

func TestScenario_OverlapAcrossRoots(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	listing, err := e.repo.ListRuns(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r100", "r050"}, listing.IDs)

	r100, err := e.repo.Resolve(ctx, "r100")
	require.NoError(t, err)
	assert.Equal(t, types.RootKindPrimary, r100.Root.Kind)
	assert.True(t, r100.Overlap)

	r050, err := e.repo.Resolve(ctx, "r050")
	require.NoError(t, err)
	assert.Equal(t, types.RootKindLegacy, r050.Root.Kind)
	assert.False(t, r050.Overlap)

	all, err := e.repo.ResolveAll(ctx, "r100")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, types.RootKindPrimary, all[0].Root.Kind)
	assert.Equal(t, types.RootKindLegacy, all[1].Root.Kind)
}

func TestRead_AuthoritativeUnlessCopySelected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	read := func(sel ...Selector) string {
		rc, err := e.repo.Read(ctx, "r100", "stdout.log", sel...)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}

	assert.Equal(t, "primary copy\nERROR once\n", read())
	assert.Equal(t, "primary copy\nERROR once\n", read(Authoritative))
	assert.Equal(t, "legacy copy\n", read(Copy(1)))

	_, err := e.repo.Read(ctx, "r100", "stdout.log", Copy(2))
	assert.True(t, rerrors.HasCode(err, rerrors.CodeRunNotFound))
}

func TestTraversalRejectedThroughFacade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rc, err := e.repo.Read(ctx, "r100", "../../etc/passwd")
	assert.Nil(t, rc)
	assert.True(t, rerrors.HasCode(err, rerrors.CodePathTraversal))

	_, err = e.repo.Open(ctx, "r100", "../r050/stdout.log")
	assert.True(t, rerrors.HasCode(err, rerrors.CodePathTraversal))

	_, err = e.repo.Read(ctx, "../out", "r100/stdout.log")
	assert.True(t, rerrors.HasCode(err, rerrors.CodePathTraversal))

	assert.Empty(t, e.rec.Calls())
}

func TestActions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	target, err := e.repo.Reveal(ctx, "r050", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.legacy, "r050"), target.Path)

	_, err = e.repo.CopyPath(ctx, "r100", "stdout.log", Copy(1))
	require.NoError(t, err)

	dest := t.TempDir()
	copied, err := e.repo.CopyTo(ctx, "r050", "stdout.log", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "stdout.log"), copied)

	assert.Equal(t, []launcher.Call{
		{Action: launcher.ActionReveal, Path: filepath.Join(e.legacy, "r050")},
		{Action: launcher.ActionCopyPath, Path: filepath.Join(e.legacy, "r100", "stdout.log")},
	}, e.rec.Calls())
}

func TestSummariesAndStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sums, listing, err := e.repo.Summaries(ctx, index.Filter{})
	require.NoError(t, err)
	assert.Empty(t, listing.Unavailable)
	require.Len(t, sums, 2)
	assert.Equal(t, "r100", sums[0].ID)
	assert.Equal(t, types.RunStatusOK, sums[0].Status)
	assert.True(t, sums[0].Overlap)
	assert.Equal(t, "r050", sums[1].ID)
	assert.Equal(t, types.RunStatusError, sums[1].Status)

	legacy, err := e.repo.Stats(ctx, "r100", Copy(1))
	require.NoError(t, err)
	assert.Equal(t, types.RootKindLegacy, legacy.RootKind)
	assert.Equal(t, types.RunStatusUnknown, legacy.Status)

	e.repo.Invalidate("r100")
	_, err = e.repo.Stats(ctx, "missing")
	assert.True(t, rerrors.HasCode(err, rerrors.CodeRunNotFound))
}

func TestSearchResolvesLazily(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	seq := e.repo.Search(ctx, "r100", "stdout.log", "ERROR", logsearch.Options{MatchesOnly: true})

	var lines []int
	for m, err := range seq {
		require.NoError(t, err)
		lines = append(lines, m.LineNumber)
	}
	assert.Equal(t, []int{2}, lines)

	var final error
	for _, err := range e.repo.Search(ctx, "r404", "stdout.log", "x", logsearch.Options{}) {
		final = err
	}
	assert.True(t, rerrors.HasCode(final, rerrors.CodeRunNotFound))
}

func TestCount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	n, err := e.repo.Count(ctx, "r100", "stdout.log", "copy", logsearch.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.repo.Count(ctx, "r100", "stdout.log", "copy", logsearch.Options{}, Copy(1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.repo.Count(ctx, "r100", "missing.log", "x", logsearch.Options{})
	assert.True(t, rerrors.HasCode(err, rerrors.CodeArtifactNotFound), "got %v", err)
}

func TestSelectLogsThroughContextLogger(t *testing.T) {
	e := newEnv(t)
	tl := testutil.NewTestLogger()
	ctx := logging.IntoContext(context.Background(), tl.Logger.With("command", "show"))

	_, err := e.repo.Stats(ctx, "r100")
	require.NoError(t, err)
	_, err = e.repo.Stats(ctx, "r404")
	require.Error(t, err)

	selected := tl.Matching(slog.LevelDebug, "selected run copy")
	require.Len(t, selected, 1)
	assert.Equal(t, "show", selected[0].Attrs["command"])
	assert.Equal(t, "r100", selected[0].Attrs["run_id"])
	assert.Equal(t, true, selected[0].Attrs["overlap"])

	failed := tl.Matching(slog.LevelDebug, "run selection failed")
	require.Len(t, failed, 1)
	assert.Equal(t, "r404", failed[0].Attrs["run_id"])
}

func TestDiff(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	entries, err := e.repo.Diff(ctx, "r100", "r050", rundiff.Options{})
	require.NoError(t, err)
	kinds := map[string]types.ChangeKind{}
	for _, en := range entries {
		kinds[en.RelPath] = en.Change
	}
	assert.Equal(t, map[string]types.ChangeKind{
		"result.json": types.ChangeAdded,
		"run.yaml":    types.ChangeRemoved,
		"stdout.log":  types.ChangeModified,
	}, kinds)

	detail, err := e.repo.DiffDetail(ctx, "r100", "r050", "stdout.log")
	require.NoError(t, err)
	assert.Contains(t, detail, "+older run")

	copies, err := e.repo.DiffCopies(ctx, "r100", Authoritative, Copy(1), rundiff.Options{Include: []string{"*.log"}})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, types.ChangeModified, copies[0].Change)
}

func TestArtifactsAndRoots(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	arts, err := e.repo.Artifacts(ctx, "r100", artifact.Filter{Include: []string{"*.log"}})
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, types.ArtifactKindLog, arts[0].Kind)

	statuses := e.repo.CheckRoots(ctx)
	require.Len(t, statuses, 2)
	assert.Equal(t, types.RootStateAvailable, statuses[0].State)
	assert.Equal(t, e.primary, e.repo.Roots()[0].Path)
}
