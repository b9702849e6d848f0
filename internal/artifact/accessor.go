// Package artifact resolves paths inside a run directory and performs the
// read, open, reveal and copy actions on them.
//
// Every operation goes through Locate, which guarantees that the returned
// location lies inside the run directory after symlink resolution. Nothing
// in this package writes into a run directory.
package artifact

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/fsutil"
	"github.com/meow-stack/runscope/internal/logging"
	"github.com/meow-stack/runscope/internal/types"
)

// Handoff performs OS-level actions on validated paths.
type Handoff interface {
	Open(ctx context.Context, path string) error
	Reveal(ctx context.Context, path string) error
	CopyText(ctx context.Context, text string) error
}

// Target is a validated location inside a run directory.
type Target struct {
	// Path is the absolute path under the run directory.
	Path string `json:"path"`

	// RelPath is the cleaned forward-slash path; "" is the run directory.
	RelPath string             `json:"rel_path"`
	Kind    types.ArtifactKind `json:"kind"`
	IsDir   bool               `json:"is_dir"`

	// real is Path with symlinks resolved; reads go through it.
	real string
}

// Accessor performs artifact operations for resolved runs.
type Accessor struct {
	handoff Handoff
	logger  *slog.Logger
}

// New creates an Accessor. handoff may be nil when no desktop actions
// are needed; Open, Reveal and CopyPath then fail with LaunchFailed.
func New(handoff Handoff, logger *slog.Logger) *Accessor {
	if logger == nil {
		logger = logging.NewForTest()
	}
	return &Accessor{handoff: handoff, logger: logger}
}

// Locate validates rel against run and returns where it lives.
func (a *Accessor) Locate(ctx context.Context, run types.ResolvedRun, rel string) (Target, error) {
	if err := ctx.Err(); err != nil {
		return Target{}, err
	}
	clean, err := CleanRelPath(run.ID, rel)
	if err != nil {
		logging.WithRun(a.logger, run.ID).Warn("rejected artifact path", "path", rel)
		return Target{}, err
	}

	abs := filepath.Join(run.Dir, filepath.FromSlash(clean))
	if _, err := os.Lstat(abs); err != nil {
		if fsutil.IsNotExist(err) {
			return Target{}, rerrors.ArtifactNotFound(run.ID, clean)
		}
		return Target{}, rerrors.IOFailure(abs, err).
			WithDetail("run_id", run.ID).
			WithDetail("root", run.Root.Path)
	}

	real, inside, err := fsutil.RealWithin(run.Dir, abs)
	if err != nil {
		if fsutil.IsNotExist(err) {
			// A dangling symlink.
			return Target{}, rerrors.ArtifactNotFound(run.ID, clean)
		}
		return Target{}, rerrors.IOFailure(abs, err).WithDetail("run_id", run.ID)
	}
	if !inside {
		logging.WithRun(a.logger, run.ID).Warn("rejected symlink escaping run directory", "path", clean)
		return Target{}, rerrors.PathTraversal(run.ID, rel, "path resolves outside the run directory")
	}

	info, err := os.Stat(real)
	if err != nil {
		if fsutil.IsNotExist(err) {
			return Target{}, rerrors.ArtifactNotFound(run.ID, clean)
		}
		return Target{}, rerrors.IOFailure(abs, err).WithDetail("run_id", run.ID)
	}

	t := Target{Path: abs, RelPath: clean, IsDir: info.IsDir(), real: real}
	if t.IsDir {
		t.Kind = types.ArtifactKindDir
	} else {
		t.Kind = classify(clean, real)
	}
	return t, nil
}

// locateFile is Locate restricted to regular files.
func (a *Accessor) locateFile(ctx context.Context, run types.ResolvedRun, rel string) (Target, error) {
	t, err := a.Locate(ctx, run, rel)
	if err != nil {
		return Target{}, err
	}
	if t.IsDir {
		return Target{}, rerrors.ArtifactNotFound(run.ID, t.RelPath).
			WithDetail("reason", "path is a directory")
	}
	return t, nil
}

// Read streams the artifact's bytes. The caller closes the reader.
func (a *Accessor) Read(ctx context.Context, run types.ResolvedRun, rel string) (io.ReadCloser, error) {
	t, err := a.locateFile(ctx, run, rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(t.real)
	if err != nil {
		if fsutil.IsNotExist(err) {
			return nil, rerrors.ArtifactNotFound(run.ID, t.RelPath)
		}
		return nil, rerrors.IOFailure(t.Path, err).WithDetail("run_id", run.ID)
	}
	return f, nil
}

// Open hands the artifact, or the run directory for "", to the default viewer.
func (a *Accessor) Open(ctx context.Context, run types.ResolvedRun, rel string) (Target, error) {
	t, err := a.Locate(ctx, run, rel)
	if err != nil {
		return Target{}, err
	}
	if err := a.hand().Open(ctx, t.Path); err != nil {
		return Target{}, err
	}
	return t, nil
}

// Reveal shows the artifact in the file manager.
func (a *Accessor) Reveal(ctx context.Context, run types.ResolvedRun, rel string) (Target, error) {
	t, err := a.Locate(ctx, run, rel)
	if err != nil {
		return Target{}, err
	}
	if err := a.hand().Reveal(ctx, t.Path); err != nil {
		return Target{}, err
	}
	return t, nil
}

// CopyPath places the artifact's absolute path on the clipboard.
func (a *Accessor) CopyPath(ctx context.Context, run types.ResolvedRun, rel string) (Target, error) {
	t, err := a.Locate(ctx, run, rel)
	if err != nil {
		return Target{}, err
	}
	if err := a.hand().CopyText(ctx, t.Path); err != nil {
		return Target{}, err
	}
	return t, nil
}

// CopyTo copies the artifact's bytes into destDir under its base name and
// returns the new file's path. Destinations inside the run directory are
// rejected, and an existing file is never overwritten.
func (a *Accessor) CopyTo(ctx context.Context, run types.ResolvedRun, rel, destDir string) (string, error) {
	t, err := a.locateFile(ctx, run, rel)
	if err != nil {
		return "", err
	}

	dest, err := filepath.Abs(destDir)
	if err != nil {
		return "", rerrors.DestinationRejected(run.ID, destDir, err.Error())
	}
	if fsutil.Within(run.Dir, dest) {
		return "", rerrors.DestinationRejected(run.ID, destDir, "destination is inside the run directory")
	}
	if realDest, err := filepath.EvalSymlinks(dest); err == nil {
		if realRun, err := filepath.EvalSymlinks(run.Dir); err == nil && fsutil.Within(realRun, realDest) {
			return "", rerrors.DestinationRejected(run.ID, destDir, "destination is inside the run directory")
		}
	}

	target := filepath.Join(dest, filepath.Base(t.Path))
	if err := copyFile(ctx, t.real, target); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", rerrors.DestinationRejected(run.ID, target, "destination file already exists")
		}
		return "", rerrors.IOFailure(target, err).
			WithDetail("run_id", run.ID).
			WithDetail("path", t.RelPath)
	}
	logging.WithRun(a.logger, run.ID).Info("copied artifact", "path", t.RelPath, "to", target)
	return target, nil
}

// List returns the run's files sorted by relative path, optionally
// filtered. Symlinks whose target leaves the run directory are skipped.
func (a *Accessor) List(ctx context.Context, run types.ResolvedRun, filter Filter) ([]types.Artifact, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	realRun, err := filepath.EvalSymlinks(run.Dir)
	if err != nil {
		if fsutil.IsNotExist(err) {
			return nil, rerrors.RunNotFound(run.ID)
		}
		return nil, rerrors.IOFailure(run.Dir, err).WithDetail("run_id", run.ID)
	}

	var out []types.Artifact
	err = filepath.WalkDir(realRun, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != realRun && fsutil.IsNotExist(err) {
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

		relOS, err := filepath.Rel(realRun, p)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relOS)
		if !filter.Match(rel) {
			return nil
		}

		source := p
		if d.Type()&fs.ModeSymlink != 0 {
			real, inside, err := fsutil.RealWithin(realRun, p)
			if err != nil || !inside {
				return nil
			}
			source = real
		}
		info, err := os.Stat(source)
		if err != nil {
			if fsutil.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		out = append(out, types.Artifact{
			RelPath:   rel,
			Kind:      classify(rel, source),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, rerrors.IOFailure(run.Dir, err).WithDetail("run_id", run.ID)
	}

	slices.SortFunc(out, func(x, y types.Artifact) int {
		return strings.Compare(x.RelPath, y.RelPath)
	})
	return out, nil
}

func (a *Accessor) hand() Handoff {
	if a.handoff == nil {
		return noHandoff{}
	}
	return a.handoff
}

type noHandoff struct{}

var errNoHandoff = errors.New("no desktop handoff configured")

func (noHandoff) Open(_ context.Context, path string) error {
	return rerrors.LaunchFailed("open", path, errNoHandoff)
}

func (noHandoff) Reveal(_ context.Context, path string) error {
	return rerrors.LaunchFailed("reveal", path, errNoHandoff)
}

func (noHandoff) CopyText(_ context.Context, text string) error {
	return rerrors.LaunchFailed("copy-path", text, errNoHandoff)
}

// copyFile copies src to a new file at dst.
func copyFile(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, ctxReader{ctx: ctx, r: in})
	return err
}

// ctxReader stops a copy once ctx is done.
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
