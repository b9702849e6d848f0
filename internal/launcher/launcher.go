// Package launcher hands validated paths to the desktop: the default
// viewer, the file manager and the clipboard.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/atotto/clipboard"

	rerrors "github.com/meow-stack/runscope/internal/errors"
)

// Actions, as recorded in errors and by Recorder.
const (
	ActionOpen     = "open"
	ActionReveal   = "reveal"
	ActionCopyPath = "copy-path"
)

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// System performs handoffs through external processes and the system
// clipboard. Nothing is retried.
type System struct {
	// GOOS selects the platform commands. Defaults to runtime.GOOS.
	GOOS string

	run       func(ctx context.Context, c Command) error
	writeClip func(text string) error
}

// NewSystem creates a System for the running platform.
func NewSystem() *System {
	return &System{
		GOOS:      runtime.GOOS,
		run:       runCommand,
		writeClip: clipboard.WriteAll,
	}
}

// OpenCommand returns the command that opens path in its default viewer.
func (s *System) OpenCommand(path string) Command {
	switch s.goos() {
	case "darwin":
		return Command{Name: "open", Args: []string{path}}
	case "windows":
		return Command{Name: "explorer", Args: []string{path}}
	default:
		return Command{Name: "xdg-open", Args: []string{path}}
	}
}

// RevealCommand returns the command that shows path in the file manager.
// Where the platform cannot select an entry, the containing folder opens.
func (s *System) RevealCommand(path string) Command {
	switch s.goos() {
	case "darwin":
		return Command{Name: "open", Args: []string{"-R", path}}
	case "windows":
		return Command{Name: "explorer", Args: []string{"/select," + path}}
	default:
		return Command{Name: "xdg-open", Args: []string{filepath.Dir(path)}}
	}
}

// Open opens path in the default viewer.
func (s *System) Open(ctx context.Context, path string) error {
	if err := s.run(ctx, s.OpenCommand(path)); err != nil {
		return rerrors.LaunchFailed(ActionOpen, path, err)
	}
	return nil
}

// Reveal shows path in the file manager.
func (s *System) Reveal(ctx context.Context, path string) error {
	if err := s.run(ctx, s.RevealCommand(path)); err != nil {
		return rerrors.LaunchFailed(ActionReveal, path, err)
	}
	return nil
}

// CopyText places text on the clipboard.
func (s *System) CopyText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.writeClip(text); err != nil {
		return rerrors.LaunchFailed(ActionCopyPath, text, err)
	}
	return nil
}

func (s *System) goos() string {
	if s.GOOS == "" {
		return runtime.GOOS
	}
	return s.GOOS
}

// runCommand runs c to completion. Explorer exits non-zero even when it
// succeeds, so its exit status is ignored.
func runCommand(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if c.Name == "explorer" {
			return nil
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: exit %d: %s", c.Name, exitErr.ExitCode(), msg)
		}
		return fmt.Errorf("%s: exit %d", c.Name, exitErr.ExitCode())
	}
	return fmt.Errorf("%s: %w", c, err)
}

// Call is one recorded handoff.
type Call struct {
	Action string
	Path   string
}

// Recorder records handoffs instead of performing them. Err, when set, is
// returned from every call after recording it.
type Recorder struct {
	Err error

	mu    sync.Mutex
	calls []Call
}

// Open records an open.
func (r *Recorder) Open(_ context.Context, path string) error {
	return r.record(ActionOpen, path)
}

// Reveal records a reveal.
func (r *Recorder) Reveal(_ context.Context, path string) error {
	return r.record(ActionReveal, path)
}

// CopyText records a clipboard write.
func (r *Recorder) CopyText(_ context.Context, text string) error {
	return r.record(ActionCopyPath, text)
}

// Calls returns the recorded handoffs in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Recorder) record(action, path string) error {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Action: action, Path: path})
	r.mu.Unlock()
	if r.Err != nil {
		return rerrors.LaunchFailed(action, path, r.Err)
	}
	return nil
}
