// Package logging provides structured logging infrastructure for runscope.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meow-stack/runscope/internal/config"
)

// NewFromConfig creates a new slog.Logger based on configuration.
// When a log file is configured, records go to both stderr and the file.
func NewFromConfig(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Logging.Level)
	handler := newHandler(cfg.Logging.Format, os.Stderr, level)

	var closer io.Closer
	if logPath := cfg.LogFile(baseDir); logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return nil, nil, err
		}

		file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		closer = file

		multi := io.MultiWriter(os.Stderr, file)
		handler = newHandler(cfg.Logging.Format, multi, level)
	}

	return slog.New(handler), closer, nil
}

// NewDefault creates a default logger writing to stderr.
func NewDefault() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewWithLevel creates a logger with the specified level.
func NewWithLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseLevel converts config log level to slog.Level.
func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newHandler creates a slog.Handler based on format.
func newHandler(format config.LogFormat, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch format {
	case config.LogFormatJSON:
		return slog.NewJSONHandler(w, opts)
	case config.LogFormatText:
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// WithFields returns a logger with the given fields added.
func WithFields(logger *slog.Logger, fields ...any) *slog.Logger {
	return logger.With(fields...)
}

// WithRun returns a logger with run context.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

// WithRoot returns a logger with storage root context.
func WithRoot(logger *slog.Logger, root string, kind string) *slog.Logger {
	return logger.With("root", root, "root_kind", kind)
}

type ctxKey struct{}

// IntoContext returns a context carrying logger.
func IntoContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx, or fallback when none was
// attached. A nil fallback yields a discarding logger.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	if fallback == nil {
		return NewForTest()
	}
	return fallback
}
