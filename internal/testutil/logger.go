package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// TestLogger captures structured log records for assertion in tests.
type TestLogger struct {
	Logger *slog.Logger

	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is one captured record. Attrs include those added with
// Logger.With.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// NewTestLogger returns a logger capturing every record at debug and above.
func NewTestLogger() *TestLogger {
	tl := &TestLogger{}
	tl.Logger = slog.New(&captureHandler{sink: tl})
	return tl
}

// Entries returns a copy of the captured records.
func (l *TestLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Matching returns records at level whose message contains substr.
func (l *TestLogger) Matching(level slog.Level, substr string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

// CountLevel returns the number of records at level.
func (l *TestLogger) CountLevel(level slog.Level) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Clear drops captured records.
func (l *TestLogger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *TestLogger) add(e LogEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

type captureHandler struct {
	sink  *TestLogger
	attrs []slog.Attr
	group string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	e := LogEntry{Level: r.Level, Message: r.Message, Attrs: make(map[string]any)}
	for _, a := range h.attrs {
		e.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})
	h.sink.add(e)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &captureHandler{sink: h.sink, group: h.group}
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return next
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{sink: h.sink, attrs: h.attrs, group: h.key(name)}
}

func (h *captureHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
