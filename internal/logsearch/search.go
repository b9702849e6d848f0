// Package logsearch scans run logs line by line for a pattern.
package logsearch

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"regexp"
	"strings"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/types"
)

// readBufSize is the initial read buffer; longer lines still work.
const readBufSize = 64 * 1024

// Reader opens artifacts of a resolved run. *artifact.Accessor
// implements it.
type Reader interface {
	Read(ctx context.Context, run types.ResolvedRun, rel string) (io.ReadCloser, error)
}

// Options controls matching.
type Options struct {
	// MatchesOnly yields only lines with at least one match.
	MatchesOnly bool

	// IgnoreCase folds case (Unicode simple folding).
	IgnoreCase bool

	// Regex treats the pattern as an RE2 regular expression.
	Regex bool
}

// Matcher finds match spans within a single line.
type Matcher interface {
	Find(line string) []types.Span
}

// Compile builds the matcher for pattern. An empty pattern is invalid.
func Compile(pattern string, opts Options) (Matcher, error) {
	if pattern == "" {
		return nil, rerrors.InvalidPattern(pattern, errors.New("pattern is empty"))
	}
	if !opts.Regex && !opts.IgnoreCase {
		return substring(pattern), nil
	}

	expr := pattern
	if !opts.Regex {
		expr = regexp.QuoteMeta(pattern)
	}
	if opts.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, rerrors.InvalidPattern(pattern, err)
	}
	return regex{re}, nil
}

// substring matches leftmost non-overlapping occurrences, byte-exact.
type substring string

func (s substring) Find(line string) []types.Span {
	var spans []types.Span
	for off := 0; off <= len(line); {
		i := strings.Index(line[off:], string(s))
		if i < 0 {
			break
		}
		start := off + i
		end := start + len(s)
		spans = append(spans, types.Span{Start: start, End: end})
		off = end
	}
	return spans
}

type regex struct {
	re *regexp.Regexp
}

func (r regex) Find(line string) []types.Span {
	var spans []types.Span
	for _, loc := range r.re.FindAllStringIndex(line, -1) {
		if loc[0] == loc[1] {
			continue
		}
		spans = append(spans, types.Span{Start: loc[0], End: loc[1]})
	}
	return spans
}

// Engine searches logs through a Reader.
type Engine struct {
	reader Reader
}

// New creates an Engine.
func New(reader Reader) *Engine {
	return &Engine{reader: reader}
}

// Search returns a lazy sequence over the lines of logRel. Each range
// re-opens the file and starts from line 1. Without MatchesOnly every line
// is yielded, with empty Spans where nothing matched. An error is yielded
// at most once and ends the sequence; that includes ctx being done.
func (e *Engine) Search(ctx context.Context, run types.ResolvedRun, logRel, pattern string, opts Options) iter.Seq2[types.LogMatch, error] {
	return func(yield func(types.LogMatch, error) bool) {
		m, err := Compile(pattern, opts)
		if err != nil {
			yield(types.LogMatch{}, err)
			return
		}
		rc, err := e.reader.Read(ctx, run, logRel)
		if err != nil {
			yield(types.LogMatch{}, err)
			return
		}
		defer rc.Close()

		br := bufio.NewReaderSize(rc, readBufSize)
		for lineNo := 1; ; lineNo++ {
			if err := ctx.Err(); err != nil {
				yield(types.LogMatch{}, err)
				return
			}

			line, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				yield(types.LogMatch{}, rerrors.IOFailure(logRel, err).WithDetail("run_id", run.ID))
				return
			}
			if line == "" && err != nil {
				return
			}
			last := err != nil

			text := strings.TrimSuffix(line, "\n")
			text = strings.TrimSuffix(text, "\r")
			spans := m.Find(text)

			if !opts.MatchesOnly || len(spans) > 0 {
				if !yield(types.LogMatch{LineNumber: lineNo, LineText: text, Spans: spans}, nil) {
					return
				}
			}
			if last {
				return
			}
		}
	}
}

// Count returns the number of lines in logRel that match pattern.
func (e *Engine) Count(ctx context.Context, run types.ResolvedRun, logRel, pattern string, opts Options) (int, error) {
	opts.MatchesOnly = true
	n := 0
	for _, err := range e.Search(ctx, run, logRel, pattern, opts) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
