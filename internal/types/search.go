package types

// Span is a half-open [Start, End) byte range within a line.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// LogMatch is one line yielded by a log search. LineNumber is 1-based and
// independent of filtering.
type LogMatch struct {
	LineNumber int    `json:"line"`
	LineText   string `json:"text"`
	Spans      []Span `json:"spans,omitempty"`
}

// Matched reports whether the line contains at least one match.
func (m LogMatch) Matched() bool {
	return len(m.Spans) > 0
}
