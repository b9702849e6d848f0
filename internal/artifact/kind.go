package artifact

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	rerrors "github.com/meow-stack/runscope/internal/errors"
	"github.com/meow-stack/runscope/internal/types"
)

// sniffLen matches what http.DetectContentType considers.
const sniffLen = 512

var textExts = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".jsonl": true, ".ndjson": true,
	".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true,
	".csv": true, ".tsv": true, ".xml": true, ".html": true, ".htm": true,
	".tex": true, ".bib": true, ".py": true, ".go": true, ".sh": true,
	".diff": true, ".patch": true,
}

var binaryExts = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".zip": true, ".gz": true, ".tgz": true, ".tar": true,
	".bin": true, ".parquet": true, ".pkl": true, ".npy": true, ".sqlite": true,
	".db": true,
}

// KindOf classifies an artifact by its relative path alone. It returns
// false when the extension is not conclusive and content must be sniffed.
func KindOf(rel string) (types.ArtifactKind, bool) {
	ext := strings.ToLower(path.Ext(rel))
	switch {
	case ext == ".log" || strings.HasPrefix(rel, "logs/"):
		return types.ArtifactKindLog, true
	case textExts[ext]:
		return types.ArtifactKindFile, true
	case binaryExts[ext]:
		return types.ArtifactKindBinary, true
	}
	return "", false
}

// Sniff classifies content from its leading bytes.
func Sniff(head []byte) types.ArtifactKind {
	if len(head) == 0 {
		return types.ArtifactKindFile
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return types.ArtifactKindBinary
	}
	ct := http.DetectContentType(head)
	switch {
	case !strings.HasPrefix(ct, "text/"):
		return types.ArtifactKindBinary
	case strings.Contains(ct, "utf-16"):
		return types.ArtifactKindFile
	case utf8.Valid(trimPartialRune(head)):
		return types.ArtifactKindFile
	}
	return types.ArtifactKindBinary
}

// trimPartialRune drops a multi-byte sequence cut off by the sniff window.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

// classify returns the kind of the file at abs, reading at most sniffLen
// bytes when the extension is not conclusive.
func classify(rel, abs string) types.ArtifactKind {
	if kind, ok := KindOf(rel); ok {
		return kind
	}
	f, err := os.Open(abs)
	if err != nil {
		return types.ArtifactKindBinary
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return types.ArtifactKindBinary
	}
	return Sniff(head[:n])
}

// Filter selects artifacts by doublestar patterns over forward-slash
// relative paths. An empty Include matches everything; Exclude wins.
type Filter struct {
	Include []string
	Exclude []string
}

// Validate reports the first malformed pattern.
func (f Filter) Validate() error {
	for _, p := range append(append([]string{}, f.Include...), f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return rerrors.InvalidPattern(p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

// Match reports whether rel passes the filter. Patterns are assumed valid.
func (f Filter) Match(rel string) bool {
	for _, p := range f.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
