package types

import "time"

// ArtifactKind classifies a file inside a run directory.
type ArtifactKind string

const (
	ArtifactKindLog    ArtifactKind = "log"    // Log stream output
	ArtifactKindFile   ArtifactKind = "file"   // Textual artifact
	ArtifactKindBinary ArtifactKind = "binary" // Opaque bytes
	ArtifactKindDir    ArtifactKind = "dir"    // The run directory or a subdirectory
)

// IsText reports whether line-oriented operations make sense for the kind.
func (k ArtifactKind) IsText() bool {
	return k == ArtifactKindLog || k == ArtifactKindFile
}

// Artifact is a file addressed relative to its run directory. RelPath always
// uses forward slashes.
type Artifact struct {
	RelPath   string       `json:"path"`
	Kind      ArtifactKind `json:"kind"`
	SizeBytes int64        `json:"size_bytes"`
	ModTime   time.Time    `json:"mod_time"`
}
