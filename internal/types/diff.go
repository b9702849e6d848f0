package types

// ChangeKind classifies one path in a run comparison.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"     // Only in B
	ChangeRemoved   ChangeKind = "removed"   // Only in A
	ChangeModified  ChangeKind = "modified"  // In both, size or content differs
	ChangeUnchanged ChangeKind = "unchanged" // In both, identical size and hash
)

// Inverse returns the kind seen when the comparison is reversed.
func (c ChangeKind) Inverse() ChangeKind {
	switch c {
	case ChangeAdded:
		return ChangeRemoved
	case ChangeRemoved:
		return ChangeAdded
	default:
		return c
	}
}

// DiffEntry is one path in a run comparison. Sizes are -1 on the side
// where the path is absent.
type DiffEntry struct {
	RelPath string       `json:"path"`
	Change  ChangeKind   `json:"change"`
	Kind    ArtifactKind `json:"kind"`
	SizeA   int64        `json:"size_a"`
	SizeB   int64        `json:"size_b"`
}
