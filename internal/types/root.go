package types

// RootKind distinguishes the current output root from historical ones.
type RootKind string

const (
	RootKindPrimary RootKind = "primary" // Current out_base_dir
	RootKindLegacy  RootKind = "legacy"  // Historical / fallback location
)

// Valid returns true if this is a recognized root kind.
func (k RootKind) Valid() bool {
	return k == RootKindPrimary || k == RootKindLegacy
}

// StorageRoot is a configured top-level directory holding one directory per run.
// Lower Priority values take precedence; the primary root is always 0.
type StorageRoot struct {
	Path     string   `json:"path"`
	Kind     RootKind `json:"kind"`
	Priority int      `json:"priority"`
}

// RootState reports the observed accessibility of a root.
type RootState string

const (
	RootStateAvailable   RootState = "available"   // Exists and readable
	RootStateMissing     RootState = "missing"     // Not on disk; contributes zero runs
	RootStateUnavailable RootState = "unavailable" // Inaccessible or timed out
)
