package types

import (
	"strings"
	"time"
)

// RunStatus is the status a run's producer recorded in its metadata.
// Values other than the known constants are kept verbatim.
type RunStatus string

const (
	RunStatusOK                RunStatus = "ok"
	RunStatusError             RunStatus = "error"
	RunStatusNeedsRetry        RunStatus = "needs_retry"
	RunStatusMissingDependency RunStatus = "missing_dependency"
	RunStatusRunning           RunStatus = "running"
	RunStatusDone              RunStatus = "done"
	RunStatusFailed            RunStatus = "failed"
	RunStatusUnknown           RunStatus = "unknown"
)

// ParseRunStatus normalizes a raw status string. Blank input is unknown.
func ParseRunStatus(raw string) RunStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return RunStatusUnknown
	}
	return RunStatus(s)
}

// IsSuccess reports whether the status denotes a successful run.
func (s RunStatus) IsSuccess() bool {
	return s == RunStatusOK || s == RunStatusDone
}

// IsFailure reports whether the status denotes a failed run.
func (s RunStatus) IsFailure() bool {
	return s == RunStatusError || s == RunStatusFailed || s == RunStatusMissingDependency
}

// ResolvedRun is one physical copy of a run.
// Overlap is true when the identifier exists under more than one root.
type ResolvedRun struct {
	ID      string      `json:"id"`
	Root    StorageRoot `json:"root"`
	Dir     string      `json:"dir"`
	Overlap bool        `json:"overlap"`
}

// IsPrimary reports whether this copy lives under the primary root.
func (r ResolvedRun) IsPrimary() bool {
	return r.Root.Kind == RootKindPrimary
}

// RunSummary is the derived, cached view of a run directory.
type RunSummary struct {
	ID            string     `json:"id"`
	Status        RunStatus  `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	ArtifactCount int        `json:"artifact_count"`
	SizeBytes     int64      `json:"size_bytes"`
	Subject       string     `json:"subject,omitempty"`
	RootKind      RootKind   `json:"root_kind"`
	Overlap       bool       `json:"overlap"`
	Dir           string     `json:"dir"`
}

// Duration returns the run's wall time, or zero when it has not ended.
func (s *RunSummary) Duration() time.Duration {
	if s.EndedAt == nil || s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}
