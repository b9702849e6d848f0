package status

import (
	"github.com/meow-stack/runscope/internal/rundiff"
	"github.com/meow-stack/runscope/internal/types"
)

// RunDetail contains everything shown for a single run.
type RunDetail struct {
	Summary   types.RunSummary    `json:"summary"`
	Copies    []types.ResolvedRun `json:"copies,omitempty"`
	Artifacts []types.Artifact    `json:"artifacts,omitempty"`
	KindStats KindStats           `json:"kind_stats"`
}

// KindStats contains artifact count breakdown.
type KindStats struct {
	Total  int   `json:"total"`
	Logs   int   `json:"logs"`
	Files  int   `json:"files"`
	Binary int   `json:"binary"`
	Bytes  int64 `json:"bytes"`
}

// NewRunDetail creates a detail view from a summary, the copies of the
// run in precedence order, and optionally its artifact listing.
func NewRunDetail(sum types.RunSummary, copies []types.ResolvedRun, arts []types.Artifact) *RunDetail {
	return &RunDetail{
		Summary:   sum,
		Copies:    copies,
		Artifacts: arts,
		KindStats: computeKindStats(arts),
	}
}

func computeKindStats(arts []types.Artifact) KindStats {
	stats := KindStats{Total: len(arts)}
	for _, a := range arts {
		stats.Bytes += a.SizeBytes
		switch a.Kind {
		case types.ArtifactKindLog:
			stats.Logs++
		case types.ArtifactKindFile:
			stats.Files++
		case types.ArtifactKindBinary:
			stats.Binary++
		}
	}
	return stats
}

// ListStats tallies run outcomes across a listing.
type ListStats struct {
	Total       int   `json:"total"`
	Succeeded   int   `json:"succeeded"`
	Failed      int   `json:"failed"`
	Other       int   `json:"other"`
	Overlapping int   `json:"overlapping"`
	Legacy      int   `json:"legacy"`
	Bytes       int64 `json:"bytes"`
}

// ComputeListStats tallies summaries.
func ComputeListStats(sums []types.RunSummary) ListStats {
	stats := ListStats{Total: len(sums)}
	for _, s := range sums {
		switch {
		case s.Status.IsSuccess():
			stats.Succeeded++
		case s.Status.IsFailure():
			stats.Failed++
		default:
			stats.Other++
		}
		if s.Overlap {
			stats.Overlapping++
		}
		if s.RootKind == types.RootKindLegacy {
			stats.Legacy++
		}
		stats.Bytes += s.SizeBytes
	}
	return stats
}

// DiffReport is a run comparison ready for display.
type DiffReport struct {
	RunA    string            `json:"run_a"`
	RunB    string            `json:"run_b"`
	Entries []types.DiffEntry `json:"entries"`
	Counts  rundiff.Summary   `json:"counts"`
}

// NewDiffReport wraps diff entries with their per-kind counts.
func NewDiffReport(runA, runB string, entries []types.DiffEntry) *DiffReport {
	if entries == nil {
		entries = []types.DiffEntry{}
	}
	return &DiffReport{
		RunA:    runA,
		RunB:    runB,
		Entries: entries,
		Counts:  rundiff.Summarize(entries),
	}
}
