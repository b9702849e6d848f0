package types

import (
	"testing"
	"time"
)

func TestParseRunStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want RunStatus
	}{
		{"ok", RunStatusOK},
		{"  OK ", RunStatusOK},
		{"needs_retry", RunStatusNeedsRetry},
		{"", RunStatusUnknown},
		{"   ", RunStatusUnknown},
		{"Partial", RunStatus("partial")},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ParseRunStatus(tt.raw); got != tt.want {
				t.Errorf("ParseRunStatus(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestRunStatus_Classification(t *testing.T) {
	if !RunStatusDone.IsSuccess() || !RunStatusOK.IsSuccess() {
		t.Error("ok and done should be success")
	}
	if !RunStatusError.IsFailure() || !RunStatusMissingDependency.IsFailure() {
		t.Error("error and missing_dependency should be failure")
	}
	if RunStatusUnknown.IsSuccess() || RunStatusUnknown.IsFailure() {
		t.Error("unknown is neither success nor failure")
	}
}

func TestRunSummary_Duration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	end := start.Add(90 * time.Second)

	s := &RunSummary{StartedAt: start}
	if got := s.Duration(); got != 0 {
		t.Errorf("Duration without end = %v, want 0", got)
	}

	s.EndedAt = &end
	if got := s.Duration(); got != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", got)
	}

	before := start.Add(-time.Second)
	s.EndedAt = &before
	if got := s.Duration(); got != 0 {
		t.Errorf("Duration with end before start = %v, want 0", got)
	}
}

func TestChangeKind_Inverse(t *testing.T) {
	tests := map[ChangeKind]ChangeKind{
		ChangeAdded:     ChangeRemoved,
		ChangeRemoved:   ChangeAdded,
		ChangeModified:  ChangeModified,
		ChangeUnchanged: ChangeUnchanged,
	}
	for in, want := range tests {
		if got := in.Inverse(); got != want {
			t.Errorf("%s.Inverse() = %s, want %s", in, got, want)
		}
	}
}

func TestRootKind_Valid(t *testing.T) {
	if !RootKindPrimary.Valid() || !RootKindLegacy.Valid() {
		t.Error("primary and legacy should be valid")
	}
	if RootKind("archive").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestArtifactKind_IsText(t *testing.T) {
	if !ArtifactKindLog.IsText() || !ArtifactKindFile.IsText() {
		t.Error("log and file are textual")
	}
	if ArtifactKindBinary.IsText() || ArtifactKindDir.IsText() {
		t.Error("binary and dir are not textual")
	}
}
