// Package errors provides structured error types for runscope.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes for repository operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value

	// Run errors
	CodeRunNotFound = "RUN_001" // Identifier resolves in no root

	// Artifact errors
	CodeArtifactNotFound = "ARTIFACT_001" // Relative path absent under the run
	CodeBinaryArtifact   = "ARTIFACT_002" // No line-level view for binary content

	// Path errors
	CodePathTraversal       = "PATH_001" // Path would escape the run directory
	CodeDestinationRejected = "PATH_002" // Copy destination inside the run directory

	// Root errors
	CodeRootUnavailable = "ROOT_001" // Configured root is inaccessible

	// IO errors
	CodeIOFailure = "IO_001" // Transient read error

	// Search errors
	CodeInvalidPattern = "SEARCH_001" // Empty or malformed pattern

	// Action errors
	CodeLaunchFailed = "ACTION_001" // External viewer/file-manager/clipboard handoff failed
)

// RepoError is the structured error type for repository operations.
type RepoError struct {
	Code    string         `json:"code"`              // Error code (e.g., "RUN_001")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (run_id, root, path, ...)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *RepoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepoError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *RepoError) WithDetail(key string, value any) *RepoError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// MarshalJSON implements json.Marshaler with cause error message.
func (e *RepoError) MarshalJSON() ([]byte, error) {
	type alias RepoError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Newf creates a new RepoError with formatted message.
func Newf(code, format string, args ...any) *RepoError {
	return &RepoError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a RepoError.
func Wrap(code, message string, err error) *RepoError {
	return &RepoError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted RepoError.
func Wrapf(code string, err error, format string, args ...any) *RepoError {
	return &RepoError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// --- Config Errors ---

// ConfigMissingField creates an error for missing config field.
func ConfigMissingField(field string) *RepoError {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

// ConfigInvalidValue creates an error for invalid config value.
func ConfigInvalidValue(field string, value any, reason string) *RepoError {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// --- Run Errors ---

// RunNotFound creates an error for an identifier present in no root.
func RunNotFound(runID string) *RepoError {
	return Newf(CodeRunNotFound, "run not found: %s", runID).
		WithDetail("run_id", runID)
}

// --- Artifact Errors ---

// ArtifactNotFound creates an error for a missing artifact.
func ArtifactNotFound(runID, relPath string) *RepoError {
	return Newf(CodeArtifactNotFound, "artifact not found in run %s: %s", runID, relPath).
		WithDetail("run_id", runID).
		WithDetail("path", relPath)
}

// BinaryArtifact creates an error for a line-level request on binary content.
func BinaryArtifact(relPath string) *RepoError {
	return Newf(CodeBinaryArtifact, "artifact is binary: %s", relPath).
		WithDetail("path", relPath)
}

// --- Path Errors ---

// PathTraversal creates an error for a path that would leave its run directory.
// The rejected path is recorded as given; no resolved location is disclosed.
func PathTraversal(runID, relPath, reason string) *RepoError {
	return Newf(CodePathTraversal, "path rejected for run %s: %s", runID, reason).
		WithDetail("run_id", runID).
		WithDetail("path", relPath).
		WithDetail("reason", reason)
}

// DestinationRejected creates an error for a copy destination that is not allowed.
func DestinationRejected(runID, dest, reason string) *RepoError {
	return Newf(CodeDestinationRejected, "destination rejected: %s", reason).
		WithDetail("run_id", runID).
		WithDetail("destination", dest)
}

// --- Root Errors ---

// RootUnavailable creates an error for an inaccessible root.
func RootUnavailable(root string, err error) *RepoError {
	return Wrap(CodeRootUnavailable, "root unavailable", err).
		WithDetail("root", root)
}

// --- IO Errors ---

// IOFailure creates an error for a failed read.
func IOFailure(path string, err error) *RepoError {
	return Wrap(CodeIOFailure, "io failure", err).
		WithDetail("path", path)
}

// --- Search Errors ---

// InvalidPattern creates an error for an unusable search pattern.
func InvalidPattern(pattern string, err error) *RepoError {
	return Wrap(CodeInvalidPattern, "invalid search pattern", err).
		WithDetail("pattern", pattern)
}

// --- Action Errors ---

// LaunchFailed creates an error for a failed OS handoff.
func LaunchFailed(action, path string, err error) *RepoError {
	return Wrapf(CodeLaunchFailed, err, "%s failed", action).
		WithDetail("action", action).
		WithDetail("path", path)
}

// HasCode checks if an error is a RepoError with the given code.
// It handles wrapped errors by unwrapping to find a RepoError.
func HasCode(err error, code string) bool {
	var rerr *RepoError
	if errors.As(err, &rerr) {
		return rerr.Code == code
	}
	return false
}

// Code returns the error code if err is a RepoError, empty string otherwise.
// It handles wrapped errors by unwrapping to find a RepoError.
func Code(err error) string {
	var rerr *RepoError
	if errors.As(err, &rerr) {
		return rerr.Code
	}
	return ""
}

// Detail returns a detail value from a RepoError in err's chain.
func Detail(err error, key string) (any, bool) {
	var rerr *RepoError
	if !errors.As(err, &rerr) || rerr.Details == nil {
		return nil, false
	}
	v, ok := rerr.Details[key]
	return v, ok
}
