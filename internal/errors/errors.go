// Package errors provides centralized error definitions and error handling
// utilities for the epicflow codebase. It defines sentinel errors for the
// registry, dependency graph, and worktree subsystems, semantic error types
// with context wrapping, and classification helpers.
//
// # Error Types
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found (registry, epic, worktree, task file)
//   - ValidationError: invalid input or state (duplicate ids, bad transitions)
//   - GitError: a git worktree/branch operation failed
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewNotFoundError("epic", "EPIC-001")
//	err := errors.NewGitError("worktree add failed", baseErr).WithBranch("feature/x")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrEpicNotFound) { ... }
//
//	var gitErr *errors.GitError
//	if errors.As(err, &gitErr) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo Severity = iota
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Registry-related sentinel errors
var (
	// ErrRegistryNotFound indicates that the registry document could not be found.
	ErrRegistryNotFound = New("registry not found")
	// ErrEpicNotFound indicates that an epic could not be found.
	ErrEpicNotFound = New("epic not found")
	// ErrEpicExists indicates that an epic with the same id is already registered.
	ErrEpicExists = New("epic already exists")
	// ErrEpicNumberMismatch indicates an epic number that does not match the
	// registry's next_epic_number counter.
	ErrEpicNumberMismatch = New("epic number mismatch")
)

// Dependency-graph sentinel errors
var (
	// ErrDependencyCycle indicates a circular blocked_by chain between epics.
	ErrDependencyCycle = New("dependency cycle detected")
)

// Worktree-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrWorktreeNotFound indicates that a worktree record could not be found.
	ErrWorktreeNotFound = New("worktree not found")
	// ErrNotTerminalState indicates a cleanup attempt on a worktree that is
	// still active and was not forced.
	ErrNotTerminalState = New("worktree not in terminal state")
	// ErrUnknownStatus indicates a worktree status outside the lifecycle set.
	ErrUnknownStatus = New("unknown worktree status")
)

// Analyzer-related sentinel errors
var (
	// ErrTaskFileNotFound indicates that the task document does not exist.
	ErrTaskFileNotFound = New("task file not found")
)

// baseError provides common functionality for all semantic error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show to users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// NotFoundError indicates that a requested resource does not exist.
// Read paths typically map this to an empty result; mutating paths fail.
type NotFoundError struct {
	baseError
	Resource string // resource kind: "registry", "epic", "worktree", "task file"
	ID       string
}

// NewNotFoundError creates a NotFoundError for the given resource kind and id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s not found: %s", resource, id),
			severity:   SeverityWarning,
			userFacing: true,
		},
		Resource: resource,
		ID:       id,
	}
}

// Is matches sentinel not-found errors for the same resource kind.
func (e *NotFoundError) Is(target error) bool {
	switch target {
	case ErrRegistryNotFound:
		return e.Resource == "registry"
	case ErrEpicNotFound:
		return e.Resource == "epic"
	case ErrWorktreeNotFound:
		return e.Resource == "worktree"
	case ErrTaskFileNotFound:
		return e.Resource == "task file"
	}
	return e.baseError.Is(target)
}

// ValidationError indicates invalid input or state. It aborts only the
// single requested operation.
type ValidationError struct {
	baseError
	Field string
}

// NewValidationError creates a ValidationError with an optional cause.
func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithField attaches the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// GitError indicates a failed git worktree or branch operation.
// The captured command output is preserved for diagnostics.
type GitError struct {
	baseError
	Branch string
	Path   string
	Output string
}

// NewGitError creates a GitError wrapping the underlying command failure.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
	}
}

// WithBranch attaches the branch involved in the failed operation.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithPath attaches the worktree path involved in the failed operation.
func (e *GitError) WithPath(path string) *GitError {
	e.Path = path
	return e
}

// WithOutput attaches the captured command output.
func (e *GitError) WithOutput(output string) *GitError {
	e.Output = output
	return e
}

// IsNotFound reports whether err is any of the not-found sentinels or a
// NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return errors.Is(err, ErrRegistryNotFound) ||
		errors.Is(err, ErrEpicNotFound) ||
		errors.Is(err, ErrWorktreeNotFound) ||
		errors.Is(err, ErrTaskFileNotFound)
}

// IsRetryable reports whether the error is transient and the operation may
// succeed on retry.
func IsRetryable(err error) bool {
	var c interface{ IsRetryable() bool }
	if errors.As(err, &c) {
		return c.IsRetryable()
	}
	return false
}

// IsUserFacing reports whether the error message is safe to display to users.
func IsUserFacing(err error) bool {
	var c interface{ IsUserFacing() bool }
	if errors.As(err, &c) {
		return c.IsUserFacing()
	}
	return false
}
