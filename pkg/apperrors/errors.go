// Package apperrors holds the sentinel errors shared across the runtime's
// packages, so callers can classify a failure with errors.Is instead of
// string-matching messages.
package apperrors

import "errors"

var (
	// ErrInvalidArgument indicates a tool call's arguments failed schema validation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthorized indicates an attempt to read or write a resource the
	// caller does not own (e.g. a table outside the user's namespace).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a create attempted to reuse an identifier
	// that's already taken, surfaced when a unique-constraint violation maps
	// cleanly back to a caller-meaningful conflict.
	ErrAlreadyExists = errors.New("already exists")

	// ErrSessionBusy indicates a second request arrived for a session with
	// an active turn in flight.
	ErrSessionBusy = errors.New("session busy")

	// ErrToolNotRegistered indicates invoke was called with an unknown tool name.
	ErrToolNotRegistered = errors.New("tool not registered")

	// ErrCancelled indicates the enclosing turn was cancelled by the client.
	ErrCancelled = errors.New("cancelled")

	// ErrTimedOut indicates a step or workflow exceeded its wall-clock budget.
	ErrTimedOut = errors.New("timed out")
)

// ToolError wraps a tool-invocation failure with the tool name and the
// sentinel it classifies as, so a caught runtime panic or unexpected
// provider error can still be surfaced as a well-typed result.
type ToolError struct {
	Tool string
	Kind error // one of the sentinels above
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err == nil {
		return e.Tool + ": " + e.Kind.Error()
	}
	return e.Tool + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *ToolError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewToolError constructs a ToolError, tolerating a nil underlying cause.
func NewToolError(tool string, kind, err error) *ToolError {
	return &ToolError{Tool: tool, Kind: kind, Err: err}
}
