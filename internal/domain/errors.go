package domain

import (
	"fmt"
)

// StateError reports an operation invalid for the current lifecycle state,
// with enough context for the caller to retry correctly.
type StateError struct {
	Op      string
	UserID  string
	Current string
	Reason  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid in state %q for user %s: %s", e.Op, e.Current, e.UserID, e.Reason)
}

// ConcurrentCycleError reports that a learning cycle is already in flight
// for the user. Retryable once the in-flight cycle resolves.
type ConcurrentCycleError struct {
	UserID string
}

func (e *ConcurrentCycleError) Error() string {
	return fmt.Sprintf("cycle already running for user %s", e.UserID)
}

// ValidationError reports malformed input; the offending field is named so
// callers never have to guess. Invalid input is never silently coerced.
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}
