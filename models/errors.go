package models

import "fmt"

// ValidationError reports malformed caller input. Field names the
// offending input when known.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports that a referenced document does not exist,
// as opposed to existing but being expired or exhausted.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthorizationDenied reports a failed permission or feature flag
// check. Checks fail closed and return this rather than panicking
// past the boundary.
type AuthorizationDenied struct {
	Reason string
}

func (e *AuthorizationDenied) Error() string {
	return "authorization denied: " + e.Reason
}

// ConflictNoOp marks an operation that found its work already done,
// such as redeeming into a (user, experience) pair that already holds
// a plan. Callers treat it as success with an empty delta.
type ConflictNoOp struct {
	Detail string
}

func (e *ConflictNoOp) Error() string {
	return "already satisfied: " + e.Detail
}

// CollaboratorDispatchFailure records a best-effort side effect, such
// as an invite email, that failed after the primary operation
// committed. It is surfaced as response metadata and never rolls the
// primary operation back.
type CollaboratorDispatchFailure struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorDispatchFailure) Error() string {
	return fmt.Sprintf("%s dispatch failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorDispatchFailure) Unwrap() error {
	return e.Err
}
