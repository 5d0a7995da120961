package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned when a tenant name or admin email
	// collides with an existing record.
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrNotFound is returned when a tenant or admin does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden is returned when an authenticated admin targets a
	// tenant other than their own.
	ErrForbidden = errors.New("not authorized for this organization")
	// ErrUnauthenticated is returned on missing, malformed, expired or
	// tampered bearer tokens.
	ErrUnauthenticated = errors.New("invalid or expired token")
	// ErrInvalidCredentials is returned on login failure. Unknown email
	// and wrong password deliberately share this single error.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// PartialFailureError reports a multi-store lifecycle operation that
// aborted mid-sequence and could not be fully compensated, leaving
// orphaned resources behind for manual or automated reconciliation.
type PartialFailureError struct {
	Op             string
	CompletedSteps []string
	Cause          error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure in %s after steps %v: %v", e.Op, e.CompletedSteps, e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}
