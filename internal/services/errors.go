package services

import (
	"errors"
	"fmt"
)

// Business-rule and lookup failures surfaced to the API layer. The handlers
// map these to 4xx responses; anything else is treated as a persistence
// fault and mapped to 5xx.
var (
	ErrNotFound            = errors.New("record not found")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ValidationError rejects malformed input before any mutation happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError wraps a failed store operation. The whole operation is
// safe to retry; individual writes are not, since entry and aggregate commit
// together.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
