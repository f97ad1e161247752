package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidTransition is returned when a task transition is attempted
	// from a status that does not permit it. It is never absorbed silently:
	// a swallowed illegal transition would corrupt the updated_at/message
	// audit trail.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ValidationError describes a validation failure for a specific field.
// It wraps one of the domain sentinel errors so callers can use errors.Is
// while still receiving field-level context.
type ValidationError struct {
	Field   string // The field that failed validation (e.g., "type")
	Message string // Human-readable description of the failure
	Err     error  // Underlying sentinel error (usually ErrValidation)
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidation
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// InvalidTransitionError reports an attempted task transition that is not
// legal from the task's current status. It wraps ErrInvalidTransition.
type InvalidTransitionError struct {
	Event string     // The attempted event (e.g., "run", "cancel")
	From  TaskStatus // The status the task was in when the event arrived
}

// Error implements the error interface for InvalidTransitionError.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s task in status %q", e.Event, e.From)
}

// Unwrap returns ErrInvalidTransition to support errors.Is.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// newInvalidTransitionError records an illegal (status, event) pair.
func newInvalidTransitionError(event string, from TaskStatus) *InvalidTransitionError {
	return &InvalidTransitionError{Event: event, From: from}
}
