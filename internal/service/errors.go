package service

import (
	"errors"
	"fmt"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in TaskServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrTaskNotFound indicates that the requested task does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("task not found")

	// ErrForbidden indicates the principal is not allowed to perform the
	// operation. API layer should map this to HTTP 403 Forbidden.
	ErrForbidden = errors.New("operation forbidden")

	// ErrForbiddenProperty indicates the client supplied a reserved task
	// property. It wraps ErrForbidden so both checks succeed.
	ErrForbiddenProperty = fmt.Errorf("%w: reserved property", ErrForbidden)
)

// TaskServiceError wraps errors from the task service with context.
type TaskServiceError struct {
	// Operation is the operation that failed (e.g., "create_task", "cancel_task")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
// It returns known sentinel and typed errors unwrapped so callers can
// match them directly with errors.Is/errors.As.
func NewTaskServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	// Service-level sentinels pass through untouched.
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrTaskNotFound) {
		return err
	}

	// Store-level sentinels map to their service-level equivalents or
	// stay intact for the API layer (conflicts map to 409).
	if errors.Is(err, store.ErrTaskNotFound) {
		return ErrTaskNotFound
	}
	if errors.Is(err, store.ErrConflict) {
		return err
	}

	// Domain errors carry field and transition detail the API layer
	// renders; wrapping them would hide that behind this type.
	var validationErr *domain.ValidationError
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &validationErr) || errors.As(err, &transitionErr) {
		return err
	}

	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
