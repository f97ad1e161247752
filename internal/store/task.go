package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
)

// ListFilter narrows and pages a task listing. The zero value lists
// everything, most recently created first.
type ListFilter struct {
	// Owner restricts the listing to tasks owned by the given principal.
	// Listings are owner-scoped by default; only elevated callers may
	// pass uuid.Nil to list across owners.
	Owner uuid.UUID

	// Status restricts the listing to tasks in the given status.
	Status domain.TaskStatus

	// Type restricts the listing to tasks of the given type.
	Type domain.TaskType

	// Limit bounds the number of results; zero means no bound.
	Limit int

	// Offset skips the first N results for pagination.
	Offset int
}

// TaskStore defines the interface for task data persistence.
// Version: 1.0
type TaskStore interface {
	// Add persists a new task.
	// Returns ErrTaskExists if a task with the same ID is already stored.
	// Returns validation errors from the domain Task if data is invalid.
	Add(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks matching the filter, ordered by created_at
	// descending. Returns an empty slice if nothing matches.
	List(ctx context.Context, filter ListFilter) ([]*domain.Task, error)

	// Update saves changes to an existing task using optimistic
	// concurrency: the task's Version must still match the stored row,
	// otherwise ErrConflict is returned and nothing is written. On
	// success the task's Version is incremented in place.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task record. Cancellation never deletes (it is a
	// status transition, preserving audit history); this exists for the
	// retention sweeper and administrative cleanup.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpired removes terminal tasks whose expires_at is before
	// the given time. Returns the number of tasks removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
