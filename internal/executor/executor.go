package executor

import (
	"context"
	"errors"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// Common executor errors.
var (
	// ErrQueueFull is returned by Start when the execution queue cannot
	// accept another task. The caller decides how to surface it.
	ErrQueueFull = errors.New("execution queue is full")

	// ErrUnknownTaskType is returned when no job is registered for the
	// task's type.
	ErrUnknownTaskType = errors.New("no job registered for task type")

	// ErrStopped is returned by Start after the executor has shut down.
	ErrStopped = errors.New("executor is stopped")
)

// Job executes the work for one task kind. Implementations must honor
// context cancellation: a cancelled context means the task was cancelled
// and the job should stop and return promptly.
type Job func(ctx context.Context, task *domain.Task) error

// Registry maps each task type to the job that executes it.
type Registry map[domain.TaskType]Job

// Handle controls one running execution.
type Handle interface {
	// Cancel requests that the execution stop. Cancellation is
	// cooperative: the job unwinds in the background and the recorded
	// task status stays authoritative regardless.
	Cancel()
}

// Executor starts the asynchronous work for a task.
type Executor interface {
	// Start enqueues the task's job for execution and returns a Handle
	// for cancelling it. Start never blocks on job completion.
	Start(ctx context.Context, task *domain.Task) (Handle, error)
}

// CompletionFunc receives the outcome of a finished job. A nil jobErr
// means the job succeeded. The callback runs on a worker goroutine.
type CompletionFunc func(ctx context.Context, task *domain.Task, jobErr error)
