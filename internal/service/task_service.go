package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/executor"
	"github.com/taskvault/taskvault-api/internal/policy"
	"github.com/taskvault/taskvault-api/internal/store"
)

// TaskService provides task lifecycle operations.
type TaskService interface {
	// Create builds a task from client properties, persists it, moves it
	// to processing and hands it to the executor. The returned task
	// reflects the state at return time; execution continues in the
	// background.
	Create(ctx context.Context, principal policy.Principal, properties map[string]any) (*domain.Task, error)

	// Get retrieves a task the principal is allowed to see.
	Get(ctx context.Context, principal policy.Principal, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks matching the filter. Non-elevated principals
	// are always scoped to their own tasks regardless of the filter.
	List(ctx context.Context, principal policy.Principal, filter store.ListFilter) ([]*domain.Task, error)

	// Cancel moves a non-terminal task to failure with the cancellation
	// message and stops its running job, if any.
	Cancel(ctx context.Context, principal policy.Principal, id uuid.UUID) (*domain.Task, error)

	// HandleCompletion records the outcome of a finished job. It is
	// invoked by the executor, never by API callers.
	HandleCompletion(ctx context.Context, task *domain.Task, jobErr error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	taskStore store.TaskStore
	factory   TaskFactory
	enforcer  policy.Enforcer
	notifier  events.Notifier
	executor  executor.Executor
	retention time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	handles map[uuid.UUID]executor.Handle
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
// retention is how long terminal tasks remain visible before the
// sweeper may remove them; zero disables expiry.
func NewTaskService(
	taskStore store.TaskStore,
	factory TaskFactory,
	enforcer policy.Enforcer,
	notifier events.Notifier,
	exec executor.Executor,
	retention time.Duration,
	logger *slog.Logger,
) (TaskService, error) {
	if taskStore == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "taskStore cannot be nil"}
	}
	if factory == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "factory cannot be nil"}
	}
	if enforcer == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "enforcer cannot be nil"}
	}
	if notifier == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "notifier cannot be nil"}
	}
	if exec == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "executor cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		taskStore: taskStore,
		factory:   factory,
		enforcer:  enforcer,
		notifier:  notifier,
		executor:  exec,
		retention: retention,
		logger:    logger.With("component", "task_service"),
		handles:   make(map[uuid.UUID]executor.Handle),
	}, nil
}

// Ensure taskServiceImpl implements the TaskService interface
var _ TaskService = (*taskServiceImpl)(nil)

// Create implements TaskService.Create
func (s *taskServiceImpl) Create(
	ctx context.Context,
	principal policy.Principal,
	properties map[string]any,
) (*domain.Task, error) {
	if decision := s.enforcer.Check(ctx, policy.ActionCreate, principal, nil); !decision.Allowed {
		s.logger.Warn("task creation denied",
			"principal_id", principal.ID,
			"reason", decision.Reason)
		return nil, ErrForbidden
	}

	task, err := s.factory.NewTask(ctx, principal, properties)
	if err != nil {
		return nil, err
	}

	if err := s.taskStore.Add(ctx, task); err != nil {
		s.logger.Error("failed to persist new task",
			"error", err,
			"task_id", task.ID,
			"owner", task.Owner)
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"task_type", task.Type,
		"owner", task.Owner)

	s.emit(ctx, events.EventTaskCreate, task)

	// Move to processing before handing off so a queued row is never
	// left behind by an executor that accepted the work.
	if err := task.Run(); err != nil {
		return nil, NewTaskServiceError("create_task", "failed to start task", err)
	}
	if err := s.taskStore.Update(ctx, task); err != nil {
		s.logger.Error("failed to mark task processing",
			"error", err,
			"task_id", task.ID)
		return nil, NewTaskServiceError("create_task", "failed to update task", err)
	}

	handle, err := s.executor.Start(ctx, task)
	if err != nil {
		s.logger.Error("executor rejected task",
			"error", err,
			"task_id", task.ID,
			"task_type", task.Type)
		s.failTask(ctx, task, fmt.Sprintf("executor: %v", err))
		return task, nil
	}

	s.mu.Lock()
	s.handles[task.ID] = handle
	s.mu.Unlock()

	return task, nil
}

// Get implements TaskService.Get
func (s *taskServiceImpl) Get(
	ctx context.Context,
	principal policy.Principal,
	id uuid.UUID,
) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}

	if decision := s.enforcer.Check(ctx, policy.ActionGet, principal, task); !decision.Allowed {
		s.logger.Warn("task read denied",
			"principal_id", principal.ID,
			"task_id", id,
			"reason", decision.Reason)
		return nil, ErrForbidden
	}

	return task, nil
}

// List implements TaskService.List
func (s *taskServiceImpl) List(
	ctx context.Context,
	principal policy.Principal,
	filter store.ListFilter,
) ([]*domain.Task, error) {
	if decision := s.enforcer.Check(ctx, policy.ActionList, principal, nil); !decision.Allowed {
		return nil, ErrForbidden
	}

	// Listing is owner-scoped unless the principal is elevated.
	if !principal.Admin {
		filter.Owner = principal.ID
	}

	tasks, err := s.taskStore.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list tasks",
			"error", err,
			"principal_id", principal.ID)
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}

	return tasks, nil
}

// Cancel implements TaskService.Cancel
func (s *taskServiceImpl) Cancel(
	ctx context.Context,
	principal policy.Principal,
	id uuid.UUID,
) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskServiceError("cancel_task", "failed to retrieve task", err)
	}

	if decision := s.enforcer.Check(ctx, policy.ActionCancel, principal, task); !decision.Allowed {
		s.logger.Warn("task cancellation denied",
			"principal_id", principal.ID,
			"task_id", id,
			"reason", decision.Reason)
		return nil, ErrForbidden
	}

	if err := task.Cancel(); err != nil {
		return nil, err
	}
	s.setExpiry(task)

	// The version check makes this a race with the completion callback:
	// whichever commits first wins, the other sees ErrConflict.
	if err := s.taskStore.Update(ctx, task); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Info("cancellation lost the race with completion",
				"task_id", id)
			return nil, store.ErrConflict
		}
		return nil, NewTaskServiceError("cancel_task", "failed to update task", err)
	}

	s.stopExecution(id)
	s.logger.Info("task cancelled",
		"task_id", id,
		"principal_id", principal.ID)
	s.emit(ctx, events.EventTaskCancel, task)

	return task, nil
}

// HandleCompletion implements TaskService.HandleCompletion
// It reloads the task so the version reflects any concurrent
// cancellation, then records the outcome.
func (s *taskServiceImpl) HandleCompletion(ctx context.Context, task *domain.Task, jobErr error) {
	s.mu.Lock()
	delete(s.handles, task.ID)
	s.mu.Unlock()

	current, err := s.taskStore.GetByID(ctx, task.ID)
	if err != nil {
		s.logger.Error("failed to reload task after job completion",
			"error", err,
			"task_id", task.ID)
		return
	}

	if current.IsTerminal() {
		s.logger.Info("task already terminal at completion, outcome discarded",
			"task_id", task.ID,
			"status", current.Status)
		return
	}

	var eventName string
	if jobErr != nil {
		eventName = events.EventTaskFailure
		if err := current.Fail(jobErr.Error()); err != nil {
			s.logger.Error("failed to record job failure",
				"error", err,
				"task_id", task.ID)
			return
		}
	} else {
		eventName = events.EventTaskSuccess
		if err := current.Succeed(); err != nil {
			s.logger.Error("failed to record job success",
				"error", err,
				"task_id", task.ID)
			return
		}
	}
	s.setExpiry(current)

	if err := s.taskStore.Update(ctx, current); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Info("completion lost the race with a concurrent writer",
				"task_id", task.ID)
			return
		}
		s.logger.Error("failed to persist task outcome",
			"error", err,
			"task_id", task.ID,
			"status", current.Status)
		return
	}

	s.logger.Info("task finished",
		"task_id", task.ID,
		"status", current.Status)
	s.emit(ctx, eventName, current)
}

// failTask persists a failure outcome outside the normal completion
// path, used when the executor never accepted the task.
func (s *taskServiceImpl) failTask(ctx context.Context, task *domain.Task, message string) {
	if err := task.Fail(message); err != nil {
		s.logger.Error("failed to mark task failed",
			"error", err,
			"task_id", task.ID)
		return
	}
	s.setExpiry(task)

	if err := s.taskStore.Update(ctx, task); err != nil {
		s.logger.Error("failed to persist task failure",
			"error", err,
			"task_id", task.ID)
		return
	}

	s.emit(ctx, events.EventTaskFailure, task)
}

// setExpiry stamps a terminal task with its retention deadline.
func (s *taskServiceImpl) setExpiry(task *domain.Task) {
	if s.retention <= 0 {
		return
	}
	expiry := time.Now().UTC().Add(s.retention)
	task.ExpiresAt = &expiry
}

// stopExecution cancels the in-process job for the task, if one is
// still tracked.
func (s *taskServiceImpl) stopExecution(taskID uuid.UUID) {
	s.mu.Lock()
	handle, ok := s.handles[taskID]
	delete(s.handles, taskID)
	s.mu.Unlock()

	if ok {
		handle.Cancel()
	}
}

// emit publishes a lifecycle event. Emission failures are logged and
// never propagate to the triggering operation.
func (s *taskServiceImpl) emit(ctx context.Context, name string, task *domain.Task) {
	event, err := events.NewTaskEvent(name, task)
	if err != nil {
		s.logger.Error("failed to build task event",
			"error", err,
			"event", name,
			"task_id", task.ID)
		return
	}

	if err := s.notifier.Emit(ctx, event); err != nil {
		s.logger.Error("failed to emit task event",
			"error", err,
			"event", name,
			"task_id", task.ID)
	}
}
