package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/executor"
	"github.com/taskvault/taskvault-api/internal/policy"
	"github.com/taskvault/taskvault-api/internal/store"
)

// mockTaskStore is an in-memory TaskStore with optional per-method
// overrides for error injection.
type mockTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	addFn    func(ctx context.Context, task *domain.Task) error
	getFn    func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	updateFn func(ctx context.Context, task *domain.Task) error
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (m *mockTaskStore) Add(ctx context.Context, task *domain.Task) error {
	if m.addFn != nil {
		return m.addFn(ctx, task)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; exists {
		return store.ErrTaskExists
	}
	m.tasks[task.ID] = copyTask(task)
	return nil
}

func (m *mockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(task), nil
}

func (m *mockTaskStore) List(ctx context.Context, filter store.ListFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*domain.Task, 0)
	for _, task := range m.tasks {
		if filter.Owner != uuid.Nil && task.Owner != filter.Owner {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		result = append(result, copyTask(task))
	}
	return result, nil
}

func (m *mockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, task)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if stored.Version != task.Version {
		return store.ErrConflict
	}
	task.Version++
	m.tasks[task.ID] = copyTask(task)
	return nil
}

func (m *mockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *mockTaskStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, task := range m.tasks {
		if task.IsTerminal() && task.ExpiresAt != nil && task.ExpiresAt.Before(now) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

// stored returns the current persisted view of a task.
func (m *mockTaskStore) stored(id uuid.UUID) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil
	}
	return copyTask(task)
}

func copyTask(task *domain.Task) *domain.Task {
	clone := *task
	if task.ExpiresAt != nil {
		expiry := *task.ExpiresAt
		clone.ExpiresAt = &expiry
	}
	return &clone
}

// mockEnforcer returns a fixed decision, or defers to the real
// owner-scoped enforcer when decide is nil.
type mockEnforcer struct {
	decide  func(action string, principal policy.Principal, target *domain.Task) policy.Decision
	actions []string
}

func (m *mockEnforcer) Check(
	ctx context.Context,
	action string,
	principal policy.Principal,
	target *domain.Task,
) policy.Decision {
	m.actions = append(m.actions, action)
	if m.decide != nil {
		return m.decide(action, principal, target)
	}
	return policy.NewOwnerEnforcer().Check(ctx, action, principal, target)
}

// mockNotifier records emitted events.
type mockNotifier struct {
	mu      sync.Mutex
	emitted []*events.TaskEvent
	emitErr error
}

func (m *mockNotifier) Emit(ctx context.Context, event *events.TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append(m.emitted, event)
	return m.emitErr
}

func (m *mockNotifier) eventNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.emitted))
	for _, event := range m.emitted {
		names = append(names, event.Name)
	}
	return names
}

// mockExecutor records started tasks and hands out cancellable handles.
type mockExecutor struct {
	mu        sync.Mutex
	started   []uuid.UUID
	cancelled []uuid.UUID
	startErr  error
}

func (m *mockExecutor) Start(ctx context.Context, task *domain.Task) (executor.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, task.ID)
	return &mockHandle{exec: m, taskID: task.ID}, nil
}

func (m *mockExecutor) wasCancelled(taskID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.cancelled {
		if id == taskID {
			return true
		}
	}
	return false
}

type mockHandle struct {
	exec   *mockExecutor
	taskID uuid.UUID
}

func (h *mockHandle) Cancel() {
	h.exec.mu.Lock()
	defer h.exec.mu.Unlock()
	h.exec.cancelled = append(h.exec.cancelled, h.taskID)
}
