package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/policy"
	"github.com/taskvault/taskvault-api/internal/store"
)

type serviceFixture struct {
	service   TaskService
	taskStore *mockTaskStore
	enforcer  *mockEnforcer
	notifier  *mockNotifier
	executor  *mockExecutor
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	taskStore := newMockTaskStore()
	enforcer := &mockEnforcer{}
	notifier := &mockNotifier{}
	exec := &mockExecutor{}

	factory, err := NewTaskFactory(enforcer, nil)
	require.NoError(t, err)

	svc, err := NewTaskService(taskStore, factory, enforcer, notifier, exec, time.Hour, nil)
	require.NoError(t, err)

	return &serviceFixture{
		service:   svc,
		taskStore: taskStore,
		enforcer:  enforcer,
		notifier:  notifier,
		executor:  exec,
	}
}

func importProperties() map[string]any {
	return map[string]any{"type": "import"}
}

func TestNewTaskService_NilDependencies(t *testing.T) {
	t.Parallel()

	enforcer := &mockEnforcer{}
	factory, err := NewTaskFactory(enforcer, nil)
	require.NoError(t, err)

	_, err = NewTaskService(nil, factory, enforcer, &mockNotifier{}, &mockExecutor{}, 0, nil)
	assert.Error(t, err)

	_, err = NewTaskService(newMockTaskStore(), nil, enforcer, &mockNotifier{}, &mockExecutor{}, 0, nil)
	assert.Error(t, err)

	_, err = NewTaskService(newMockTaskStore(), factory, enforcer, nil, &mockExecutor{}, 0, nil)
	assert.Error(t, err)
}

func TestTaskService_Create(t *testing.T) {
	t.Parallel()

	principal := policy.Principal{ID: uuid.New()}

	t.Run("persists a processing task and starts execution", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)

		task, err := fx.service.Create(context.Background(), principal, importProperties())
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusProcessing, task.Status)
		assert.Equal(t, principal.ID, task.Owner)

		stored := fx.taskStore.stored(task.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.TaskStatusProcessing, stored.Status)

		assert.Contains(t, fx.executor.started, task.ID)
		assert.Equal(t, []string{events.EventTaskCreate}, fx.notifier.eventNames())
	})

	t.Run("denied creation persists nothing", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		fx.enforcer.decide = func(action string, _ policy.Principal, _ *domain.Task) policy.Decision {
			return policy.Deny("no")
		}

		_, err := fx.service.Create(context.Background(), principal, importProperties())
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Empty(t, fx.taskStore.tasks)
		assert.Empty(t, fx.notifier.eventNames())
	})

	t.Run("reserved property persists nothing", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)

		_, err := fx.service.Create(context.Background(), principal, map[string]any{
			"type":       "import",
			"direct_url": "http://example.com",
		})
		assert.ErrorIs(t, err, ErrForbiddenProperty)
		assert.Empty(t, fx.taskStore.tasks)
	})

	t.Run("executor rejection records a failure instead of a stuck task", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		fx.executor.startErr = errors.New("queue is full")

		task, err := fx.service.Create(context.Background(), principal, importProperties())
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusFailure, task.Status)
		assert.Contains(t, task.Message, "queue is full")

		stored := fx.taskStore.stored(task.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.TaskStatusFailure, stored.Status)
		require.NotNil(t, stored.ExpiresAt)

		assert.Equal(t,
			[]string{events.EventTaskCreate, events.EventTaskFailure},
			fx.notifier.eventNames())
	})

	t.Run("notifier failure does not affect creation", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		fx.notifier.emitErr = errors.New("broker unavailable")

		task, err := fx.service.Create(context.Background(), principal, importProperties())
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusProcessing, task.Status)
	})
}

func TestTaskService_Get(t *testing.T) {
	t.Parallel()

	owner := policy.Principal{ID: uuid.New()}

	t.Run("owner reads their task", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		got, err := fx.service.Get(context.Background(), owner, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("stranger is refused", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		_, err = fx.service.Get(context.Background(), policy.Principal{ID: uuid.New()}, created.ID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("admin reads any task", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		got, err := fx.service.Get(context.Background(), policy.Principal{ID: uuid.New(), Admin: true}, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)

		_, err := fx.service.Get(context.Background(), owner, uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskService_List(t *testing.T) {
	t.Parallel()

	alice := policy.Principal{ID: uuid.New()}
	bob := policy.Principal{ID: uuid.New()}

	seed := func(t *testing.T, fx *serviceFixture) {
		t.Helper()
		_, err := fx.service.Create(context.Background(), alice, importProperties())
		require.NoError(t, err)
		_, err = fx.service.Create(context.Background(), bob, map[string]any{"type": "export"})
		require.NoError(t, err)
	}

	t.Run("non-admin sees only their own tasks", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		seed(t, fx)

		tasks, err := fx.service.List(context.Background(), alice, store.ListFilter{})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, alice.ID, tasks[0].Owner)
	})

	t.Run("non-admin cannot widen the filter to another owner", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		seed(t, fx)

		tasks, err := fx.service.List(context.Background(), alice, store.ListFilter{Owner: bob.ID})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, alice.ID, tasks[0].Owner)
	})

	t.Run("admin lists across owners", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		seed(t, fx)

		tasks, err := fx.service.List(context.Background(),
			policy.Principal{ID: uuid.New(), Admin: true}, store.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})
}

func TestTaskService_Cancel(t *testing.T) {
	t.Parallel()

	owner := policy.Principal{ID: uuid.New()}

	t.Run("cancels a processing task and stops its job", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		cancelled, err := fx.service.Cancel(context.Background(), owner, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusFailure, cancelled.Status)
		assert.Equal(t, domain.CancelMessage, cancelled.Message)
		require.NotNil(t, cancelled.ExpiresAt)

		assert.True(t, fx.executor.wasCancelled(created.ID))
		assert.Contains(t, fx.notifier.eventNames(), events.EventTaskCancel)
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		_, err = fx.service.Cancel(context.Background(), policy.Principal{ID: uuid.New()}, created.ID)
		assert.ErrorIs(t, err, ErrForbidden)

		stored := fx.taskStore.stored(created.ID)
		assert.Equal(t, domain.TaskStatusProcessing, stored.Status)
	})

	t.Run("terminal task cannot be cancelled", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		_, err = fx.service.Cancel(context.Background(), owner, created.ID)
		require.NoError(t, err)

		_, err = fx.service.Cancel(context.Background(), owner, created.ID)
		var transitionErr *domain.InvalidTransitionError
		assert.ErrorAs(t, err, &transitionErr)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)

		_, err := fx.service.Cancel(context.Background(), owner, uuid.New())
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})

	t.Run("losing the race surfaces the conflict", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		fx.taskStore.updateFn = func(ctx context.Context, task *domain.Task) error {
			return store.ErrConflict
		}

		_, err = fx.service.Cancel(context.Background(), owner, created.ID)
		assert.ErrorIs(t, err, store.ErrConflict)
		assert.False(t, fx.executor.wasCancelled(created.ID))
	})
}

func TestTaskService_HandleCompletion(t *testing.T) {
	t.Parallel()

	owner := policy.Principal{ID: uuid.New()}

	t.Run("successful job becomes success", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		fx.service.HandleCompletion(context.Background(), created, nil)

		stored := fx.taskStore.stored(created.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.TaskStatusSuccess, stored.Status)
		require.NotNil(t, stored.ExpiresAt)
		assert.Contains(t, fx.notifier.eventNames(), events.EventTaskSuccess)
	})

	t.Run("failed job becomes failure with the job error", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		fx.service.HandleCompletion(context.Background(), created, errors.New("disk full"))

		stored := fx.taskStore.stored(created.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.TaskStatusFailure, stored.Status)
		assert.Equal(t, "disk full", stored.Message)
		assert.Contains(t, fx.notifier.eventNames(), events.EventTaskFailure)
	})

	t.Run("completion after cancellation is discarded", func(t *testing.T) {
		t.Parallel()
		fx := newServiceFixture(t)
		created, err := fx.service.Create(context.Background(), owner, importProperties())
		require.NoError(t, err)

		_, err = fx.service.Cancel(context.Background(), owner, created.ID)
		require.NoError(t, err)

		fx.service.HandleCompletion(context.Background(), created, nil)

		stored := fx.taskStore.stored(created.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.TaskStatusFailure, stored.Status)
		assert.Equal(t, domain.CancelMessage, stored.Message)
		assert.NotContains(t, fx.notifier.eventNames(), events.EventTaskSuccess)
	})
}
