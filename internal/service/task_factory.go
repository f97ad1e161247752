package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/policy"
)

// Reserved property names clients must not supply when creating a task.
// These are rendered by the API, never accepted from it.
var reservedTaskProperties = []string{"direct_url", "self", "file", "schema"}

// Client-supplied properties that are silently ignored: the service
// always generates a fresh ID and every task starts queued.
var ignoredTaskProperties = map[string]struct{}{
	"id":     {},
	"status": {},
}

// TaskFactory constructs new tasks from client-supplied properties,
// enforcing the creation rules before anything touches the store.
type TaskFactory interface {
	// NewTask builds a queued task for the principal from raw request
	// properties. It has no persistence side effects.
	NewTask(ctx context.Context, principal policy.Principal, properties map[string]any) (*domain.Task, error)
}

// taskFactoryImpl implements TaskFactory using the policy enforcer for
// owner-override checks.
type taskFactoryImpl struct {
	enforcer policy.Enforcer
	logger   *slog.Logger
}

// NewTaskFactory creates a TaskFactory.
// It returns an error if the enforcer is nil.
func NewTaskFactory(enforcer policy.Enforcer, logger *slog.Logger) (TaskFactory, error) {
	if enforcer == nil {
		return nil, &TaskServiceError{
			Operation: "create_factory",
			Message:   "enforcer cannot be nil",
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskFactoryImpl{
		enforcer: enforcer,
		logger:   logger.With("component", "task_factory"),
	}, nil
}

// Ensure taskFactoryImpl implements the TaskFactory interface
var _ TaskFactory = (*taskFactoryImpl)(nil)

// NewTask implements TaskFactory.NewTask
func (f *taskFactoryImpl) NewTask(
	ctx context.Context,
	principal policy.Principal,
	properties map[string]any,
) (*domain.Task, error) {
	for _, reserved := range reservedTaskProperties {
		if _, present := properties[reserved]; present {
			f.logger.Warn("task creation rejected: reserved property supplied",
				"property", reserved,
				"principal_id", principal.ID)
			return nil, fmt.Errorf("%w: %s", ErrForbiddenProperty, reserved)
		}
	}

	rawType, ok := properties["type"].(string)
	if !ok || rawType == "" {
		return nil, domain.NewValidationError("type", "task type is required", domain.ErrValidation)
	}

	taskType, err := domain.ParseTaskType(rawType)
	if err != nil {
		return nil, err
	}

	owner, err := f.resolveOwner(ctx, principal, properties)
	if err != nil {
		return nil, err
	}

	for key := range properties {
		if _, ignored := ignoredTaskProperties[key]; ignored {
			f.logger.Debug("ignoring client-supplied task property",
				"property", key,
				"principal_id", principal.ID)
		}
	}

	task, err := domain.NewTask(taskType, owner)
	if err != nil {
		return nil, NewTaskServiceError("new_task", "failed to construct task", err)
	}

	return task, nil
}

// resolveOwner defaults the owner to the principal; assigning anyone
// else requires the set-owner action.
func (f *taskFactoryImpl) resolveOwner(
	ctx context.Context,
	principal policy.Principal,
	properties map[string]any,
) (uuid.UUID, error) {
	rawOwner, present := properties["owner"]
	if !present {
		return principal.ID, nil
	}

	ownerStr, ok := rawOwner.(string)
	if !ok {
		return uuid.Nil, domain.NewValidationError("owner", "owner must be a UUID string", domain.ErrValidation)
	}

	owner, err := uuid.Parse(ownerStr)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("owner", "owner must be a valid UUID", domain.ErrInvalidID)
	}

	if owner == principal.ID {
		return owner, nil
	}

	decision := f.enforcer.Check(ctx, policy.ActionSetOwner, principal, nil)
	if !decision.Allowed {
		f.logger.Warn("owner override denied",
			"principal_id", principal.ID,
			"requested_owner", owner,
			"reason", decision.Reason)
		return uuid.Nil, ErrForbidden
	}

	return owner, nil
}
