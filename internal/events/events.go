package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
)

// Lifecycle event names emitted by the task service.
const (
	EventTaskCreate  = "task.create"
	EventTaskSuccess = "task.success"
	EventTaskFailure = "task.failure"
	EventTaskCancel  = "task.cancel"
)

// TaskEvent describes one task lifecycle notification.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Name is the lifecycle event name (e.g., task.create)
	Name string `json:"name"`

	// TaskID identifies the task the event is about
	TaskID uuid.UUID `json:"task_id"`

	// Payload carries the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *TaskEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskEvent creates a TaskEvent for the given task, capturing its
// current view (type, status, owner, message) as the payload.
func NewTaskEvent(name string, task *domain.Task) (*TaskEvent, error) {
	payload, err := json.Marshal(struct {
		Type    domain.TaskType   `json:"type"`
		Status  domain.TaskStatus `json:"status"`
		Owner   uuid.UUID         `json:"owner"`
		Message string            `json:"message,omitempty"`
	}{
		Type:    task.Type,
		Status:  task.Status,
		Owner:   task.Owner,
		Message: task.Message,
	})
	if err != nil {
		return nil, err
	}

	return &TaskEvent{
		ID:        uuid.New(),
		Name:      name,
		TaskID:    task.ID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Handler defines an interface for components that process events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// Notifier defines an interface for components that emit lifecycle
// events. Implementations must be safe for concurrent use.
type Notifier interface {
	// Emit publishes the given event. Returns an error for the caller to
	// log; emission failures never affect the triggering operation.
	Emit(ctx context.Context, event *TaskEvent) error
}
