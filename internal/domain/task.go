package domain

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// TaskType identifies the kind of long-running job a task tracks.
type TaskType string

// The closed set of task types. Unknown values are rejected at
// construction time.
const (
	TaskTypeImport TaskType = "import"
	TaskTypeExport TaskType = "export"
	TaskTypeClone  TaskType = "clone"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

// Possible task status values. A task starts at queued and only ever
// moves forward: queued -> processing -> success | failure.
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSuccess    TaskStatus = "success"
	TaskStatusFailure    TaskStatus = "failure"
)

// CancelMessage is the failure message recorded when a task is cancelled.
// Cancellation is modeled as a failure transition so the message/failure
// invariant holds without a dedicated cancelled status.
const CancelMessage = "task cancelled"

// MaxMessageLen bounds the stored failure message.
const MaxMessageLen = 255

// Common validation errors for Task.
var (
	ErrEmptyTaskID           = errors.New("task ID cannot be empty")
	ErrEmptyTaskOwner        = errors.New("task owner cannot be empty")
	ErrInvalidTaskType       = errors.New("invalid task type")
	ErrInvalidTaskState      = errors.New("invalid task status")
	ErrEmptyTaskMessage      = errors.New("failure message cannot be empty")
	ErrUnexpectedTaskMessage = errors.New("message is only valid on a failed task")
)

// Task represents one asynchronous job tracked through its status
// lifecycle. ID, Type, Owner, and CreatedAt are immutable after
// construction; Status and Message change only through the transition
// methods below, which refresh UpdatedAt on every accepted event.
//
// Version is the optimistic-concurrency token managed by the repository:
// it is read with the record and checked at save time so that a stale
// read-modify-write loses cleanly instead of overwriting a newer state.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	Type      TaskType   `json:"type"`
	Owner     uuid.UUID  `json:"owner"`
	Status    TaskStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Version   int        `json:"-"`
}

// NewTask creates a new Task of the given type for the given owner.
// It generates a fresh UUID, sets the status to queued, and stamps the
// creation/update timestamps. Returns an error if validation fails.
func NewTask(taskType TaskType, owner uuid.UUID) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:        uuid.New(),
		Type:      taskType,
		Owner:     owner,
		Status:    TaskStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.Owner == uuid.Nil {
		return ErrEmptyTaskOwner
	}

	if !isValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskState
	}

	if t.Message != "" && t.Status != TaskStatusFailure {
		return ErrUnexpectedTaskMessage
	}

	return nil
}

// Run transitions the task from queued to processing. It clears the
// message and refreshes UpdatedAt. Returns an InvalidTransitionError,
// with no side effects, if the task is not queued.
func (t *Task) Run() error {
	if t.Status != TaskStatusQueued {
		return newInvalidTransitionError("run", t.Status)
	}

	t.Status = TaskStatusProcessing
	t.Message = ""
	t.touch()
	return nil
}

// Succeed transitions the task from processing to success. Calling it
// from any other status, including success itself, is an
// InvalidTransitionError: completion is not idempotent.
func (t *Task) Succeed() error {
	if t.Status != TaskStatusProcessing {
		return newInvalidTransitionError("succeed", t.Status)
	}

	t.Status = TaskStatusSuccess
	t.touch()
	return nil
}

// Fail transitions the task from queued or processing to failure,
// recording the given message. The message must be non-empty and is
// truncated to MaxMessageLen.
func (t *Task) Fail(message string) error {
	if t.IsTerminal() {
		return newInvalidTransitionError("fail", t.Status)
	}

	if message == "" {
		return ErrEmptyTaskMessage
	}
	message = truncateMessage(message)

	t.Status = TaskStatusFailure
	t.Message = message
	t.touch()
	return nil
}

// Cancel moves a non-terminal task to failure with CancelMessage.
// Signalling the executor to release its resources is the caller's
// responsibility; the entity only records the authoritative status.
func (t *Task) Cancel() error {
	if t.IsTerminal() {
		return newInvalidTransitionError("cancel", t.Status)
	}

	return t.Fail(CancelMessage)
}

// IsTerminal reports whether the task has reached a final status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusFailure
}

// truncateMessage caps a failure message at MaxMessageLen bytes without
// splitting a multibyte rune. The stored value must stay valid UTF-8 or
// the database rejects the write.
func truncateMessage(message string) string {
	if len(message) <= MaxMessageLen {
		return message
	}
	cut := MaxMessageLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

// touch refreshes the UpdatedAt timestamp.
func (t *Task) touch() {
	t.UpdatedAt = time.Now().UTC()
}

// isValidTaskType checks if the given type is in the closed enumeration.
func isValidTaskType(taskType TaskType) bool {
	switch taskType {
	case TaskTypeImport, TaskTypeExport, TaskTypeClone:
		return true
	default:
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusSuccess, TaskStatusFailure:
		return true
	default:
		return false
	}
}

// ParseTaskType validates a raw string against the closed type
// enumeration. Returns a ValidationError for unknown values.
func ParseTaskType(raw string) (TaskType, error) {
	taskType := TaskType(raw)
	if !isValidTaskType(taskType) {
		return "", NewValidationError("type", "must be one of import, export, clone", ErrInvalidTaskType)
	}
	return taskType, nil
}

// ParseTaskStatus validates a raw string against the status
// enumeration. Returns a ValidationError for unknown values.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(raw)
	if !isValidTaskStatus(status) {
		return "", NewValidationError("status", "must be one of queued, processing, success, failure", ErrInvalidTaskState)
	}
	return status, nil
}
