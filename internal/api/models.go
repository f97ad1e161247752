package api

import (
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// taskSchemaPath is the schema link rendered on every task view.
const taskSchemaPath = "/api/schemas/task"

// TaskResponse is the client-facing view of a task. Timestamps are
// RFC 3339 in UTC; message is omitted when empty.
type TaskResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Owner     string `json:"owner"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Self      string `json:"self"`
	Schema    string `json:"schema"`
}

// ListTasksResponse wraps a task listing.
type ListTasksResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Schema string         `json:"schema"`
	First  string         `json:"first"`
}

// NewTaskResponse builds the view for a single task.
func NewTaskResponse(task *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:        task.ID.String(),
		Type:      string(task.Type),
		Status:    string(task.Status),
		Owner:     task.Owner.String(),
		Message:   task.Message,
		CreatedAt: task.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: task.UpdatedAt.UTC().Format(time.RFC3339),
		Self:      "/api/tasks/" + task.ID.String(),
		Schema:    taskSchemaPath,
	}
	if task.ExpiresAt != nil {
		resp.ExpiresAt = task.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// NewListTasksResponse builds the view for a task listing.
func NewListTasksResponse(tasks []*domain.Task) ListTasksResponse {
	views := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, NewTaskResponse(task))
	}
	return ListTasksResponse{
		Tasks:  views,
		Schema: "/api/schemas/tasks",
		First:  "/api/tasks",
	}
}
