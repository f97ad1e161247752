// Package api implements the HTTP surface: request decoding, principal
// extraction, error-to-status mapping and the task views. All task
// semantics live in the service layer; handlers stay thin.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskvault/taskvault-api/internal/api/middleware"
	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/store"
)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService service.TaskService
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(taskService service.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With("component", "task_handler"),
	}
}

// CreateTask handles POST /api/tasks.
// The body is a free-form property map; the service decides which keys
// are honored, ignored or refused.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var properties map[string]any
	if err := shared.DecodeJSON(r, &properties); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	task, err := h.taskService.Create(r.Context(), principal, properties)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, NewTaskResponse(task))
}

// ListTasks handles GET /api/tasks.
// Supported query parameters: status, type, limit, offset.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter, err := listFilterFromQuery(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	tasks, err := h.taskService.List(r.Context(), principal, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewListTasksResponse(tasks))
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := taskIDFromURL(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	task, err := h.taskService.Get(r.Context(), principal, taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// CancelTask handles DELETE /api/tasks/{id}.
// Cancellation is a state transition, not a deletion: the task remains
// readable in its failure state until retention removes it.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	taskID, err := taskIDFromURL(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	task, err := h.taskService.Cancel(r.Context(), principal, taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("task cancelled via API",
		"task_id", taskID,
		"principal_id", principal.ID)
	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(task))
}

// taskIDFromURL parses the {id} route parameter.
func taskIDFromURL(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	taskID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("id", "must be a valid UUID", domain.ErrInvalidID)
	}
	return taskID, nil
}

// listFilterFromQuery builds a ListFilter from the request query.
// Owner scoping is applied by the service, never trusted from here.
func listFilterFromQuery(r *http.Request) (store.ListFilter, error) {
	var filter store.ListFilter
	query := r.URL.Query()

	if raw := query.Get("status"); raw != "" {
		status, err := domain.ParseTaskStatus(raw)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}

	if raw := query.Get("type"); raw != "" {
		taskType, err := domain.ParseTaskType(raw)
		if err != nil {
			return filter, err
		}
		filter.Type = taskType
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, domain.NewValidationError("limit", "must be a non-negative integer", domain.ErrValidation)
		}
		filter.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, domain.NewValidationError("offset", "must be a non-negative integer", domain.ErrValidation)
		}
		filter.Offset = offset
	}

	return filter, nil
}
