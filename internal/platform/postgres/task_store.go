package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Add implements store.TaskStore.Add
// It persists a new task, handling domain validation.
// Returns store.ErrTaskExists if a task with the same ID is already stored.
func (s *PostgresTaskStore) Add(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during add",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, type, owner, status, message, created_at, updated_at, expires_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Type,
		task.Owner,
		task.Status,
		task.Message,
		task.CreatedAt,
		task.UpdatedAt,
		task.ExpiresAt,
		task.Version,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate task ID during add",
				slog.String("task_id", task.ID.String()))
			return fmt.Errorf("%w: %v", store.ErrTaskExists, err)
		}

		log.Error("failed to add task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("owner", task.Owner.String()))
		return store.NewStoreError("task", "add", "failed to insert task", MapError(err))
	}

	log.Info("task added",
		slog.String("task_id", task.ID.String()),
		slog.String("task_type", string(task.Type)),
		slog.String("owner", task.Owner.String()))
	return nil
}

// GetByID implements store.TaskStore.GetByID
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, owner, status, message, created_at, updated_at, expires_at, version
		FROM tasks
		WHERE id = $1
	`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", id.String()))
			return nil, store.ErrTaskNotFound
		}

		log.Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, store.NewStoreError("task", "get", "failed to query task", MapError(err))
	}

	return task, nil
}

// List implements store.TaskStore.List
// Results are ordered by created_at descending (most recent first).
func (s *PostgresTaskStore) List(ctx context.Context, filter store.ListFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, owner, status, message, created_at, updated_at, expires_at, version
		FROM tasks
	`
	var conditions []string
	var args []any

	appendCondition := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.Owner != uuid.Nil {
		appendCondition("owner", filter.Owner)
	}
	if filter.Status != "" {
		appendCondition("status", filter.Status)
	}
	if filter.Type != "" {
		appendCondition("type", filter.Type)
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "failed to query tasks", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("task", "list", "failed to scan task row", MapError(err))
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("task", "list", "failed to iterate task rows", MapError(err))
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update
// The write is conditional on the version the caller read: if another
// writer committed first, zero rows match and the caller gets
// store.ErrConflict rather than overwriting the newer state.
// On success the task's Version is incremented in place.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET status = $1, message = $2, updated_at = $3, expires_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Status,
		task.Message,
		task.UpdatedAt,
		task.ExpiresAt,
		task.ID,
		task.Version,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return store.NewStoreError("task", "update", "failed to update task", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		probeErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists)
		if probeErr != nil {
			log.Error("failed to probe task existence after conflicting update",
				slog.String("error", probeErr.Error()),
				slog.String("task_id", task.ID.String()))
			return store.NewStoreError("task", "update", "failed to probe task existence", MapError(probeErr))
		}
		if exists {
			log.Warn("stale task update rejected",
				slog.String("task_id", task.ID.String()),
				slog.Int("read_version", task.Version))
			return store.ErrConflict
		}
		return store.ErrTaskNotFound
	}

	task.Version++

	log.Info("task updated",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)),
		slog.Int("version", task.Version))
	return nil
}

// Delete implements store.TaskStore.Delete
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return store.NewStoreError("task", "delete", "failed to delete task", MapError(err))
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrTaskNotFound
		}
		return err
	}

	log.Info("task deleted", slog.String("task_id", id.String()))
	return nil
}

// DeleteExpired implements store.TaskStore.DeleteExpired
// Only terminal tasks whose expires_at has passed are removed.
func (s *PostgresTaskStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM tasks
		WHERE status IN ($1, $2)
		  AND expires_at IS NOT NULL
		  AND expires_at < $3
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.TaskStatusSuccess,
		domain.TaskStatusFailure,
		now,
	)
	if err != nil {
		log.Error("failed to delete expired tasks", slog.String("error", err.Error()))
		return 0, store.NewStoreError("task", "delete_expired", "failed to delete expired tasks", MapError(err))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if removed > 0 {
		log.Info("expired tasks removed", slog.Int64("count", removed))
	}
	return removed, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask reads one task record from a row.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var message sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.Owner,
		&task.Status,
		&message,
		&task.CreatedAt,
		&task.UpdatedAt,
		&expiresAt,
		&task.Version,
	)
	if err != nil {
		return nil, err
	}

	task.Message = message.String
	if expiresAt.Valid {
		expiry := expiresAt.Time
		task.ExpiresAt = &expiry
	}

	return &task, nil
}
