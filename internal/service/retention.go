package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/taskvault/taskvault-api/internal/store"
)

// RetentionSweeper periodically removes terminal tasks whose retention
// window has passed. Rows without an expires_at are kept forever.
type RetentionSweeper struct {
	taskStore store.TaskStore
	schedule  string
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewRetentionSweeper creates a sweeper that runs on the given cron
// schedule (standard five-field format).
func NewRetentionSweeper(taskStore store.TaskStore, schedule string, logger *slog.Logger) (*RetentionSweeper, error) {
	if taskStore == nil {
		return nil, &TaskServiceError{Operation: "create_sweeper", Message: "taskStore cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &RetentionSweeper{
		taskStore: taskStore,
		schedule:  schedule,
		logger:    logger.With("component", "retention_sweeper"),
	}, nil
}

// Start schedules the sweep and begins running it. It returns an error
// if the schedule cannot be parsed.
func (s *RetentionSweeper) Start() error {
	c := cron.New()

	_, err := c.AddFunc(s.schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return &TaskServiceError{
			Operation: "start_sweeper",
			Message:   "invalid sweep schedule " + s.schedule,
			Err:       err,
		}
	}

	c.Start()
	s.cron = c
	s.logger.Info("retention sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *RetentionSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("retention sweeper stopped")
}

// Sweep removes all currently expired tasks. It is safe to call
// directly, outside the schedule.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	removed, err := s.taskStore.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return NewTaskServiceError("sweep", "failed to delete expired tasks", err)
	}

	if removed > 0 {
		s.logger.Info("retention sweep removed expired tasks", "count", removed)
	} else {
		s.logger.Debug("retention sweep found nothing to remove")
	}
	return nil
}
