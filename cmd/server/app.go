package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/executor"
	"github.com/taskvault/taskvault-api/internal/platform/postgres"
	"github.com/taskvault/taskvault-api/internal/policy"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/service/auth"
	"github.com/taskvault/taskvault-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	taskStore store.TaskStore

	// Service interfaces
	jwtService  auth.JWTService
	enforcer    policy.Enforcer
	taskService service.TaskService

	// Event system
	notifier events.Notifier

	// Task execution
	executorPool *executor.Pool

	// Background maintenance
	sweeper *service.RetentionSweeper
}

// newApplication creates a new application instance with all
// dependencies initialized. It accepts the core dependencies that must
// be established before application wiring.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized")

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.enforcer = policy.NewOwnerEnforcer()

	notifier := events.NewInMemoryNotifier(logger)
	notifier.RegisterHandler(events.NewLogNotifier(logger))
	app.notifier = notifier

	app.executorPool = executor.NewPool(
		executor.BuiltinRegistry(logger),
		executor.PoolConfig{
			WorkerCount: cfg.Executor.WorkerCount,
			QueueSize:   cfg.Executor.QueueSize,
		},
		logger,
	)

	factory, err := service.NewTaskFactory(app.enforcer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	retention := time.Duration(cfg.Retention.TTLMinutes) * time.Minute
	app.taskService, err = service.NewTaskService(
		app.taskStore,
		factory,
		app.enforcer,
		app.notifier,
		app.executorPool,
		retention,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	// The pool calls back into the service when a job finishes; the
	// handler is attached after construction to break the cycle.
	app.executorPool.SetCompletionHandler(app.taskService.HandleCompletion)
	app.executorPool.Run()

	app.sweeper, err = service.NewRetentionSweeper(app.taskStore, cfg.Retention.SweepSchedule, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create retention sweeper: %w", err)
	}
	if err := app.sweeper.Start(); err != nil {
		return nil, fmt.Errorf("failed to start retention sweeper: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}

	if app.executorPool != nil {
		app.executorPool.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
