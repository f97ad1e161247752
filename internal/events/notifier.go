package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryNotifier is a simple implementation of the Notifier interface
// that stores registered handlers in memory and dispatches events to them.
type InMemoryNotifier struct {
	handlers []Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryNotifier creates a new instance of InMemoryNotifier.
func NewInMemoryNotifier(logger *slog.Logger) *InMemoryNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryNotifier{
		handlers: make([]Handler, 0),
		logger:   logger.With("component", "in_memory_notifier"),
	}
}

// Ensure InMemoryNotifier implements the Notifier interface
var _ Notifier = (*InMemoryNotifier)(nil)

// RegisterHandler adds a new event handler to receive events.
func (n *InMemoryNotifier) RegisterHandler(handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
	n.logger.Debug("registered new event handler", "handler_count", len(n.handlers))
}

// Emit publishes the given event to all registered handlers.
// If any handler returns an error, the event is still sent to all other
// handlers, and the first error encountered is returned.
func (n *InMemoryNotifier) Emit(ctx context.Context, event *TaskEvent) error {
	n.mu.RLock()
	handlers := make([]Handler, len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.RUnlock()

	n.logger.Debug("emitting event",
		"event_id", event.ID,
		"event_name", event.Name,
		"task_id", event.TaskID,
		"handler_count", len(handlers))

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			n.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_name", event.Name)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// LogNotifier emits lifecycle events to the structured log only. It is
// the default notifier when no external event sink is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a Notifier that records events via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

// Ensure LogNotifier implements the Notifier and Handler interfaces
var (
	_ Notifier = (*LogNotifier)(nil)
	_ Handler  = (*LogNotifier)(nil)
)

// Emit implements Notifier.
func (n *LogNotifier) Emit(ctx context.Context, event *TaskEvent) error {
	n.logger.InfoContext(ctx, "task lifecycle event",
		"event_id", event.ID,
		"event_name", event.Name,
		"task_id", event.TaskID)
	return nil
}

// HandleEvent implements Handler so a LogNotifier can be registered as
// a sink on an InMemoryNotifier.
func (n *LogNotifier) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return n.Emit(ctx, event)
}
