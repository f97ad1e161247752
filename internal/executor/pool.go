package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
)

// PoolConfig holds configuration for the worker pool.
type PoolConfig struct {
	// WorkerCount determines how many concurrent workers run jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory queue
	QueueSize int
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		WorkerCount: 2,
		QueueSize:   100,
	}
}

// execution pairs a task with its job and per-task cancel function.
type execution struct {
	task   *domain.Task
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool is a worker-pool Executor. Each started task gets its own cancel
// context so a Handle.Cancel stops exactly one execution.
type Pool struct {
	registry   Registry
	queue      chan *execution
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     PoolConfig
	logger     *slog.Logger
	onComplete CompletionFunc

	mu      sync.Mutex
	stopped bool
	running map[uuid.UUID]context.CancelFunc
}

// NewPool creates a new Pool executing jobs from the given registry.
func NewPool(registry Registry, config PoolConfig, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultPoolConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultPoolConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		registry:   registry,
		queue:      make(chan *execution, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With("component", "executor_pool"),
		running:    make(map[uuid.UUID]context.CancelFunc),
		onComplete: func(context.Context, *domain.Task, error) {},
	}
}

// Ensure Pool implements the Executor interface
var _ Executor = (*Pool)(nil)

// SetCompletionHandler registers the callback invoked after each job
// finishes. It must be set before Run; the service uses it to persist
// the terminal transition.
func (p *Pool) SetCompletionHandler(fn CompletionFunc) {
	if fn != nil {
		p.onComplete = fn
	}
}

// Run starts the worker goroutines.
func (p *Pool) Run() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("executor pool started", "worker_count", p.config.WorkerCount)
}

// Stop shuts the pool down: no new tasks are accepted, running jobs see
// their contexts cancelled, and Stop blocks until the workers exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancelFunc()
	close(p.queue)
	p.wg.Wait()
	p.logger.Debug("executor pool stopped")
}

// Start implements Executor. The returned Handle cancels only this
// task's execution.
func (p *Pool) Start(_ context.Context, task *domain.Task) (Handle, error) {
	job, ok := p.registry[task.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}

	execCtx, execCancel := context.WithCancel(p.ctx)
	exec := &execution{
		task:   task,
		job:    job,
		ctx:    execCtx,
		cancel: execCancel,
	}

	// The enqueue happens under the same lock Stop takes before closing
	// the queue, so a send on a closed channel cannot occur.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		execCancel()
		return nil, ErrStopped
	}

	select {
	case p.queue <- exec:
		p.running[task.ID] = execCancel
		return &poolHandle{cancel: execCancel}, nil
	default:
		execCancel()
		return nil, ErrQueueFull
	}
}

// CancelTask cancels a running execution by task ID. Used by callers
// that no longer hold the Handle (e.g., cancelling after a restart).
func (p *Pool) CancelTask(taskID uuid.UUID) {
	p.mu.Lock()
	cancel, ok := p.running[taskID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// forget drops the per-task cancel registration.
func (p *Pool) forget(taskID uuid.UUID) {
	p.mu.Lock()
	delete(p.running, taskID)
	p.mu.Unlock()
}

// worker runs jobs from the queue until the pool stops.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("starting worker", "worker_id", id)

	for exec := range p.queue {
		p.runJob(exec, id)
	}

	p.logger.Debug("stopping worker", "worker_id", id)
}

// runJob executes one job and reports its outcome.
func (p *Pool) runJob(exec *execution, workerID int) {
	log := p.logger.With(
		"task_id", exec.task.ID,
		"task_type", exec.task.Type,
		"worker_id", workerID,
	)

	defer p.forget(exec.task.ID)
	defer exec.cancel()

	// Cancelled while still queued: skip the job body entirely.
	if err := exec.ctx.Err(); err != nil {
		log.Info("skipping cancelled task")
		p.onComplete(context.Background(), exec.task, err)
		return
	}

	log.Info("executing task")
	err := exec.job(exec.ctx, exec.task)
	if err != nil {
		log.Error("task execution failed", "error", err)
	} else {
		log.Info("task execution finished")
	}

	// The completion callback persists the outcome; it must not inherit
	// the job context, which may already be cancelled.
	p.onComplete(context.Background(), exec.task, err)
}

// poolHandle implements Handle for one execution.
type poolHandle struct {
	cancel context.CancelFunc
	once   sync.Once
}

// Cancel implements Handle.
func (h *poolHandle) Cancel() {
	h.once.Do(h.cancel)
}
