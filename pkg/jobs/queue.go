package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotRunning is returned by Enqueue before Run starts or after it returns.
var ErrNotRunning = errors.New("queue not running")

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue is a lightweight in-memory job dispatcher backed by goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	jobs    chan Job
	mu      sync.RWMutex
	ctx     context.Context
	running bool
	retries sync.WaitGroup
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has exited. Jobs still buffered at that point are dropped.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return fmt.Errorf("queue %s already running", q.name)
	}
	q.ctx = ctx
	q.running = true
	q.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.worker(ctx)
		}()
	}
	q.logger.Info("queue started", zap.Int("workers", q.workers))

	<-ctx.Done()

	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	wg.Wait()
	q.retries.Wait()

	if dropped := len(q.jobs); dropped > 0 {
		q.logger.Warn("queue stopped with pending jobs", zap.Int("dropped", dropped))
	}
	q.logger.Info("queue stopped")
	return nil
}

// Enqueue pushes a job onto the queue without blocking past ctx.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	running := q.running
	runCtx := q.ctx
	q.mu.RUnlock()
	if !running {
		return fmt.Errorf("enqueue %s: %w", q.name, ErrNotRunning)
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue %s: %w", q.name, ctx.Err())
	case <-runCtx.Done():
		return fmt.Errorf("enqueue %s: %w", q.name, ErrNotRunning)
	}
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(ctx, job); err != nil {
				q.handleFailure(ctx, job, err)
			}
		}
	}
}

func (q *Queue) handleFailure(ctx context.Context, job Job, err error) {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries", fields...)
		return
	}
	q.logger.Warn("job failed, retrying", fields...)

	q.retries.Add(1)
	go func(j Job) {
		defer q.retries.Done()
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(ctx, j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}
