// Package engine runs product builds on a bounded worker pool so a burst of
// concurrent requests cannot oversubscribe the CPU with grid aggregations.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ocean-map-engine/internal/observability"
)

// ErrQueueFull is returned by Submit when the job queue has no free slot.
// Callers should surface this as backpressure rather than waiting.
var ErrQueueFull = errors.New("job queue is full")

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

// Job is a named unit of work. The name doubles as the product label on the
// build metrics.
type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Pool executes jobs on a fixed number of workers.
type Pool struct {
	jobs    chan Job
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a Pool. Non-positive workers or queueSize fall back to defaults.
func New(workers, queueSize int, logger *slog.Logger, metrics *observability.Metrics) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		logger:  logger,
		metrics: metrics,
	}
}

// Run starts the workers and blocks until the context is cancelled and all
// workers have returned.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool started", "workers", p.workers, "queue_size", cap(p.jobs))
	p.running.Store(true)
	defer p.running.Store(false)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.wg.Wait()
	p.logger.Info("worker pool stopped", "reason", ctx.Err())
	return nil
}

// CheckReadiness returns nil once the pool is accepting work.
func (p *Pool) CheckReadiness(_ context.Context) error {
	if !p.running.Load() {
		return errors.New("worker pool is not running")
	}
	return nil
}

// Submit enqueues a job without blocking. Returns ErrQueueFull when the queue
// is saturated.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do submits a job and waits for it to finish, returning the job's error.
// The wait is bounded by the caller's context.
func (p *Pool) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	job := Job{Name: name, Fn: func(jobCtx context.Context) error {
		err := fn(jobCtx)
		done <- err
		return err
	}}
	if err := p.Submit(ctx, job); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.execute(ctx, job)
		}
	}
}

func (p *Pool) execute(ctx context.Context, job Job) {
	p.metrics.WorkersBusy.Inc()
	defer p.metrics.WorkersBusy.Dec()

	start := time.Now()
	if err := job.Fn(ctx); err != nil {
		p.logger.Warn("job failed", "job", job.Name, "error", err)
		p.metrics.ProductErrors.WithLabelValues(job.Name).Inc()
		return
	}
	p.metrics.ProductsBuilt.WithLabelValues(job.Name).Inc()
	p.metrics.ProductDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
}
