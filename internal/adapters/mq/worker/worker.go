// Package worker applies queued award jobs with retry on transient errors.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okian/merit/internal/adapters/mq/queue"
	"github.com/okian/merit/internal/domain/errs"
	"github.com/okian/merit/internal/domain/model"
	"github.com/okian/merit/pkg/logger"
	"github.com/okian/merit/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetries      = 5
	defaultBaseDelay    = 20 * time.Millisecond
	defaultMaxDelay     = 2 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Awarder applies one award.
type Awarder interface {
	Award(ctx context.Context, in model.AwardInput) (model.AwardResult, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// ResultFunc observes the final outcome of each job.
type ResultFunc func(job queue.Job, res model.AwardResult, err error)

// Worker processes jobs until its queue closes or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	awarder Awarder
	name    string

	retries   int
	baseDelay time.Duration
	maxDelay  time.Duration
	onResult  ResultFunc

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, awarder Awarder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		awarder:   awarder,
		name:      "worker",
		retries:   defaultRetries,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "award job failed",
					logger.String("source_key", job.SourceKey),
					logger.String("user", job.UserID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker and waits for the current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) backoff() retry.Backoff {
	b := retry.NewExponential(w.baseDelay)
	b = retry.WithCappedDuration(w.maxDelay, b)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(uint64(w.retries), b)
}

// process applies one job. Only transient errors are retried: the source
// key makes a repeated Award safe.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	var (
		res      model.AwardResult
		attempts int
	)
	err := retry.Do(ctx, w.backoff(), func(ctx context.Context) error {
		attempts++
		var err error
		res, err = w.awarder.Award(ctx, job)
		if errs.IsTransient(err) {
			metrics.RecordWorkerRetry()
			w.logger.Debug(ctx, "transient award failure, retrying",
				logger.String("source_key", job.SourceKey),
				logger.Int("attempt", attempts),
				logger.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if w.onResult != nil {
		w.onResult(job, res, err)
	}
	if err != nil {
		metrics.RecordWorkerFailure()
		return fmt.Errorf("award %s after %d attempt(s): %w", job.SourceKey, attempts, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	stopOnce sync.Once
	logger   logger.Logger
}

// NewPool creates a new worker pool. opts apply to every worker.
func NewPool(workerCount int, q Queue, awarder Awarder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, awarder, wopts...)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue so workers drain it, then waits for them until
// ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		if closer, ok := p.queue.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				p.logger.Error(ctx, "error closing queue", logger.Error(err))
			}
		}
	})

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	stuck := 0
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(shutdownCtx)
			stuck++
		}
	}
	metrics.UpdateWorkerCount(0)
	if stuck > 0 {
		return fmt.Errorf("%d worker(s) did not drain: %w", stuck, shutdownCtx.Err())
	}
	return nil
}
