package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of background work executed by a Queue.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// GiveUpFunc is called once a job exhausted its retries.
type GiveUpFunc func(context.Context, Job, error)

// DropFunc receives jobs the queue accepted but never finished because it was
// stopped: jobs still buffered and jobs waiting for a retry. The context is
// not cancelled.
type DropFunc func(context.Context, Job)

// Observer receives the duration and outcome of every job execution.
// Outcomes are "ok", "retry" and "failed".
type Observer interface {
	ObserveJob(queue, jobType, outcome string, d time.Duration)
}

const defaultMaxRetryDelay = time.Minute

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration

	// MaxRetryDelay caps the doubling retry delay. Defaults to one minute.
	MaxRetryDelay time.Duration

	Logger   *zap.Logger
	OnGiveUp GiveUpFunc
	OnDrop   DropFunc
	Observer Observer
}

// Queue runs jobs on a fixed set of goroutines and retries failures.
type Queue struct {
	name    string
	handler Handler

	workers       int
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	logger        *zap.Logger
	onGiveUp      GiveUpFunc
	onDrop        DropFunc
	observer      Observer

	jobs    chan Job
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewQueue builds a new queue with the provided handler. A negative
// MaxRetries disables retries.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:          name,
		handler:       handler,
		workers:       cfg.Workers,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
		maxRetryDelay: cfg.MaxRetryDelay,
		logger:        cfg.Logger,
		onGiveUp:      cfg.OnGiveUp,
		onDrop:        cfg.OnDrop,
		observer:      cfg.Observer,
		jobs:          make(chan Job, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers, waits for running jobs to return and hands every
// unfinished job to OnDrop.
func (q *Queue) Stop() {
	q.mu.RLock()
	started := q.started
	q.mu.RUnlock()
	if !started {
		return
	}
	// Cancel before taking the write lock so blocked Enqueue calls return.
	q.cancel()
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()
	q.wg.Wait()

	dropped := 0
	for drained := false; !drained; {
		select {
		case job := <-q.jobs:
			q.drop(job)
			dropped++
		default:
			drained = true
		}
	}
	q.logger.Sugar().Infow("queue stopped", "queue", q.name, "dropped", dropped)
}

func (q *Queue) drop(job Job) {
	if q.onDrop == nil {
		q.logger.Sugar().Warnw("job dropped on stop", "queue", q.name, "job_id", job.ID, "type", job.Type)
		return
	}
	q.onDrop(context.WithoutCancel(q.ctx), job)
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if q.stopped || q.ctx.Err() != nil {
		return fmt.Errorf("queue %s stopped: %w", q.name, context.Canceled)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	ctx := q.ctx
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		// Once stopped, buffered jobs are left for Stop to drop.
		if q.ctx.Err() != nil {
			return
		}
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			start := time.Now()
			err := q.run(job)
			if err == nil {
				q.observe(job, "ok", start)
				continue
			}
			q.handleFailure(job, err, start)
		}
	}
}

func (q *Queue) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) observe(job Job, outcome string, start time.Time) {
	if q.observer != nil {
		q.observer.ObserveJob(q.name, job.Type, outcome, time.Since(start))
	}
}

// backoff doubles the retry delay for every attempt already made.
func (q *Queue) backoff(attempt int) time.Duration {
	d := q.retryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= q.maxRetryDelay {
			return q.maxRetryDelay
		}
	}
	return d
}

func (q *Queue) handleFailure(job Job, err error, start time.Time) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.observe(job, "failed", start)
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "job_id", job.ID, "type", job.Type, "error", err)
		if q.onGiveUp != nil {
			q.onGiveUp(q.ctx, job, err)
		}
		return
	}
	q.observe(job, "retry", start)
	delay := q.backoff(job.Attempt)
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "delay", delay, "error", err)

	q.wg.Add(1)
	go func(j Job) {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.drop(j)
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
				q.drop(j)
			}
		}
	}(job)
}
