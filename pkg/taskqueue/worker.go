package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/pkg/jobs"
)

// Outcome is what a task produced: an HTTP-style status and its documents.
type Outcome struct {
	Status int
	Result []bson.M
}

// TaskFunc executes one task. A returned error is treated as transient and
// retried; a definitive failure is reported through Outcome.Status.
type TaskFunc func(ctx context.Context, msg Message) (Outcome, error)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Queue       string
	Concurrency int
	MaxRetries  int
	RetryDelay  time.Duration
	PollTimeout time.Duration
	ResultTTL   time.Duration
	Logger      *zap.Logger
	Metrics     jobs.Observer
	Now         func() time.Time
}

// Worker consumes task messages from a broker and stores their results.
type Worker struct {
	broker      Broker
	queueName   string
	pollTimeout time.Duration
	resultTTL   time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu    sync.RWMutex
	tasks map[string]TaskFunc

	pool *jobs.Queue
}

// NewWorker builds a worker. Register tasks before calling Run.
func NewWorker(broker Broker, cfg WorkerConfig) *Worker {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	w := &Worker{
		broker:      broker,
		queueName:   cfg.Queue,
		pollTimeout: cfg.PollTimeout,
		resultTTL:   cfg.ResultTTL,
		logger:      cfg.Logger,
		now:         cfg.Now,
		tasks:       make(map[string]TaskFunc),
	}
	w.pool = jobs.NewQueue("tasks:"+cfg.Queue, w.handle, jobs.QueueConfig{
		Workers:    cfg.Concurrency,
		BufferSize: cfg.Concurrency,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     cfg.Logger,
		OnGiveUp:   w.giveUp,
		OnDrop:     w.requeue,
		Observer:   cfg.Metrics,
	})
	return w
}

// Register binds a task name to its implementation.
func (w *Worker) Register(name string, fn TaskFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tasks[name] = fn
}

// Registered reports whether a task name has an implementation.
func (w *Worker) Registered(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.tasks[name]
	return ok
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.pool.Start(ctx)
	defer w.pool.Stop()
	w.logger.Info("task worker listening", zap.String("queue", w.queueName))

	for {
		if ctx.Err() != nil {
			return nil
		}
		raw, err := w.broker.Dequeue(ctx, w.queueName, w.pollTimeout)
		if err != nil {
			if errors.Is(err, ErrNoTask) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("failed to dequeue task", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.pollTimeout):
			}
			continue
		}
		msg, err := DecodeMessage(raw)
		if err != nil {
			w.logger.Error("dropping undecodable task", zap.Error(err))
			continue
		}
		job := jobs.Job{ID: msg.ID, Type: msg.Task, Payload: msg}
		if err := w.pool.Enqueue(job); err != nil {
			w.requeue(context.WithoutCancel(ctx), job)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("schedule task %s: %w", msg.ID, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Message)
	if !ok {
		return fmt.Errorf("job %s carries %T, want Message", job.ID, job.Payload)
	}
	w.mu.RLock()
	fn, ok := w.tasks[msg.Task]
	w.mu.RUnlock()
	if !ok {
		w.logger.Warn("unknown task", zap.String("task", msg.Task), zap.String("task_id", msg.ID))
		return w.store(context.WithoutCancel(ctx), msg.ID, Outcome{Status: http.StatusBadRequest})
	}

	start := w.now()
	out, err := fn(ctx, msg)
	if err != nil {
		return err
	}
	w.logger.Debug("task finished",
		zap.String("task", msg.Task),
		zap.String("task_id", msg.ID),
		zap.Int("status", out.Status),
		zap.Duration("took", w.now().Sub(start)))
	// A finished task is stored even when the worker is shutting down.
	return w.store(context.WithoutCancel(ctx), msg.ID, out)
}

func (w *Worker) giveUp(ctx context.Context, job jobs.Job, cause error) {
	// Waiters must not hang on a task that will never complete.
	if err := w.store(context.WithoutCancel(ctx), job.ID, Outcome{Status: http.StatusInternalServerError}); err != nil {
		w.logger.Error("failed to store failed task result", zap.String("task_id", job.ID), zap.Error(err), zap.NamedError("cause", cause))
	}
}

// requeue hands a task the pool never finished back to the broker for the
// next worker. If that fails the waiter gets a 503 instead of a timeout.
func (w *Worker) requeue(ctx context.Context, job jobs.Job) {
	msg, ok := job.Payload.(Message)
	if !ok {
		return
	}
	raw, err := EncodeMessage(msg)
	if err == nil {
		err = w.broker.Requeue(ctx, w.queueName, raw)
	}
	if err == nil {
		w.logger.Info("task requeued on shutdown", zap.String("task", msg.Task), zap.String("task_id", msg.ID))
		return
	}
	w.logger.Error("failed to requeue task", zap.String("task_id", msg.ID), zap.Error(err))
	if err := w.store(ctx, msg.ID, Outcome{Status: http.StatusServiceUnavailable}); err != nil {
		w.logger.Error("failed to store unavailable task result", zap.String("task_id", msg.ID), zap.Error(err))
	}
}

func (w *Worker) store(ctx context.Context, taskID string, out Outcome) error {
	if out.Status == 0 {
		out.Status = http.StatusOK
	}
	if out.Result == nil {
		out.Result = []bson.M{}
	}
	payload, err := EncodeResult(Result{
		TaskID:     taskID,
		Status:     out.Status,
		Result:     out.Result,
		FinishedAt: w.now().UTC(),
	})
	if err != nil {
		return err
	}
	return w.broker.StoreResult(ctx, taskID, payload, w.resultTTL)
}
