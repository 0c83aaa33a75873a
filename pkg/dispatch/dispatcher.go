package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ci-results-api/pkg/middleware/requestid"
	"github.com/noah-isme/ci-results-api/pkg/response"
)

// Body is the blocking part of a request: authorization, store access and
// envelope construction. It runs on a pool worker, never on the goroutine
// serving the connection.
type Body func(ctx context.Context) (*response.Envelope, error)

// Metrics receives pool occupancy updates.
type Metrics interface {
	SetDispatcherQueue(queued, inFlight int64)
	IncDispatcherPanics()
}

// Config configures the worker pool.
type Config struct {
	Workers   int
	QueueSize int
	Logger    *zap.Logger
	Metrics   Metrics
}

type task struct {
	ctx  context.Context
	body Body
	done chan *response.Envelope
}

// Dispatcher runs request bodies on a fixed number of goroutines. When every
// worker is busy, callers wait; requests are never rejected for capacity.
// There is no per-request timeout and no cancellation once a body started.
type Dispatcher struct {
	workers int
	logger  *zap.Logger
	metrics Metrics

	tasks chan task
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	queued   int64
	inFlight int64
}

// New builds a dispatcher. Call Start before Run.
func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		workers: cfg.Workers,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tasks:   make(chan task, cfg.QueueSize),
	}
}

// Workers returns the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Start launches the workers. Safe to call once.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("dispatcher started", "workers", d.workers)
}

// Stop refuses new requests, lets queued and running bodies finish and waits
// for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.stopped = true
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.tasks)
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("dispatcher stopped")
}

// Run executes body on a worker and blocks until its envelope is ready.
// Errors returned by body and panics inside it become error envelopes.
func (d *Dispatcher) Run(ctx context.Context, body Body) *response.Envelope {
	t := task{ctx: ctx, body: body, done: make(chan *response.Envelope, 1)}

	d.mu.RLock()
	if !d.started || d.stopped {
		d.mu.RUnlock()
		return response.WithMessage(http.StatusServiceUnavailable, "service is not accepting requests")
	}
	d.track(&d.queued, 1)
	d.tasks <- t
	d.mu.RUnlock()

	return <-t.done
}

// Serve runs body on the pool and writes the resulting envelope from the
// calling goroutine. The request context is detached from cancellation so a
// body always runs to completion.
func (d *Dispatcher) Serve(c *gin.Context, body Body) {
	env := d.Run(context.WithoutCancel(c.Request.Context()), body)
	if err := env.Write(c); err != nil {
		d.logger.Warn("failed to write response", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.track(&d.queued, -1)
		d.track(&d.inFlight, 1)
		env := d.execute(t)
		d.track(&d.inFlight, -1)
		t.done <- env
	}
}

func (d *Dispatcher) execute(t task) (env *response.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			if d.metrics != nil {
				d.metrics.IncDispatcherPanics()
			}
			d.logger.Error("request body panicked",
				zap.String("request_id", requestid.FromContext(t.ctx)),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()))
			env = response.WithMessage(http.StatusInternalServerError, "internal server error")
		}
	}()

	env, err := t.body(t.ctx)
	if err != nil {
		env = response.FromError(err)
		if env.Status() >= http.StatusInternalServerError {
			d.logger.Error("request body failed", zap.String("request_id", requestid.FromContext(t.ctx)), zap.Error(err))
		}
		return env
	}
	if env == nil {
		d.logger.Error("request body returned no envelope")
		return response.WithMessage(http.StatusInternalServerError, "internal server error")
	}
	return env
}

func (d *Dispatcher) track(counter *int64, delta int64) {
	atomic.AddInt64(counter, delta)
	if d.metrics != nil {
		d.metrics.SetDispatcherQueue(atomic.LoadInt64(&d.queued), atomic.LoadInt64(&d.inFlight))
	}
}

// Stats returns the number of queued and running bodies.
func (d *Dispatcher) Stats() (queued, inFlight int64) {
	return atomic.LoadInt64(&d.queued), atomic.LoadInt64(&d.inFlight)
}
