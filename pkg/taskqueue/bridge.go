package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
	"github.com/noah-isme/ci-results-api/pkg/ids"
	"github.com/noah-isme/ci-results-api/pkg/response"
)

// Metrics records task round trips.
type Metrics interface {
	ObserveTask(task, outcome string, duration time.Duration)
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	Queue        string
	Store        StoreOptions
	AwaitTimeout time.Duration
	Logger       *zap.Logger
	Metrics      Metrics
	NewID        func() string
	Now          func() time.Time
}

// Handle identifies a submitted task.
type Handle struct {
	ID          string
	Task        string
	SubmittedAt time.Time
}

// Bridge submits tasks and waits for their results from inside a dispatcher
// worker. A wait occupies the calling worker until the result arrives or the
// await timeout elapses.
type Bridge struct {
	broker  Broker
	queue   string
	store   StoreOptions
	timeout time.Duration
	logger  *zap.Logger
	metrics Metrics
	newID   func() string
	now     func() time.Time
}

// NewBridge builds a bridge on top of broker.
func NewBridge(broker Broker, cfg BridgeConfig) *Bridge {
	if cfg.Queue == "" {
		cfg.Queue = "default"
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewID == nil {
		cfg.NewID = ids.New
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Bridge{
		broker:  broker,
		queue:   cfg.Queue,
		store:   cfg.Store,
		timeout: cfg.AwaitTimeout,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		newID:   cfg.NewID,
		now:     cfg.Now,
	}
}

// Submit encodes and enqueues a task.
func (b *Bridge) Submit(ctx context.Context, task string, args ...interface{}) (Handle, error) {
	msg := Message{
		ID:          b.newID(),
		Task:        task,
		Args:        bson.A(args),
		Store:       b.store,
		SubmittedAt: b.now().UTC(),
	}
	if msg.Args == nil {
		msg.Args = bson.A{}
	}
	payload, err := EncodeMessage(msg)
	if err != nil {
		return Handle{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode task")
	}
	if err := b.broker.Enqueue(ctx, b.queue, payload); err != nil {
		b.observe(task, "submit_error", 0)
		return Handle{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit task")
	}
	b.logger.Debug("task submitted", zap.String("task", task), zap.String("task_id", msg.ID))
	return Handle{ID: msg.ID, Task: task, SubmittedAt: msg.SubmittedAt}, nil
}

// Await blocks until the task result is ready and returns its status code and
// result. It gives up after the configured timeout.
func (b *Bridge) Await(ctx context.Context, h Handle) (int, []bson.M, error) {
	start := b.now()
	if err := b.broker.WaitReady(ctx, h.ID, b.timeout); err != nil {
		if errors.Is(err, ErrWaitTimeout) {
			b.observe(h.Task, "timeout", b.now().Sub(start))
			b.logger.Warn("task timed out", zap.String("task", h.Task), zap.String("task_id", h.ID), zap.Duration("timeout", b.timeout))
			return 0, nil, appErrors.Clone(appErrors.ErrTaskTimeout, "")
		}
		b.observe(h.Task, "wait_error", b.now().Sub(start))
		return 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed waiting for task")
	}

	raw, err := b.broker.FetchResult(ctx, h.ID)
	if err != nil {
		b.observe(h.Task, "fetch_error", b.now().Sub(start))
		return 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch task result")
	}
	res, err := DecodeResult(raw)
	if err != nil {
		b.observe(h.Task, "decode_error", b.now().Sub(start))
		return 0, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode task result")
	}
	b.observe(h.Task, fmt.Sprintf("%d", res.Status), b.now().Sub(start))
	return res.Status, res.Result, nil
}

// Call submits a task and awaits its result.
func (b *Bridge) Call(ctx context.Context, task string, args ...interface{}) (int, []bson.M, error) {
	h, err := b.Submit(ctx, task, args...)
	if err != nil {
		return 0, nil, err
	}
	return b.Await(ctx, h)
}

func (b *Bridge) observe(task, outcome string, d time.Duration) {
	if b.metrics != nil {
		b.metrics.ObserveTask(task, outcome, d)
	}
}

// ResultEnvelope maps a task outcome to an envelope. A 404 carries
// notFoundMessage; every other status and result pass through unchanged.
func ResultEnvelope(status int, result []bson.M, notFoundMessage string) *response.Envelope {
	if status == http.StatusNotFound {
		return response.WithMessage(http.StatusNotFound, notFoundMessage)
	}
	env := response.New(status)
	_ = env.SetResult(result)
	if status == http.StatusOK {
		_ = env.SetCount(int64(len(result)))
	}
	return env
}
