package taskqueue

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
	"github.com/noah-isme/ci-results-api/pkg/jobs"
)

func newBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBroker(client)
}

func TestCodecPreservesStoreTypes(t *testing.T) {
	id := primitive.NewObjectID()
	created := time.Date(2014, 1, 1, 12, 0, 0, 0, time.UTC)

	raw, err := EncodeMessage(Message{
		ID:          "01HX",
		Task:        "bisect_boot",
		Args:        bson.A{id, "boot"},
		Store:       StoreOptions{URI: "mongodb://localhost:27017", Database: "ci"},
		SubmittedAt: created,
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"$oid"`)

	msg, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "bisect_boot", msg.Task)
	assert.Equal(t, "ci", msg.Store.Database)
	require.Len(t, msg.Args, 2)
	assert.Equal(t, id, msg.Args[0])
	assert.True(t, created.Equal(msg.SubmittedAt))

	raw, err = EncodeResult(Result{
		TaskID: "01HX",
		Status: http.StatusOK,
		Result: []bson.M{{"_id": id, "created_on": primitive.NewDateTimeFromTime(created)}},
	})
	require.NoError(t, err)
	res, err := DecodeResult(raw)
	require.NoError(t, err)
	require.Len(t, res.Result, 1)
	assert.Equal(t, id, res.Result[0]["_id"])
	assert.Equal(t, primitive.NewDateTimeFromTime(created), res.Result[0]["created_on"])
}

func TestBridgeRoundTripThroughWorker(t *testing.T) {
	broker := newBroker(t)
	worker := NewWorker(broker, WorkerConfig{Queue: "ci", Concurrency: 2, PollTimeout: time.Second})
	docID := primitive.NewObjectID()
	worker.Register("bisect_boot", func(ctx context.Context, msg Message) (Outcome, error) {
		if len(msg.Args) != 1 {
			return Outcome{Status: http.StatusBadRequest}, nil
		}
		return Outcome{Status: http.StatusOK, Result: []bson.M{{"_id": msg.Args[0]}}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	bridge := NewBridge(broker, BridgeConfig{Queue: "ci", AwaitTimeout: 5 * time.Second})
	status, result, err := bridge.Call(context.Background(), "bisect_boot", docID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, result, 1)
	assert.Equal(t, docID, result[0]["_id"])
}

func TestBridgeUnknownTaskIsBadRequest(t *testing.T) {
	broker := newBroker(t)
	worker := NewWorker(broker, WorkerConfig{Queue: "ci"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	bridge := NewBridge(broker, BridgeConfig{Queue: "ci", AwaitTimeout: 5 * time.Second})
	status, result, err := bridge.Call(context.Background(), "no_such_task")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Empty(t, result)
}

func TestWorkerStoresFailureAfterRetries(t *testing.T) {
	broker := newBroker(t)
	var calls int32
	worker := NewWorker(broker, WorkerConfig{Queue: "ci", MaxRetries: 1, RetryDelay: time.Millisecond})
	worker.Register("import_boot", func(ctx context.Context, msg Message) (Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return Outcome{}, errors.New("store unavailable")
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	bridge := NewBridge(broker, BridgeConfig{Queue: "ci", AwaitTimeout: 5 * time.Second})
	status, _, err := bridge.Call(context.Background(), "import_boot", bson.M{"board": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestWorkerShutdownKeepsRunningAndQueuedTasks(t *testing.T) {
	broker := newBroker(t)
	started := make(chan struct{}, 2)
	worker := NewWorker(broker, WorkerConfig{Queue: "ci", Concurrency: 1, PollTimeout: 200 * time.Millisecond})
	worker.Register("bisect_boot", func(ctx context.Context, msg Message) (Outcome, error) {
		started <- struct{}{}
		time.Sleep(200 * time.Millisecond)
		return Outcome{Status: http.StatusOK, Result: []bson.M{{"task": msg.ID}}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = worker.Run(ctx)
	}()

	bridge := NewBridge(broker, BridgeConfig{Queue: "ci", AwaitTimeout: 2 * time.Second})
	running, err := bridge.Submit(context.Background(), "bisect_boot", "running")
	require.NoError(t, err)
	<-started
	queued, err := bridge.Submit(context.Background(), "bisect_boot", "queued")
	require.NoError(t, err)

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	status, result, err := bridge.Await(context.Background(), running)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, result, 1)
	assert.Equal(t, running.ID, result[0]["task"])

	raw, err := broker.Dequeue(context.Background(), "ci", time.Second)
	require.NoError(t, err)
	msg, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, queued.ID, msg.ID)
	assert.Len(t, started, 0)
}

func TestWorkerRequeuesAtHeadOfQueue(t *testing.T) {
	broker := newBroker(t)
	worker := NewWorker(broker, WorkerConfig{Queue: "ci"})
	ctx := context.Background()
	require.NoError(t, broker.Enqueue(ctx, "ci", []byte("later")))

	msg := Message{ID: "01HY", Task: "bisect_boot", Args: bson.A{}}
	worker.requeue(ctx, jobs.Job{ID: msg.ID, Type: msg.Task, Payload: msg})

	raw, err := broker.Dequeue(ctx, "ci", time.Second)
	require.NoError(t, err)
	got, err := DecodeMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "01HY", got.ID)
	ready, err := broker.Ready(ctx, "01HY")
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestBridgeAwaitTimesOut(t *testing.T) {
	broker := newBroker(t)
	bridge := NewBridge(broker, BridgeConfig{Queue: "nobody-listens", AwaitTimeout: time.Second})

	_, _, err := bridge.Call(context.Background(), "bisect_boot", primitive.NewObjectID())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.Status)
}

func TestBrokerDequeueIsFIFO(t *testing.T) {
	broker := newBroker(t)
	ctx := context.Background()
	require.NoError(t, broker.Enqueue(ctx, "q", []byte("first")))
	require.NoError(t, broker.Enqueue(ctx, "q", []byte("second")))

	got, err := broker.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	got, err = broker.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	_, err = broker.FetchResult(ctx, "missing")
	assert.ErrorIs(t, err, ErrResultNotReady)
}

func TestResultEnvelope(t *testing.T) {
	env := ResultEnvelope(http.StatusNotFound, nil, "Boot report not found")
	assert.Equal(t, http.StatusNotFound, env.Status())
	assert.Equal(t, "Boot report not found", env.Message())

	env = ResultEnvelope(http.StatusOK, []bson.M{{"a": 1}, {"b": 2}}, "unused")
	assert.Equal(t, http.StatusOK, env.Status())
	count, ok := env.Count()
	assert.True(t, ok)
	assert.EqualValues(t, 2, count)

	env = ResultEnvelope(http.StatusBadRequest, nil, "unused")
	assert.Equal(t, http.StatusBadRequest, env.Status())
	assert.Empty(t, env.Message())
}
