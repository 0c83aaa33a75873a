package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Broker errors.
var (
	ErrNoTask         = errors.New("no task available")
	ErrResultNotReady = errors.New("task result not ready")
	ErrWaitTimeout    = errors.New("timed out waiting for task result")
)

// Broker transports task messages and results.
type Broker interface {
	Enqueue(ctx context.Context, queue string, payload []byte) error
	Requeue(ctx context.Context, queue string, payload []byte) error
	Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	StoreResult(ctx context.Context, taskID string, payload []byte, ttl time.Duration) error
	Ready(ctx context.Context, taskID string) (bool, error)
	FetchResult(ctx context.Context, taskID string) ([]byte, error)
	WaitReady(ctx context.Context, taskID string, timeout time.Duration) error
}

const keyPrefix = "ci:tasks"

// RedisBroker implements Broker on redis lists and keys.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker wraps a redis client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func queueKey(queue string) string   { return fmt.Sprintf("%s:queue:%s", keyPrefix, queue) }
func resultKey(taskID string) string { return fmt.Sprintf("%s:meta:%s", keyPrefix, taskID) }
func readyKey(taskID string) string  { return fmt.Sprintf("%s:ready:%s", keyPrefix, taskID) }

// Enqueue pushes a payload onto the named queue.
func (b *RedisBroker) Enqueue(ctx context.Context, queue string, payload []byte) error {
	if err := b.client.LPush(ctx, queueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("redis enqueue %s: %w", queue, err)
	}
	return nil
}

// Requeue puts a payload back at the head of the queue so it is the next one
// dequeued.
func (b *RedisBroker) Requeue(ctx context.Context, queue string, payload []byte) error {
	if err := b.client.RPush(ctx, queueKey(queue), payload).Err(); err != nil {
		return fmt.Errorf("redis requeue %s: %w", queue, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the oldest payload of the queue.
func (b *RedisBroker) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	vals, err := b.client.BRPop(ctx, timeout, queueKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoTask
		}
		return nil, fmt.Errorf("redis dequeue %s: %w", queue, err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("redis dequeue %s: unexpected reply length %d", queue, len(vals))
	}
	return []byte(vals[1]), nil
}

// StoreResult saves a result and signals any waiter.
func (b *RedisBroker) StoreResult(ctx context.Context, taskID string, payload []byte, ttl time.Duration) error {
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, resultKey(taskID), payload, ttl)
	pipe.RPush(ctx, readyKey(taskID), "1")
	pipe.Expire(ctx, readyKey(taskID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store result %s: %w", taskID, err)
	}
	return nil
}

// Ready reports whether a result exists for the task.
func (b *RedisBroker) Ready(ctx context.Context, taskID string) (bool, error) {
	n, err := b.client.Exists(ctx, resultKey(taskID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis ready %s: %w", taskID, err)
	}
	return n > 0, nil
}

// FetchResult returns the stored result payload.
func (b *RedisBroker) FetchResult(ctx context.Context, taskID string) ([]byte, error) {
	raw, err := b.client.Get(ctx, resultKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResultNotReady
		}
		return nil, fmt.Errorf("redis fetch result %s: %w", taskID, err)
	}
	return raw, nil
}

// WaitReady blocks until the task signals completion or timeout elapses.
func (b *RedisBroker) WaitReady(ctx context.Context, taskID string, timeout time.Duration) error {
	if ready, err := b.Ready(ctx, taskID); err == nil && ready {
		return nil
	}
	if err := b.client.BLPop(ctx, timeout, readyKey(taskID)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrWaitTimeout
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrWaitTimeout
		}
		return fmt.Errorf("redis wait %s: %w", taskID, err)
	}
	return nil
}
