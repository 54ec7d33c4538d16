// Package queue implements a named-queue transport: create, open,
// send, receive, timedReceive, and close over a bounded,
// capacity-checked channel. A fork/exec worker pool has no portable
// cross-platform message-queue primitive in Go, so the contract is
// backed by a Redis list (RPUSH/BLPOP/LPOP/LLEN/DEL) instead, keeping
// all cross-process coordination state in Redis.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cmdable is the narrow slice of redis.Client's API the queue needs.
// *redis.Client satisfies it structurally, and tests substitute an
// in-memory fake (see fake_test.go) without a live Redis server.
type Cmdable interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Queue is a bounded named message channel. The priority parameter on
// Send is accepted but dormant: nothing in this system enqueues at
// more than one priority level, so the plumbing is kept for API
// symmetry but never exercised.
type Queue struct {
	name           string
	client         Cmdable
	isCreator      bool
	maxMessages    int
	maxMessageSize int
}

// Create opens a queue, clearing any prior contents under the same
// name. Only the creator unlinks the backing key on Close, mirroring
// mq_unlink semantics: one side owns the queue's lifetime.
func Create(ctx context.Context, client Cmdable, name string, capacity, maxMsgSize int) (*Queue, error) {
	if err := client.Del(ctx, name).Err(); err != nil {
		return nil, fmt.Errorf("%w: create %q: %v", ErrQueue, name, err)
	}
	return &Queue{
		name:           name,
		client:         client,
		isCreator:      true,
		maxMessages:    capacity,
		maxMessageSize: maxMsgSize,
	}, nil
}

// Open attaches to an existing queue without taking ownership of its
// lifetime. Used by kitchens opening reception's inbox, and by
// reception opening a kitchen's inbox.
func Open(client Cmdable, name string, capacity, maxMsgSize int) *Queue {
	return &Queue{
		name:           name,
		client:         client,
		isCreator:      false,
		maxMessages:    capacity,
		maxMessageSize: maxMsgSize,
	}
}

// Name returns the queue's backing key.
func (q *Queue) Name() string { return q.name }

// Send enqueues data, rejecting it if the queue is full or the payload
// is MAX_MESSAGE_SIZE bytes or longer. priority is accepted for API symmetry but
// is not interpreted: every message is delivered FIFO.
func (q *Queue) Send(ctx context.Context, data string, priority int) error {
	if len(data) >= q.maxMessageSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrMessageTooLarge, len(data), q.maxMessageSize)
	}

	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return fmt.Errorf("%w: llen %q: %v", ErrQueue, q.name, err)
	}
	if int(n) >= q.maxMessages {
		return fmt.Errorf("%w: %q at capacity %d", ErrQueueFull, q.name, q.maxMessages)
	}

	if err := q.client.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("%w: rpush %q: %v", ErrQueue, q.name, err)
	}
	return nil
}

// Receive performs a non-blocking dequeue. A nil result with a nil
// error means the queue was empty.
func (q *Queue) Receive(ctx context.Context) (*string, error) {
	val, err := q.client.LPop(ctx, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lpop %q: %v", ErrQueue, q.name, err)
	}
	return &val, nil
}

// TimedReceive blocks up to timeout for a message. A nil result with a
// nil error means the timeout elapsed without a message, the shape the
// ipc listener's 100ms poll loop expects.
func (q *Queue) TimedReceive(ctx context.Context, timeout time.Duration) (*string, error) {
	res, err := q.client.BLPop(ctx, timeout, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: blpop %q: %v", ErrQueue, q.name, err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: blpop %q: unexpected reply shape", ErrQueue, q.name)
	}
	return &res[1], nil
}

// Close releases the queue. Only the creator's Close removes the
// backing key; a non-owning Open'd handle's Close is a no-op, so
// reception can close a kitchen handle it opened without destroying
// the kitchen's own inbox out from under it.
func (q *Queue) Close(ctx context.Context) error {
	if !q.isCreator {
		return nil
	}
	if err := q.client.Del(ctx, q.name).Err(); err != nil {
		return fmt.Errorf("%w: close %q: %v", ErrQueue, q.name, err)
	}
	return nil
}
