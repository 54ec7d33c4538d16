package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "reception_inbox", 100, 8192)
	require.NoError(t, err)

	require.NoError(t, q.Send(ctx, "hello", 0))
	got, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hello", *got)
}

func TestReceiveEmptyReturnsNil(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "empty_queue", 100, 8192)
	require.NoError(t, err)

	got, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSendRejectsOversizeMessage(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "q", 100, 8)
	require.NoError(t, err)

	err = q.Send(ctx, "this message is far too long", 0)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestSendRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "q", 2, 8192)
	require.NoError(t, err)

	require.NoError(t, q.Send(ctx, "a", 0))
	require.NoError(t, q.Send(ctx, "b", 0))
	err = q.Send(ctx, "c", 0)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestTimedReceiveTimesOutWithNilResult(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "q", 100, 8192)
	require.NoError(t, err)

	start := time.Now()
	got, err := q.TimedReceive(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestTimedReceiveUnblocksOnSend(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "q", 100, 8192)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Send(ctx, "woke", 0)
	}()

	got, err := q.TimedReceive(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "woke", *got)
}

func TestCloseCreatorRemovesQueue(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	q, err := Create(ctx, fake, "q", 100, 8192)
	require.NoError(t, err)
	require.NoError(t, q.Send(ctx, "x", 0))

	require.NoError(t, q.Close(ctx))
	n, err := fake.LLen(ctx, "q").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCloseNonCreatorDoesNotRemoveQueue(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	_, err := Create(ctx, fake, "q", 100, 8192)
	require.NoError(t, err)

	opened := Open(fake, "q", 100, 8192)
	require.NoError(t, opened.Send(ctx, "x", 0))
	require.NoError(t, opened.Close(ctx))

	n, err := fake.LLen(ctx, "q").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
