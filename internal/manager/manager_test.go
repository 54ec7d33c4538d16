package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"plazza/internal/pizza"
	"plazza/internal/process"
	"plazza/internal/wire"
	"plazza/pkg/logger"
)

type fakeRedis struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{lists: make(map[string][]string)} }

func (f *fakeRedis) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.(string))
	}
	n := len(f.lists[key])
	f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(n))
	return cmd
}

func (f *fakeRedis) LPop(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	l := f.lists[key]
	if len(l) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(l[0])
	f.lists[key] = l[1:]
	return cmd
}

func (f *fakeRedis) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	key := keys[0]
	deadline := time.Now().Add(timeout)
	cmd := redis.NewStringSliceCmd(ctx)
	for {
		f.mu.Lock()
		if len(f.lists[key]) > 0 {
			val := f.lists[key][0]
			f.lists[key] = f.lists[key][1:]
			f.mu.Unlock()
			cmd.SetVal([]string{key, val})
			return cmd
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			cmd.SetErr(redis.Nil)
			return cmd
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fakeRedis) LLen(ctx context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	n := len(f.lists[key])
	f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(n))
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	var n int64
	for _, k := range keys {
		if _, ok := f.lists[k]; ok {
			n++
		}
		delete(f.lists, k)
	}
	f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(n)
	return cmd
}

type fakeHandle struct {
	id      uint32
	running bool
	mu      sync.Mutex
}

func (h *fakeHandle) ID() uint32 { return h.id }
func (h *fakeHandle) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}
func (h *fakeHandle) Terminate(ctx context.Context) error {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	return nil
}

type fakeSpawner struct {
	mu      sync.Mutex
	handles map[uint32]*fakeHandle
	fail    bool
}

func newFakeSpawner() *fakeSpawner { return &fakeSpawner{handles: make(map[uint32]*fakeHandle)} }

var errSpawnFailed = errors.New("spawn failed")

func (s *fakeSpawner) Spawn(ctx context.Context, id uint32) (process.Handle, error) {
	if s.fail {
		return nil, errSpawnFailed
	}
	h := &fakeHandle{id: id, running: true}
	s.mu.Lock()
	s.handles[id] = h
	s.mu.Unlock()
	return h, nil
}

func TestDistributeOrderCreatesKitchenWhenNoneExist(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()

	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	err = m.DistributeOrder(ctx, []pizza.Order{{OrderID: 1, Type: pizza.Margarita, Size: pizza.SizeM, Quantity: 1}})
	require.NoError(t, err)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.kitchens, 1)
	assert.Equal(t, uint32(1), m.kitchens[1].PendingPizzas)
}

func TestDistributeOrderReusesUnderCapacityKitchen(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()

	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	orders := []pizza.Order{
		{OrderID: 1, Type: pizza.Margarita, Size: pizza.SizeM, Quantity: 1},
		{OrderID: 2, Type: pizza.Regina, Size: pizza.SizeL, Quantity: 1},
	}
	require.NoError(t, m.DistributeOrder(ctx, orders))

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.kitchens, 1, "both orders should land on the same kitchen while under capacity")
	assert.Equal(t, uint32(2), m.kitchens[1].PendingPizzas)
}

func TestDistributeOrderCreatesSecondKitchenWhenFirstIsFull(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()

	m, err := New(ctx, fake, spawner, 1, time.Second, 1.0) // capacity = 1*2 = 2
	require.NoError(t, err)

	orders := make([]pizza.Order, 3)
	for i := range orders {
		orders[i] = pizza.Order{OrderID: uint32(i + 1), Type: pizza.Margarita, Size: pizza.SizeM, Quantity: 1}
	}
	require.NoError(t, m.DistributeOrder(ctx, orders))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Len(t, m.kitchens, 2, "third order should overflow to a newly created kitchen")
}

func TestHandlePizzaCompletedDecrementsPendingAndSaturatesAtZero(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()
	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	m.mu.Lock()
	m.kitchens[1] = &KitchenInfo{ID: 1, Active: true, LastHeartbeat: time.Now(), PendingPizzas: 1}
	m.mu.Unlock()

	completion := wire.CompletionPayload{Pizza: pizza.Pizza{KitchenID: 1, OrderID: 5}}
	msg := wire.Message{Type: wire.PizzaCompleted, Payload: completion.Pack().Bytes()}

	require.NoError(t, m.handlePizzaCompleted(ctx, msg))
	m.mu.Lock()
	assert.Equal(t, uint32(0), m.kitchens[1].PendingPizzas, "one completion must decrement pending from 1 to 0")
	m.mu.Unlock()

	require.NoError(t, m.handlePizzaCompleted(ctx, msg))
	m.mu.Lock()
	assert.Equal(t, uint32(0), m.kitchens[1].PendingPizzas, "pending must saturate at zero, never go negative")
	m.mu.Unlock()
}

func TestHandlePizzaCompletedLogsCompletion(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := logger.SetLogger(zap.New(core))
	defer logger.SetLogger(prev)

	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()
	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	m.mu.Lock()
	m.kitchens[1] = &KitchenInfo{ID: 1, Active: true, LastHeartbeat: time.Now()}
	m.mu.Unlock()

	completion := wire.CompletionPayload{Pizza: pizza.Pizza{Type: pizza.Margarita, Size: pizza.SizeM, KitchenID: 1, OrderID: 5}}
	msg := wire.Message{Type: wire.PizzaCompleted, Payload: completion.Pack().Bytes()}

	require.NoError(t, m.handlePizzaCompleted(ctx, msg))

	entries := logs.FilterMessage("pizza completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, pizza.Margarita.String(), fields["type"])
	assert.Equal(t, pizza.SizeM.String(), fields["size"])
	assert.EqualValues(t, 1, fields["kitchen_id"])
}

func TestRemoveInactiveKitchensReapsStaleHeartbeat(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()
	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	m.mu.Lock()
	m.kitchens[1] = &KitchenInfo{ID: 1, Active: true, LastHeartbeat: time.Now().Add(-1 * time.Hour)}
	m.mu.Unlock()

	m.removeInactiveKitchens(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.kitchens, uint32(1))
}

func TestRemoveInactiveKitchensReapsExitedProcess(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()
	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	handle := &fakeHandle{id: 1, running: false}
	m.mu.Lock()
	m.kitchens[1] = &KitchenInfo{ID: 1, Active: true, Handle: handle, LastHeartbeat: time.Now()}
	m.mu.Unlock()

	m.removeInactiveKitchens(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.kitchens, uint32(1))
}

func TestCleanupTerminatesAllKitchensAndClearsTable(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	spawner := newFakeSpawner()
	m, err := New(ctx, fake, spawner, 2, time.Second, 1.0)
	require.NoError(t, err)

	require.NoError(t, m.DistributeOrder(ctx, []pizza.Order{{OrderID: 1, Type: pizza.Margarita, Size: pizza.SizeM, Quantity: 1}}))

	m.Cleanup(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.kitchens)
}
