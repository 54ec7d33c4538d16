package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"plazza/internal/manager"
	"plazza/internal/process"
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

type noopSpawner struct{}

func (noopSpawner) Spawn(ctx context.Context, kitchenID uint32) (process.Handle, error) {
	return nil, nil
}

func TestStatusHandlerServesEmptyKitchenTable(t *testing.T) {
	ctx := context.Background()
	mgr, err := manager.New(ctx, newFakeRedis(), noopSpawner{}, 2, time.Second, 1.0)
	require.NoError(t, err)

	h := NewStatusHandler(mgr)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)

	h.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"kitchens":[]}`, rec.Body.String())
}
