package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeRedis answers SET NX and the release script from a map, without a server
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeRedis) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.err != nil {
			cmd.SetErr(f.err)
			return f.err
		}

		args := cmd.Args()
		switch strings.ToLower(cmd.Name()) {
		case "set":
			key, val := args[1].(string), args[2].(string)
			if _, exists := f.data[key]; exists {
				cmd.(*redis.BoolCmd).SetVal(false)
				return nil
			}
			f.data[key] = val
			cmd.(*redis.BoolCmd).SetVal(true)
		case "evalsha":
			key, token := args[3].(string), args[4].(string)
			if f.data[key] == token {
				delete(f.data, key)
				cmd.(*redis.Cmd).SetVal(int64(1))
				return nil
			}
			cmd.(*redis.Cmd).SetVal(int64(0))
		}
		return nil
	}
}

func newFakeLock(t *testing.T) (*RedisRunLock, *fakeRedis) {
	t.Helper()
	fake := &fakeRedis{data: map[string]string{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(fake)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRunLockWithClient(client, ""), fake
}

func TestRedisRunLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second holder is refused until release", func(t *testing.T) {
		a, fake := newFakeLock(t)
		b := NewRedisRunLockWithClient(a.client, "")

		ok, err := a.TryLock(ctx, "reconciliation:sweep", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, fake.data, "pallets:lock:reconciliation:sweep")

		ok, err = b.TryLock(ctx, "reconciliation:sweep", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, a.Unlock(ctx, "reconciliation:sweep"))
		assert.Empty(t, fake.data)

		ok, err = b.TryLock(ctx, "reconciliation:sweep", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("release does not delete a lock taken over by another token", func(t *testing.T) {
		a, fake := newFakeLock(t)
		ok, err := a.TryLock(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		fake.data["pallets:lock:k"] = "someone-else"
		require.NoError(t, a.Unlock(ctx, "k"))
		assert.Equal(t, "someone-else", fake.data["pallets:lock:k"])
	})

	t.Run("unlock without holding is a no-op", func(t *testing.T) {
		a, _ := newFakeLock(t)
		assert.NoError(t, a.Unlock(ctx, "never-taken"))
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		a, fake := newFakeLock(t)
		fake.err = errors.New("connection refused")

		ok, err := a.TryLock(ctx, "k", time.Minute)
		assert.False(t, ok)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `failed to acquire lock "k"`)
	})
}

func TestInMemoryRunLock(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryRunLock()
	now := time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.TryLock(ctx, "sweep", 10*time.Minute)
	assert.True(t, ok)
	assert.True(t, l.Held("sweep"))

	ok, _ = l.TryLock(ctx, "sweep", 10*time.Minute)
	assert.False(t, ok)

	now = now.Add(11 * time.Minute)
	assert.False(t, l.Held("sweep"), "expired")
	ok, _ = l.TryLock(ctx, "sweep", 10*time.Minute)
	assert.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "sweep"))
	assert.False(t, l.Held("sweep"))
}

func TestNewRunLock(t *testing.T) {
	ctx := context.Background()
	failingDial := func(f *lockFactory) {
		f.dial = func(context.Context, RedisConfig) (RunLock, error) {
			return nil, errors.New("dial tcp: connection refused")
		}
	}

	t.Run("disabled uses memory", func(t *testing.T) {
		lock, err := NewRunLock(ctx, false, RedisConfig{})
		require.NoError(t, err)
		assert.IsType(t, &InMemoryRunLock{}, lock)
	})

	t.Run("unreachable redis falls back with a warning", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		lock, err := NewRunLock(ctx, true, RedisConfig{Addr: "redis:6379"}, failingDial, WithLogger(zap.New(core)))
		require.NoError(t, err)
		assert.IsType(t, &InMemoryRunLock{}, lock)
		assert.Equal(t, 1, logs.Len())
	})

	t.Run("fallback can be refused", func(t *testing.T) {
		_, err := NewRunLock(ctx, true, RedisConfig{Addr: "redis:6379"}, failingDial, WithInMemoryFallback(false))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("reachable redis is used", func(t *testing.T) {
		want, _ := newFakeLock(t)
		lock, err := NewRunLock(ctx, true, RedisConfig{}, func(f *lockFactory) {
			f.dial = func(context.Context, RedisConfig) (RunLock, error) { return want, nil }
		})
		require.NoError(t, err)
		assert.Same(t, want, lock)
	})
}
