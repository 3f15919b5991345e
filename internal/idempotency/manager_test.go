package idempotency

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func stores(t *testing.T) map[string]Store {
	client, _ := setupTestRedis(t)
	return map[string]Store{
		"redis":  NewRedisStore(client, testLogger()),
		"memory": NewMemoryStore(),
	}
}

func TestManager_RunsOncePerKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager := NewManager(store, testLogger())
			ctx := context.Background()
			var calls int32

			op := func(context.Context) (interface{}, error) {
				atomic.AddInt32(&calls, 1)
				return "done", nil
			}

			first, err := manager.Execute(ctx, "update:1", time.Hour, op)
			require.NoError(t, err)
			assert.False(t, first.FromCache)
			assert.Equal(t, "done", first.Response)

			second, err := manager.Execute(ctx, "update:1", time.Hour, op)
			require.NoError(t, err)
			assert.True(t, second.FromCache)
			assert.Equal(t, "done", second.Response)

			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestManager_FailedOperationCanRetry(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			manager := NewManager(store, testLogger())
			ctx := context.Background()
			boom := errors.New("boom")

			_, err := manager.Execute(ctx, "update:2", time.Hour, func(context.Context) (interface{}, error) {
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)

			result, err := manager.Execute(ctx, "update:2", time.Hour, func(context.Context) (interface{}, error) {
				return nil, nil
			})
			require.NoError(t, err)
			assert.False(t, result.FromCache)
		})
	}
}

func TestManager_ConcurrentDuplicateIsRejected(t *testing.T) {
	manager := NewManager(NewMemoryStore(), testLogger())
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = manager.Execute(ctx, "update:3", time.Hour, func(context.Context) (interface{}, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()

	<-started
	_, err := manager.Execute(ctx, "update:3", time.Hour, func(context.Context) (interface{}, error) {
		t.Fatal("duplicate must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)

	close(release)
	wg.Wait()
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", &Record{Status: StatusCompleted}, time.Minute))
	record, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, record)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Purge())

	record, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestCleaner_RemovesKeysWithoutExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, "budget:idempotency:orphan", "status", StatusCompleted).Err())
	require.NoError(t, client.HSet(ctx, "budget:idempotency:live", "status", StatusCompleted).Err())
	require.NoError(t, client.Expire(ctx, "budget:idempotency:live", time.Hour).Err())

	NewCleaner(client, nil, testLogger(), time.Minute, 2*time.Hour).cleanup(ctx)

	assert.False(t, mr.Exists("budget:idempotency:orphan"))
	assert.True(t, mr.Exists("budget:idempotency:live"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "update:42", UpdateKey(42))
	assert.NotEqual(t, UpdateKey(1), UpdateKey(2))
	assert.Equal(t, "cb:4b2f", CallbackKey("4b2f"))
	assert.Equal(t, "msg:-100:7", MessageKey(-100, 7))
}

func TestRedisStore_KeysAreReadable(t *testing.T) {
	client, mr := setupTestRedis(t)
	manager := NewManager(NewRedisStore(client, testLogger()), testLogger())

	_, err := manager.Execute(context.Background(), UpdateKey(42), time.Hour, func(context.Context) (interface{}, error) {
		return nil, nil
	})
	require.NoError(t, err)

	assert.True(t, mr.Exists("budget:idempotency:update:42"))
}
