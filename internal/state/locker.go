package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userLockKeyPattern = "budget:lock:%d"
	lockRetryInterval  = 25 * time.Millisecond

	// DefaultLockTTL bounds how long a crashed holder can block a user.
	DefaultLockTTL = 5 * time.Second
	// DefaultLockWait is how long Lock polls before giving up with ErrStateLocked.
	DefaultLockWait = 2 * time.Second
)

// ErrLockLost is the cancellation cause of a held lock's context once the
// lock can no longer be guaranteed.
var ErrLockLost = errors.New("user lock lost")

// releaseScript deletes the lock only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript renews the lock TTL only when it still carries the caller's token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Unlock releases a lock obtained from Locker.Lock.
type Unlock func()

// Locker provides per-user mutual exclusion.
type Locker interface {
	// Lock blocks until the user's lock is acquired, ctx is done, or the wait
	// budget is exhausted (ErrStateLocked). Work done under the lock must use
	// the returned context: it is cancelled with ErrLockLost before the lock
	// could pass to another holder. The returned Unlock must be called on
	// every exit path.
	Lock(ctx context.Context, userID int64) (context.Context, Unlock, error)
}

// RedisLocker implements Locker with SET NX PX and a token-checked release,
// so several bot replicas can share one Redis. A held lock is renewed every
// third of its TTL until released.
type RedisLocker struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
	wait   time.Duration
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a Redis-backed locker. Zero durations fall back to defaults.
func NewRedisLocker(client *redis.Client, log *slog.Logger, ttl, wait time.Duration) *RedisLocker {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if wait <= 0 {
		wait = DefaultLockWait
	}

	return &RedisLocker{
		client: client,
		log:    log,
		ttl:    ttl,
		wait:   wait,
	}
}

// Lock acquires the user's lock.
func (l *RedisLocker) Lock(ctx context.Context, userID int64) (context.Context, Unlock, error) {
	key := fmt.Sprintf(userLockKeyPattern, userID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.log.Error("failed to acquire user lock", slog.Int64("user_id", userID), slog.Any("error", err))
			return nil, nil, err
		}

		if acquired {
			return l.hold(ctx, key, token, userID)
		}

		if time.Now().After(deadline) {
			l.log.Warn("user lock already held", slog.Int64("user_id", userID))
			return nil, nil, ErrStateLocked
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// hold starts the renewal loop for an acquired lock.
func (l *RedisLocker) hold(ctx context.Context, key, token string, userID int64) (context.Context, Unlock, error) {
	heldCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		l.renew(key, token, userID, stop, cancel)
	}()

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			close(stop)
			<-done
			cancel(nil)
			l.release(key, token, userID)
		})
	}

	return heldCtx, unlock, nil
}

// renew extends the lock until stop is closed. When the token is gone, or
// renewals keep failing until the lock could expire before the next
// attempt, the holder's context is cancelled with ErrLockLost.
func (l *RedisLocker) renew(key, token string, userID int64, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	expiresAt := time.Now().Add(l.ttl)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancelCall := context.WithTimeout(context.Background(), interval)
		renewed, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancelCall()

		switch {
		case err == nil && renewed == 1:
			expiresAt = time.Now().Add(l.ttl)
		case err == nil:
			l.log.Error("user lock expired while held", slog.Int64("user_id", userID))
			cancel(ErrLockLost)
			return
		case time.Now().Add(interval).After(expiresAt):
			l.log.Error("user lock renewal failed", slog.Int64("user_id", userID), slog.Any("error", err))
			cancel(ErrLockLost)
			return
		default:
			l.log.Warn("user lock renewal failed, retrying", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}
}

func (l *RedisLocker) release(key, token string, userID int64) {
	// The request context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.log.Error("failed to release user lock", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

type memoryLock struct {
	sem  chan struct{}
	refs int
}

// MemoryLocker implements Locker inside a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[int64]*memoryLock
	wait  time.Duration
}

var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}

	return &MemoryLocker{
		locks: make(map[int64]*memoryLock),
		wait:  wait,
	}
}

// Lock acquires the user's lock. An in-process lock cannot be lost, so the
// returned context is only cancelled with ctx or on unlock.
func (m *MemoryLocker) Lock(ctx context.Context, userID int64) (context.Context, Unlock, error) {
	lock := m.acquireRef(userID)

	timer := time.NewTimer(m.wait)
	defer timer.Stop()

	select {
	case lock.sem <- struct{}{}:
		heldCtx, cancel := context.WithCancel(ctx)
		var once sync.Once
		return heldCtx, func() {
			once.Do(func() {
				cancel()
				<-lock.sem
				m.releaseRef(userID)
			})
		}, nil
	case <-ctx.Done():
		m.releaseRef(userID)
		return nil, nil, ctx.Err()
	case <-timer.C:
		m.releaseRef(userID)
		return nil, nil, ErrStateLocked
	}
}

func (m *MemoryLocker) acquireRef(userID int64) *memoryLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &memoryLock{sem: make(chan struct{}, 1)}
		m.locks[userID] = lock
	}
	lock.refs++
	return lock
}

func (m *MemoryLocker) releaseRef(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		return
	}

	lock.refs--
	if lock.refs <= 0 {
		delete(m.locks, userID)
	}
}
