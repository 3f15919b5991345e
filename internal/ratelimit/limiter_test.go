package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/budget-bot/pkg/config"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, Rule) (*Result, error) {
	return nil, errors.New("redis down")
}

func newClockedMemoryLimiter() (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter(testLogger())
	limiter.now = clock.Now
	return limiter, clock
}

func TestMemoryLimiter_PerUserRule(t *testing.T) {
	limiter, clock := newClockedMemoryLimiter()
	ctx := context.Background()

	rule, err := statusRules().PerUserRule()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, UserKey(1), rule)
		require.NoError(t, err)
		assert.Equal(t, 2-i, result.Remaining)
		clock.Advance(time.Second)
	}

	result, err := limiter.Allow(ctx, UserKey(1), rule)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
	assert.Equal(t, 57, result.RetryAfter(clock.now))

	other, err := limiter.Allow(ctx, UserKey(2), rule)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.Advance(58 * time.Second)
	_, err = limiter.Allow(ctx, UserKey(1), rule)
	assert.NoError(t, err)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter, clock := newClockedMemoryLimiter()
	_, err := limiter.Allow(context.Background(), CommandKey("report", 1), Rule{Limit: 5, Window: time.Minute})
	require.NoError(t, err)

	limiter.Cleanup(time.Hour)
	assert.Len(t, limiter.hits, 1)

	clock.Advance(2 * time.Hour)
	limiter.Cleanup(time.Hour)
	assert.Empty(t, limiter.hits)
}

func TestFailoverLimiter_HalvesRulesLocally(t *testing.T) {
	limiter := NewFailoverLimiter(failingLimiter{}, NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()
	rule := Rule{Limit: 4, Window: time.Minute}

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(ctx, UserKey(7), rule)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	_, err := limiter.Allow(ctx, UserKey(7), rule)
	assert.ErrorIs(t, err, ErrLimitExceeded)

	single := Rule{Limit: 1, Window: time.Minute}
	_, err = limiter.Allow(ctx, GlobalKey, single)
	require.NoError(t, err, "a local rule never drops below one update")
}

func TestFailoverLimiter_SharedRejectionIsFinal(t *testing.T) {
	client, _ := setupTestRedis(t)
	limiter := NewFailoverLimiter(NewRedisLimiter(client, testLogger()), NewMemoryLimiter(testLogger()), testLogger())
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Minute}

	_, err := limiter.Allow(ctx, CommandKey("report", 8), rule)
	require.NoError(t, err)

	result, err := limiter.Allow(ctx, CommandKey("report", 8), rule)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.False(t, result.Allowed)
}

func TestCleaner_RemovesExpiredEntries(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	stale := float64(time.Now().Add(-10 * time.Minute).UnixMilli())
	fresh := float64(time.Now().UnixMilli())
	require.NoError(t, client.ZAdd(ctx, "budget:ratelimit:user:1", redis.Z{Score: stale, Member: "a"}).Err())
	require.NoError(t, client.ZAdd(ctx, "budget:ratelimit:user:2", redis.Z{Score: stale, Member: "b"}).Err())
	require.NoError(t, client.ZAdd(ctx, "budget:ratelimit:user:2", redis.Z{Score: fresh, Member: "c"}).Err())
	require.NoError(t, client.ZAdd(ctx, "budget:lock:1", redis.Z{Score: stale, Member: "d"}).Err())

	cleaner := NewCleaner(client, nil, testLogger(), time.Minute, 5*time.Minute)
	cleaner.cleanup(ctx)

	exists, err := client.Exists(ctx, "budget:ratelimit:user:1").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	members, err := client.ZRange(ctx, "budget:ratelimit:user:2", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, members)

	untouched, err := client.ZCard(ctx, "budget:lock:1").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, untouched)
}

func TestRules(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled:   true,
		PerUser:   config.RateLimitRule{Limit: 30, Window: "1m"},
		Global:    config.RateLimitRule{Limit: 1000, Window: "1m"},
		Commands:  map[string]config.RateLimitRule{"report": {Limit: 5, Window: "10m"}},
		Whitelist: []int64{42},
	})

	assert.True(t, rules.Enabled())
	assert.True(t, rules.IsWhitelisted(42))
	assert.False(t, rules.IsWhitelisted(7))

	rule, err := rules.CommandRule("/report")
	require.NoError(t, err)
	assert.Equal(t, Rule{Limit: 5, Window: 10 * time.Minute}, rule)

	_, err = rules.CommandRule("/status")
	assert.ErrorIs(t, err, ErrNoRule)

	assert.Equal(t, 10*time.Minute, rules.MaxWindow())

	rules.Update(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 3, Window: "30s"}})
	assert.False(t, rules.Enabled())
	rule, err = rules.PerUserRule()
	require.NoError(t, err)
	assert.Equal(t, Rule{Limit: 3, Window: 30 * time.Second}, rule)

	_, err = rules.GlobalRule()
	assert.ErrorIs(t, err, ErrNoRule)
}

func TestRules_ChecksNarrowestFirst(t *testing.T) {
	rules := statusRules()

	checks, err := rules.Checks("status", 7)
	require.NoError(t, err)
	assert.Equal(t, []Check{
		{Scope: ScopeCommand, Key: "cmd:status:user:7", Rule: Rule{Limit: 2, Window: 10 * time.Second}},
		{Scope: ScopeUser, Key: "user:7", Rule: Rule{Limit: 3, Window: time.Minute}},
	}, checks)

	checks, err = rules.Checks("", 7)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, ScopeUser, checks[0].Scope)

	rules.Update(config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 3, Window: "soon"},
		Global:  config.RateLimitRule{Limit: 100, Window: "1s"},
	})
	checks, err = rules.Checks("status", 7)
	assert.Error(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, Check{Scope: ScopeGlobal, Key: GlobalKey, Rule: Rule{Limit: 100, Window: time.Second}}, checks[0])
}
