package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces limiter buckets next to the bot's other keys.
const redisKeyPrefix = "budget:ratelimit:"

// slidingWindowScript trims the bucket, then records the hit only when
// there is room, so rejected updates do not extend a user's penalty.
// Scores are unix milliseconds. Returns {allowed, remaining, reset_at_ms}.
var slidingWindowScript = redis.NewScript(`
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[5])
local count = redis.call("ZCARD", KEYS[1])
local allowed = 0
if count < limit then
	redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call("PEXPIRE", KEYS[1], ARGV[2])

local reset = tonumber(ARGV[1]) + window
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
if oldest[2] then
	reset = tonumber(oldest[2]) + window
end
return {allowed, limit - count, reset}
`)

// RedisLimiter shares sliding-window buckets across bot replicas.
type RedisLimiter struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &RedisLimiter{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string, rule Rule) (*Result, error) {
	if l.client == nil {
		return nil, errors.New("redis client is not configured for rate limiting")
	}

	now := l.now()
	if rule.Limit <= 0 {
		return &Result{ResetAt: now.Add(rule.Window)}, ErrLimitExceeded
	}

	values, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		now.UnixMilli(),
		rule.Window.Milliseconds(),
		rule.Limit,
		uuid.NewString(),
		fmt.Sprintf("(%d", now.Add(-rule.Window).UnixMilli()),
	).Int64Slice()
	if err != nil {
		l.log.Error("rate limit script failed", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	if len(values) != 3 {
		return nil, errors.New("rate limit script returned an unexpected reply")
	}

	result := &Result{
		Allowed:   values[0] == 1,
		Remaining: max(int(values[1]), 0),
		ResetAt:   time.UnixMilli(values[2]),
	}
	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}
