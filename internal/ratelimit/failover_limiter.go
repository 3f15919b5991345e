package ratelimit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/budget-bot/pkg/metrics"
)

// FailoverLimiter asks the shared Redis limiter first. While Redis fails,
// each replica enforces half of every rule on its own in-memory buckets,
// since the other replicas are admitting traffic too.
type FailoverLimiter struct {
	shared Limiter
	local  Limiter
	log    *slog.Logger
}

var _ Limiter = (*FailoverLimiter)(nil)

// NewFailoverLimiter combines a shared and a local limiter.
func NewFailoverLimiter(shared, local Limiter, log *slog.Logger) *FailoverLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &FailoverLimiter{shared: shared, local: local, log: log}
}

// Allow implements Limiter.
func (f *FailoverLimiter) Allow(ctx context.Context, key string, rule Rule) (*Result, error) {
	result, err := f.shared.Allow(ctx, key, rule)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		metrics.RecordRateLimitDecision("redis", err == nil)
		return result, err
	}

	metrics.RecordRateLimitFailover()
	f.log.WarnContext(ctx, "shared rate limiter unavailable, using local buckets",
		slog.String("key", key),
		slog.Any("error", err),
	)

	local := Rule{Limit: max(rule.Limit/2, 1), Window: rule.Window}
	result, err = f.local.Allow(ctx, key, local)
	if err == nil || errors.Is(err, ErrLimitExceeded) {
		metrics.RecordRateLimitDecision("memory", err == nil)
	}
	return result, err
}
