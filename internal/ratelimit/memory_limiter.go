package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter keeps hit times per bucket in process. It serves single
// replica deployments and stands in while Redis is unreachable.
type MemoryLimiter struct {
	mu   sync.Mutex
	hits map[string][]time.Time
	log  *slog.Logger
	now  func() time.Time
}

// NewMemoryLimiter returns an empty in-process limiter.
func NewMemoryLimiter(log *slog.Logger) *MemoryLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &MemoryLimiter{
		hits: make(map[string][]time.Time),
		log:  log,
		now:  time.Now,
	}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, key string, rule Rule) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := dropBefore(m.hits[key], now.Add(-rule.Window))
	result := &Result{ResetAt: now.Add(rule.Window)}

	if len(hits) < rule.Limit {
		hits = append(hits, now)
		result.Allowed = true
	}
	if len(hits) > 0 {
		result.ResetAt = hits[0].Add(rule.Window)
	}
	result.Remaining = max(rule.Limit-len(hits), 0)

	if len(hits) == 0 {
		delete(m.hits, key)
	} else {
		m.hits[key] = hits
	}

	if !result.Allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Cleanup forgets buckets whose latest hit is older than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.hits, key)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("in-memory rate limit buckets dropped", slog.Int("buckets", removed))
	}
}

// dropBefore removes hits older than start, reusing the backing array.
func dropBefore(hits []time.Time, start time.Time) []time.Time {
	i := 0
	for i < len(hits) && hits[i].Before(start) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
