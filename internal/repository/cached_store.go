package repository

import (
	"context"
	"log/slog"

	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/domain"
	"github.com/Proton-105/budget-bot/internal/usercache"
)

// CachedStore serves reads from Redis and writes through to the wrapped
// store. Cache failures are logged and never fail the operation.
type CachedStore struct {
	next  budget.Store
	cache *usercache.Cache
	log   *slog.Logger
}

var _ budget.Store = (*CachedStore)(nil)

// NewCachedStore wraps next with cache.
func NewCachedStore(next budget.Store, cache *usercache.Cache, log *slog.Logger) *CachedStore {
	if log == nil {
		log = slog.Default()
	}

	return &CachedStore{next: next, cache: cache, log: log}
}

func (s *CachedStore) Get(ctx context.Context, userID int64) (*domain.Record, error) {
	cached, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.Warn("record cache read failed", slog.Int64("user_id", userID), slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	rec, err := s.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, rec); err != nil {
		s.log.Warn("record cache fill failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	return rec, nil
}

func (s *CachedStore) Put(ctx context.Context, rec *domain.Record) error {
	if err := s.next.Put(ctx, rec); err != nil {
		s.invalidate(ctx, rec.UserID)
		return err
	}

	if err := s.cache.Set(ctx, rec); err != nil {
		s.log.Warn("record cache update failed", slog.Int64("user_id", rec.UserID), slog.Any("error", err))
		s.invalidate(ctx, rec.UserID)
	}

	return nil
}

func (s *CachedStore) Delete(ctx context.Context, userID int64) error {
	s.invalidate(ctx, userID)
	return s.next.Delete(ctx, userID)
}

// CountByPhase is answered by the wrapped store when it supports it.
func (s *CachedStore) CountByPhase(ctx context.Context) (map[domain.Phase]int, error) {
	return countByPhase(ctx, s.next)
}

func (s *CachedStore) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("record cache invalidation failed", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
