// Package usercache caches budget records in Redis.
package usercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/budget-bot/internal/domain"
)

// Cache provides Redis-backed caching for budget records.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a record cache backed by the provided Redis client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get fetches a cached record. A miss returns nil without error.
func (c *Cache) Get(ctx context.Context, userID int64) (*domain.Record, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cached record: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cached record: %w", err)
	}

	return &rec, nil
}

// Set stores the record for the cache TTL.
func (c *Cache) Set(ctx context.Context, rec *domain.Record) error {
	if c == nil || c.client == nil || rec == nil || c.ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record for cache: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(rec.UserID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached record: %w", err)
	}

	return nil
}

// Invalidate removes the cached record if it exists.
func (c *Cache) Invalidate(ctx context.Context, userID int64) error {
	if c == nil || c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached record: %w", err)
	}

	return nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("budget:record:%d", userID)
}
