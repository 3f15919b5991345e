package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

// Record is the stored outcome of an update.
type Record struct {
	Status   string
	Response []byte
}

type Store interface {
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ReleaseLock(ctx context.Context, key string) error
}

// keyPrefix namespaces idempotency keys next to the bot's other Redis keys.
const keyPrefix = "budget:idempotency:"

// RedisStore keeps each record in a hash with a SETNX guard key beside it,
// so bot replicas sharing Redis process an update once.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(client *redis.Client, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}

	return &RedisStore{
		client: client,
		log:    log,
	}
}

func (s *RedisStore) Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
	if err != nil {
		s.log.ErrorContext(ctx, "failed to acquire idempotency lock", slog.String("key", key), slog.Any("error", err))
		return false, err
	}

	return acquired, nil
}

// Get returns nil when no record exists.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(key)).Result()
	if err != nil {
		s.log.ErrorContext(ctx, "failed to fetch idempotency record", slog.String("key", key), slog.Any("error", err))
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	record := &Record{Status: fields["status"]}
	if response := fields["response"]; response != "" {
		record.Response = []byte(response)
	}
	return record, nil
}

// Set replaces the record and its expiry in one transaction.
func (s *RedisStore) Set(ctx context.Context, key string, record *Record, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recordKey(key))
	pipe.HSet(ctx, recordKey(key), "status", record.Status, "response", record.Response)
	pipe.Expire(ctx, recordKey(key), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.ErrorContext(ctx, "failed to store idempotency record",
			slog.String("key", key),
			slog.String("status", record.Status),
			slog.Any("error", err),
		)
		return err
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, recordKey(key)).Err(); err != nil {
		s.log.ErrorContext(ctx, "failed to delete idempotency record", slog.String("key", key), slog.Any("error", err))
		return err
	}

	return nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockKey(key)).Err()
}

func recordKey(key string) string {
	return keyPrefix + key
}

func lockKey(key string) string {
	return keyPrefix + key + ":lock"
}
