package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "order_geo:usage"

	// redisKeyTTL keeps day counters long enough to reconcile a monthly
	// provider invoice.
	redisKeyTTL = 35 * 24 * time.Hour
)

// RedisStore keeps one integer key per (provider, day).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL (e.g. "redis://localhost:6379/0").
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(provider string, day time.Time) string {
	return redisKeyPrefix + ":" + domain.DayKey(day) + ":" + provider
}

// RecordAttempt increments the day key and refreshes its expiry in one
// MULTI/EXEC transaction.
func (s *RedisStore) RecordAttempt(ctx context.Context, provider string, day time.Time) error {
	key := redisKey(provider, day)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, redisKeyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("increment %s usage: %w", provider, err)
	}
	return nil
}

// Count returns the provider's counter for day, zero when absent.
func (s *RedisStore) Count(ctx context.Context, provider string, day time.Time) (int64, error) {
	n, err := s.client.Get(ctx, redisKey(provider, day)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s usage: %w", provider, err)
	}
	return n, nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

// Close closes the client.
func (s *RedisStore) Close() error { return s.client.Close() }
