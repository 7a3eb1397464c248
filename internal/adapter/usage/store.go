// Package usage provides the per-(provider, day) attempt counters behind
// domain.UsageTracker: an in-process map, a PostgreSQL table and Redis keys.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/config"
	"github.com/couchcryptid/order-geo-service/internal/domain"
)

// Store counts provider attempts and reads them back.
type Store interface {
	domain.UsageTracker
	domain.UsageReader
	Ping(ctx context.Context) error
	Close() error
}

// New opens the backend selected by cfg.UsageStore.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.UsageStore {
	case config.UsageStorePostgres:
		pool, err := NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case config.UsageStoreRedis:
		return NewRedisStore(ctx, cfg.RedisURL)
	case config.UsageStoreMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown usage store %q", cfg.UsageStore)
	}
}

// Snapshot reads the counters of providers for day, in the given order.
func Snapshot(ctx context.Context, r domain.UsageReader, day time.Time, providers []string) ([]domain.ProviderUsageRecord, error) {
	records := make([]domain.ProviderUsageRecord, 0, len(providers))
	for _, p := range providers {
		n, err := r.Count(ctx, p, day)
		if err != nil {
			return nil, fmt.Errorf("usage snapshot: %w", err)
		}
		records = append(records, domain.ProviderUsageRecord{Provider: p, Day: domain.DayKey(day), Count: n})
	}
	return records, nil
}
