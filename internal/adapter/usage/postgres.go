package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a small PostgreSQL pool for the usage table.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 5
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.RuntimeParams["application_name"] = "order-geo-service"
	cfg.ConnConfig.RuntimeParams["statement_timeout"] = "5000"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// PostgresStore keeps one row per (provider, day) in provider_usage.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the provider_usage table if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("connection pool is required")
	}
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS provider_usage (
			provider TEXT NOT NULL,
			day DATE NOT NULL,
			count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (provider, day)
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create provider_usage table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// RecordAttempt upserts the (provider, day) row and increments it in a
// single statement, so concurrent writers never lose an update.
func (s *PostgresStore) RecordAttempt(ctx context.Context, provider string, day time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO provider_usage (provider, day, count)
		VALUES ($1, $2::date, 1)
		ON CONFLICT (provider, day)
		DO UPDATE SET count = provider_usage.count + 1, updated_at = now()
	`, provider, domain.DayKey(day))
	if err != nil {
		return fmt.Errorf("increment %s usage: %w", provider, err)
	}
	return nil
}

// Count returns the provider's counter for day, zero when absent.
func (s *PostgresStore) Count(ctx context.Context, provider string, day time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM provider_usage WHERE provider = $1 AND day = $2::date`,
		provider, domain.DayKey(day),
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s usage: %w", provider, err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
