package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/config"
	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	friday   = time.Date(2024, 4, 26, 0, 0, 0, 0, time.UTC)
	saturday = friday.AddDate(0, 0, 1)
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	n, err := s.Count(ctx, domain.ProviderOpenCage, friday)
	require.NoError(t, err)
	assert.Zero(t, n, "absent counter reads as zero")

	for range 3 {
		require.NoError(t, s.RecordAttempt(ctx, domain.ProviderOpenCage, friday))
	}
	require.NoError(t, s.RecordAttempt(ctx, domain.ProviderOpenCage, saturday))
	require.NoError(t, s.RecordAttempt(ctx, domain.ProviderNominatim, friday))

	n, err = s.Count(ctx, domain.ProviderOpenCage, friday)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = s.Count(ctx, domain.ProviderOpenCage, saturday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Count(ctx, domain.ProviderNominatim, friday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := Snapshot(ctx, s, friday, []string{domain.ProviderLocationIQ, domain.ProviderOpenCage, domain.ProviderNominatim})
	require.NoError(t, err)
	assert.Equal(t, []domain.ProviderUsageRecord{
		{Provider: domain.ProviderLocationIQ, Day: "2024-04-26", Count: 0},
		{Provider: domain.ProviderOpenCage, Day: "2024-04-26", Count: 3},
		{Provider: domain.ProviderNominatim, Day: "2024-04-26", Count: 1},
	}, records)

	assert.NoError(t, s.Ping(ctx))
}

// exerciseConcurrentIncrements checks that N concurrent attempts count N.
func exerciseConcurrentIncrements(t *testing.T, s Store, n int) {
	t.Helper()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordAttempt(ctx, domain.ProviderLocationIQ, friday)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Count(ctx, domain.ProviderLocationIQ, friday)
	require.NoError(t, err)
	assert.Equal(t, int64(n), got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	exerciseConcurrentIncrements(t, NewMemoryStore(), 200)
}

func TestMemoryStore_DayIsCalendarDate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.RecordAttempt(ctx, domain.ProviderOpenCage, friday.Add(9*time.Hour)))
	require.NoError(t, s.RecordAttempt(ctx, domain.ProviderOpenCage, friday.Add(23*time.Hour)))

	n, err := s.Count(ctx, domain.ProviderOpenCage, friday)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestNew_Memory(t *testing.T) {
	s, err := New(context.Background(), &config.Config{UsageStore: config.UsageStoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(context.Background(), &config.Config{UsageStore: "sqlite"})
	require.Error(t, err)
}
