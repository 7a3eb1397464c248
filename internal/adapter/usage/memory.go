package usage

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
)

type dayKey struct {
	provider string
	day      string
}

// MemoryStore keeps counters in process memory. Counts are lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[dayKey]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[dayKey]int64)}
}

// RecordAttempt increments the provider's counter for day.
func (s *MemoryStore) RecordAttempt(_ context.Context, provider string, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[dayKey{provider, domain.DayKey(day)}]++
	return nil
}

// Count returns the provider's counter for day, zero when absent.
func (s *MemoryStore) Count(_ context.Context, provider string, day time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[dayKey{provider, domain.DayKey(day)}], nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
