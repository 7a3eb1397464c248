package domain

import (
	"context"
	"time"
)

// UsageTracker records provider call attempts per calendar day.
// Implementations must increment atomically under concurrent callers.
type UsageTracker interface {
	RecordAttempt(ctx context.Context, provider string, day time.Time) error
}

// UsageReader reads back the per-day counters.
type UsageReader interface {
	Count(ctx context.Context, provider string, day time.Time) (int64, error)
}

// ProviderUsageRecord is the persisted counter for one provider on one day.
type ProviderUsageRecord struct {
	Provider string `json:"provider"`
	Day      string `json:"day"` // YYYY-MM-DD
	Count    int64  `json:"count"`
}

// CalendarDay truncates t to midnight in its own location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayKey formats the calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// NopUsageTracker discards every attempt.
type NopUsageTracker struct{}

func (NopUsageTracker) RecordAttempt(context.Context, string, time.Time) error { return nil }
