package pipeline

import (
	"context"
	"time"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// backoff is the doubling retry delay shared by source and sink failures.
// It is owned by one Run loop and is not safe for concurrent use.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, maximum time.Duration) *backoff {
	return &backoff{initial: initial, max: maximum, current: initial}
}

func (b *backoff) delay() time.Duration { return b.current }

func (b *backoff) reset() { b.current = b.initial }

// wait sleeps for the current delay and doubles it up to the cap. It returns
// false if ctx ends first.
func (b *backoff) wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(b.current)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	b.current = min(b.current*2, b.max)
	return true
}
