package observability

import (
	"context"
	"errors"
	"fmt"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// PingFunc adapts a dependency health probe such as a pool's Ping.
type PingFunc func(ctx context.Context) error

// CheckReadiness calls f.
func (f PingFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Readiness aggregates named checks; it is ready only when all are.
type Readiness struct {
	names  []string
	checks []sharedobs.ReadinessChecker
}

// NewReadiness creates an empty composite check, which is always ready.
func NewReadiness() *Readiness {
	return &Readiness{}
}

// Add registers a named dependency check.
func (r *Readiness) Add(name string, c sharedobs.ReadinessChecker) *Readiness {
	r.names = append(r.names, name)
	r.checks = append(r.checks, c)
	return r
}

// CheckReadiness runs every check and joins the failures.
func (r *Readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for i, c := range r.checks {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.names[i], err))
		}
	}
	return errors.Join(errs...)
}
