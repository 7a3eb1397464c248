package domain

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Attempt outcomes reported to a ResolverObserver.
const (
	OutcomeSuccess = "success"
	OutcomeMiss    = "miss"
)

// Stage is one step of the geocoding cascade.
type Stage struct {
	Provider GeocodeProvider

	// Degrade retries this provider with simplified addresses after its
	// full-address attempt misses.
	Degrade bool
}

// ResolverObserver receives per-attempt telemetry. observability.Metrics implements it.
type ResolverObserver interface {
	ObserveAttempt(provider, outcome string, elapsed time.Duration)
	ObserveResolution(resolved bool)
	ObserveUsageError(provider string)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, string, time.Duration) {}
func (nopObserver) ObserveResolution(bool)                       {}
func (nopObserver) ObserveUsageError(string)                     {}

// Resolver runs the provider cascade for a raw address. Providers are tried
// strictly in order and never in parallel; the first accepted result wins.
type Resolver struct {
	stages      []Stage
	usage       UsageTracker
	logger      *slog.Logger
	observer    ResolverObserver
	location    *time.Location
	defaultCity string
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithObserver attaches attempt telemetry.
func WithObserver(o ResolverObserver) ResolverOption {
	return func(r *Resolver) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLocation sets the time zone that defines a usage calendar day.
func WithLocation(loc *time.Location) ResolverOption {
	return func(r *Resolver) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithDefaultCity overrides DefaultCity for calls that pass an empty city.
func WithDefaultCity(city string) ResolverOption {
	return func(r *Resolver) {
		if city = strings.TrimSpace(city); city != "" {
			r.defaultCity = city
		}
	}
}

// NewResolver creates a Resolver over the given cascade. A nil tracker disables
// usage accounting.
func NewResolver(stages []Stage, usage UsageTracker, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	if usage == nil {
		usage = NopUsageTracker{}
	}
	r := &Resolver{
		stages:      stages,
		usage:       usage,
		logger:      logger,
		observer:    nopObserver{},
		location:    time.UTC,
		defaultCity: DefaultCity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the cascade's provider names in priority order.
func (r *Resolver) Providers() []string {
	names := make([]string, 0, len(r.stages))
	for _, s := range r.stages {
		names = append(names, s.Provider.Name())
	}
	return names
}

// Geocode resolves address within city. ok is false when every provider
// missed, which callers must treat as a normal outcome (e.g. ask the user to
// pin the location manually).
func (r *Resolver) Geocode(ctx context.Context, address, city string) (result GeocodeResult, ok bool) {
	defer func() { r.observer.ObserveResolution(ok) }()

	if strings.TrimSpace(address) == "" {
		return GeocodeResult{}, false
	}
	city = strings.TrimSpace(city)
	if city == "" {
		city = r.defaultCity
	}

	full := GeocodeQuery{Address: NormalizeAddress(address, city), City: city}

	for _, stage := range r.stages {
		p := stage.Provider
		if !p.Configured() {
			r.logger.Debug("geocode provider not configured, skipping", "provider", p.Name())
			continue
		}

		if res, hit := r.attempt(ctx, p, full); hit {
			return res, true
		}

		if !stage.Degrade {
			continue
		}
		for _, q := range degradedQueries(address, city, full) {
			if res, hit := r.attempt(ctx, p, q); hit {
				return res, true
			}
		}
	}

	r.logger.Info("address unresolved", "address", address, "city", city)
	return GeocodeResult{}, false
}

// attempt runs one provider call and counts it against the usage tracker
// whatever the outcome.
func (r *Resolver) attempt(ctx context.Context, p GeocodeProvider, q GeocodeQuery) (GeocodeResult, bool) {
	name := p.Name()
	if err := r.usage.RecordAttempt(ctx, name, CalendarDay(clock.Now().In(r.location))); err != nil {
		r.observer.ObserveUsageError(name)
		r.logger.Warn("record provider usage failed", "provider", name, "error", err)
	}

	start := clock.Now()
	res, err := p.Resolve(ctx, q)
	elapsed := clock.Since(start)

	if err != nil {
		r.observer.ObserveAttempt(name, OutcomeMiss, elapsed)
		level := slog.LevelWarn
		if errors.Is(err, ErrNoMatch) {
			level = slog.LevelDebug
		}
		r.logger.Log(ctx, level, "geocode provider miss", "provider", name, "query", q.Address, "error", err)
		return GeocodeResult{}, false
	}

	r.observer.ObserveAttempt(name, OutcomeSuccess, elapsed)
	if res.Provider == "" {
		res.Provider = name
	}
	r.logger.Debug("geocode provider hit", "provider", name, "query", q.Address)
	return res, true
}

// degradedQueries builds the simplified retries for a multi-segment address:
// the first segment with the target city, then the first segment with each
// allow-listed locality named in the remaining segments. Queries identical to
// an earlier one are dropped.
func degradedQueries(address, city string, full GeocodeQuery) []GeocodeQuery {
	segments := AddressSegments(address)
	if len(segments) <= 1 {
		return nil
	}
	street := segments[0]

	seen := map[string]bool{full.Address: true}
	var queries []GeocodeQuery
	add := func(locality string) {
		q := GeocodeQuery{Address: NormalizeAddress(street, locality), City: locality}
		if seen[q.Address] {
			return
		}
		seen[q.Address] = true
		queries = append(queries, q)
	}

	add(city)
	for _, loc := range MatchLocalities(segments[1:]) {
		add(loc.Name)
	}
	return queries
}
