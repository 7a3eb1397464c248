package domain

import (
	"context"
	"errors"
)

// Provider names, also used as UsageTracker keys.
const (
	ProviderLocationIQ     = "locationiq"
	ProviderOpenCage       = "opencage"
	ProviderNominatim      = "nominatim"
	ProviderOpenWeatherMap = "openweathermap"
)

var (
	// ErrNoMatch reports that a provider answered but returned no candidate.
	ErrNoMatch = errors.New("no match")

	// ErrLowConfidence reports a candidate rejected as a city-centroid fallback.
	ErrLowConfidence = errors.New("low confidence match")
)

// GeocodeResult is a resolved point returned by a provider.
type GeocodeResult struct {
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	DisplayName string   `json:"display_name"`
	Confidence  *float64 `json:"confidence,omitempty"` // provider-specific scale, nil when not reported
	Provider    string   `json:"provider"`
}

// Coordinate returns the result's point.
func (r GeocodeResult) Coordinate() Coordinate {
	return Coordinate{Lat: r.Lat, Lng: r.Lng}
}

// GeocodeQuery is a single provider request. Address is already normalized;
// City is the locality the query targets and feeds centroid rejection.
type GeocodeQuery struct {
	Address string
	City    string
}

// GeocodeProvider is one third-party geocoding service in the cascade.
type GeocodeProvider interface {
	Name() string

	// Configured reports whether the provider's credentials are present.
	// Unconfigured providers are skipped without counting an attempt.
	Configured() bool

	// Resolve geocodes a normalized query. Rejected and empty candidates are
	// reported with ErrLowConfidence and ErrNoMatch.
	Resolve(ctx context.Context, q GeocodeQuery) (GeocodeResult, error)
}
