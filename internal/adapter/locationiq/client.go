// Package locationiq implements the first stage of the geocoding cascade
// against the LocationIQ search API.
package locationiq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
)

// minImportance is the importance below which a city-named result is treated
// as a centroid fallback.
const minImportance = 0.2

// Client implements domain.GeocodeProvider using the LocationIQ search API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a LocationIQ geocoding client. An empty apiKey leaves the
// client unconfigured.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

func (c *Client) Name() string     { return domain.ProviderLocationIQ }
func (c *Client) Configured() bool { return c.apiKey != "" }

// Resolve forward-geocodes q, restricted to Tunisia.
func (c *Client) Resolve(ctx context.Context, q domain.GeocodeQuery) (domain.GeocodeResult, error) {
	params := url.Values{
		"key":          {c.apiKey},
		"q":            {q.Address},
		"format":       {"json"},
		"limit":        {"1"},
		"countrycodes": {"tn"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("locationiq request: %w", err)
	}
	defer resp.Body.Close()

	// LocationIQ answers 404 {"error":"Unable to geocode"} for an empty result set.
	if resp.StatusCode == http.StatusNotFound {
		return domain.GeocodeResult{}, domain.ErrNoMatch
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodeResult{}, fmt.Errorf("locationiq API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.GeocodeResult{}, domain.ErrNoMatch
	}

	p := places[0]
	if p.Importance < minImportance && domain.HasLocalityPrefix(p.DisplayName, q.City) {
		c.logger.Debug("locationiq centroid rejected",
			"query", q.Address, "display_name", p.DisplayName, "importance", p.Importance)
		return domain.GeocodeResult{}, fmt.Errorf("locationiq importance %.2f: %w", p.Importance, domain.ErrLowConfidence)
	}

	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	importance := p.Importance
	return domain.GeocodeResult{
		Lat:         lat,
		Lng:         lng,
		DisplayName: p.DisplayName,
		Confidence:  &importance,
		Provider:    domain.ProviderLocationIQ,
	}, nil
}

// LocationIQ API response types. Coordinates are encoded as strings.

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
}
