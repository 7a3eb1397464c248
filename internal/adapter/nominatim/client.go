// Package nominatim implements the final, free stage of the geocoding cascade
// against an OpenStreetMap Nominatim instance.
package nominatim

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
	"golang.org/x/time/rate"
)

// sendMargin pads the limiter interval so that scheduling jitter between the
// token reservation and the actual send never lands two requests closer than
// minInterval at the server.
const sendMargin = 25 * time.Millisecond

// Client implements domain.GeocodeProvider using the Nominatim search API.
// All requests through one Client share a single token bucket so the
// aggregate rate never exceeds one request per minInterval.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. userAgent is mandatory under the
// public instance usage policy.
func NewClient(baseURL, userAgent string, minInterval, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(minInterval+sendMargin), 1),
		logger:  logger,
	}
}

func (c *Client) Name() string { return domain.ProviderNominatim }

// Configured needs only a base URL; Nominatim takes no credentials.
func (c *Client) Configured() bool { return c.baseURL != "" }

// Resolve forward-geocodes q, restricted to Tunisia. It blocks until the rate
// limiter admits the request or ctx is done.
func (c *Client) Resolve(ctx context.Context, q domain.GeocodeQuery) (domain.GeocodeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("nominatim rate limit wait: %w", err)
	}

	params := url.Values{
		"q":              {q.Address},
		"format":         {"json"},
		"limit":          {"1"},
		"countrycodes":   {"tn"},
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodeResult{}, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.GeocodeResult{}, domain.ErrNoMatch
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	return domain.GeocodeResult{
		Lat:         lat,
		Lng:         lng,
		DisplayName: p.DisplayName,
		Provider:    domain.ProviderNominatim,
	}, nil
}

// Nominatim API response types.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
