// Package opencage implements the OpenCage stage of the geocoding cascade,
// including the provider used by the degrading fallback.
package opencage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/tidwall/gjson"
)

// maxRejectedConfidence is the highest OpenCage confidence (1-10) at which a
// city- or state-level result is treated as a centroid fallback.
const maxRejectedConfidence = 6

var centroidTypes = map[string]bool{"city": true, "state": true}

// Client implements domain.GeocodeProvider using the OpenCage geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an OpenCage geocoding client. An empty apiKey leaves the
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

func (c *Client) Name() string     { return domain.ProviderOpenCage }
func (c *Client) Configured() bool { return c.apiKey != "" }

// Resolve forward-geocodes q, restricted to Tunisia.
func (c *Client) Resolve(ctx context.Context, q domain.GeocodeQuery) (domain.GeocodeResult, error) {
	params := url.Values{
		"q":              {q.Address},
		"key":            {c.apiKey},
		"countrycode":    {"tn"},
		"limit":          {"1"},
		"no_annotations": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/geocode/v1/json?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("opencage request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.GeocodeResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "status.message").String()
		return domain.GeocodeResult{}, fmt.Errorf("opencage API error: status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return domain.GeocodeResult{}, errors.New("decode response: invalid JSON")
	}

	first := gjson.GetBytes(body, "results.0")
	if !first.Exists() {
		return domain.GeocodeResult{}, domain.ErrNoMatch
	}

	geometry := first.Get("geometry")
	if !geometry.Get("lat").Exists() || !geometry.Get("lng").Exists() {
		return domain.GeocodeResult{}, errors.New("decode response: result without geometry")
	}

	confidence := first.Get("confidence").Float()
	kind := first.Get("components._type").String()
	if confidence <= maxRejectedConfidence && centroidTypes[kind] {
		c.logger.Debug("opencage centroid rejected",
			"query", q.Address, "type", kind, "confidence", confidence)
		return domain.GeocodeResult{}, fmt.Errorf("opencage %s result with confidence %.0f: %w", kind, confidence, domain.ErrLowConfidence)
	}

	return domain.GeocodeResult{
		Lat:         geometry.Get("lat").Float(),
		Lng:         geometry.Get("lng").Float(),
		DisplayName: first.Get("formatted").String(),
		Confidence:  &confidence,
		Provider:    domain.ProviderOpenCage,
	}, nil
}
