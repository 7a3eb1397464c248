// Package openweather reports current conditions at a delivery address from
// the OpenWeatherMap API, with a time-bounded spatial cache in front of it.
package openweather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/tidwall/gjson"
)

// Client fetches current weather from the OpenWeatherMap API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client. An empty apiKey leaves the
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

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c.apiKey != "" }

// Fetch returns the classified condition at (lat, lng).
func (c *Client) Fetch(ctx context.Context, lat, lng float64) (domain.WeatherCondition, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(lng, 'f', 6, 64)},
		"appid": {c.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data/2.5/weather?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openweathermap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, gjson.GetBytes(body, "message").String())
	}
	if !gjson.ValidBytes(body) {
		return "", errors.New("decode response: invalid JSON")
	}

	group := gjson.GetBytes(body, "weather.0.main")
	if !group.Exists() {
		return "", errors.New("decode response: no weather entry")
	}
	return domain.ClassifyWeather(group.String()), nil
}
