package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/order-geo-service/internal/adapter/http"
	"github.com/couchcryptid/order-geo-service/internal/adapter/usage"
	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/couchcryptid/order-geo-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockGeocoder struct {
	result  domain.GeocodeResult
	ok      bool
	address string
	city    string
	calls   int
}

func (m *mockGeocoder) Geocode(_ context.Context, address, city string) (domain.GeocodeResult, bool) {
	m.calls++
	m.address, m.city = address, city
	return m.result, m.ok
}

type testEnv struct {
	srv      *httpadapter.Server
	geocoder *mockGeocoder
	usage    *usage.MemoryStore
	metrics  *observability.Metrics
}

var now = time.Date(2024, 4, 26, 10, 30, 0, 0, time.UTC)

func newTestEnv(readyErr error) *testEnv {
	env := &testEnv{
		geocoder: &mockGeocoder{},
		usage:    usage.NewMemoryStore(),
		metrics:  observability.NewMetricsForTesting(),
	}
	env.srv = httpadapter.NewServer(":0", httpadapter.Deps{
		Geocoder:  env.geocoder,
		Estimator: domain.NewOrderEstimator(nil, time.UTC),
		Usage:     env.usage,
		Ready:     &mockReadiness{err: readyErr},
		Metrics:   env.metrics,
		Providers: []string{domain.ProviderLocationIQ, domain.ProviderOpenCage, domain.ProviderNominatim},
		Clock:     clockwork.NewFakeClockAt(now),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return env
}

func (env *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	rec := newTestEnv(nil).do(http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := newTestEnv(nil).do(http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := newTestEnv(fmt.Errorf("usage: connection refused")).do(http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "usage: connection refused", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newTestEnv(nil).do(http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()

	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestGeocode_Resolved(t *testing.T) {
	env := newTestEnv(nil)
	confidence := 9.0
	env.geocoder.ok = true
	env.geocoder.result = domain.GeocodeResult{
		Lat: 36.8, Lng: 10.18, DisplayName: "Rue de Marseille, Tunis", Confidence: &confidence, Provider: domain.ProviderOpenCage,
	}

	rec := env.do(http.MethodPost, "/v1/geocode", `{"address":"12 Rue de Marseille","city":"Tunis"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["resolved"])
	assert.Equal(t, 36.8, body["lat"])
	assert.Equal(t, 10.18, body["lng"])
	assert.Equal(t, "Rue de Marseille, Tunis", body["display_name"])
	assert.Equal(t, 9.0, body["confidence"])
	assert.Equal(t, "opencage", body["provider"])
	assert.Equal(t, "12 Rue de Marseille", env.geocoder.address)
	assert.Equal(t, "Tunis", env.geocoder.city)
}

func TestGeocode_Unresolved(t *testing.T) {
	env := newTestEnv(nil)

	rec := env.do(http.MethodPost, "/v1/geocode", `{"address":"nowhere"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"resolved": false}, decode(t, rec))
}

func TestGeocode_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"address":`, "invalid_json"},
		{"blank address", `{"address":"   "}`, "invalid_request"},
		{"missing address", `{"city":"Tunis"}`, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(nil)
			rec := env.do(http.MethodPost, "/v1/geocode", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errBody, _ := decode(t, rec)["error"].(map[string]any)
			assert.Equal(t, tt.code, errBody["code"])
			assert.Zero(t, env.geocoder.calls)
		})
	}
}

func TestEstimate_Delivery(t *testing.T) {
	env := newTestEnv(nil)

	// 2 km due north of the restaurant, Friday 12:30, rain.
	rec := env.do(http.MethodPost, "/v1/estimate", `{
		"restaurant": {"lat": 36.8065, "lng": 10.1815},
		"customer": {"lat": 36.824486, "lng": 10.1815},
		"order_type": "delivery",
		"cart_item_count": 2,
		"timestamp": "2024-04-26T12:30:00Z",
		"weather": "rain"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 15.0, body["prep_time"])
	assert.Equal(t, 18.0, body["travel_time"])
	assert.Equal(t, 33.0, body["total_time"])
	assert.Equal(t, "low", body["confidence"])
	assert.Equal(t, map[string]any{"min": 26.0, "max": 40.0}, body["range"])
	assert.Equal(t, "26-40 min", body["display"])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Estimates.WithLabelValues("delivery", "low")))
}

func TestEstimate_Pickup(t *testing.T) {
	env := newTestEnv(nil)

	rec := env.do(http.MethodPost, "/v1/estimate",
		`{"order_type":"pickup","cart_item_count":5,"timestamp":"2024-04-26T10:00:00Z"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 20.0, body["total_time"])
	assert.Equal(t, "high", body["confidence"])
	assert.Equal(t, map[string]any{"min": 15.0, "max": 25.0}, body["range"])
	assert.Equal(t, "20 min", body["display"])
}

func TestEstimate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"unknown order type", `{"order_type":"dine-in"}`},
		{"negative cart", `{"order_type":"pickup","cart_item_count":-1}`},
		{"unknown weather", `{"order_type":"pickup","weather":"snow"}`},
		{"delivery without points", `{"order_type":"delivery"}`},
		{"latitude out of range", `{"order_type":"delivery","restaurant":{"lat":95,"lng":10},"customer":{"lat":36,"lng":10}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestEnv(nil).do(http.MethodPost, "/v1/estimate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUsage_DefaultsToToday(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	require.NoError(t, env.usage.RecordAttempt(ctx, domain.ProviderOpenCage, now))
	require.NoError(t, env.usage.RecordAttempt(ctx, domain.ProviderOpenCage, now))
	require.NoError(t, env.usage.RecordAttempt(ctx, domain.ProviderNominatim, now.AddDate(0, 0, -1)))

	rec := env.do(http.MethodGet, "/v1/usage", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Day       string                       `json:"day"`
		Providers []domain.ProviderUsageRecord `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-04-26", body.Day)
	assert.Equal(t, []domain.ProviderUsageRecord{
		{Provider: domain.ProviderLocationIQ, Day: "2024-04-26", Count: 0},
		{Provider: domain.ProviderOpenCage, Day: "2024-04-26", Count: 2},
		{Provider: domain.ProviderNominatim, Day: "2024-04-26", Count: 0},
	}, body.Providers)
}

func TestUsage_ExplicitDay(t *testing.T) {
	env := newTestEnv(nil)
	require.NoError(t, env.usage.RecordAttempt(context.Background(), domain.ProviderNominatim, now.AddDate(0, 0, -1)))

	rec := env.do(http.MethodGet, "/v1/usage?day=2024-04-25", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `{"provider":"nominatim","day":"2024-04-25","count":1}`)
}

func TestUsage_InvalidDay(t *testing.T) {
	rec := newTestEnv(nil).do(http.MethodGet, "/v1/usage?day=26/04/2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := newTestEnv(nil).do(http.MethodGet, "/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
