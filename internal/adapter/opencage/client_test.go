package opencage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-key"

func testClient(baseURL string) *Client {
	return NewClient(testKey, baseURL, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serveBody(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func result(confidence int, kind string) string {
	return `{"results":[{"confidence":` + strconv.Itoa(confidence) + `,"formatted":"Avenue Habib Bourguiba, Tunis, Tunisia",` +
		`"geometry":{"lat":36.7998,"lng":10.1866},"components":{"_type":"` + kind + `","city":"Tunis"}}],` +
		`"status":{"code":200,"message":"OK"},"total_results":1}`
}

func TestClient_Resolve_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geocode/v1/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, testKey, q.Get("key"))
		assert.Equal(t, "Avenue Habib Bourguiba, Tunis, Tunisia", q.Get("q"))
		assert.Equal(t, "tn", q.Get("countrycode"))
		assert.Equal(t, "1", q.Get("limit"))
		_, _ = w.Write([]byte(result(9, "road")))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Resolve(context.Background(),
		domain.GeocodeQuery{Address: "Avenue Habib Bourguiba, Tunis, Tunisia", City: "Tunis"})
	require.NoError(t, err)

	assert.InDelta(t, 36.7998, res.Lat, 1e-9)
	assert.InDelta(t, 10.1866, res.Lng, 1e-9)
	assert.Equal(t, "Avenue Habib Bourguiba, Tunis, Tunisia", res.DisplayName)
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 9.0, *res.Confidence)
	assert.Equal(t, domain.ProviderOpenCage, res.Provider)
}

func TestClient_Resolve_CentroidRejection(t *testing.T) {
	tests := []struct {
		name       string
		confidence int
		kind       string
		rejected   bool
	}{
		{"low confidence city", 5, "city", true},
		{"boundary confidence city", 6, "city", true},
		{"low confidence state", 2, "state", true},
		{"confident city", 7, "city", false},
		{"low confidence road", 3, "road", false},
		{"low confidence building", 6, "building", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveBody(t, http.StatusOK, result(tt.confidence, tt.kind))

			_, err := testClient(srv.URL).Resolve(context.Background(), domain.GeocodeQuery{Address: "x", City: "Tunis"})
			if tt.rejected {
				assert.ErrorIs(t, err, domain.ErrLowConfidence)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_Resolve_NoResults(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{"results":[],"status":{"code":200,"message":"OK"},"total_results":0}`)

	_, err := testClient(srv.URL).Resolve(context.Background(), domain.GeocodeQuery{Address: "x"})
	assert.ErrorIs(t, err, domain.ErrNoMatch)
}

func TestClient_Resolve_QuotaExceeded(t *testing.T) {
	srv := serveBody(t, http.StatusPaymentRequired, `{"results":[],"status":{"code":402,"message":"quota exceeded"}}`)

	_, err := testClient(srv.URL).Resolve(context.Background(), domain.GeocodeQuery{Address: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402: quota exceeded")
}

func TestClient_Resolve_InvalidJSON(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{"results":[`)

	_, err := testClient(srv.URL).Resolve(context.Background(), domain.GeocodeQuery{Address: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Resolve_MissingGeometry(t *testing.T) {
	srv := serveBody(t, http.StatusOK, `{"results":[{"confidence":9,"formatted":"Rue X"}]}`)

	_, err := testClient(srv.URL).Resolve(context.Background(), domain.GeocodeQuery{Address: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry")
}

func TestClient_Configured(t *testing.T) {
	assert.True(t, testClient("http://unused").Configured())
	assert.False(t, NewClient("", "http://unused", time.Second, slog.Default()).Configured())
}
