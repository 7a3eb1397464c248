//go:build live

package opencage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/order-geo-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real OpenCage API and require OPENCAGE_API_KEY.
// Run with: go test -tags=live ./internal/adapter/opencage/ -v -count=1

func TestSmoke_Resolve(t *testing.T) {
	key := os.Getenv("OPENCAGE_API_KEY")
	if key == "" {
		t.Fatal("OPENCAGE_API_KEY must be set to run smoke tests")
	}
	c := NewClient(key, "https://api.opencagedata.com", 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	res, err := c.Resolve(context.Background(), domain.GeocodeQuery{
		Address: domain.NormalizeAddress("Avenue Habib Bourguiba", "Tunis"),
		City:    "Tunis",
	})
	require.NoError(t, err)

	assert.InDelta(t, 36.80, res.Lat, 0.1)
	assert.InDelta(t, 10.18, res.Lng, 0.1)
	require.NotNil(t, res.Confidence)
	assert.Greater(t, *res.Confidence, 6.0)
}
