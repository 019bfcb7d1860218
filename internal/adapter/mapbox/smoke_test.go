//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_IsLand(t *testing.T) {
	c := smokeClient(t)

	// Washington, DC
	land, err := c.IsLand(context.Background(), 38.8977, -77.0365)
	require.NoError(t, err)
	assert.True(t, land)
}

func TestSmoke_IsLand_Pacific(t *testing.T) {
	c := smokeClient(t)

	land, err := c.IsLand(context.Background(), 0, -140)
	require.NoError(t, err)
	assert.False(t, land)
}

func TestSmoke_CachedLandChecker(t *testing.T) {
	cached := NewCachedLandChecker(smokeClient(t), 10, observability.NewMetricsForTesting())

	r1, err := cached.IsLand(context.Background(), 48.8566, 2.3522)
	require.NoError(t, err)
	r2, err := cached.IsLand(context.Background(), 48.8566, 2.3522)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, cached.Len())
}
