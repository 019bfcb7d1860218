// Package mapbox decides land versus water with the Mapbox reverse geocoding API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/observability"
)

// Client implements domain.LandChecker. A point is on land when a country
// feature exists at it; the API returns no country for open water.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox land check client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

// IsLand reverse geocodes the point restricted to country features.
func (c *Client) IsLand(ctx context.Context, lat, lon float64) (bool, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	params := url.Values{
		"access_token": {c.token},
		"types":        {"country"},
		"limit":        {"1"},
	}
	u := fmt.Sprintf("%s/%s.json?%s", c.baseURL, coord, params.Encode())

	start := time.Now()
	resp, err := c.doRequest(ctx, u)
	c.metrics.LandCheckDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.LandCheckRequests.WithLabelValues("error").Inc()
		return false, err
	}

	if len(resp.Features) == 0 {
		c.metrics.LandCheckRequests.WithLabelValues("water").Inc()
		c.logger.Debug("no country at point", "lat", lat, "lon", lon)
		return false, nil
	}
	c.metrics.LandCheckRequests.WithLabelValues("land").Inc()
	return true, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return response{}, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return mapboxResp, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	PlaceName  string   `json:"place_name"`
	PlaceType  []string `json:"place_type"`
	Properties struct {
		ShortCode string `json:"short_code"`
	} `json:"properties"`
}
