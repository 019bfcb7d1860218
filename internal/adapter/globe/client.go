// Package globe downloads observation payloads from the GLOBE API.
package globe

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultBaseURL is the public GLOBE API host.
const DefaultBaseURL = "https://api.globe.gov"

const searchPath = "/search/v1/measurement/protocol/measureddate/"

// ErrInvalidPayload is returned when the response body does not look like a
// GeoJSON FeatureCollection of GLOBE measurements.
var ErrInvalidPayload = errors.New("invalid GLOBE API payload")

//go:embed schema/feature_collection.json
var featureCollectionSchema []byte

// Client downloads measurements with retries and checks the payload shape.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxRetryTime time.Duration
	initialRetry time.Duration
	schema       *gojsonschema.Schema
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a GLOBE API client. timeout bounds a single request;
// maxRetryTime bounds the whole download including backoff.
func NewClient(baseURL string, timeout, maxRetryTime time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(featureCollectionSchema))
	if err != nil {
		return nil, fmt.Errorf("load payload schema: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		maxRetryTime: maxRetryTime,
		initialRetry: 500 * time.Millisecond,
		schema:       schema,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Name identifies the source in logs and metrics.
func (c *Client) Name() string { return "api" }

// Fetch downloads the window's measurements.
func (c *Client) Fetch(ctx context.Context, w domain.Window) ([]byte, error) {
	return c.Download(ctx, w.Protocols, w.Start, w.End)
}

// Download requests all measurements of the given protocols measured between
// start and end (inclusive dates) as GeoJSON. Transport errors and 5xx
// responses are retried with exponential backoff; 4xx responses are not.
func (c *Client) Download(ctx context.Context, protocols []domain.Protocol, start, end time.Time) ([]byte, error) {
	u := c.searchURL(protocols, start, end)
	begin := time.Now()

	body, err := c.getWithRetry(ctx, u)
	c.metrics.FetchDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(c.Name(), "error").Inc()
		return nil, err
	}

	if err := c.validate(body); err != nil {
		c.metrics.FetchRequests.WithLabelValues(c.Name(), "error").Inc()
		return nil, err
	}

	c.metrics.FetchRequests.WithLabelValues(c.Name(), "success").Inc()
	c.logger.Info("downloaded observations",
		"protocols", len(protocols),
		"start", start.Format(domain.DateLayout),
		"end", end.Format(domain.DateLayout),
		"bytes", len(body),
		"duration", time.Since(begin),
	)
	return body, nil
}

func (c *Client) searchURL(protocols []domain.Protocol, start, end time.Time) string {
	params := url.Values{}
	for _, p := range protocols {
		params.Add("protocols", string(p))
	}
	params.Set("startdate", start.Format(domain.DateLayout))
	params.Set("enddate", end.Format(domain.DateLayout))
	params.Set("geojson", "TRUE")
	params.Set("sample", "FALSE")
	return c.baseURL + searchPath + "?" + params.Encode()
}

func (c *Client) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	strategy := backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     c.initialRetry,
		RandomizationFactor: 0.5,
		Multiplier:          1.5,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      c.maxRetryTime,
		Clock:               backoff.SystemClock,
	}, ctx)

	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		b, err := c.get(ctx, u)
		if err != nil {
			c.logger.Debug("globe api request failed", "attempt", attempt, "error", err)
			return err
		}
		body = b
		return nil
	}, strategy)
	if err != nil {
		return nil, fmt.Errorf("globe api download: %w", err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	// Give up right away on client errors, except rate limiting.
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("status %d (client error): %s", resp.StatusCode, msg))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) validate(body []byte) error {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if result.Valid() {
		return nil
	}
	errs := result.Errors()
	msgs := make([]string, 0, 3)
	for i, e := range errs {
		if i == 3 {
			break
		}
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %d schema errors: %s", ErrInvalidPayload, len(errs), strings.Join(msgs, "; "))
}
