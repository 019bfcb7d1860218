package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/spf13/cast"
)

// Land checker sources accepted by LAND_SOURCE.
const (
	LandSourceNone    = "none"
	LandSourceGeoJSON = "geojson"
	LandSourceMapbox  = "mapbox"
)

// Config holds all run settings, populated from environment variables.
type Config struct {
	// GLOBE API fetch window.
	GlobeAPIURL       string
	Protocols         []domain.Protocol
	StartDate         time.Time
	EndDate           time.Time
	GlobeTimeout      time.Duration
	GlobeMaxRetryTime time.Duration

	// InputPath replaces the API download with a local file or an s3:// object.
	InputPath   string
	OutputDir   string
	CacheDBPath string

	// Land checking for the water flag.
	LandSource      string
	LandGeoJSONPath string
	MapboxToken     string
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	AWSRegion string

	// Flag publishing is enabled when KafkaBrokers is non-empty.
	KafkaBrokers    []string
	KafkaFlagsTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	protocols, err := domain.ParseProtocols(sharedcfg.EnvOrDefault("GLOBE_PROTOCOLS", defaultProtocols()))
	if err != nil {
		return nil, fmt.Errorf("invalid GLOBE_PROTOCOLS: %w", err)
	}
	start, err := domain.ParseDate(sharedcfg.EnvOrDefault("GLOBE_START_DATE", "2019-11-28"))
	if err != nil {
		return nil, fmt.Errorf("invalid GLOBE_START_DATE: %w", err)
	}
	end, err := domain.ParseDate(sharedcfg.EnvOrDefault("GLOBE_END_DATE", "2019-12-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid GLOBE_END_DATE: %w", err)
	}

	globeTimeout, err := parsePositiveDuration("GLOBE_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	maxRetry, err := parsePositiveDuration("GLOBE_MAX_RETRY_TIME", "2m")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		GlobeAPIURL:       strings.TrimRight(sharedcfg.EnvOrDefault("GLOBE_API_URL", "https://api.globe.gov"), "/"),
		Protocols:         protocols,
		StartDate:         start,
		EndDate:           end,
		GlobeTimeout:      globeTimeout,
		GlobeMaxRetryTime: maxRetry,

		InputPath:   os.Getenv("INPUT_PATH"),
		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		CacheDBPath: os.Getenv("CACHE_DB_PATH"),

		LandSource:      strings.ToLower(sharedcfg.EnvOrDefault("LAND_SOURCE", LandSourceNone)),
		LandGeoJSONPath: os.Getenv("LAND_GEOJSON_PATH"),
		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		AWSRegion: sharedcfg.EnvOrDefault("AWS_REGION", "us-east-1"),

		KafkaFlagsTopic: strings.TrimSpace(sharedcfg.EnvOrDefault("KAFKA_FLAGS_TOPIC", "globe-quality-flags")),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It runs again after command line
// flags override the environment.
func (c *Config) Validate() error {
	if err := c.Window().Validate(); err != nil {
		return fmt.Errorf("invalid fetch window: %w", err)
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	switch c.LandSource {
	case LandSourceNone:
	case LandSourceGeoJSON:
		if c.LandGeoJSONPath == "" {
			return errors.New("LAND_SOURCE is geojson but LAND_GEOJSON_PATH is not set")
		}
	case LandSourceMapbox:
		if c.MapboxToken == "" {
			return errors.New("LAND_SOURCE is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("invalid LAND_SOURCE %q (want none, geojson or mapbox)", c.LandSource)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaFlagsTopic == "" {
		return errors.New("KAFKA_FLAGS_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// Window returns the configured fetch window.
func (c *Config) Window() domain.Window {
	return domain.Window{Protocols: c.Protocols, Start: c.StartDate, End: c.EndDate}
}

// PublishEnabled reports whether flagged observations go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

func defaultProtocols() string {
	names := make([]string, len(domain.AllProtocols))
	for i, p := range domain.AllProtocols {
		names[i] = string(p)
	}
	return strings.Join(names, ",")
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseMapboxCacheSize() int {
	if n, err := cast.ToIntE(os.Getenv("MAPBOX_CACHE_SIZE")); err == nil && n > 0 {
		return n
	}
	return 1000
}
