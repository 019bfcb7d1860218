package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/couchcryptid/globe-observer-qa/internal/adapter/file"
	"github.com/couchcryptid/globe-observer-qa/internal/adapter/globe"
	kafkaadapter "github.com/couchcryptid/globe-observer-qa/internal/adapter/kafka"
	"github.com/couchcryptid/globe-observer-qa/internal/adapter/landmask"
	"github.com/couchcryptid/globe-observer-qa/internal/adapter/mapbox"
	s3adapter "github.com/couchcryptid/globe-observer-qa/internal/adapter/s3"
	"github.com/couchcryptid/globe-observer-qa/internal/config"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/pipeline"
	"github.com/couchcryptid/globe-observer-qa/internal/render"
	"github.com/couchcryptid/globe-observer-qa/internal/store"
)

// stages selects the optional pipeline stages of a command.
type stages struct {
	render  bool
	publish bool
	report  io.Writer
	format  pipeline.ReportFormat
	// refresh fetches from the source on every run and only writes the cache.
	refresh bool
}

// cleanups releases resources in reverse order of acquisition.
type cleanups []func()

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// buildSource picks where the payload comes from: an s3:// object, a local
// file, or the GLOBE API. Only the API is fronted by the SQLite cache, since
// a saved payload is already local.
func (a *app) buildSource(ctx context.Context) (pipeline.Source, pipeline.Cache, cleanups, error) {
	var done cleanups
	switch {
	case s3adapter.IsURI(a.cfg.InputPath):
		sess, err := s3adapter.NewSession(a.cfg.AWSRegion)
		if err != nil {
			return nil, nil, done, err
		}
		return s3adapter.NewSource(sess, a.cfg.InputPath, a.metrics, a.logger), nil, done, nil
	case a.cfg.InputPath != "":
		return file.NewSource(a.fs, a.cfg.InputPath, a.metrics, a.logger), nil, done, nil
	}

	client, err := globe.NewClient(a.cfg.GlobeAPIURL, a.cfg.GlobeTimeout, a.cfg.GlobeMaxRetryTime, a.metrics, a.logger)
	if err != nil {
		return nil, nil, done, err
	}
	if a.cfg.CacheDBPath == "" {
		return client, nil, done, nil
	}
	st, err := store.Open(ctx, a.cfg.CacheDBPath)
	if err != nil {
		return nil, nil, done, err
	}
	done = append(done, func() {
		if err := st.Close(); err != nil {
			a.logger.Error("cache close error", "error", err)
		}
	})
	a.logger.Info("observation cache enabled", "path", a.cfg.CacheDBPath)
	return client, st, done, nil
}

// buildLandChecker returns nil when LAND_SOURCE is none, which turns the
// water rule off.
func (a *app) buildLandChecker() (domain.LandChecker, error) {
	switch a.cfg.LandSource {
	case config.LandSourceGeoJSON:
		mask, err := landmask.Load(a.fs, a.cfg.LandGeoJSONPath)
		if err != nil {
			return nil, err
		}
		a.logger.Info("land mask loaded", "path", a.cfg.LandGeoJSONPath, "polygons", mask.Polygons())
		return mask, nil
	case config.LandSourceMapbox:
		client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
		a.logger.Info("mapbox land check enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)
		return mapbox.NewCachedLandChecker(client, a.cfg.MapboxCacheSize, a.metrics), nil
	default:
		a.logger.Info("land check disabled")
		return nil, nil
	}
}

// newPipeline wires a pipeline for the configured source and the requested
// stages. The returned cleanups must run once the pipeline is no longer used.
func (a *app) newPipeline(ctx context.Context, st stages) (*pipeline.Pipeline, cleanups, error) {
	source, cache, done, err := a.buildSource(ctx)
	if err != nil {
		return nil, done, err
	}
	land, err := a.buildLandChecker()
	if err != nil {
		return nil, done, err
	}

	opts := pipeline.Options{Cache: cache, RefreshCache: st.refresh, Report: st.report, ReportFormat: st.format}
	if st.render {
		opts.Renderer = render.New(a.fs, a.cfg.OutputDir, a.metrics, a.logger)
	}
	if st.publish && a.cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(a.cfg, a.metrics, a.logger)
		opts.Publisher = writer
		done = append(done, func() {
			if err := writer.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		})
		a.logger.Info("flag publishing enabled", "brokers", a.cfg.KafkaBrokers, "topic", a.cfg.KafkaFlagsTopic)
	}

	checker := pipeline.NewChecker(land, a.metrics, a.logger)
	return pipeline.New(source, checker, opts, a.logger, a.metrics), done, nil
}

func parseFormat(s string) (pipeline.ReportFormat, error) {
	switch f := pipeline.ReportFormat(s); f {
	case pipeline.ReportText, pipeline.ReportJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid --format %q (want text or json)", s)
	}
}
