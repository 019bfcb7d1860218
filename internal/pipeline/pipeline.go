package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/couchcryptid/globe-observer-qa/internal/render"
	"github.com/couchcryptid/globe-observer-qa/internal/report"
	"github.com/couchcryptid/globe-observer-qa/internal/store"
	"github.com/google/uuid"
)

// ErrNoObservations is returned when a window yields no observations at all.
var ErrNoObservations = errors.New("no observations in window")

// Source fetches the raw GeoJSON FeatureCollection for a window.
type Source interface {
	Name() string
	Fetch(ctx context.Context, w domain.Window) ([]byte, error)
}

// Cache stores parsed observations per window.
type Cache interface {
	LoadWindow(ctx context.Context, w domain.Window) ([]domain.Observation, error)
	SaveWindow(ctx context.Context, w domain.Window, obs []domain.Observation) error
}

// QualityChecker flags a batch of observations.
type QualityChecker interface {
	Check(ctx context.Context, obs []domain.Observation) ([]domain.Flagged, error)
}

// FlagPublisher ships flagged observations downstream.
type FlagPublisher interface {
	PublishFlags(ctx context.Context, runID string, flagged []domain.Flagged) (int, error)
}

// FigureRenderer draws the figures of a run.
type FigureRenderer interface {
	RenderAll(ctx context.Context, in render.Input) (render.Summary, error)
}

// ReportFormat selects how the end-of-run report is printed.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportJSON ReportFormat = "json"
)

// Options holds the optional stages. Nil fields are skipped.
type Options struct {
	Cache Cache
	// RefreshCache skips cache reads so every load hits the source. Fetched
	// observations are still written to Cache.
	RefreshCache bool
	Publisher    FlagPublisher
	Renderer     FigureRenderer
	Report       io.Writer
	ReportFormat ReportFormat
}

// Result is the outcome of one run.
type Result struct {
	RunID     string
	Window    domain.Window
	Source    string
	Dataset   domain.Dataset
	Flagged   []domain.Flagged
	Report    report.Report
	Figures   render.Summary
	Published int
	Duration  time.Duration
}

// Pipeline orchestrates load → quality check → publish → render → report.
type Pipeline struct {
	source  Source
	checker QualityChecker
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source Source, checker QualityChecker, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.ReportFormat == "" {
		opts.ReportFormat = ReportText
	}
	return &Pipeline{
		source:  source,
		checker: checker,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one full pass over the window. Publish failures are logged and
// counted but do not fail the run; load, quality check, render and report
// failures do.
func (p *Pipeline) Run(ctx context.Context, w domain.Window) (Result, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res := Result{RunID: uuid.NewString(), Window: w}
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("pipeline started", "window", w.String(), "protocols", len(w.Protocols))

	obs, source, err := p.Load(ctx, w)
	if err != nil {
		return res, err
	}
	res.Source = source
	res.Dataset = domain.BuildDataset(obs)
	logger.Info("dataset built",
		"all", len(res.Dataset.All),
		"app", len(res.Dataset.App),
		"globe", len(res.Dataset.GLOBE),
	)

	res.Flagged, err = p.checker.Check(ctx, res.Dataset.App)
	if err != nil {
		return res, err
	}
	res.Report = report.Build(w, res.Dataset, res.Flagged)

	if p.opts.Publisher != nil {
		res.Published = p.publish(ctx, logger, res.RunID, res.Flagged)
	}

	if p.opts.Renderer != nil {
		res.Figures, err = p.opts.Renderer.RenderAll(ctx, render.Input{
			Window:   w,
			Dataset:  res.Dataset,
			CrossTab: res.Report.CrossTab,
		})
		if err != nil {
			return res, fmt.Errorf("render figures: %w", err)
		}
	}

	if p.opts.Report != nil {
		if err := p.writeReport(res.Report); err != nil {
			return res, fmt.Errorf("write report: %w", err)
		}
	}

	res.Duration = time.Since(start)
	p.ready.Store(true)
	logger.Info("pipeline finished",
		"source", res.Source,
		"flagged", res.Report.FlaggedObservations,
		"published", res.Published,
		"figures", len(res.Figures.Written),
		"duration", res.Duration,
	)
	return res, nil
}

// Load returns the window's observations from the cache when present, and
// otherwise fetches and parses them from the source, caching a non-empty
// result. An empty cached window counts as a miss. The second return value
// names where the observations came from.
func (p *Pipeline) Load(ctx context.Context, w domain.Window) ([]domain.Observation, string, error) {
	if p.opts.Cache != nil && !p.opts.RefreshCache {
		obs, err := p.opts.Cache.LoadWindow(ctx, w)
		switch {
		case err == nil && len(obs) == 0:
			p.logger.Debug("cached window is empty, fetching from source", "window", w.Key())
		case err == nil:
			p.metrics.FetchRequests.WithLabelValues("cache", "success").Inc()
			p.logger.Info("observations loaded from cache", "window", w.Key(), "count", len(obs))
			return obs, "cache", nil
		case errors.Is(err, store.ErrWindowNotCached):
			p.logger.Debug("window not cached", "window", w.Key())
		default:
			p.metrics.FetchRequests.WithLabelValues("cache", "error").Inc()
			p.logger.Warn("cache read failed, fetching from source", "error", err)
		}
	}

	data, err := p.source.Fetch(ctx, w)
	if err != nil {
		return nil, p.source.Name(), fmt.Errorf("fetch from %s: %w", p.source.Name(), err)
	}
	obs, err := p.parse(data)
	if err != nil {
		return nil, p.source.Name(), err
	}

	if len(obs) == 0 {
		return nil, p.source.Name(), ErrNoObservations
	}
	if p.opts.Cache != nil {
		if err := p.opts.Cache.SaveWindow(ctx, w, obs); err != nil {
			p.logger.Warn("cache write failed", "window", w.Key(), "error", err)
		}
	}
	return obs, p.source.Name(), nil
}

func (p *Pipeline) parse(data []byte) ([]domain.Observation, error) {
	obs, stats, err := domain.ParseFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", p.source.Name(), err)
	}
	p.metrics.ObservationsParsed.Add(float64(stats.Parsed))
	for reason, n := range stats.Skipped {
		p.metrics.FeaturesSkipped.WithLabelValues(reason).Add(float64(n))
	}
	if skipped := stats.SkippedTotal(); skipped > 0 {
		p.logger.Warn("features skipped",
			"skipped", skipped,
			"features", stats.Features,
			"reasons", stats.Skipped,
		)
	}
	p.logger.Info("observations parsed", "source", p.source.Name(), "count", stats.Parsed)
	return obs, nil
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, runID string, flagged []domain.Flagged) int {
	n, err := p.opts.Publisher.PublishFlags(ctx, runID, flagged)
	if err != nil {
		logger.Error("publish flags failed", "error", err, "published", n)
	}
	return n
}

func (p *Pipeline) writeReport(r report.Report) error {
	if p.opts.ReportFormat == ReportJSON {
		return report.WriteJSON(p.opts.Report, r)
	}
	return report.Write(p.opts.Report, r)
}
