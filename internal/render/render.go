// Package render draws the paper figures as PNG files under <output>/img.
//
// Line, bar, scatter and pie figures are drawn with go-chart. The world
// heatmaps are rasterised directly because go-chart has no 2D mesh series.
// Every renderer writes through an afero.Fs so tests run on an in-memory
// filesystem.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
	"github.com/spf13/afero"
)

// ImageDir is the sub-directory of the output directory holding the figures.
const ImageDir = "img"

// Figure file names.
const (
	FileHeatmapApp      = "fig02_go_heatmap.png"
	FileHeatmapGLOBE    = "fig02_globe_only_heatmap.png"
	FileLocations       = "fig03_go_obs_locations.png"
	FilePerDay          = "fig04_go_obs_per_day.png"
	FileDiurnal         = "fig05_go_diurnaldist_wolegend.png"
	FileDiurnalLegend   = "fig05_go_diurnaldist_wlegend.png"
	FilePhotoCount      = "fig06a_photonum_pie.png"
	FilePhotoOmitted    = "fig06b_photodiromit_pie.png"
	FileFlagsAbsolute   = "fig07a_go_qaflags_abs.png"
	FileFlagsPercent    = "fig07b_go_qaflags_percent.png"
	FileFlagsTotalShare = "fig07c_go_qaflags_totalpercent.png"
)

// LocationsFile returns the single-protocol location map file name.
func LocationsFile(p domain.Protocol) string {
	return "fig03_obs_locations_" + string(p) + ".png"
}

// Input bundles everything the figures are drawn from.
type Input struct {
	Window   domain.Window
	Dataset  domain.Dataset
	CrossTab domain.CrossTab
}

// Summary lists the figure files written and the figures skipped.
type Summary struct {
	Written []string
	Skipped []string
}

// Renderer writes figures into one output directory.
type Renderer struct {
	fs      afero.Fs
	dir     string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Renderer writing to <outputDir>/img on fs.
func New(fs afero.Fs, outputDir string, metrics *observability.Metrics, logger *slog.Logger) *Renderer {
	return &Renderer{
		fs:      fs,
		dir:     filepath.Join(outputDir, ImageDir),
		metrics: metrics,
		logger:  logger,
	}
}

// Dir returns the directory figures are written to.
func (r *Renderer) Dir() string { return r.dir }

type figureFunc func(in Input, s *Summary) error

// RenderAll draws figures 2 to 7. Figures whose input is empty are skipped
// with a warning; any other failure aborts the run.
func (r *Renderer) RenderAll(ctx context.Context, in Input) (Summary, error) {
	var s Summary
	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return s, fmt.Errorf("create image dir: %w", err)
	}
	figures := []figureFunc{
		r.heatmaps,
		r.locations,
		r.perDay,
		r.diurnal,
		r.photos,
		r.qualityFlags,
	}
	for _, fig := range figures {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if err := fig(in, &s); err != nil {
			return s, err
		}
	}
	r.logger.Info("figures rendered", "dir", r.dir, "written", len(s.Written), "skipped", len(s.Skipped))
	return s, nil
}

type drawFunc func(w io.Writer) error

// save renders one figure into memory and writes it out, so a failed render
// never leaves a truncated file behind.
func (r *Renderer) save(name string, draw drawFunc, s *Summary) error {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	path := filepath.Join(r.dir, name)
	if err := afero.WriteFile(r.fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	r.metrics.FiguresRendered.Inc()
	s.Written = append(s.Written, path)
	r.logger.Debug("figure written", "path", path, "bytes", buf.Len())
	return nil
}

func (r *Renderer) skip(name, reason string, s *Summary) {
	r.metrics.FiguresSkipped.Inc()
	s.Skipped = append(s.Skipped, name)
	r.logger.Warn("figure skipped", "figure", name, "reason", reason)
}
