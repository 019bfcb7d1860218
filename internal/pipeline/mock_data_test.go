package pipeline_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/adapter/file"
	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/pipeline"
	"github.com/couchcryptid/globe-observer-qa/internal/render"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// samplePath is a hand-made payload in the GLOBE API GeoJSON format covering
// every protocol, a GLOBE (non-app) record and the main flag rules.
var samplePath = filepath.Join("testdata", "globe_sample.geojson")

type landEverywhere struct{}

func (landEverywhere) IsLand(_ context.Context, _, _ float64) (bool, error) { return true, nil }

func flagsByID(flagged []domain.Flagged) map[string][]string {
	out := make(map[string][]string, len(flagged))
	for _, f := range flagged {
		out[f.Observation.ID] = f.Flags
	}
	return out
}

func TestPipeline_WithSampleData(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	metrics := newTestMetrics()
	logger := slog.Default()
	src := file.NewSource(afero.NewReadOnlyFs(afero.NewOsFs()), samplePath, metrics, logger)
	outFs := afero.NewMemMapFs()
	var report bytes.Buffer

	p := pipeline.New(src, pipeline.NewChecker(landEverywhere{}, metrics, logger), pipeline.Options{
		Renderer: render.New(outFs, "out", metrics, logger),
		Report:   &report,
	}, logger, metrics)

	res, err := p.Run(context.Background(), testWindow())
	require.NoError(t, err)

	t.Run("parsing", func(t *testing.T) {
		assert.Equal(t, "file", res.Source)
		assert.Len(t, res.Dataset.All, 6)
		assert.Len(t, res.Dataset.App, 5)
		assert.Len(t, res.Dataset.GLOBE, 1)
		assert.Len(t, res.Dataset.AppCloudLand, 3)
		assert.Equal(t, 6.0, testutil.ToFloat64(metrics.ObservationsParsed))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeaturesSkipped.WithLabelValues(domain.SkipUnknownProtocol)))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeaturesSkipped.WithLabelValues(domain.SkipBadTimestamp)))
	})

	t.Run("quality flags", func(t *testing.T) {
		want := map[string][]string{
			"SC-1":  nil,
			"SC-2":  {domain.FlagDuplicate},
			"LC-1":  nil,
			"MHM-1": {domain.FlagNoPhoto, domain.FlagMidnight},
			"TH-1":  {domain.FlagBadLocation, domain.FlagNoPhoto},
		}
		if diff := cmp.Diff(want, flagsByID(res.Flagged)); diff != "" {
			t.Errorf("flags mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 3, res.Report.FlaggedObservations)
		assert.Equal(t, 5, res.Report.CrossTab.Incidences())
		assert.Equal(t, 2.0, testutil.ToFloat64(metrics.QualityFlags.WithLabelValues(domain.FlagNoPhoto)))
	})

	t.Run("statistics", func(t *testing.T) {
		s := res.Report.Stats
		assert.Equal(t, 2, s.AppPerProtocol[domain.SkyConditions])
		assert.Equal(t, 1, s.GLOBEPerProtocol[domain.SkyConditions])
		assert.InDelta(t, 6.0, s.RatioAllToGLOBE, 1e-9)
		assert.Equal(t, 12, s.AppPhotos, "6 cloud + 1 cloud + 5 land cover")
		assert.Equal(t, 1, s.AppClassified[domain.SkyConditions])
		assert.Equal(t, 1, s.AppClassified[domain.LandCovers])
		assert.Equal(t, 1, s.AppClassified[domain.MosquitoHabitatMapper])
		assert.Equal(t, 3, s.UniqueUsers)

		ps := res.Report.Photos
		assert.Equal(t, 1, ps.ByCount[6])
		assert.Equal(t, 1, ps.ByCount[5])
		assert.Equal(t, 1, ps.ByCount[1])
		assert.Equal(t, 1, ps.Omitted["Upward"])
	})

	t.Run("figures", func(t *testing.T) {
		written := make([]string, len(res.Figures.Written))
		for i, path := range res.Figures.Written {
			written[i] = filepath.Base(path)
		}
		sort.Strings(written)
		assert.Contains(t, written, render.FileHeatmapApp)
		assert.Contains(t, written, render.FileHeatmapGLOBE)
		assert.Contains(t, written, render.FileFlagsAbsolute)
		assert.Contains(t, written, render.FilePhotoOmitted)
		require.Len(t, res.Figures.Skipped, 1, "the only tree height observation has no position")
		assert.Equal(t, render.LocationsFile(domain.TreeHeights), filepath.Base(res.Figures.Skipped[0]))

		exists, err := afero.Exists(outFs, filepath.Join("out", render.ImageDir, render.FilePerDay))
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("report", func(t *testing.T) {
		out := report.String()
		assert.Contains(t, out, "2019-11-28 to 2019-12-01")
		assert.Regexp(t, `----\+ Number of GO obs flagged\s+: 3`, out)
		assert.Regexp(t, `----\+ Percent of GO observations flagged\s+: 60\.00`, out)
	})
}
