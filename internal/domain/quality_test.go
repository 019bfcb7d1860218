package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLandChecker struct {
	land  bool
	err   error
	calls int
}

func (s *stubLandChecker) IsLand(_ context.Context, _, _ float64) (bool, error) {
	s.calls++
	return s.land, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withPhoto(o Observation) Observation {
	o.PhotoURLs = map[string]string{"North": "https://data.globe.gov/n.jpg"}
	return o
}

func goodObservation() Observation {
	return withPhoto(Observation{
		ID:          "ok",
		Protocol:    SkyConditions,
		Source:      SourceApp,
		Geo:         Geo{Lat: 38.9, Lon: -77.0},
		HasPosition: true,
		MeasuredAt:  time.Date(2019, 10, 20, 14, 35, 0, 0, time.UTC),
		UserID:      1,
		HasUserID:   true,
	})
}

func TestQualityCheck_Rules(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { SetClock(nil) })

	tests := []struct {
		name   string
		mutate func(Observation) Observation
		want   []string
	}{
		{"clean", func(o Observation) Observation { return o }, nil},
		{"missing position", func(o Observation) Observation {
			o.HasPosition = false
			o.Geo = Geo{}
			return o
		}, []string{FlagBadLocation}},
		{"latitude out of range", func(o Observation) Observation {
			o.Geo.Lat = 91
			return o
		}, []string{FlagBadLocation}},
		{"null island", func(o Observation) Observation {
			o.Geo = Geo{}
			return o
		}, []string{FlagNullIsland}},
		{"no photos", func(o Observation) Observation {
			o.PhotoURLs = map[string]string{"North": ""}
			return o
		}, []string{FlagNoPhoto}},
		{"app before launch", func(o Observation) Observation {
			o.MeasuredAt = time.Date(2016, 8, 29, 12, 0, 0, 0, time.UTC)
			return o
		}, []string{FlagEarly}},
		{"globe before launch is fine", func(o Observation) Observation {
			o.Source = SourceGLOBE
			o.MeasuredAt = time.Date(2010, 5, 1, 12, 0, 0, 0, time.UTC)
			return o
		}, nil},
		{"future", func(o Observation) Observation {
			o.MeasuredAt = time.Date(2020, 1, 2, 12, 0, 0, 0, time.UTC)
			return o
		}, []string{FlagFuture}},
		{"midnight", func(o Observation) Observation {
			o.MeasuredAt = time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)
			return o
		}, []string{FlagMidnight}},
		{"several flags sorted", func(o Observation) Observation {
			o.Geo = Geo{}
			o.PhotoURLs = nil
			o.MeasuredAt = time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)
			return o
		}, []string{FlagNullIsland, FlagNoPhoto, FlagMidnight}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flagged, err := QualityCheck(context.Background(), []Observation{tt.mutate(goodObservation())}, nil, discardLogger())
			require.NoError(t, err)
			require.Len(t, flagged, 1)
			assert.Equal(t, tt.want, flagged[0].Flags)
		})
	}
}

func TestQualityCheck_Duplicates(t *testing.T) {
	a := goodObservation()
	b := goodObservation()
	b.ID = "copy"
	c := goodObservation()
	c.ID = "other-user"
	c.UserID = 2

	flagged, err := QualityCheck(context.Background(), []Observation{a, b, c}, nil, discardLogger())
	require.NoError(t, err)
	require.Len(t, flagged, 3)
	assert.Empty(t, flagged[0].Flags)
	assert.Equal(t, []string{FlagDuplicate}, flagged[1].Flags)
	assert.Empty(t, flagged[2].Flags)
}

func TestQualityCheck_LandChecker(t *testing.T) {
	t.Run("water", func(t *testing.T) {
		checker := &stubLandChecker{land: false}
		flagged, err := QualityCheck(context.Background(), []Observation{goodObservation()}, checker, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{FlagWater}, flagged[0].Flags)
		assert.Equal(t, 1, checker.calls)
	})

	t.Run("skipped for invalid position", func(t *testing.T) {
		o := goodObservation()
		o.HasPosition = false
		checker := &stubLandChecker{land: false}
		flagged, err := QualityCheck(context.Background(), []Observation{o}, checker, discardLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{FlagBadLocation}, flagged[0].Flags)
		assert.Zero(t, checker.calls)
	})

	t.Run("lookup error degrades", func(t *testing.T) {
		checker := &stubLandChecker{err: errors.New("service unavailable")}
		flagged, err := QualityCheck(context.Background(), []Observation{goodObservation(), goodObservation()}, checker, discardLogger())
		require.NoError(t, err)
		require.Len(t, flagged, 2)
		assert.False(t, flagged[0].Has(FlagWater))
		assert.Equal(t, 2, checker.calls)
	})
}

func TestQualityCheck_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := QualityCheck(ctx, []Observation{goodObservation()}, nil, discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQualityCheck_DoesNotMutateInput(t *testing.T) {
	obs := []Observation{goodObservation()}
	obs[0].PhotoURLs = nil
	before := obs[0]

	_, err := QualityCheck(context.Background(), obs, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, before, obs[0])
}

func TestFlagHelpers(t *testing.T) {
	flagged := []Flagged{
		{Observation: Observation{ID: "1"}, Flags: []string{FlagNoPhoto}},
		{Observation: Observation{ID: "2"}, Flags: []string{FlagWater, FlagNoPhoto}},
		{Observation: Observation{ID: "3"}},
		{Observation: Observation{ID: "4"}, Flags: []string{FlagDuplicate, FlagMidnight}},
	}
	for i := range flagged {
		// Flags must be sorted for Has.
		assert.IsNonDecreasing(t, flagged[i].Flags)
	}

	assert.Equal(t, map[string]int{FlagNoPhoto: 2, FlagWater: 1, FlagDuplicate: 1, FlagMidnight: 1}, FlagCounts(flagged))
	assert.Equal(t, 3, CountFlaggedObservations(flagged))

	ids := func(fs []Flagged) []string {
		out := []string{}
		for _, f := range fs {
			out = append(out, f.Observation.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1", "2"}, ids(FilterByFlags(flagged, []string{FlagNoPhoto}, nil, nil)))
	assert.Equal(t, []string{"1"}, ids(FilterByFlags(flagged, []string{FlagNoPhoto}, nil, []string{FlagWater})))
	assert.Equal(t, []string{"2", "4"}, ids(FilterByFlags(flagged, nil, []string{FlagWater, FlagDuplicate}, nil)))
	assert.Equal(t, []string{"3"}, ids(FilterByFlags(flagged, nil, nil, AllFlags)))
}
