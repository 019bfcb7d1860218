package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testWindow() domain.Window {
	return domain.Window{
		Protocols: []domain.Protocol{domain.SkyConditions, domain.MosquitoHabitatMapper},
		Start:     time.Date(2019, 11, 28, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2019, 12, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testObservations() []domain.Observation {
	return []domain.Observation{
		{
			ID:          "SC-1",
			Protocol:    domain.SkyConditions,
			Source:      domain.SourceApp,
			DataSource:  domain.AppDataSource,
			Geo:         domain.Geo{Lat: 38.8977, Lon: -77.0365},
			HasPosition: true,
			MeasuredAt:  time.Date(2019, 11, 28, 14, 35, 0, 500, time.UTC),
			UserID:      67328234,
			HasUserID:   true,
			PhotoURLs:   map[string]string{"North": "https://data.globe.gov/n.jpg", "East": ""},
			CloudTypes:  []string{"Cirrus", "Cumulus"},
		},
		{
			ID:            "MHM-2",
			Protocol:      domain.MosquitoHabitatMapper,
			Source:        domain.SourceGLOBE,
			DataSource:    "GLOBE Data Entry Web Forms",
			MeasuredAt:    time.Date(2019, 11, 30, 0, 0, 0, 0, time.UTC),
			MosquitoGenus: "Aedes",
		},
	}
}

func TestStore_SaveAndLoadWindow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	w := testWindow()

	has, err := s.HasWindow(ctx, w)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SaveWindow(ctx, w, testObservations()))

	has, err = s.HasWindow(ctx, w)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := s.LoadWindow(ctx, w)
	require.NoError(t, err)
	if diff := cmp.Diff(testObservations(), got); diff != "" {
		t.Errorf("LoadWindow mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveWindowReplaces(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	w := testWindow()

	require.NoError(t, s.SaveWindow(ctx, w, testObservations()))
	require.NoError(t, s.SaveWindow(ctx, w, testObservations()[:1]))

	got, err := s.LoadWindow(ctx, w)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SC-1", got[0].ID)
}

func TestStore_EmptyWindow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	w := testWindow()

	require.NoError(t, s.SaveWindow(ctx, w, nil))
	got, err := s.LoadWindow(ctx, w)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_LoadWindowNotCached(t *testing.T) {
	s := openTestStore(t)

	other := testWindow()
	other.End = other.End.AddDate(0, 0, 1)
	require.NoError(t, s.SaveWindow(context.Background(), testWindow(), testObservations()))

	_, err := s.LoadWindow(context.Background(), other)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWindowNotCached)
}

func TestStore_CheckReadiness(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.CheckReadiness(context.Background()))
}
