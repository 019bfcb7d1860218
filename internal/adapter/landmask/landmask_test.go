package landmask

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A 10°×10° island with a 2°×2° lake, plus a MultiPolygon of two small islands.
const testMask = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "island"},
     "geometry": {"type": "Polygon", "coordinates": [
       [[0,0],[10,0],[10,10],[0,10],[0,0]],
       [[4,4],[6,4],[6,6],[4,6],[4,4]]
     ]}},
    {"type": "Feature", "properties": {"name": "archipelago"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[-20,-20],[-18,-20],[-18,-18],[-20,-18],[-20,-20]]],
       [[[-30,-30],[-28,-30],[-29,-28],[-30,-30]]]
     ]}},
    {"type": "Feature", "properties": {"name": "ignored"},
     "geometry": {"type": "Point", "coordinates": [50, 50]}},
    {"type": "Feature", "properties": {}, "geometry": null}
  ]
}`

func TestMask_IsLand(t *testing.T) {
	m, err := Parse([]byte(testMask))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Polygons())

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"inside island", 2, 2, true},
		{"inside lake", 5, 5, false},
		{"lake shore", 4, 5, true},
		{"island edge", 0, 5, true},
		{"island corner", 10, 10, true},
		{"open ocean", 20, 20, false},
		{"first archipelago island", -19, -19, true},
		{"triangle island", -29.5, -29, true},
		{"outside triangle but inside its bbox", -28.2, -29.9, false},
		{"point geometry ignored", 50, 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.IsLand(context.Background(), tt.lat, tt.lon)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/land.geojson", []byte(testMask), 0o644))

	m, err := Load(fs, "/data/land.geojson")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Polygons())

	_, err = Load(fs, "/data/missing.geojson")
	require.Error(t, err)
}

func TestParse_SingleFeature(t *testing.T) {
	m, err := Parse([]byte(`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Polygons())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid json", `{`},
		{"wrong type", `{"type":"Topology"}`},
		{"no polygons", `{"type":"FeatureCollection","features":[]}`},
		{"bad coordinates", `{"type":"FeatureCollection","features":[{"geometry":{"type":"Polygon","coordinates":"x"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
