package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocols(t *testing.T) {
	ps, err := ParseProtocols(" sky_conditions, tree_heights ,")
	require.NoError(t, err)
	assert.Equal(t, []Protocol{SkyConditions, TreeHeights}, ps)

	_, err = ParseProtocols("sky_conditions,clouds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clouds")

	_, err = ParseProtocols(" , ")
	require.Error(t, err)
}

func TestWindow(t *testing.T) {
	start, err := ParseDate("2019-11-28")
	require.NoError(t, err)
	end, err := ParseDate("2019-12-01")
	require.NoError(t, err)

	w := Window{Protocols: []Protocol{SkyConditions, LandCovers}, Start: start, End: end}
	require.NoError(t, w.Validate())
	assert.Equal(t, "sky_conditions,land_covers|2019-11-28|2019-12-01", w.Key())
	assert.Equal(t, "2019-11-28 to 2019-12-01", w.String())

	reversed := Window{Protocols: w.Protocols, Start: end, End: start}
	assert.Error(t, reversed.Validate())
	assert.Error(t, Window{Start: start, End: end}.Validate())

	_, err = ParseDate("28/11/2019")
	assert.Error(t, err)
}
