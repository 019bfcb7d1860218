package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func obsOf(id string, p Protocol, src Source) Observation {
	return Observation{ID: id, Protocol: p, Source: src}
}

func ids(obs []Observation) []string {
	out := make([]string, 0, len(obs))
	for _, o := range obs {
		out = append(out, o.ID)
	}
	return out
}

func TestPredicates(t *testing.T) {
	app := obsOf("a", SkyConditions, SourceApp)
	web := obsOf("b", LandCovers, SourceGLOBE)

	assert.True(t, FromApp(app))
	assert.False(t, FromApp(web))
	assert.True(t, Not(FromApp)(web))
	assert.True(t, And(FromApp, OfProtocol(SkyConditions))(app))
	assert.False(t, And(FromApp, OfProtocol(LandCovers))(app))
	assert.True(t, And()(web))
}

func TestBuildDataset(t *testing.T) {
	obs := []Observation{
		obsOf("1", SkyConditions, SourceApp),
		obsOf("2", SkyConditions, SourceGLOBE),
		obsOf("3", LandCovers, SourceApp),
		obsOf("4", MosquitoHabitatMapper, SourceApp),
		obsOf("5", TreeHeights, SourceGLOBE),
	}
	snapshot := append([]Observation(nil), obs...)

	ds := BuildDataset(obs)

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(ds.All))
	assert.Equal(t, []string{"1", "3", "4"}, ids(ds.App))
	assert.Equal(t, []string{"2", "5"}, ids(ds.GLOBE))
	assert.Equal(t, []string{"1", "3"}, ids(ds.AppCloudLand))
	assert.Equal(t, []string{"1", "2"}, ids(ds.AllClouds))
	assert.Equal(t, []string{"4"}, ids(ds.AppByProtocol[MosquitoHabitatMapper]))
	assert.Empty(t, ds.AppByProtocol[TreeHeights])
	assert.Equal(t, []string{"5"}, ids(ds.GLOBEByProtocol[TreeHeights]))
	assert.Len(t, ds.AppByProtocol, len(AllProtocols))
	assert.Equal(t, snapshot, obs)
}

func TestBuildDataset_Empty(t *testing.T) {
	ds := BuildDataset(nil)
	assert.Empty(t, ds.All)
	assert.Empty(t, ds.App)
	assert.Len(t, ds.GLOBEByProtocol, len(AllProtocols))
}
