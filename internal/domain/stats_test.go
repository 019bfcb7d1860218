package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userObs(user int64, p Protocol, at time.Time) Observation {
	return Observation{Protocol: p, Source: SourceApp, UserID: user, HasUserID: true, MeasuredAt: at}
}

func TestComputeStats_Counts(t *testing.T) {
	sky := userObs(1, SkyConditions, date(2019, 1, 1))
	sky.PhotoURLs = map[string]string{"North": "n", "East": "", "Upward": "u"}
	sky.CloudTypes = []string{"Cirrus"}
	lc := userObs(2, LandCovers, date(2019, 1, 2))
	lc.MucCode = "M42"
	mhm := userObs(2, MosquitoHabitatMapper, date(2019, 1, 2))
	web := Observation{Protocol: TreeHeights, Source: SourceGLOBE, PhotoURLs: map[string]string{"North": "n"}}

	s := ComputeStats(BuildDataset([]Observation{sky, lc, mhm, web}), nil)

	assert.Equal(t, 4, s.AllCount)
	assert.Equal(t, 3, s.AppCount)
	assert.Equal(t, 1, s.GLOBECount)
	assert.Equal(t, 4.0, s.RatioAllToGLOBE)
	assert.Equal(t, 1, s.AppPerProtocol[SkyConditions])
	assert.Equal(t, 0, s.AppPerProtocol[TreeHeights])
	assert.Equal(t, 1, s.GLOBEPerProtocol[TreeHeights])
	assert.Equal(t, 2, s.AppPhotos)
	assert.Equal(t, 1, s.GLOBEPhotos)
	assert.Equal(t, 2, s.AppPhotosPerProtocol[SkyConditions])
	assert.Equal(t, map[Protocol]int{SkyConditions: 1, LandCovers: 1}, s.AppClassified)
	assert.Equal(t, 2, s.UniqueUsers)
	assert.Empty(t, s.Challenges)
}

func TestComputeStats_NoGLOBEObservations(t *testing.T) {
	s := ComputeStats(BuildDataset([]Observation{userObs(1, SkyConditions, date(2019, 1, 1))}), nil)
	assert.True(t, math.IsNaN(s.RatioAllToGLOBE))
}

func TestComputeStats_UsersByDay(t *testing.T) {
	obs := []Observation{
		userObs(1, SkyConditions, date(2019, 1, 1).Add(10*time.Hour)),
		userObs(2, SkyConditions, date(2019, 1, 1).Add(23*time.Hour)),
		userObs(1, SkyConditions, date(2019, 1, 3)),
		userObs(3, LandCovers, date(2019, 1, 3).Add(time.Minute)),
		{Protocol: SkyConditions, Source: SourceApp, MeasuredAt: date(2019, 1, 4)}, // no user id
	}

	s := ComputeStats(BuildDataset(obs), nil)

	require.Len(t, s.UsersByDay, 2)
	assert.Equal(t, DailyUsers{Day: date(2019, 1, 1), Total: 2, New: 2}, s.UsersByDay[0])
	assert.Equal(t, DailyUsers{Day: date(2019, 1, 3), Total: 3, New: 1}, s.UsersByDay[1])
	assert.Equal(t, 3, s.UniqueUsers)
}

func TestComputeStats_Challenges(t *testing.T) {
	c := Challenge{Name: "test", Start: date(2019, 10, 15), End: date(2019, 11, 15)}
	obs := []Observation{
		userObs(1, SkyConditions, date(2019, 10, 1)),
		userObs(1, SkyConditions, date(2019, 10, 20)),
		userObs(2, SkyConditions, date(2019, 10, 15)),
		userObs(3, SkyConditions, date(2019, 11, 15).Add(20*time.Hour)),
		userObs(4, SkyConditions, date(2019, 11, 16)),
	}

	s := ComputeStats(BuildDataset(obs), []Challenge{c})

	require.Len(t, s.Challenges, 1)
	up := s.Challenges[0]
	assert.Equal(t, 1, up.Before)
	assert.Equal(t, 3, up.Through)
	assert.Equal(t, 2, up.Attracted())
}

func TestDefaultChallenges(t *testing.T) {
	require.Len(t, DefaultChallenges, 2)
	assert.Equal(t, date(2018, 3, 15), DefaultChallenges[0].Start)
	assert.Equal(t, date(2019, 11, 15), DefaultChallenges[1].End)
}
