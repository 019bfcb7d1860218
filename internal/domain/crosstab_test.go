package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func flaggedOf(p Protocol, flags ...string) Flagged {
	return Flagged{Observation: Observation{Protocol: p}, Flags: flags}
}

func TestCrossTabulate(t *testing.T) {
	flagged := []Flagged{
		flaggedOf(SkyConditions, FlagNoPhoto),
		flaggedOf(SkyConditions, FlagWater, FlagNoPhoto),
		flaggedOf(SkyConditions),
		flaggedOf(SkyConditions),
		flaggedOf(LandCovers, FlagMidnight),
		flaggedOf(LandCovers),
	}

	ct := CrossTabulate(flagged)

	assert.Equal(t, []string{FlagWater, FlagNoPhoto, FlagMidnight}, ct.Flags)
	assert.Equal(t, AllProtocols, ct.Protocols)
	assert.Equal(t, 6, ct.Total)
	assert.Equal(t, 4, ct.ProtocolTotals[SkyConditions])
	assert.Equal(t, 2, ct.ProtocolTotals[LandCovers])

	assert.Equal(t, []int{1, 2, 0}, ct.Row(SkyConditions))
	assert.Equal(t, []int{0, 0, 1}, ct.Row(LandCovers))
	assert.Equal(t, []int{0, 0, 0}, ct.Row(TreeHeights))

	assert.Equal(t, []float64{25, 50, 0}, ct.PercentOfProtocol(SkyConditions))
	assert.Equal(t, []float64{0, 0, 50}, ct.PercentOfProtocol(LandCovers))
	assert.Equal(t, []float64{0, 0, 0}, ct.PercentOfProtocol(MosquitoHabitatMapper))

	pct := ct.PercentOfTotal()
	assert.InDelta(t, 100.0/6, pct[0], 1e-9)
	assert.InDelta(t, 200.0/6, pct[1], 1e-9)
	assert.InDelta(t, 100.0/6, pct[2], 1e-9)

	assert.Equal(t, 4, ct.Incidences())
	assert.Equal(t, 3, CountFlaggedObservations(flagged))
	assert.InDelta(t, 100.0/6, ct.FlagPercent(FlagWater), 1e-9)
	assert.Zero(t, ct.FlagPercent(FlagDuplicate))
}

func TestCrossTabulate_Empty(t *testing.T) {
	ct := CrossTabulate(nil)

	assert.Empty(t, ct.Flags)
	assert.Zero(t, ct.Total)
	assert.Empty(t, ct.Row(SkyConditions))
	assert.Empty(t, ct.PercentOfTotal())
	assert.Zero(t, ct.FlagPercent(FlagNoPhoto))
}
