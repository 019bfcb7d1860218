package domain

import (
	"math"
	"time"
)

// DefaultBinDegrees is the heatmap cell size.
const DefaultBinDegrees = 1.0

// DefaultBinMinutes is the diurnal histogram bin width.
const DefaultBinMinutes = 15

// GeoGrid is a longitude × latitude count grid covering the whole globe.
// Counts[i][j] holds latitude bin i (south to north) and longitude bin j
// (west to east).
type GeoGrid struct {
	BinDeg float64
	NLat   int
	NLon   int
	Counts [][]int
}

// Max returns the largest cell count.
func (g GeoGrid) Max() int {
	m := 0
	for _, row := range g.Counts {
		for _, c := range row {
			if c > m {
				m = c
			}
		}
	}
	return m
}

// Total returns the number of binned observations.
func (g GeoGrid) Total() int {
	n := 0
	for _, row := range g.Counts {
		for _, c := range row {
			n += c
		}
	}
	return n
}

// GeoHistogram bins observation positions into binDeg cells over
// [-180,180] × [-90,90]. Points on the upper edges go into the last cell.
// Observations without a valid position are skipped. A non-positive binDeg
// falls back to DefaultBinDegrees.
func GeoHistogram(obs []Observation, binDeg float64) GeoGrid {
	if binDeg <= 0 {
		binDeg = DefaultBinDegrees
	}
	g := GeoGrid{
		BinDeg: binDeg,
		NLat:   int(math.Ceil(180 / binDeg)),
		NLon:   int(math.Ceil(360 / binDeg)),
	}
	g.Counts = make([][]int, g.NLat)
	for i := range g.Counts {
		g.Counts[i] = make([]int, g.NLon)
	}
	for _, o := range obs {
		if !ValidPosition(o) {
			continue
		}
		i := binIndex(o.Geo.Lat+90, binDeg, g.NLat)
		j := binIndex(o.Geo.Lon+180, binDeg, g.NLon)
		g.Counts[i][j]++
	}
	return g
}

func binIndex(offset, width float64, n int) int {
	i := int(math.Floor(offset / width))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// DayCount is the number of observations measured on one UTC day.
type DayCount struct {
	Day   time.Time
	Count int
}

// DailyCounts returns one entry per UTC day in [start, end], including days
// without observations. Observations outside the window are ignored.
func DailyCounts(obs []Observation, start, end time.Time) []DayCount {
	first, last := Day(start), Day(end)
	if last.Before(first) {
		return nil
	}
	index := make(map[time.Time]int)
	var out []DayCount
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		index[d] = len(out)
		out = append(out, DayCount{Day: d})
	}
	for _, o := range obs {
		if i, ok := index[Day(o.MeasuredAt)]; ok {
			out[i].Count++
		}
	}
	return out
}

// Diurnal is a minute-of-day histogram of measurement times.
type Diurnal struct {
	BinMinutes int
	Counts     []int
	// AtMidnight counts observations timed during the minute 00:00 UTC, a
	// common placeholder. Unlike FlagMidnight it ignores seconds.
	AtMidnight int
}

// BinStart returns the minute of day where bin i begins.
func (d Diurnal) BinStart(i int) int { return i * d.BinMinutes }

// DiurnalHistogram bins measurement times by UTC minute of day. binMinutes
// must divide the day evenly; otherwise DefaultBinMinutes is used.
func DiurnalHistogram(obs []Observation, binMinutes int) Diurnal {
	if binMinutes <= 0 || 1440%binMinutes != 0 {
		binMinutes = DefaultBinMinutes
	}
	d := Diurnal{BinMinutes: binMinutes, Counts: make([]int, 1440/binMinutes)}
	for _, o := range obs {
		t := o.MeasuredAt.UTC()
		minute := t.Hour()*60 + t.Minute()
		d.Counts[minute/binMinutes]++
		if minute == 0 {
			d.AtMidnight++
		}
	}
	return d
}

// PhotoStats summarises how many of the six standard directions were
// photographed.
type PhotoStats struct {
	// ByCount[n] is the number of observations with n photos.
	ByCount [7]int
	// Omitted counts, for observations with exactly five photos, the one
	// direction left out.
	Omitted map[string]int
}

// Observations returns the number of observations summarised.
func (p PhotoStats) Observations() int {
	n := 0
	for _, c := range p.ByCount {
		n += c
	}
	return n
}

// OmittedTotal returns the number of five-photo observations.
func (p PhotoStats) OmittedTotal() int {
	n := 0
	for _, c := range p.Omitted {
		n += c
	}
	return n
}

// PhotoCompleteness counts photos over StandardDirections for each observation.
func PhotoCompleteness(obs []Observation) PhotoStats {
	ps := PhotoStats{Omitted: make(map[string]int, len(StandardDirections))}
	for _, dir := range StandardDirections {
		ps.Omitted[dir] = 0
	}
	for _, o := range obs {
		n := 0
		missing := ""
		for _, dir := range StandardDirections {
			if o.HasPhoto(dir) {
				n++
			} else {
				missing = dir
			}
		}
		ps.ByCount[n]++
		if n == len(StandardDirections)-1 {
			ps.Omitted[missing]++
		}
	}
	return ps
}
