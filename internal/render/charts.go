package render

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	dimGray = drawing.Color{R: 0x69, G: 0x69, B: 0x69, A: 0xff}
	black   = drawing.Color{R: 0, G: 0, B: 0, A: 0xff}

	protocolColors = map[domain.Protocol]drawing.Color{
		domain.SkyConditions:         {R: 0x00, G: 0x00, B: 0xff, A: 0xff}, // blue
		domain.LandCovers:            {R: 0xff, G: 0xa5, B: 0x00, A: 0xff}, // orange
		domain.MosquitoHabitatMapper: {R: 0xb2, G: 0x22, B: 0x22, A: 0xff}, // firebrick
		domain.TreeHeights:           {R: 0x00, G: 0x64, B: 0x00, A: 0xff}, // darkgreen
	}

	photoCountColors = []drawing.Color{
		{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}, // silver
		{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}, // gold
		{R: 0x9a, G: 0xcd, B: 0x32, A: 0xff}, // yellowgreen
		{R: 0xf0, G: 0x80, B: 0x80, A: 0xff}, // lightcoral
		{R: 0xff, G: 0xa5, B: 0x00, A: 0xff}, // orange
		{R: 0xdd, G: 0xa0, B: 0xdd, A: 0xff}, // plum
		{R: 0x87, G: 0xce, B: 0xfa, A: 0xff}, // lightskyblue
	}
)

// chartRenderer is satisfied by chart.Chart and chart.PieChart.
type chartRenderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func pngOf(c chartRenderer) drawFunc {
	return func(w io.Writer) error { return c.Render(chart.PNG, w) }
}

func padding() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

// niceMax rounds v up to 1, 2 or 5 times a power of ten. Non-positive values
// give 1 so the axis range is never empty.
func niceMax(v float64) float64 {
	if v <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*mag >= v {
			return m * mag
		}
	}
	return 10 * mag
}

// barSeries draws one filled rectangle per height, from zero up, each width
// wide starting at its left edge. Consecutive bars are joined along y=0.
func barSeries(name string, col drawing.Color, lefts []float64, width float64, heights []float64) chart.ContinuousSeries {
	xs := make([]float64, 0, 4*len(lefts))
	ys := make([]float64, 0, 4*len(lefts))
	for i, x := range lefts {
		xs = append(xs, x, x, x+width, x+width)
		ys = append(ys, 0, heights[i], heights[i], 0)
	}
	return chart.ContinuousSeries{
		Name:    name,
		Style:   chart.Style{StrokeColor: col, StrokeWidth: 1, FillColor: col},
		XValues: xs,
		YValues: ys,
	}
}

// Figure 3.

func degreeTicks(lo, hi, step int) []chart.Tick {
	var ticks []chart.Tick
	for v := lo; v <= hi; v += step {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: fmt.Sprintf("%d", v)})
	}
	return ticks
}

func scatterSeries(p domain.Protocol, obs []domain.Observation) (chart.ContinuousSeries, bool) {
	s := chart.ContinuousSeries{
		Name:  p.Label(),
		Style: chart.Style{StrokeWidth: chart.Disabled, DotWidth: 3, DotColor: protocolColors[p]},
	}
	for _, o := range obs {
		if !domain.ValidPosition(o) {
			continue
		}
		s.XValues = append(s.XValues, o.Geo.Lon)
		s.YValues = append(s.YValues, o.Geo.Lat)
	}
	return s, len(s.XValues) > 0
}

const (
	worldWidth  = 1200
	worldHeight = 650
)

func worldChart(title string, series []chart.Series) chart.Chart {
	return chart.Chart{
		Title:      title,
		Width:      worldWidth,
		Height:     worldHeight,
		Background: padding(),
		XAxis:      chart.XAxis{Name: "Longitude", Ticks: degreeTicks(-180, 180, 60)},
		YAxis:      chart.YAxis{Name: "Latitude", Ticks: degreeTicks(-90, 90, 30)},
		Series:     series,
	}
}

// worldLegend places an overlay legend in the lower-left corner of a world map.
func worldLegend(render drawFunc, entries []legendEntry) drawFunc {
	return withLegend(render, 40, worldHeight-90-16*len(entries), entries)
}

func (r *Renderer) locations(in Input, s *Summary) error {
	var (
		series []chart.Series
		legend []legendEntry
	)
	for _, p := range domain.AllProtocols {
		if sc, ok := scatterSeries(p, in.Dataset.AppByProtocol[p]); ok {
			series = append(series, sc)
			legend = append(legend, legendEntry{Label: p.Label(), Color: protocolColors[p]})
		}
	}
	if len(series) == 0 {
		r.skip(FileLocations, "no observations with a valid position", s)
	} else {
		c := worldChart("GLOBE Observer observations from "+in.Window.String(), series)
		if err := r.save(FileLocations, worldLegend(pngOf(c), legend), s); err != nil {
			return err
		}
	}

	for _, p := range domain.AllProtocols {
		name := LocationsFile(p)
		sc, ok := scatterSeries(p, in.Dataset.AppByProtocol[p])
		if !ok {
			r.skip(name, "no "+p.Label()+" observations with a valid position", s)
			continue
		}
		c := worldChart(p.Label()+" observations from "+in.Window.String(), []chart.Series{sc})
		legend := []legendEntry{{Label: p.Label(), Color: protocolColors[p]}}
		if err := r.save(name, worldLegend(pngOf(c), legend), s); err != nil {
			return err
		}
	}
	return nil
}

// Figure 4.

// perDayCap cuts off the 2017 eclipse spike.
const perDayCap = 3000

var eclipseDay = time.Date(2017, 8, 26, 0, 0, 0, 0, time.UTC)

var perDayEvents = []struct {
	Day   time.Time
	Label string
}{
	{eclipseDay, "North American Eclipse"},
	{time.Date(2018, 4, 1, 0, 0, 0, 0, time.UTC), "2018 Spring Clouds Challenge"},
	{time.Date(2019, 7, 1, 0, 0, 0, 0, time.UTC), "2019 Fall Clouds Challenge"},
}

func (r *Renderer) perDay(in Input, s *Summary) error {
	counts := domain.DailyCounts(in.Dataset.App, in.Window.Start, in.Window.End)
	total := 0
	for _, dc := range counts {
		total += dc.Count
	}
	if total == 0 {
		r.skip(FilePerDay, "no observations in the date window", s)
		return nil
	}

	// Each day is a flat step from midnight to midnight.
	var (
		xs []time.Time
		ys []float64
	)
	for _, dc := range counts {
		v := math.Min(float64(dc.Count), perDayCap)
		xs = append(xs, dc.Day, dc.Day.AddDate(0, 0, 1))
		ys = append(ys, v, v)
	}
	start := domain.Day(in.Window.Start)
	end := domain.Day(in.Window.End).AddDate(0, 0, 1)

	series := []chart.Series{chart.TimeSeries{
		Name:    "Observations per day",
		Style:   chart.Style{StrokeColor: dimGray, StrokeWidth: 1, FillColor: dimGray},
		XValues: xs,
		YValues: ys,
	}}
	if start.Before(eclipseDay) {
		var notes []chart.Value2
		for _, e := range perDayEvents {
			if !e.Day.Before(start) && e.Day.Before(end) {
				notes = append(notes, chart.Value2{XValue: chart.TimeToFloat64(e.Day), YValue: 1600, Label: e.Label})
			}
		}
		if len(notes) > 0 {
			series = append(series, chart.AnnotationSeries{Annotations: notes})
		}
	}

	c := chart.Chart{
		Title:      "GLOBE Observer observations (" + in.Window.String() + ")",
		Width:      1100,
		Height:     350,
		Background: padding(),
		XAxis: chart.XAxis{
			Name:           "Date (UTC)",
			ValueFormatter: chart.TimeDateValueFormatter,
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(start), Max: chart.TimeToFloat64(end)},
		},
		YAxis: chart.YAxis{
			Name:  "Observations per day",
			Range: &chart.ContinuousRange{Min: 0, Max: perDayCap},
		},
		Series: series,
	}
	return r.save(FilePerDay, pngOf(c), s)
}

// Figure 5.

var noonMarkers = []struct {
	Label  string
	Minute float64
	Dash   []float64
}{
	{"Noon India Standard Time", 6.5 * 60, []float64{2, 4}},
	{"Noon Central European Time", 11 * 60, []float64{8, 4}},
	{"Noon Central US Time", 18 * 60, []float64{8, 4, 2, 4}},
}

func hourTicks() []chart.Tick {
	var ticks []chart.Tick
	for m := 0; m <= 1440; m += 60 {
		ticks = append(ticks, chart.Tick{Value: float64(m), Label: fmt.Sprintf("%02dZ", (m/60)%24)})
	}
	return ticks
}

func (r *Renderer) diurnal(in Input, s *Summary) error {
	d := domain.DiurnalHistogram(in.Dataset.App, domain.DefaultBinMinutes)
	lefts := make([]float64, len(d.Counts))
	heights := make([]float64, len(d.Counts))
	peak := 0.0
	for i, c := range d.Counts {
		lefts[i] = float64(d.BinStart(i))
		heights[i] = float64(c)
		peak = math.Max(peak, heights[i])
	}
	if peak == 0 {
		r.skip(FileDiurnal, "no observations", s)
		r.skip(FileDiurnalLegend, "no observations", s)
		return nil
	}
	yMax := niceMax(peak * 1.05)

	series := []chart.Series{barSeries("Observations", dimGray, lefts, float64(d.BinMinutes), heights)}
	for _, m := range noonMarkers {
		series = append(series, chart.ContinuousSeries{
			Name:    m.Label,
			Style:   chart.Style{StrokeColor: black, StrokeWidth: 2, StrokeDashArray: m.Dash},
			XValues: []float64{m.Minute, m.Minute},
			YValues: []float64{0, yMax},
		})
	}

	c := chart.Chart{
		Title:      "Diurnal pattern of GLOBE Observer data submissions (" + in.Window.String() + ")",
		Width:      1100,
		Height:     500,
		Background: padding(),
		XAxis:      chart.XAxis{Name: "Time (UTC)", Ticks: hourTicks()},
		YAxis:      chart.YAxis{Name: "Count", Range: &chart.ContinuousRange{Min: 0, Max: yMax}},
		Series:     series,
	}
	if err := r.save(FileDiurnal, pngOf(c), s); err != nil {
		return err
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return r.save(FileDiurnalLegend, pngOf(c), s)
}

// Figure 6.

func pieLabel(name string, n, total int) string {
	return fmt.Sprintf("%s (%.2f%%)", name, float64(n)/float64(total)*100)
}

func (r *Renderer) photos(in Input, s *Summary) error {
	ps := domain.PhotoCompleteness(in.Dataset.AppCloudLand)

	if total := ps.Observations(); total == 0 {
		r.skip(FilePhotoCount, "no cloud or land cover observations", s)
	} else {
		var values []chart.Value
		for n, c := range ps.ByCount {
			if c == 0 {
				continue
			}
			name := fmt.Sprintf("%d photos", n)
			if n == 1 {
				name = "1 photo"
			}
			values = append(values, chart.Value{
				Value: float64(c),
				Label: pieLabel(name, c, total),
				Style: chart.Style{FillColor: photoCountColors[n]},
			})
		}
		pie := chart.PieChart{
			Title:  "Photos submitted with a GO observation (" + in.Window.String() + ")",
			Width:  600,
			Height: 600,
			Values: values,
		}
		if err := r.save(FilePhotoCount, pngOf(pie), s); err != nil {
			return err
		}
	}

	total := ps.OmittedTotal()
	if total == 0 {
		r.skip(FilePhotoOmitted, "no observations with exactly five photos", s)
		return nil
	}
	var values []chart.Value
	for i, dir := range domain.StandardDirections {
		c := ps.Omitted[dir]
		if c == 0 {
			continue
		}
		values = append(values, chart.Value{
			Value: float64(c),
			Label: pieLabel(dir, c, total),
			Style: chart.Style{FillColor: photoCountColors[i+1]},
		})
	}
	pie := chart.PieChart{
		Title:  "Direction omitted when 5 photos are submitted (" + in.Window.String() + ")",
		Width:  600,
		Height: 600,
		Values: values,
	}
	return r.save(FilePhotoOmitted, pngOf(pie), s)
}

// Figure 7.

const flagBarWidth = 0.8

// flagAxis labels one bar per flag code. The blank end ticks keep the outer
// bars inside the plot, since go-chart sizes the axis to its ticks.
func flagAxis(codes []string) (chart.XAxis, []float64) {
	lefts := make([]float64, len(codes))
	ticks := []chart.Tick{{Value: -0.6}}
	for i, code := range codes {
		lefts[i] = float64(i) - flagBarWidth/2
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: code})
	}
	ticks = append(ticks, chart.Tick{Value: float64(len(codes)) - 0.4})
	return chart.XAxis{Name: "Flag", Ticks: ticks}, lefts
}

// stackedFlagSeries stacks per-protocol values. Series are drawn tallest
// first so each lower segment paints over the one stacked on it.
func stackedFlagSeries(ct domain.CrossTab, lefts []float64, values func(domain.Protocol) []float64) ([]chart.Series, float64) {
	cum := make([]float64, len(ct.Flags))
	levels := make([][]float64, len(ct.Protocols))
	for k, p := range ct.Protocols {
		for i, v := range values(p) {
			cum[i] += v
		}
		levels[k] = append([]float64(nil), cum...)
	}
	peak := 0.0
	for _, v := range cum {
		peak = math.Max(peak, v)
	}
	series := make([]chart.Series, 0, len(ct.Protocols))
	for k := len(ct.Protocols) - 1; k >= 0; k-- {
		p := ct.Protocols[k]
		series = append(series, barSeries(p.Label(), protocolColors[p], lefts, flagBarWidth, levels[k]))
	}
	return series, peak
}

func flagChart(title, yName string, xAxis chart.XAxis, series []chart.Series, peak float64) chart.Chart {
	c := chart.Chart{
		Title:      title,
		Width:      800,
		Height:     600,
		Background: padding(),
		XAxis:      xAxis,
		YAxis:      chart.YAxis{Name: yName, Range: &chart.ContinuousRange{Min: 0, Max: niceMax(peak * 1.05)}},
		Series:     series,
	}
	c.Elements = []chart.Renderable{chart.Legend(&c)}
	return c
}

func toFloats(ints []int) []float64 {
	out := make([]float64, len(ints))
	for i, v := range ints {
		out[i] = float64(v)
	}
	return out
}

func (r *Renderer) qualityFlags(in Input, s *Summary) error {
	ct := in.CrossTab
	if len(ct.Flags) == 0 {
		for _, name := range []string{FileFlagsAbsolute, FileFlagsPercent, FileFlagsTotalShare} {
			r.skip(name, "no quality flags raised", s)
		}
		return nil
	}
	title := "GLOBE Observer quality control flags (" + in.Window.String() + ")"
	xAxis, lefts := flagAxis(ct.Flags)

	series, peak := stackedFlagSeries(ct, lefts, func(p domain.Protocol) []float64 { return toFloats(ct.Row(p)) })
	if err := r.save(FileFlagsAbsolute, pngOf(flagChart(title, "Count", xAxis, series, peak)), s); err != nil {
		return err
	}

	series, peak = stackedFlagSeries(ct, lefts, ct.PercentOfProtocol)
	if err := r.save(FileFlagsPercent, pngOf(flagChart(title, "Percent (%)", xAxis, series, peak)), s); err != nil {
		return err
	}

	share := ct.PercentOfTotal()
	peak = 0
	for _, v := range share {
		peak = math.Max(peak, v)
	}
	total := []chart.Series{barSeries("All GLOBE Observer data", dimGray, lefts, flagBarWidth, share)}
	return r.save(FileFlagsTotalShare, pngOf(flagChart(title, "Percent (%)", xAxis, total, peak)), s)
}
