package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
)

// heatmapSaturation is log10 of the count where the colour scale tops out.
const heatmapSaturation = 4.0

// Pixels per degree and the margins around the map.
const (
	heatmapScale  = 3
	heatmapLeft   = 50
	heatmapTop    = 40
	heatmapBottom = 30
	colorbarGap   = 25
	colorbarWidth = 18
	colorbarLabel = 50
)

var colorbarTicks = []int{1, 2, 3, 5, 10, 20, 30, 50, 100, 200, 300, 500, 1000, 2000, 3000, 5000, 10000}

// heatmapLevel maps a cell count onto [0,1] of the log colour scale.
func heatmapLevel(count int) float64 {
	return math.Min(math.Log10(float64(count)), heatmapSaturation) / heatmapSaturation
}

func (r *Renderer) heatmaps(in Input, s *Summary) error {
	maps := []struct {
		file  string
		title string
		obs   []domain.Observation
	}{
		{FileHeatmapApp, "GLOBE Observer observations (" + in.Window.String() + ")", in.Dataset.App},
		{FileHeatmapGLOBE, "GLOBE observations (" + in.Window.String() + ")", in.Dataset.GLOBE},
	}
	for _, m := range maps {
		grid := domain.GeoHistogram(m.obs, domain.DefaultBinDegrees)
		if grid.Total() == 0 {
			r.skip(m.file, "no observations with a valid position", s)
			continue
		}
		if peak := grid.Max(); math.Log10(float64(peak)) > heatmapSaturation {
			r.logger.Debug("heatmap colour scale saturated", "figure", m.file, "busiest_cell", peak)
		}
		img := drawHeatmap(grid, m.title)
		if err := r.save(m.file, func(w io.Writer) error { return png.Encode(w, img) }, s); err != nil {
			return err
		}
	}
	return nil
}

// drawHeatmap rasterises grid as an equirectangular map with a log colour bar.
// Empty cells stay white.
func drawHeatmap(grid domain.GeoGrid, title string) *image.RGBA {
	cell := int(math.Max(1, math.Round(grid.BinDeg*heatmapScale)))
	mapW, mapH := grid.NLon*cell, grid.NLat*cell
	width := heatmapLeft + mapW + colorbarGap + colorbarWidth + colorbarLabel
	height := heatmapTop + mapH + heatmapBottom

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(img, img.Bounds(), color.White)

	for i, row := range grid.Counts {
		y := heatmapTop + (grid.NLat-1-i)*cell
		for j, c := range row {
			if c == 0 {
				continue
			}
			x := heatmapLeft + j*cell
			fillRect(img, image.Rect(x, y, x+cell, y+cell), reds(heatmapLevel(c)))
		}
	}
	strokeRect(img, image.Rect(heatmapLeft-1, heatmapTop-1, heatmapLeft+mapW+1, heatmapTop+mapH+1), frameColor)

	pxPerLon := float64(mapW) / 360
	for lon := -180; lon <= 180; lon += 60 {
		x := heatmapLeft + int(float64(lon+180)*pxPerLon)
		fillRect(img, image.Rect(x, heatmapTop+mapH, x+1, heatmapTop+mapH+4), frameColor)
		drawTextCentered(img, x, heatmapTop+mapH+17, strconv.Itoa(lon), textColor)
	}
	pxPerLat := float64(mapH) / 180
	for lat := -90; lat <= 90; lat += 30 {
		y := heatmapTop + mapH - int(float64(lat+90)*pxPerLat)
		fillRect(img, image.Rect(heatmapLeft-4, y, heatmapLeft, y+1), frameColor)
		label := strconv.Itoa(lat)
		drawText(img, heatmapLeft-6-textWidth(label), y+4, label, textColor)
	}

	barX := heatmapLeft + mapW + colorbarGap
	for y := 0; y < mapH; y++ {
		t := 1 - float64(y)/float64(mapH-1)
		fillRect(img, image.Rect(barX, heatmapTop+y, barX+colorbarWidth, heatmapTop+y+1), reds(t))
	}
	strokeRect(img, image.Rect(barX-1, heatmapTop-1, barX+colorbarWidth+1, heatmapTop+mapH+1), frameColor)
	for _, tick := range colorbarTicks {
		t := math.Log10(float64(tick)) / heatmapSaturation
		y := heatmapTop + int((1-t)*float64(mapH-1))
		fillRect(img, image.Rect(barX+colorbarWidth, y, barX+colorbarWidth+4, y+1), frameColor)
		drawText(img, barX+colorbarWidth+6, y+4, strconv.Itoa(tick), textColor)
	}

	drawTextCentered(img, heatmapLeft+mapW/2, heatmapTop-14, title, textColor)
	return img
}
