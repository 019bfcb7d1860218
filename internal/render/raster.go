package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	textColor  = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	frameColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
)

func drawText(dst draw.Image, x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// drawTextCentered draws s with its horizontal centre at x.
func drawTextCentered(dst draw.Image, x, y int, s string, col color.Color) {
	drawText(dst, x-textWidth(s)/2, y, s, col)
}

func fillRect(dst draw.Image, r image.Rectangle, col color.Color) {
	draw.Draw(dst, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func strokeRect(dst draw.Image, r image.Rectangle, col color.Color) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), col)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), col)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), col)
	fillRect(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), col)
}

// legendEntry is one swatch and label of an overlay legend.
type legendEntry struct {
	Label string
	Color drawing.Color
}

// drawLegend draws a boxed legend with its top-left corner at (x, y).
func drawLegend(dst draw.Image, x, y int, entries []legendEntry) {
	const (
		pad    = 6
		swatch = 10
		lineH  = 16
	)
	w := 0
	for _, e := range entries {
		if tw := textWidth(e.Label); tw > w {
			w = tw
		}
	}
	box := image.Rect(x, y, x+pad*3+swatch+w, y+pad*2+lineH*len(entries))
	fillRect(dst, box, color.White)
	strokeRect(dst, box, frameColor)
	for i, e := range entries {
		top := y + pad + i*lineH + (lineH-swatch)/2
		fillRect(dst, image.Rect(x+pad, top, x+pad+swatch, top+swatch), e.Color)
		drawText(dst, x+pad*2+swatch, top+swatch, e.Label, textColor)
	}
}

// withLegend wraps a chart draw function and stamps a legend onto the result.
// go-chart's own legend draws series strokes, which scatter series do not have.
func withLegend(render drawFunc, x, y int, entries []legendEntry) drawFunc {
	return func(w io.Writer) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return err
		}
		src, err := png.Decode(&buf)
		if err != nil {
			return err
		}
		b := src.Bounds()
		dst := image.NewRGBA(b)
		draw.Draw(dst, b, src, b.Min, draw.Src)
		drawLegend(dst, b.Min.X+x, b.Min.Y+y, entries)
		return png.Encode(w, dst)
	}
}

// redsStops is the ColorBrewer 9-class Reds ramp, light to dark.
var redsStops = []color.RGBA{
	{R: 0xff, G: 0xf5, B: 0xf0, A: 0xff},
	{R: 0xfe, G: 0xe0, B: 0xd2, A: 0xff},
	{R: 0xfc, G: 0xbb, B: 0xa1, A: 0xff},
	{R: 0xfc, G: 0x92, B: 0x72, A: 0xff},
	{R: 0xfb, G: 0x6a, B: 0x4a, A: 0xff},
	{R: 0xef, G: 0x3b, B: 0x2c, A: 0xff},
	{R: 0xcb, G: 0x18, B: 0x1d, A: 0xff},
	{R: 0xa5, G: 0x0f, B: 0x15, A: 0xff},
	{R: 0x67, G: 0x00, B: 0x0d, A: 0xff},
}

// reds maps t in [0,1] onto the Reds ramp.
func reds(t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(redsStops)-1)
	i := int(pos)
	if i >= len(redsStops)-1 {
		return redsStops[len(redsStops)-1]
	}
	frac := pos - float64(i)
	a, b := redsStops[i], redsStops[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*frac))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: 0xff}
}
