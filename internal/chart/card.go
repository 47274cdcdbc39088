package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/flightyield/seatcast/internal/models"
)

// CardWidth and CardHeight are the standard Open Graph image dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630
)

// Plot area inside the card. The headline sits above, the legend below.
const (
	plotLeft   = 90
	plotRight  = CardWidth - 70
	plotTop    = 190
	plotBottom = CardHeight - 110
)

var (
	colorActual   = color.RGBA{0x4f, 0xc3, 0xf7, 0xff}
	colorForecast = color.RGBA{0x81, 0xc7, 0x84, 0xff}
	colorCapacity = color.RGBA{0x9a, 0xa3, 0xb5, 0xff}
	colorHeadline = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorMuted    = color.RGBA{0xb8, 0xc0, 0xd4, 0xff}
)

type seriesPoint struct {
	offset int
	value  float64
	low    float64
	high   float64
	banded bool
}

// Render draws the share card for one forecast run: booking curve so far,
// the ensemble forecast with its confidence band, and the flight headline.
func Render(run *models.ForecastRun) ([]byte, error) {
	actual := collect(run, models.SeriesActual)
	forecast := collect(run, models.SeriesLogisticReg)
	if len(forecast) == 0 {
		forecast = collect(run, models.SeriesLogistic)
	}
	if len(forecast) == 0 {
		forecast = collect(run, models.SeriesARIMA)
	}
	if len(actual) == 0 && len(forecast) == 0 {
		return nil, fmt.Errorf("run %s has no drawable series", run.Key())
	}

	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	drawBackground(img)

	maxOff, minOff, yMax := chartBounds(run.Capacity, actual, forecast)
	xFor := func(offset int) float64 {
		if maxOff == minOff {
			return float64(plotLeft+plotRight) / 2
		}
		span := float64(maxOff - minOff)
		return plotLeft + float64(maxOff-offset)/span*float64(plotRight-plotLeft)
	}
	yFor := func(v float64) float64 {
		return plotBottom - v/yMax*float64(plotBottom-plotTop)
	}

	if run.Capacity > 0 {
		drawDashedHorizontal(img, plotLeft, plotRight, int(yFor(float64(run.Capacity))), colorCapacity)
	}
	drawBand(img, forecast, xFor, yFor)
	drawPolyline(img, actual, xFor, yFor, colorActual)
	drawPolyline(img, forecast, xFor, yFor, colorForecast)
	drawAxis(img, xFor, minOff, maxOff)

	drawHeadline(img, run)
	drawLegend(img, len(forecast) > 0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

// collect pulls one named series in calendar order, carrying confidence
// bounds when both are present.
func collect(run *models.ForecastRun, name string) []seriesPoint {
	var points []seriesPoint
	for _, p := range run.Series {
		if p.Series != name {
			continue
		}
		sp := seriesPoint{offset: p.Offset, value: p.Value}
		if p.ConfLow != nil && p.ConfHigh != nil {
			sp.low, sp.high, sp.banded = *p.ConfLow, *p.ConfHigh, true
		}
		points = append(points, sp)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].offset > points[j].offset })
	return points
}

func chartBounds(capacity int64, series ...[]seriesPoint) (maxOff, minOff int, yMax float64) {
	maxOff, minOff = math.MinInt32, math.MaxInt32
	yMax = float64(capacity)
	for _, s := range series {
		for _, p := range s {
			if p.offset > maxOff {
				maxOff = p.offset
			}
			if p.offset < minOff {
				minOff = p.offset
			}
			if p.value > yMax {
				yMax = p.value
			}
			if p.banded && p.high > yMax {
				yMax = p.high
			}
		}
	}
	if yMax <= 0 {
		yMax = 1
	}
	yMax *= 1.06
	return maxOff, minOff, yMax
}

func drawBackground(img *image.RGBA) {
	for y := 0; y < CardHeight; y++ {
		progress := float64(y) / CardHeight
		c := color.RGBA{
			R: uint8(14 + progress*12),
			G: uint8(18 + progress*16),
			B: uint8(34 + progress*26),
			A: 255,
		}
		for x := 0; x < CardWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawAxis(img *image.RGBA, xFor func(int) float64, minOff, maxOff int) {
	for x := plotLeft; x <= plotRight; x++ {
		img.SetRGBA(x, plotBottom, color.RGBA{70, 78, 98, 255})
	}
	// Tick labels every week of lead time, departure at the right edge.
	for off := minOff; off <= maxOff; off++ {
		if off%7 != 0 {
			continue
		}
		x := int(xFor(off))
		for y := plotBottom; y < plotBottom+6; y++ {
			img.SetRGBA(x, y, color.RGBA{70, 78, 98, 255})
		}
		label := fmt.Sprintf("%dd", off)
		if off == 0 {
			label = "dep"
		}
		drawText(img, label, x-len(label)*7, plotBottom+12, 2, colorMuted)
	}
}

// drawBand fills the confidence region between consecutive banded points.
func drawBand(img *image.RGBA, points []seriesPoint, xFor func(int) float64, yFor func(float64) float64) {
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		if !a.banded || !b.banded {
			continue
		}
		x0, x1 := xFor(a.offset), xFor(b.offset)
		for x := int(x0); x <= int(x1); x++ {
			t := 0.0
			if x1 != x0 {
				t = (float64(x) - x0) / (x1 - x0)
			}
			low := yFor(a.low + t*(b.low-a.low))
			high := yFor(a.high + t*(b.high-a.high))
			for y := int(high); y <= int(low); y++ {
				blend(img, x, y, colorForecast, 0.18)
			}
		}
	}
}

func drawPolyline(img *image.RGBA, points []seriesPoint, xFor func(int) float64, yFor func(float64) float64, col color.RGBA) {
	for i := 1; i < len(points); i++ {
		a, b := points[i-1], points[i]
		drawSegment(img, xFor(a.offset), yFor(a.value), xFor(b.offset), yFor(b.value), col)
	}
	if len(points) == 1 {
		p := points[0]
		fillDot(img, int(xFor(p.offset)), int(yFor(p.value)), col)
	}
}

// drawSegment steps along the segment one pixel at a time, stamping a 3x3
// block for line weight. Plenty at card resolution.
func drawSegment(img *image.RGBA, x0, y0, x1, y1 float64, col color.RGBA) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0)))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		fillDot(img, int(x0+t*(x1-x0)), int(y0+t*(y1-y0)), col)
	}
}

func fillDot(img *image.RGBA, cx, cy int, col color.RGBA) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			img.SetRGBA(cx+dx, cy+dy, col)
		}
	}
}

func drawDashedHorizontal(img *image.RGBA, x0, x1, y int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		if (x/10)%2 == 0 {
			img.SetRGBA(x, y, col)
		}
	}
}

func blend(img *image.RGBA, x, y int, col color.RGBA, alpha float64) {
	if !(image.Point{x, y}).In(img.Rect) {
		return
	}
	orig := img.RGBAAt(x, y)
	img.SetRGBA(x, y, color.RGBA{
		R: uint8(float64(orig.R)*(1-alpha) + float64(col.R)*alpha),
		G: uint8(float64(orig.G)*(1-alpha) + float64(col.G)*alpha),
		B: uint8(float64(orig.B)*(1-alpha) + float64(col.B)*alpha),
		A: 255,
	})
}

func drawHeadline(img *image.RGBA, run *models.ForecastRun) {
	drawText(img, run.Route, 70, 52, 6, colorHeadline)
	departs := fmt.Sprintf("departs %s", run.DepartureDate.Format("Mon 2 Jan 2006"))
	drawText(img, departs, 70, 140, 2, colorMuted)

	if run.Capacity > 0 {
		sold := run.Facts.CurrentSeats
		pct := sold / float64(run.Capacity) * 100
		status := fmt.Sprintf("%.0f of %d seats sold (%.0f%%)", sold, run.Capacity, pct)
		drawText(img, status, CardWidth-70-len(status)*14, 140, 2, colorHeadline)
	}
}

func drawLegend(img *image.RGBA, hasForecast bool) {
	y := CardHeight - 64
	x := plotLeft
	for i := 0; i < 24; i++ {
		fillDot(img, x+i, y+6, colorActual)
	}
	drawText(img, "booked", x+32, y, 2, colorMuted)
	if hasForecast {
		x += 180
		for i := 0; i < 24; i++ {
			fillDot(img, x+i, y+6, colorForecast)
		}
		drawText(img, "forecast", x+32, y, 2, colorMuted)
	}
	brand := "seatcast"
	drawText(img, brand, CardWidth-70-len(brand)*14, y, 2, colorMuted)
}

// drawText renders with the fixed 7x13 face, scaled up nearest-neighbor so
// headlines stay crisp without shipping font files.
func drawText(img *image.RGBA, text string, x, y, scale int, col color.RGBA) {
	if scale < 1 {
		scale = 1
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Metrics().Height.Ceil()
	if w <= 0 {
		return
	}

	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  tmp,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: fixed.I(face.Metrics().Ascent.Ceil())},
	}
	d.DrawString(text)

	for ty := 0; ty < h; ty++ {
		for tx := 0; tx < w; tx++ {
			c := tmp.RGBAAt(tx, ty)
			if c.A == 0 {
				continue
			}
			for sy := 0; sy < scale; sy++ {
				for sx := 0; sx < scale; sx++ {
					img.SetRGBA(x+tx*scale+sx, y+ty*scale+sy, c)
				}
			}
		}
	}
}
