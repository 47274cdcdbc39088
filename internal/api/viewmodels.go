package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"github.com/flightyield/seatcast/internal/models"
	"github.com/flightyield/seatcast/internal/store"
)

// IndexData drives the landing page: to-forecast flights plus the pooled
// booking trend for one selected route.
type IndexData struct {
	Routes        []string
	SelectedRoute string
	Upcoming      []UpcomingFlight
	Trend         []TrendRow
	TrendSVG      template.HTML
	UpdatedAt     string
}

// UpcomingFlight summarises one to-forecast flight for the index table.
type UpcomingFlight struct {
	Route     string
	Date      time.Time
	DateStr   string
	Weekend   bool
	Capacity  int64
	HasRun    bool
	DaysAhead int
	SeatsSold float64
	LoadPct   float64
}

// TrendRow is one days-out step of a route's pooled booking trend.
type TrendRow struct {
	Offset         int
	Flights        int
	AvgSeats       *float64
	AvgPickup      *float64
	AvgBookingRate *float64
	AvgLoadFactor  *float64
}

// FlightData drives the per-flight forecast page.
type FlightData struct {
	Route        string
	Date         time.Time
	DateStr      string
	Weekend      bool
	Capacity     int64
	QualityFlags []string
	HasRun       bool
	GeneratedAt  string
	Narrative    string
	Accuracy     []models.AccuracyRow
	CurveSVG     template.HTML
	Points       []CurveRow
	Forecast     []ForecastTableRow
}

// CurveRow is one observed snapshot in the flight page table.
type CurveRow struct {
	DateStr     string
	Offset      int
	Seats       *float64
	BookingRate *float64
	LoadFactor  *float64
	AvgPickup   *float64
	Imputed     bool
	Outlier     bool
}

// ForecastTableRow pivots the run's model series for one forecast day.
type ForecastTableRow struct {
	DateStr    string
	Offset     int
	ARIMA      *float64
	Logistic   *float64
	Regressors *float64
	RegLow     *float64
	RegHigh    *float64
	Pickup     *float64
}

// AccuracyData aggregates backtest accuracy across stored runs.
type AccuracyData struct {
	Models []ModelAccuracy
	Runs   int
}

// ModelAccuracy is one model's accuracy pooled across stored runs.
type ModelAccuracy struct {
	Model      string
	Runs       int
	Points     int
	MeanMAE    float64
	MedianMAE  float64
	MeanRMSE   float64
	MedianRMSE float64
	MeanMAPE   float64
	MeanSMAPE  float64
	MeanMASE   float64
}

// RunsData drives the operational runs page.
type RunsData struct {
	Stats       *store.HealthStats
	BatchHealth []store.BatchHealthSummary
	Failures    []FailureRow
	Runs        []RunRow
	UpdatedAt   string
}

// FailureRow is a failed forecast job for display.
type FailureRow struct {
	Route       string
	DateStr     string
	CompletedAt string
	Error       string
}

// RunRow is a stored forecast run for display.
type RunRow struct {
	Route       string
	DateStr     string
	GeneratedAt string
	DaysAhead   int
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status          string     `json:"status"`
	SchemaVersion   int        `json:"schema_version"`
	ForecastFlights int        `json:"forecast_flights"`
	StoredRuns      int        `json:"stored_runs"`
	LastBatchAt     *time.Time `json:"last_batch_at,omitempty"`
	LastBatchOK     bool       `json:"last_batch_ok"`
	Stale           bool       `json:"stale"`
	Errors          []string   `json:"errors,omitempty"`
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullSeats(v sql.NullInt64) *float64 {
	if !v.Valid {
		return nil
	}
	f := float64(v.Int64)
	return &f
}

func decodeQualityFlags(raw string) []string {
	if raw == "" {
		return nil
	}
	var flags []string
	if err := json.Unmarshal([]byte(raw), &flags); err != nil {
		return nil
	}
	return flags
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// buildForecastTable pivots the run's series into per-day rows, model per
// column, newest offset first.
func buildForecastTable(run *models.ForecastRun) []ForecastTableRow {
	rows := make(map[int]*ForecastTableRow)
	rowFor := func(p models.ForecastPoint) *ForecastTableRow {
		row, ok := rows[p.Offset]
		if !ok {
			row = &ForecastTableRow{Offset: p.Offset, DateStr: p.Date.Format("Mon 2 Jan")}
			rows[p.Offset] = row
		}
		return row
	}

	for _, p := range run.Series {
		v := p.Value
		switch p.Series {
		case models.SeriesARIMA:
			rowFor(p).ARIMA = &v
		case models.SeriesLogistic:
			rowFor(p).Logistic = &v
		case models.SeriesLogisticReg:
			row := rowFor(p)
			row.Regressors = &v
			row.RegLow = p.ConfLow
			row.RegHigh = p.ConfHigh
		case models.SeriesPickup:
			rowFor(p).Pickup = &v
		}
	}

	offsets := make([]int, 0, len(rows))
	for off := range rows {
		offsets = append(offsets, off)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))

	out := make([]ForecastTableRow, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, *rows[off])
	}
	return out
}

// Chart geometry and colors shared by the inline SVG builders.
const (
	svgWidth  = 860
	svgHeight = 320
	svgLeft   = 52
	svgRight  = svgWidth - 18
	svgTop    = 30
	svgBottom = svgHeight - 34
)

var seriesColors = map[string]string{
	models.SeriesActual:      "#4fc3f7",
	models.SeriesLogisticReg: "#81c784",
	models.SeriesLogistic:    "#ce93d8",
	models.SeriesARIMA:       "#ffb74d",
	models.SeriesPickup:      "#90a4ae",
}

// Canonical legend order. Absent series are skipped.
var seriesOrder = []string{
	models.SeriesActual,
	models.SeriesPickup,
	models.SeriesARIMA,
	models.SeriesLogistic,
	models.SeriesLogisticReg,
}

type svgScale struct {
	maxOff, minOff int
	yMax           float64
}

func (sc svgScale) x(off int) float64 {
	span := float64(sc.maxOff - sc.minOff)
	if span == 0 {
		span = 1
	}
	return svgLeft + float64(sc.maxOff-off)/span*float64(svgRight-svgLeft)
}

func (sc svgScale) y(v float64) float64 {
	return float64(svgBottom) - v/sc.yMax*float64(svgBottom-svgTop)
}

func svgAxis(b *strings.Builder, sc svgScale) {
	fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#445"/>`,
		svgLeft, svgBottom, svgRight, svgBottom)
	fmt.Fprintf(b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#445"/>`,
		svgLeft, svgTop, svgLeft, svgBottom)

	for frac := 0.25; frac <= 1.0; frac += 0.25 {
		v := sc.yMax * frac
		y := sc.y(v)
		fmt.Fprintf(b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#333" stroke-dasharray="2 5"/>`,
			svgLeft, y, svgRight, y)
		fmt.Fprintf(b, `<text x="%d" y="%.1f" fill="#889" font-size="11" text-anchor="end">%.0f</text>`,
			svgLeft-6, y+4, v)
	}

	for off := sc.minOff; off <= sc.maxOff; off++ {
		if off != 0 && off%7 != 0 {
			continue
		}
		x := sc.x(off)
		label := fmt.Sprintf("%dd", off)
		if off == 0 {
			label = "dep"
		}
		fmt.Fprintf(b, `<text x="%.1f" y="%d" fill="#889" font-size="11" text-anchor="middle">%s</text>`,
			x, svgBottom+16, label)
	}
}

func svgPolyline(b *strings.Builder, points []models.ForecastPoint, sc svgScale, color string) {
	if len(points) == 0 {
		return
	}
	if len(points) == 1 {
		fmt.Fprintf(b, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>`,
			sc.x(points[0].Offset), sc.y(points[0].Value), color)
		return
	}
	var coords strings.Builder
	for i, p := range points {
		if i > 0 {
			coords.WriteByte(' ')
		}
		fmt.Fprintf(&coords, "%.1f,%.1f", sc.x(p.Offset), sc.y(p.Value))
	}
	fmt.Fprintf(b, `<polyline points="%s" fill="none" stroke="%s" stroke-width="2"/>`,
		coords.String(), color)
}

// buildCurveSVG renders the observed curve and every forecast series of a
// run as an inline chart, with the regressor model's confidence band
// underneath the lines.
func buildCurveSVG(run *models.ForecastRun) template.HTML {
	grouped := make(map[string][]models.ForecastPoint)
	for _, p := range run.Series {
		grouped[p.Series] = append(grouped[p.Series], p)
	}
	for name := range grouped {
		pts := grouped[name]
		sort.Slice(pts, func(i, j int) bool { return pts[i].Offset > pts[j].Offset })
	}

	sc := svgScale{yMax: float64(run.Capacity)}
	first := true
	for _, p := range run.Series {
		if first || p.Offset > sc.maxOff {
			sc.maxOff = p.Offset
		}
		if first || p.Offset < sc.minOff {
			sc.minOff = p.Offset
		}
		first = false
		if p.Value > sc.yMax {
			sc.yMax = p.Value
		}
		if p.ConfHigh != nil && *p.ConfHigh > sc.yMax {
			sc.yMax = *p.ConfHigh
		}
	}
	if sc.yMax <= 0 {
		sc.yMax = 1
	}
	sc.yMax *= 1.05

	var b strings.Builder
	fmt.Fprintf(&b, `<svg viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg" role="img">`,
		svgWidth, svgHeight)

	svgAxis(&b, sc)

	if run.Capacity > 0 {
		y := sc.y(float64(run.Capacity))
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="#667" stroke-dasharray="6 4"/>`,
			svgLeft, y, svgRight, y)
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" fill="#889" font-size="11" text-anchor="end">cap %d</text>`,
			svgRight, y-5, run.Capacity)
	}

	var band []models.ForecastPoint
	for _, p := range grouped[models.SeriesLogisticReg] {
		if p.ConfLow != nil && p.ConfHigh != nil {
			band = append(band, p)
		}
	}
	if len(band) > 1 {
		var path strings.Builder
		for i, p := range band {
			cmd := "L"
			if i == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.1f,%.1f", cmd, sc.x(p.Offset), sc.y(*p.ConfLow))
		}
		for i := len(band) - 1; i >= 0; i-- {
			p := band[i]
			fmt.Fprintf(&path, "L%.1f,%.1f", sc.x(p.Offset), sc.y(*p.ConfHigh))
		}
		fmt.Fprintf(&b, `<path d="%sZ" fill="%s" fill-opacity="0.15"/>`,
			path.String(), seriesColors[models.SeriesLogisticReg])
	}

	legendX := svgLeft
	for _, name := range seriesOrder {
		pts := grouped[name]
		if len(pts) == 0 {
			continue
		}
		color := seriesColors[name]
		svgPolyline(&b, pts, sc, color)
		fmt.Fprintf(&b, `<rect x="%d" y="10" width="10" height="10" fill="%s"/>`, legendX, color)
		fmt.Fprintf(&b, `<text x="%d" y="19" fill="#bbc" font-size="11">%s</text>`,
			legendX+14, template.HTMLEscapeString(name))
		legendX += 14 + 7*len(name) + 16
	}

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

// buildTrendSVG renders a route's pooled average curve.
func buildTrendSVG(rows []TrendRow) template.HTML {
	var pts []models.ForecastPoint
	for _, row := range rows {
		if row.AvgSeats == nil {
			continue
		}
		pts = append(pts, models.ForecastPoint{Offset: row.Offset, Value: *row.AvgSeats})
	}
	if len(pts) == 0 {
		return ""
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].Offset > pts[j].Offset })

	sc := svgScale{maxOff: pts[0].Offset, minOff: pts[len(pts)-1].Offset}
	for _, p := range pts {
		if p.Value > sc.yMax {
			sc.yMax = p.Value
		}
	}
	if sc.yMax <= 0 {
		sc.yMax = 1
	}
	sc.yMax *= 1.05

	var b strings.Builder
	fmt.Fprintf(&b, `<svg viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg" role="img">`,
		svgWidth, svgHeight)
	svgAxis(&b, sc)
	svgPolyline(&b, pts, sc, seriesColors[models.SeriesActual])
	fmt.Fprintf(&b, `<text x="%d" y="19" fill="#bbc" font-size="11">avg seats sold</text>`, svgLeft)
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
