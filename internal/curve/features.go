package curve

import (
	"database/sql"

	"github.com/flightyield/seatcast/internal/models"
)

type trendKey struct {
	route   string
	offset  int
	weekend bool
}

// TrendLookup resolves historical per-offset averages for a route. Weekend-
// segmented rows win; route-only rows are the fallback.
type TrendLookup struct {
	segmented map[trendKey]models.SummaryRow
	pooled    map[trendKey]models.SummaryRow
}

func NewTrendLookup(rows []models.SummaryRow) *TrendLookup {
	l := &TrendLookup{
		segmented: map[trendKey]models.SummaryRow{},
		pooled:    map[trendKey]models.SummaryRow{},
	}
	for _, r := range rows {
		if r.Weekend.Valid {
			l.segmented[trendKey{r.Route, r.Offset, r.Weekend.Bool}] = r
		} else {
			l.pooled[trendKey{route: r.Route, offset: r.Offset}] = r
		}
	}
	return l
}

// Row returns the summary for (route, offset), preferring the weekend-
// segmented granularity.
func (l *TrendLookup) Row(route string, offset int, weekend bool) (models.SummaryRow, bool) {
	if r, ok := l.segmented[trendKey{route, offset, weekend}]; ok {
		return r, true
	}
	r, ok := l.pooled[trendKey{route: route, offset: offset}]
	return r, ok
}

func (l *TrendLookup) AvgPickup(route string, offset int, weekend bool) (float64, bool) {
	r, ok := l.Row(route, offset, weekend)
	if !ok || !r.AvgPickup.Valid {
		return 0, false
	}
	return r.AvgPickup.Float64, true
}

// SegmentRows returns every summary row for a route at one granularity,
// ordered by descending offset. Weekend-segmented rows are returned when
// any exist for the route, matching the requested flag.
func (l *TrendLookup) SegmentRows(route string, weekend bool) []models.SummaryRow {
	var rows []models.SummaryRow
	for k, r := range l.segmented {
		if k.route == route && k.weekend == weekend {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		for k, r := range l.pooled {
			if k.route == route {
				rows = append(rows, r)
			}
		}
	}
	sortSummaries(rows)
	return rows
}

// DeriveFeatures computes the rate, acceleration and load-factor columns on
// one cleaned flight series. The series must be contiguous in offset.
// Capacity zero or missing leaves the percentage fields missing rather than
// dividing by zero.
func DeriveFeatures(points []models.CurvePoint, capacity sql.NullInt64) []models.CurvePoint {
	sortByOffset(points)

	seatsAt := func(i int) (float64, bool) {
		if i < 0 || i >= len(points) || !points[i].Seats.Valid {
			return 0, false
		}
		return float64(points[i].Seats.Int64), true
	}
	loadFactorAt := func(i int) (float64, bool) {
		if !capacity.Valid || capacity.Int64 <= 0 {
			return 0, false
		}
		seats, ok := seatsAt(i)
		if !ok {
			return 0, false
		}
		lf := seats / float64(capacity.Int64)
		if lf < 0 {
			lf = 0
		}
		if lf > 1 {
			lf = 1
		}
		return lf, true
	}

	for i := range points {
		points[i].BookingRate = sql.NullFloat64{}
		points[i].Acceleration = sql.NullFloat64{}
		points[i].LoadFactor = sql.NullFloat64{}
		points[i].LeadLoadFactor = sql.NullFloat64{}

		cur, curOK := seatsAt(i)
		next, nextOK := seatsAt(i + 1)
		if curOK && nextOK {
			points[i].BookingRate = sql.NullFloat64{Float64: cur - next, Valid: true}
		}
		if further, ok := seatsAt(i + 2); curOK && nextOK && ok {
			points[i].Acceleration = sql.NullFloat64{Float64: (cur - next) - (next - further), Valid: true}
		}
		if lf, ok := loadFactorAt(i); ok {
			points[i].LoadFactor = sql.NullFloat64{Float64: lf, Valid: true}
		}
		if lead, ok := loadFactorAt(i - 1); ok {
			points[i].LeadLoadFactor = sql.NullFloat64{Float64: lead, Valid: true}
		}
	}
	return points
}

// JoinAvgPickup attaches the historical mean pickup for each point's
// (route, offset, weekend) segment. Points without a matching summary keep
// a null pickup.
func JoinAvgPickup(points []models.CurvePoint, trend *TrendLookup) {
	for i := range points {
		p := &points[i]
		if pickup, ok := trend.AvgPickup(p.Route, p.Offset, p.Weekend); ok {
			p.AvgPickup = sql.NullFloat64{Float64: pickup, Valid: true}
		} else {
			p.AvgPickup = sql.NullFloat64{}
		}
	}
}
