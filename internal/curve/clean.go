package curve

import (
	"database/sql"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/flightyield/seatcast/internal/models"
)

const (
	outlierWindow    = 3
	outlierThreshold = 2.0
	outlierMinOffset = 30
)

// CleanHistorical normalizes one flight's historical series: contiguous
// offsets, floor clamping, outlier screening and smoother-based imputation.
// Running it again on its own output changes nothing.
func CleanHistorical(points []models.CurvePoint) []models.CurvePoint {
	out := FillGaps(points)
	clampFloor(out)
	out = ScreenOutliers(out)
	return imputeSmoothed(out)
}

// CleanForecast normalizes one to-forecast flight's partial series. Late
// observed bookings are kept as-is, so there is no outlier screen, and the
// lighter midpoint interpolation fills the gaps.
func CleanForecast(points []models.CurvePoint) []models.CurvePoint {
	out := FillGaps(points)
	clampFloor(out)
	return InterpolateMidpoints(out)
}

// FillGaps reindexes one flight's series to every integer offset between
// the observed minimum and maximum. Introduced points carry null seats,
// never zero.
func FillGaps(points []models.CurvePoint) []models.CurvePoint {
	if len(points) == 0 {
		return nil
	}
	minOffset, maxOffset := points[0].Offset, points[0].Offset
	byOffset := make(map[int]models.CurvePoint, len(points))
	for _, p := range points {
		if p.Offset < minOffset {
			minOffset = p.Offset
		}
		if p.Offset > maxOffset {
			maxOffset = p.Offset
		}
		byOffset[p.Offset] = p
	}

	proto := points[0]
	out := make([]models.CurvePoint, 0, maxOffset-minOffset+1)
	for off := maxOffset; off >= minOffset; off-- {
		if p, ok := byOffset[off]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, models.CurvePoint{
			Route:         proto.Route,
			DepartureDate: proto.DepartureDate,
			Offset:        off,
			Weekend:       proto.Weekend,
		})
	}
	return out
}

func clampFloor(points []models.CurvePoint) {
	for i := range points {
		if points[i].Seats.Valid && points[i].Seats.Int64 < 0 {
			points[i].Seats.Int64 = 0
		}
	}
}

// ScreenOutliers flags points whose residual against a trailing rolling
// mean (window 3, full windows only) sits more than two standard deviations
// from the flight's mean residual, provided the point is more than 30 days
// out. Flagged seats become missing ahead of imputation. Points close to
// departure are never screened; a late surge is treated as signal.
func ScreenOutliers(points []models.CurvePoint) []models.CurvePoint {
	sortCalendar(points)

	type residual struct {
		idx   int
		value float64
	}
	var residuals []residual
	for i := outlierWindow - 1; i < len(points); i++ {
		if !points[i].Seats.Valid {
			continue
		}
		sum, complete := 0.0, true
		for j := i - outlierWindow + 1; j <= i; j++ {
			if !points[j].Seats.Valid {
				complete = false
				break
			}
			sum += float64(points[j].Seats.Int64)
		}
		if !complete {
			continue
		}
		mean := sum / outlierWindow
		residuals = append(residuals, residual{idx: i, value: float64(points[i].Seats.Int64) - mean})
	}
	if len(residuals) < 2 {
		return points
	}

	vals := make([]float64, len(residuals))
	for i, r := range residuals {
		vals[i] = r.value
	}
	mean, sd := stat.MeanStdDev(vals, nil)
	if sd == 0 {
		return points
	}

	for _, r := range residuals {
		if math.Abs(r.value-mean) > outlierThreshold*sd && points[r.idx].Offset > outlierMinOffset {
			points[r.idx].Seats = sql.NullInt64{}
			points[r.idx].Outlier = true
		}
	}
	return points
}

// imputeSmoothed fills missing seats from the state-space smoother. A
// series with fewer than two observations is returned untouched; there is
// nothing to extrapolate from.
func imputeSmoothed(points []models.CurvePoint) []models.CurvePoint {
	sortCalendar(points)

	values := make([]float64, len(points))
	present := make([]bool, len(points))
	observed := 0
	for i, p := range points {
		if p.Seats.Valid {
			values[i] = float64(p.Seats.Int64)
			present[i] = true
			observed++
		}
	}
	if observed == len(points) || observed < 2 {
		return points
	}

	smoothed, err := NewSmoother().Smooth(values, present)
	if err != nil {
		return points
	}
	for i := range points {
		if present[i] {
			continue
		}
		seats := int64(math.Round(smoothed[i]))
		if seats < 0 {
			seats = 0
		}
		points[i].Seats = sql.NullInt64{Int64: seats, Valid: true}
		points[i].Imputed = true
	}
	return points
}
