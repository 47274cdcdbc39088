package forecast

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/flightyield/seatcast/internal/curve"
	"github.com/flightyield/seatcast/internal/models"
)

// Engine turns one flight's booking curve into a forecast run: a walk-forward
// backtest across every candidate model, pooled accuracy scoring, a final
// refit on the full history and a projection out to departure day.
type Engine struct {
	AssessWindow int
	Workers      int
}

func NewEngine(assessWindow, workers int) *Engine {
	if assessWindow <= 0 {
		assessWindow = DefaultAssessWindow
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{AssessWindow: assessWindow, Workers: workers}
}

// Run produces the forecast run for one flight. points is the cleaned,
// feature-derived booking curve; trend supplies historical per-offset
// averages for future regressors and the pickup baseline. Capacity must be
// known, the logistic models are anchored to it.
func (e *Engine) Run(ctx context.Context, flight models.Flight, points []models.CurvePoint, trend *curve.TrendLookup) (*models.ForecastRun, error) {
	key := models.RunKey(flight.Route, flight.DepartureDate)
	if !flight.Capacity.Valid || flight.Capacity.Int64 <= 0 {
		return nil, fmt.Errorf("flight %s has no usable capacity", key)
	}
	if trend == nil {
		trend = curve.NewTrendLookup(nil)
	}

	observed := observedPoints(points)
	if len(observed) == 0 {
		return nil, fmt.Errorf("flight %s: %w", key, ErrInsufficientData)
	}
	daysAhead := observed[len(observed)-1].Offset

	train := trainingFrame(observed)
	splits, err := RollingOrigin(train, e.AssessWindow)
	if err != nil {
		return nil, fmt.Errorf("flight %s: %w", key, err)
	}

	capacity := float64(flight.Capacity.Int64)
	mods := []Model{
		ARIMA{},
		LogisticGrowth{Capacity: capacity},
		LogisticRegressors{Capacity: capacity},
	}

	rows, err := Backtest(ctx, splits, mods, e.Workers)
	if err != nil {
		return nil, fmt.Errorf("flight %s: backtest: %w", key, err)
	}

	accuracy := Accuracy(rows, train)
	stats := ResidualsByModel(rows)
	future := futureFrame(flight, daysAhead, train, trend)

	series := actualSeries(observed)
	forward := map[string][]models.ForecastPoint{}
	for _, m := range mods {
		fitted, err := m.Fit(train)
		if err != nil {
			return nil, fmt.Errorf("flight %s: final fit %s: %w", key, m.Name(), err)
		}
		preds := fitted.Predict(future)
		pts := make([]models.ForecastPoint, len(preds))
		for i, v := range preds {
			pts[i] = models.ForecastPoint{
				Series: m.Name(),
				Date:   future[i].Date,
				Offset: future[i].Offset,
				Value:  v,
			}
		}
		ApplyConfidence(pts, stats)
		forward[m.Name()] = pts
		series = append(series, pts...)
	}

	currentSeats := float64(observed[len(observed)-1].Seats.Int64)
	if avgPickup, ok := trend.AvgPickup(flight.Route, daysAhead, flight.Weekend); ok {
		series = append(series, PickupBaseline(flight.DepartureDate, daysAhead, currentSeats, avgPickup)...)
	}

	return &models.ForecastRun{
		Route:         flight.Route,
		DepartureDate: flight.DepartureDate,
		GeneratedAt:   time.Now().UTC(),
		Capacity:      flight.Capacity.Int64,
		DaysAhead:     daysAhead,
		Accuracy:      accuracy,
		Series:        series,
		Facts:         buildFacts(flight, observed, forward[models.SeriesLogisticReg], trend),
	}, nil
}

// observedPoints keeps rows with a known seat count, ordered oldest first.
func observedPoints(points []models.CurvePoint) []models.CurvePoint {
	out := make([]models.CurvePoint, 0, len(points))
	for _, p := range points {
		if p.Seats.Valid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset > out[j].Offset })
	return out
}

// trainingFrame keeps rows with a complete regressor set so every model
// trains on the same frame. The oldest and newest snapshots fall out here:
// the oldest has no prior point to difference against, the newest has no
// later load factor to lead.
func trainingFrame(observed []models.CurvePoint) []TrainPoint {
	out := make([]TrainPoint, 0, len(observed))
	for _, p := range observed {
		if !p.BookingRate.Valid || !p.LeadLoadFactor.Valid {
			continue
		}
		out = append(out, TrainPoint{
			Date:           p.Date(),
			Offset:         p.Offset,
			Seats:          float64(p.Seats.Int64),
			BookingRate:    p.BookingRate.Float64,
			LeadLoadFactor: p.LeadLoadFactor.Float64,
		})
	}
	return out
}

// futureFrame builds the regressor rows for the projection horizon. Each
// future offset takes its regressors from the route's historical averages,
// falling back to the last trained values where no summary exists.
func futureFrame(flight models.Flight, daysAhead int, train []TrainPoint, trend *curve.TrendLookup) []FuturePoint {
	if daysAhead <= 0 {
		return nil
	}
	var lastRate, lastLead float64
	if n := len(train); n > 0 {
		lastRate = train[n-1].BookingRate
		lastLead = train[n-1].LeadLoadFactor
	}
	out := make([]FuturePoint, 0, daysAhead)
	for offset := daysAhead - 1; offset >= 0; offset-- {
		fp := FuturePoint{
			Date:           flight.DepartureDate.AddDate(0, 0, -offset),
			Offset:         offset,
			BookingRate:    lastRate,
			LeadLoadFactor: lastLead,
		}
		if row, ok := trend.Row(flight.Route, offset, flight.Weekend); ok {
			if row.AvgBookingRate.Valid {
				fp.BookingRate = row.AvgBookingRate.Float64
			}
			if row.AvgLeadLoadFactor.Valid {
				fp.LeadLoadFactor = row.AvgLeadLoadFactor.Float64
			}
		}
		out = append(out, fp)
	}
	return out
}

func actualSeries(observed []models.CurvePoint) []models.ForecastPoint {
	out := make([]models.ForecastPoint, 0, len(observed))
	for _, p := range observed {
		out = append(out, models.ForecastPoint{
			Series: models.SeriesActual,
			Date:   p.Date(),
			Offset: p.Offset,
			Value:  float64(p.Seats.Int64),
		})
	}
	return out
}

// buildFacts condenses the run into the grounding payload handed to the
// narrative generator.
func buildFacts(flight models.Flight, observed []models.CurvePoint, forward []models.ForecastPoint, trend *curve.TrendLookup) models.NarrativeFacts {
	facts := models.NarrativeFacts{
		Route:         flight.Route,
		DepartureDate: flight.DepartureDate.Format("2006-01-02"),
		Capacity:      flight.Capacity.Int64,
		Weekend:       flight.Weekend,
	}
	for _, p := range observed {
		facts.Actuals = append(facts.Actuals, models.FactPoint{
			Date:  p.Date().Format("2006-01-02"),
			Seats: float64(p.Seats.Int64),
		})
	}
	if n := len(observed); n > 0 {
		facts.CurrentSeats = float64(observed[n-1].Seats.Int64)
	}
	for _, p := range forward {
		facts.Forecast = append(facts.Forecast, models.FactPoint{
			Date:  p.Date.Format("2006-01-02"),
			Seats: p.Value,
		})
	}
	for _, row := range trend.SegmentRows(flight.Route, flight.Weekend) {
		if !row.AvgPickup.Valid && !row.AvgBookingRate.Valid {
			continue
		}
		fact := models.TrendFact{DaysOut: row.Offset}
		if row.AvgPickup.Valid {
			fact.AvgPickup = row.AvgPickup.Float64
		}
		if row.AvgBookingRate.Valid {
			fact.AvgBookingRate = row.AvgBookingRate.Float64
		}
		facts.Trend = append(facts.Trend, fact)
	}
	return facts
}
