package forecast

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/flightyield/seatcast/internal/models"
)

const (
	logitEpsilon   = 1e-3
	seasonalPeriod = 7.0
)

// logit maps seats onto an unbounded scale, clamped away from 0 and the
// capacity asymptote so the transform stays finite.
func logit(seats, capacity float64) float64 {
	frac := seats / capacity
	if frac < logitEpsilon {
		frac = logitEpsilon
	}
	if frac > 1-logitEpsilon {
		frac = 1 - logitEpsilon
	}
	return math.Log(frac / (1 - frac))
}

func invLogit(z, capacity float64) float64 {
	return capacity / (1 + math.Exp(-z))
}

func dayIndex(origin, date time.Time) float64 {
	return math.Round(date.Sub(origin).Hours() / 24)
}

// LogisticGrowth fits seats-sold against the calendar date with growth
// saturating at the flight's capacity: ordinary least squares on the
// logit-transformed load fraction, date only, no regressors.
type LogisticGrowth struct {
	Capacity float64
}

func (LogisticGrowth) Name() string { return models.SeriesLogistic }

func (m LogisticGrowth) Fit(train []TrainPoint) (FittedModel, error) {
	if m.Capacity <= 0 {
		return nil, fmt.Errorf("logistic: capacity must be positive, have %v", m.Capacity)
	}
	if len(train) < 3 {
		return nil, fmt.Errorf("logistic: %w: have %d points, need 3", ErrInsufficientData, len(train))
	}

	origin := train[0].Date
	xs := make([]float64, len(train))
	zs := make([]float64, len(train))
	for i, p := range train {
		xs[i] = dayIndex(origin, p.Date)
		zs[i] = logit(p.Seats, m.Capacity)
	}

	alpha, beta := stat.LinearRegression(xs, zs, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return nil, fmt.Errorf("logistic: degenerate regression")
	}
	return &fittedLogistic{capacity: m.Capacity, origin: origin, alpha: alpha, beta: beta}, nil
}

type fittedLogistic struct {
	capacity    float64
	origin      time.Time
	alpha, beta float64
}

func (f *fittedLogistic) Predict(future []FuturePoint) []float64 {
	out := make([]float64, len(future))
	for i, fp := range future {
		z := f.alpha + f.beta*dayIndex(f.origin, fp.Date)
		out[i] = invLogit(z, f.capacity)
	}
	return out
}

// LogisticRegressors augments the logistic trend with the daily booking
// rate and lead load factor regressors plus a weekly seasonal pair, all on
// the logit scale. When the seasonal design cannot be solved it retries
// once without the seasonal columns.
type LogisticRegressors struct {
	Capacity float64
}

func (LogisticRegressors) Name() string { return models.SeriesLogisticReg }

func (m LogisticRegressors) Fit(train []TrainPoint) (FittedModel, error) {
	if m.Capacity <= 0 {
		return nil, fmt.Errorf("logistic regressors: capacity must be positive, have %v", m.Capacity)
	}
	fitted, err := m.fit(train, true)
	if err == nil {
		return fitted, nil
	}
	return m.fit(train, false)
}

func (m LogisticRegressors) fit(train []TrainPoint, seasonal bool) (FittedModel, error) {
	cols := 4
	if seasonal {
		cols = 6
	}
	if len(train) <= cols {
		return nil, fmt.Errorf("logistic regressors: %w: have %d points, need more than %d", ErrInsufficientData, len(train), cols)
	}

	origin := train[0].Date
	design := mat.NewDense(len(train), cols, nil)
	response := mat.NewVecDense(len(train), nil)
	for i, p := range train {
		design.SetRow(i, regressorRow(dayIndex(origin, p.Date), p.BookingRate, p.LeadLoadFactor, seasonal))
		response.SetVec(i, logit(p.Seats, m.Capacity))
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, response); err != nil {
		return nil, fmt.Errorf("logistic regressors: solve: %w", err)
	}
	for i := 0; i < coef.Len(); i++ {
		if math.IsNaN(coef.AtVec(i)) || math.IsInf(coef.AtVec(i), 0) {
			return nil, fmt.Errorf("logistic regressors: non-finite coefficient")
		}
	}

	return &fittedLogisticRegressors{
		capacity: m.Capacity,
		origin:   origin,
		coef:     coef.RawVector().Data,
		seasonal: seasonal,
	}, nil
}

func regressorRow(t, rate, leadLoadFactor float64, seasonal bool) []float64 {
	row := []float64{1, t, rate, leadLoadFactor}
	if seasonal {
		angle := 2 * math.Pi * t / seasonalPeriod
		row = append(row, math.Sin(angle), math.Cos(angle))
	}
	return row
}

type fittedLogisticRegressors struct {
	capacity float64
	origin   time.Time
	coef     []float64
	seasonal bool
}

func (f *fittedLogisticRegressors) Predict(future []FuturePoint) []float64 {
	out := make([]float64, len(future))
	for i, fp := range future {
		row := regressorRow(dayIndex(f.origin, fp.Date), fp.BookingRate, fp.LeadLoadFactor, f.seasonal)
		var z float64
		for j, v := range row {
			z += v * f.coef[j]
		}
		out[i] = invLogit(z, f.capacity)
	}
	return out
}
