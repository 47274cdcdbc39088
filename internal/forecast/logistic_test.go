package forecast

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

// logisticSeats generates a noiseless logistic booking curve.
func logisticSeats(capacity, intercept, slope float64, day int) float64 {
	z := intercept + slope*float64(day)
	return capacity / (1 + math.Exp(-z))
}

func TestLogisticGrowth_RecoversCurve(t *testing.T) {
	const capacity = 200.0
	train := make([]TrainPoint, 15)
	for i := range train {
		train[i] = TrainPoint{
			Date:  testOrigin.AddDate(0, 0, i),
			Seats: logisticSeats(capacity, -2, 0.15, i),
		}
	}

	fitted, err := LogisticGrowth{Capacity: capacity}.Fit(train)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	future := []FuturePoint{
		{Date: testOrigin.AddDate(0, 0, 15)},
		{Date: testOrigin.AddDate(0, 0, 16)},
		{Date: testOrigin.AddDate(0, 0, 17)},
	}
	got := fitted.Predict(future)
	for i, fp := range future {
		day := 15 + i
		inDelta(t, fmt.Sprintf("seats on %s", fp.Date.Format("2006-01-02")),
			got[i], logisticSeats(capacity, -2, 0.15, day), 1e-6)
	}
}

func TestLogisticGrowth_Errors(t *testing.T) {
	if _, err := (LogisticGrowth{Capacity: 0}).Fit(sequentialSeries(10)); err == nil {
		t.Error("Fit() with zero capacity: error = nil, want error")
	}
	if _, err := (LogisticGrowth{Capacity: 200}).Fit(sequentialSeries(2)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Fit(2 points) error = %v, want ErrInsufficientData", err)
	}
}

func TestLogisticRegressors_RecoversDesign(t *testing.T) {
	const capacity = 200.0
	point := func(day int) TrainPoint {
		tt := float64(day)
		rate := 3 + 2*math.Sin(2.1*tt)
		lead := 0.3 + 0.04*math.Cos(1.3*tt)
		z := -2 + 0.1*tt + 0.05*rate + 0.3*lead
		return TrainPoint{
			Date:           testOrigin.AddDate(0, 0, day),
			Seats:          capacity / (1 + math.Exp(-z)),
			BookingRate:    rate,
			LeadLoadFactor: lead,
		}
	}

	train := make([]TrainPoint, 12)
	for i := range train {
		train[i] = point(i)
	}
	fitted, err := LogisticRegressors{Capacity: capacity}.Fit(train)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	for _, day := range []int{12, 13, 14} {
		p := point(day)
		got := fitted.Predict([]FuturePoint{{
			Date:           p.Date,
			BookingRate:    p.BookingRate,
			LeadLoadFactor: p.LeadLoadFactor,
		}})
		inDelta(t, fmt.Sprintf("seats on day %d", day), got[0], p.Seats, 1e-4)
	}
}

func TestLogisticRegressors_SeasonalFallback(t *testing.T) {
	// Five points cannot support the six-column seasonal design, so the fit
	// must retry without the weekly pair.
	rates := []float64{2, 5, 3, 6, 4}
	leads := []float64{0.2, 0.26, 0.31, 0.28, 0.35}
	train := make([]TrainPoint, 5)
	for i := range train {
		train[i] = TrainPoint{
			Date:           testOrigin.AddDate(0, 0, i),
			Seats:          40 + 10*float64(i),
			BookingRate:    rates[i],
			LeadLoadFactor: leads[i],
		}
	}

	fitted, err := LogisticRegressors{Capacity: 200}.Fit(train)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	fr, ok := fitted.(*fittedLogisticRegressors)
	if !ok {
		t.Fatalf("Fit() returned %T, want *fittedLogisticRegressors", fitted)
	}
	if fr.seasonal {
		t.Error("seasonal = true, want false after fallback")
	}
}

func TestLogisticRegressors_Errors(t *testing.T) {
	if _, err := (LogisticRegressors{Capacity: -1}).Fit(sequentialSeries(10)); err == nil {
		t.Error("Fit() with negative capacity: error = nil, want error")
	}
	if _, err := (LogisticRegressors{Capacity: 200}).Fit(sequentialSeries(4)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Fit(4 points) error = %v, want ErrInsufficientData", err)
	}
}
