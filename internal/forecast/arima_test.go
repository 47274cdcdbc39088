package forecast

import (
	"errors"
	"fmt"
	"testing"
)

func TestARIMA_ContinuesLinearTrend(t *testing.T) {
	seats := make([]float64, 20)
	for i := range seats {
		seats[i] = 10 + 3*float64(i)
	}
	train := trainSeries(seats)

	fitted, err := ARIMA{}.Fit(train)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	last := train[len(train)-1].Date
	future := []FuturePoint{
		{Date: last.AddDate(0, 0, 1)},
		{Date: last.AddDate(0, 0, 2)},
		{Date: last.AddDate(0, 0, 3)},
	}
	got := fitted.Predict(future)
	if len(got) != len(future) {
		t.Fatalf("len(Predict()) = %d, want %d", len(got), len(future))
	}
	// A perfectly linear series differences to a constant, so the forecast
	// must extend the line exactly.
	for i, want := range []float64{70, 73, 76} {
		inDelta(t, fmt.Sprintf("prediction %d days out", i+1), got[i], want, 1e-6)
	}
}

func TestARIMA_ConstantSeries(t *testing.T) {
	seats := make([]float64, 12)
	for i := range seats {
		seats[i] = 100
	}
	train := trainSeries(seats)

	fitted, err := ARIMA{}.Fit(train)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	last := train[len(train)-1].Date
	got := fitted.Predict([]FuturePoint{{Date: last.AddDate(0, 0, 2)}})
	inDelta(t, "constant-series prediction", got[0], 100, 1e-6)
}

func TestARIMA_InsufficientData(t *testing.T) {
	if _, err := (ARIMA{}).Fit(sequentialSeries(4)); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("Fit(4 points) error = %v, want ErrInsufficientData", err)
	}
}
