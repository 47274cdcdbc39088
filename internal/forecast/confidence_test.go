package forecast

import (
	"math"
	"testing"

	"github.com/flightyield/seatcast/internal/models"
)

func TestResidualsByModel(t *testing.T) {
	rows := pairedRows(models.SeriesARIMA, testOrigin,
		[]float64{100, 110, 120, 130},
		[]float64{102, 108, 123, 130})

	stats := ResidualsByModel(rows)
	st, ok := stats[models.SeriesARIMA]
	if !ok {
		t.Fatal("no stats for ARIMA")
	}
	if st.N != 4 {
		t.Errorf("N = %d, want 4", st.N)
	}
	// Residuals are -2, 2, -3, 0.
	inDelta(t, "Mean", st.Mean, -0.75, 1e-9)
	inDelta(t, "SD", st.SD, math.Sqrt(14.75/3), 1e-9)
}

func TestResidualsByModel_SingleResidual(t *testing.T) {
	rows := pairedRows(models.SeriesLogistic, testOrigin, []float64{100}, []float64{95})
	stats := ResidualsByModel(rows)
	st := stats[models.SeriesLogistic]
	if st.N != 1 {
		t.Fatalf("N = %d, want 1", st.N)
	}
	if st.SD != 0 {
		t.Errorf("SD = %v, want 0 for a single residual", st.SD)
	}
}

func TestApplyConfidence(t *testing.T) {
	points := []models.ForecastPoint{
		{Series: models.SeriesARIMA, Value: 100},
		{Series: models.SeriesPickup, Value: 100},
		{Series: models.SeriesLogistic, Value: 100},
	}
	stats := map[string]ResidualStats{
		models.SeriesARIMA:    {Mean: 0.5, SD: 2, N: 6},
		models.SeriesLogistic: {N: 1},
	}

	ApplyConfidence(points, stats)

	if points[0].ConfLow == nil || points[0].ConfHigh == nil {
		t.Fatal("ARIMA point missing confidence bounds")
	}
	inDelta(t, "ConfLow", *points[0].ConfLow, 100-1.96*2, 1e-9)
	inDelta(t, "ConfHigh", *points[0].ConfHigh, 100+1.96*2, 1e-9)

	if points[1].ConfLow != nil || points[1].ConfHigh != nil {
		t.Error("pickup point has bounds, want none without backtest residuals")
	}
	if points[2].ConfLow != nil || points[2].ConfHigh != nil {
		t.Error("single-residual point has bounds, want none")
	}
}
