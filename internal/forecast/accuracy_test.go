package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

func pairedRows(model string, start time.Time, actuals, preds []float64) []BacktestRow {
	var rows []BacktestRow
	for i := range actuals {
		date := start.AddDate(0, 0, i)
		rows = append(rows,
			BacktestRow{SplitID: 1, Model: models.SeriesActual, Date: date, Value: actuals[i]},
			BacktestRow{SplitID: 1, Model: model, Date: date, Value: preds[i]},
		)
	}
	return rows
}

func TestAccuracy_PooledMetrics(t *testing.T) {
	rows := pairedRows(models.SeriesARIMA, testOrigin,
		[]float64{100, 110, 120, 130},
		[]float64{102, 108, 123, 130})
	train := trainSeries([]float64{100, 105, 110, 115, 120})

	acc := Accuracy(rows, train)
	if len(acc) != 1 {
		t.Fatalf("len(acc) = %d, want 1", len(acc))
	}
	row := acc[0]
	if row.Model != models.SeriesARIMA {
		t.Errorf("Model = %q, want %q", row.Model, models.SeriesARIMA)
	}
	if row.Points != 4 {
		t.Errorf("Points = %d, want 4", row.Points)
	}
	inDelta(t, "MAE", row.MAE, 1.75, 1e-9)
	inDelta(t, "RMSE", row.RMSE, math.Sqrt(4.25), 1e-9)
	inDelta(t, "MAPE", row.MAPE, (2.0/100+2.0/110+3.0/120+0.0/130)/4*100, 1e-9)
	inDelta(t, "SMAPE", row.SMAPE, (4.0/202+4.0/218+6.0/243+0)/4*100, 1e-9)
	// The naive one-step MAE of the training series is 5.
	inDelta(t, "MASE", row.MASE, 0.35, 1e-9)
	if row.R2 == nil {
		t.Fatal("R2 = nil, want value")
	}
	inDelta(t, "R2", *row.R2, 1-17.0/500, 1e-9)
}

func TestAccuracy_SkipsZeroActualsInMAPE(t *testing.T) {
	rows := pairedRows(models.SeriesLogistic, testOrigin,
		[]float64{0, 10, 0},
		[]float64{2, 8, 0})
	acc := Accuracy(rows, trainSeries([]float64{2, 4, 6, 8}))
	if len(acc) != 1 {
		t.Fatalf("len(acc) = %d, want 1", len(acc))
	}
	inDelta(t, "MAPE", acc[0].MAPE, 20, 1e-9)
	inDelta(t, "SMAPE", acc[0].SMAPE, (2.0*2/2*100+2.0*2/18*100)/2, 1e-9)
	if acc[0].Points != 3 {
		t.Errorf("Points = %d, want 3", acc[0].Points)
	}
}

func TestAccuracy_DegenerateGuards(t *testing.T) {
	// Constant actuals leave R² undefined and a flat training series leaves
	// MASE without a scale; neither may poison the row.
	rows := pairedRows(models.SeriesARIMA, testOrigin,
		[]float64{100, 100, 100},
		[]float64{98, 102, 98})
	acc := Accuracy(rows, trainSeries([]float64{50, 50, 50, 50}))
	if len(acc) != 1 {
		t.Fatalf("len(acc) = %d, want 1", len(acc))
	}
	if acc[0].R2 != nil {
		t.Errorf("R2 = %v, want nil", *acc[0].R2)
	}
	if acc[0].MASE != 0 {
		t.Errorf("MASE = %v, want 0", acc[0].MASE)
	}
	inDelta(t, "MAE", acc[0].MAE, 2, 1e-9)
}

func TestAccuracy_SortsByModel(t *testing.T) {
	rows := pairedRows(models.SeriesLogistic, testOrigin, []float64{10, 20}, []float64{11, 19})
	rows = append(rows, pairedRows(models.SeriesARIMA, testOrigin, []float64{10, 20}, []float64{12, 18})...)

	acc := Accuracy(rows, trainSeries([]float64{10, 15, 20}))
	if len(acc) != 2 {
		t.Fatalf("len(acc) = %d, want 2", len(acc))
	}
	if acc[0].Model != models.SeriesARIMA || acc[1].Model != models.SeriesLogistic {
		t.Errorf("order = [%q, %q], want [ARIMA, Logistic]", acc[0].Model, acc[1].Model)
	}
}
