package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/flightyield/seatcast/internal/models"
)

// confidenceZ approximates a 95% interval under normal backtest residuals.
const confidenceZ = 1.96

// ResidualStats is the empirical distribution of one model's backtest
// residuals (actual minus predicted).
type ResidualStats struct {
	Mean float64
	SD   float64
	N    int
}

// ResidualsByModel pools backtest rows into per-model residual statistics.
func ResidualsByModel(rows []BacktestRow) map[string]ResidualStats {
	actuals := joinActuals(rows)

	residsByModel := map[string][]float64{}
	for _, r := range rows {
		if r.Model == models.SeriesActual {
			continue
		}
		actual, ok := actuals[r.Date]
		if !ok {
			continue
		}
		residsByModel[r.Model] = append(residsByModel[r.Model], actual-r.Value)
	}

	out := map[string]ResidualStats{}
	for model, resids := range residsByModel {
		if len(resids) < 2 {
			out[model] = ResidualStats{N: len(resids)}
			continue
		}
		mean, sd := stat.MeanStdDev(resids, nil)
		out[model] = ResidualStats{Mean: mean, SD: sd, N: len(resids)}
	}
	return out
}

// ApplyConfidence attaches point ± z·sd bounds to forecast rows whose
// series has a defined residual spread. Rows from series with fewer than
// two residuals are left without bounds.
func ApplyConfidence(points []models.ForecastPoint, stats map[string]ResidualStats) {
	for i := range points {
		st, ok := stats[points[i].Series]
		if !ok || st.N < 2 || st.SD == 0 || math.IsNaN(st.SD) {
			continue
		}
		low := points[i].Value - confidenceZ*st.SD
		high := points[i].Value + confidenceZ*st.SD
		points[i].ConfLow = &low
		points[i].ConfHigh = &high
	}
}
