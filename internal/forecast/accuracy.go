package forecast

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/flightyield/seatcast/internal/models"
)

// joinActuals indexes the ground-truth value for every assessed date.
func joinActuals(rows []BacktestRow) map[time.Time]float64 {
	actuals := map[time.Time]float64{}
	for _, r := range rows {
		if r.Model != models.SeriesActual {
			continue
		}
		if _, ok := actuals[r.Date]; !ok {
			actuals[r.Date] = r.Value
		}
	}
	return actuals
}

// Accuracy pools every split's predictions, joins them to ground truth by
// date, and computes the walk-forward error table: exactly one row per
// model that produced predictions. MASE scales against the in-sample naive
// one-step MAE of the full training series. MAPE skips zero actuals, and
// R² is omitted when the actuals carry no variance.
func Accuracy(rows []BacktestRow, train []TrainPoint) []models.AccuracyRow {
	actuals := joinActuals(rows)

	type pair struct{ actual, predicted float64 }
	pairsByModel := map[string][]pair{}
	for _, r := range rows {
		if r.Model == models.SeriesActual {
			continue
		}
		actual, ok := actuals[r.Date]
		if !ok {
			continue
		}
		pairsByModel[r.Model] = append(pairsByModel[r.Model], pair{actual: actual, predicted: r.Value})
	}

	naive := naiveMAE(train)

	out := make([]models.AccuracyRow, 0, len(pairsByModel))
	for model, pairs := range pairsByModel {
		var absSum, sqSum, mapeSum, smapeSum float64
		mapeN, smapeN := 0, 0
		estimates := make([]float64, len(pairs))
		values := make([]float64, len(pairs))
		for i, p := range pairs {
			e := p.actual - p.predicted
			absSum += math.Abs(e)
			sqSum += e * e
			if p.actual != 0 {
				mapeSum += math.Abs(e/p.actual) * 100
				mapeN++
			}
			if denom := math.Abs(p.actual) + math.Abs(p.predicted); denom > 0 {
				smapeSum += 2 * math.Abs(e) / denom * 100
				smapeN++
			}
			estimates[i] = p.predicted
			values[i] = p.actual
		}

		n := float64(len(pairs))
		mae := absSum / n
		row := models.AccuracyRow{
			Model:  model,
			MAE:    mae,
			RMSE:   math.Sqrt(sqSum / n),
			Points: len(pairs),
		}
		if mapeN > 0 {
			row.MAPE = mapeSum / float64(mapeN)
		}
		if smapeN > 0 {
			row.SMAPE = smapeSum / float64(smapeN)
		}
		if naive > 0 {
			row.MASE = mae / naive
		}
		if r2 := stat.RSquaredFrom(estimates, values, nil); !math.IsNaN(r2) && !math.IsInf(r2, 0) {
			row.R2 = &r2
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// naiveMAE is the mean absolute one-step change of the training series,
// the scale denominator for MASE.
func naiveMAE(train []TrainPoint) float64 {
	if len(train) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(train); i++ {
		sum += math.Abs(train[i].Seats - train[i-1].Seats)
	}
	return sum / float64(len(train)-1)
}
