package forecast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flightyield/seatcast/internal/metrics"
	"github.com/flightyield/seatcast/internal/models"
)

// BacktestRow is one backtest prediction or ground-truth value, tagged with
// the split that produced it.
type BacktestRow struct {
	SplitID int
	Model   string
	Date    time.Time
	Value   float64
}

type splitResult struct {
	splitID int
	rows    []BacktestRow
	err     error
}

// Backtest fits every model on each split's training window and predicts
// its assessment window, fanning splits out over a fixed worker pool and
// gathering results back in split order. Assessment rows also appear as
// literal ACTUAL ground truth. Any model-fit error fails the whole
// backtest; the seasonal fallback inside the regressor model is the only
// anticipated recovery.
func Backtest(ctx context.Context, splits []Split, mods []Model, workers int) ([]BacktestRow, error) {
	if len(splits) == 0 {
		return nil, fmt.Errorf("backtest: %w: no splits", ErrInsufficientData)
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(splits) {
		workers = len(splits)
	}

	jobs := make(chan Split)
	results := make(chan splitResult, len(splits))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sp := range jobs {
				rows, err := runSplit(sp, mods)
				results <- splitResult{splitID: sp.ID, rows: rows, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sp := range splits {
			select {
			case jobs <- sp:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	gathered := make(map[int][]BacktestRow, len(splits))
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
		gathered[res.splitID] = res.rows
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(gathered))
	for id := range gathered {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var rows []BacktestRow
	for _, id := range ids {
		rows = append(rows, gathered[id]...)
	}
	return rows, nil
}

// runSplit produces the ACTUAL rows for the assessment window plus one
// prediction row per model per assessment day. Assessment-day regressors
// are the observed ones; the backtest measures model error, not regressor
// forecastability.
func runSplit(sp Split, mods []Model) ([]BacktestRow, error) {
	var rows []BacktestRow
	for _, a := range sp.Assess {
		rows = append(rows, BacktestRow{
			SplitID: sp.ID,
			Model:   models.SeriesActual,
			Date:    a.Date,
			Value:   a.Seats,
		})
	}

	future := make([]FuturePoint, len(sp.Assess))
	for i, a := range sp.Assess {
		future[i] = FuturePoint{
			Date:           a.Date,
			Offset:         a.Offset,
			BookingRate:    a.BookingRate,
			LeadLoadFactor: a.LeadLoadFactor,
		}
	}

	for _, m := range mods {
		start := time.Now()
		fitted, err := m.Fit(sp.Train)
		metrics.ModelFitSeconds.WithLabelValues(m.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("split %d: fit %s: %w", sp.ID, m.Name(), err)
		}
		for i, v := range fitted.Predict(future) {
			rows = append(rows, BacktestRow{
				SplitID: sp.ID,
				Model:   m.Name(),
				Date:    future[i].Date,
				Value:   v,
			})
		}
	}
	return rows, nil
}
