package batch

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/flightyield/seatcast/internal/curve"
	"github.com/flightyield/seatcast/internal/forecast"
	"github.com/flightyield/seatcast/internal/ingest"
	"github.com/flightyield/seatcast/internal/insight"
	"github.com/flightyield/seatcast/internal/metrics"
	"github.com/flightyield/seatcast/internal/models"
	"github.com/flightyield/seatcast/internal/store"
)

// Runner drives the batch pipeline: refresh the datasets from the snapshot
// archive, then forecast every to-forecast flight. Jobs run sequentially;
// parallelism lives inside the engine's split workers.
type Runner struct {
	store    *store.Store
	engine   *forecast.Engine
	weekend  ingest.WeekendSet
	compiler *insight.Compiler
	fetcher  *ingest.DropFetcher
}

func NewRunner(st *store.Store, engine *forecast.Engine, weekend ingest.WeekendSet) *Runner {
	return &Runner{store: st, engine: engine, weekend: weekend}
}

// SetCompiler enables narrative generation after each successful forecast.
func (r *Runner) SetCompiler(c *insight.Compiler) {
	r.compiler = c
}

// SetFetcher makes RunAll pull fresh snapshot drops before refreshing.
func (r *Runner) SetFetcher(f *ingest.DropFetcher) {
	r.fetcher = f
}

// RunAll is the nightly pipeline: optionally fetch drops, refresh both
// datasets, then forecast. One batch_runs row audits the whole execution.
func (r *Runner) RunAll(ctx context.Context, source string) error {
	run, err := r.store.StartBatchRun(source)
	if err != nil {
		return err
	}

	if r.fetcher != nil {
		// A fetch failure is not fatal; the archive may already hold
		// yesterday's drops.
		if n, err := r.fetcher.FetchDrops(ctx, r.store); err != nil {
			log.Printf("batch: fetch drops: %v", err)
		} else if n > 0 {
			log.Printf("batch: archived %d new snapshot drops", n)
		}
	}

	if err := r.Refresh(ctx); err != nil {
		if cerr := r.store.CompleteBatchRun(run, 0, 0, 0, err); cerr != nil {
			log.Printf("batch: complete run %d: %v", run.ID, cerr)
		}
		return err
	}

	total, succeeded, failed, err := r.forecastFlights(ctx, run.ID)
	if cerr := r.store.CompleteBatchRun(run, total, succeeded, failed, err); cerr != nil {
		log.Printf("batch: complete run %d: %v", run.ID, cerr)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d forecast jobs failed", failed, total)
	}
	return nil
}

// Forecast runs only the per-flight forecast loop against the already
// refreshed datasets.
func (r *Runner) Forecast(ctx context.Context, source string) error {
	run, err := r.store.StartBatchRun(source)
	if err != nil {
		return err
	}

	total, succeeded, failed, err := r.forecastFlights(ctx, run.ID)
	if cerr := r.store.CompleteBatchRun(run, total, succeeded, failed, err); cerr != nil {
		log.Printf("batch: complete run %d: %v", run.ID, cerr)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d forecast jobs failed", failed, total)
	}
	return nil
}

// Refresh rebuilds both datasets from the newest archived snapshots. The
// historical dataset goes first so its aggregates are available when the
// to-forecast curves join their trend features. An empty archive is a
// logged no-op, not an error; the operator may still be loading drops.
func (r *Runner) Refresh(ctx context.Context) error {
	historical, err := r.refreshDataset(ctx, models.DatasetHistorical, nil)
	if err != nil {
		return err
	}

	pooled := curve.Aggregate(historical, false, curve.DefaultMinFlights)
	segmented := curve.Aggregate(historical, true, curve.DefaultMinFlights)
	if err := r.store.ReplaceSummaries(false, pooled); err != nil {
		return err
	}
	if err := r.store.ReplaceSummaries(true, segmented); err != nil {
		return err
	}
	log.Printf("batch: aggregated %d pooled and %d segmented summary rows", len(pooled), len(segmented))

	trend := curve.NewTrendLookup(append(pooled, segmented...))
	if _, err := r.refreshDataset(ctx, models.DatasetForecast, trend); err != nil {
		return err
	}
	return nil
}

// refreshDataset parses the newest archived snapshot for one dataset, cleans
// and persists each flight's curve, and returns the cleaned points for
// aggregation.
func (r *Runner) refreshDataset(ctx context.Context, dataset string, trend *curve.TrendLookup) ([]models.CurvePoint, error) {
	meta, data, err := r.store.LatestSnapshot(dataset)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		log.Printf("batch: no %s snapshot archived, skipping", dataset)
		return nil, nil
	}

	flights, points, err := ingest.ParseSnapshots(bytes.NewReader(data), dataset, r.weekend)
	if err != nil {
		return nil, fmt.Errorf("parse %s snapshot %s: %w", dataset, meta.Filename, err)
	}

	byKey := make(map[string]models.Flight, len(flights))
	for _, f := range flights {
		byKey[f.RunKey()] = f
	}

	var cleaned []models.CurvePoint
	for _, group := range curve.GroupFlights(points) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		flight := byKey[models.RunKey(group[0].Route, group[0].DepartureDate)]

		if dataset == models.DatasetHistorical {
			group = curve.CleanHistorical(group)
		} else {
			group = curve.CleanForecast(group)
		}
		group = curve.DeriveFeatures(group, flight.Capacity)
		if trend != nil {
			curve.JoinAvgPickup(group, trend)
		}

		flight.QualityFlags = ingest.QualityFlagsToJSON(ingest.ValidateFlight(flight, group))
		if err := r.store.UpsertFlight(flight); err != nil {
			return nil, err
		}
		if err := r.store.ReplaceCurve(flight.Route, flight.DepartureDate, group); err != nil {
			return nil, err
		}
		cleaned = append(cleaned, group...)
	}

	log.Printf("batch: refreshed %s from %s (%d flights, %d points)",
		dataset, meta.Filename, len(byKey), len(cleaned))
	return cleaned, nil
}

// forecastFlights walks the to-forecast flights in stable order. A job
// failure is logged and counted, never fatal; the returned error covers
// run-level problems only.
func (r *Runner) forecastFlights(ctx context.Context, runID int64) (total, succeeded, failed int, err error) {
	flights, err := r.store.ListFlights(models.DatasetForecast)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list to-forecast flights: %w", err)
	}
	summaries, err := r.store.GetTrend()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("load trend: %w", err)
	}
	trend := curve.NewTrendLookup(summaries)

	total = len(flights)
	for _, flight := range flights {
		if cerr := ctx.Err(); cerr != nil {
			return total, succeeded, failed, cerr
		}

		if jerr := r.forecastOne(ctx, flight, trend); jerr != nil {
			failed++
			metrics.ForecastJobsTotal.WithLabelValues("failed").Inc()
			log.Printf("batch: forecast %s %s: %v",
				flight.Route, flight.DepartureDate.Format("2006-01-02"), jerr)
			if rerr := r.store.RecordBatchJob(runID, flight.Route, flight.DepartureDate, jerr); rerr != nil {
				log.Printf("batch: record job: %v", rerr)
			}
			continue
		}

		succeeded++
		metrics.ForecastJobsTotal.WithLabelValues("succeeded").Inc()
		if rerr := r.store.RecordBatchJob(runID, flight.Route, flight.DepartureDate, nil); rerr != nil {
			log.Printf("batch: record job: %v", rerr)
		}
	}

	log.Printf("batch: forecast %d flights, %d succeeded, %d failed", total, succeeded, failed)
	return total, succeeded, failed, nil
}

func (r *Runner) forecastOne(ctx context.Context, flight models.Flight, trend *curve.TrendLookup) error {
	points, err := r.store.GetCurve(flight.Route, flight.DepartureDate)
	if err != nil {
		return fmt.Errorf("load curve: %w", err)
	}

	run, err := r.engine.Run(ctx, flight, points, trend)
	if err != nil {
		return err
	}
	if err := r.store.SaveForecastRun(run); err != nil {
		return err
	}

	// Narrative generation is best-effort; the run is already persisted.
	if r.compiler != nil {
		if _, err := r.compiler.Narrative(ctx, run); err != nil {
			log.Printf("batch: narrative %s: %v", run.Key(), err)
		}
	}
	return nil
}
