package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// accuracyRunLimit caps how many stored runs the accuracy page pools.
const accuracyRunLimit = 200

func parseFlightParams(r *http.Request) (string, time.Time, error) {
	route := r.URL.Query().Get("route")
	if route == "" {
		return "", time.Time{}, fmt.Errorf("missing route parameter")
	}
	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	return route, date, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := s.getIndexData(r.URL.Query().Get("route"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) getIndexData(selectedRoute string) (*IndexData, error) {
	routes, err := s.store.ListRoutes()
	if err != nil {
		return nil, err
	}
	if selectedRoute == "" && len(routes) > 0 {
		selectedRoute = routes[0]
	}

	data := &IndexData{
		Routes:        routes,
		SelectedRoute: selectedRoute,
		UpdatedAt:     time.Now().In(s.loc).Format("Jan 2, 3:04 PM"),
	}

	flights, err := s.store.ListFlights(models.DatasetForecast)
	if err != nil {
		return nil, err
	}
	for _, f := range flights {
		uf := UpcomingFlight{
			Route:    f.Route,
			Date:     f.DepartureDate,
			DateStr:  f.DepartureDate.Format("Mon 2 Jan 2006"),
			Weekend:  f.Weekend,
			Capacity: f.Capacity.Int64,
		}
		run, err := s.store.GetForecastRun(f.Route, f.DepartureDate)
		if err != nil {
			log.Printf("get run %s: %v", f.RunKey(), err)
		}
		if run != nil {
			uf.HasRun = true
			uf.DaysAhead = run.DaysAhead
			uf.SeatsSold = run.Facts.CurrentSeats
			if run.Capacity > 0 {
				uf.LoadPct = run.Facts.CurrentSeats / float64(run.Capacity)
			}
		}
		data.Upcoming = append(data.Upcoming, uf)
	}

	if selectedRoute != "" {
		trend, err := s.store.GetRouteTrend(selectedRoute)
		if err != nil {
			return nil, err
		}
		for _, row := range trend {
			if row.Weekend.Valid {
				continue // index shows the pooled curve only
			}
			data.Trend = append(data.Trend, TrendRow{
				Offset:         row.Offset,
				Flights:        row.Flights,
				AvgSeats:       nullFloat(row.AvgSeats),
				AvgPickup:      nullFloat(row.AvgPickup),
				AvgBookingRate: nullFloat(row.AvgBookingRate),
				AvgLoadFactor:  nullFloat(row.AvgLoadFactor),
			})
		}
		data.TrendSVG = buildTrendSVG(data.Trend)
	}

	return data, nil
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	route, date, err := parseFlightParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := s.getFlightData(r.Context(), route, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}
	if err := s.tmpl.ExecuteTemplate(w, "flight.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) getFlightData(ctx context.Context, route string, date time.Time) (*FlightData, error) {
	flight, err := s.store.GetFlight(route, date)
	if err != nil {
		return nil, err
	}
	if flight == nil {
		return nil, nil
	}

	data := &FlightData{
		Route:        flight.Route,
		Date:         flight.DepartureDate,
		DateStr:      flight.DepartureDate.Format("Monday 2 January 2006"),
		Weekend:      flight.Weekend,
		Capacity:     flight.Capacity.Int64,
		QualityFlags: decodeQualityFlags(flight.QualityFlags),
	}

	points, err := s.store.GetCurve(route, date)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		data.Points = append(data.Points, CurveRow{
			DateStr:     p.Date().Format("Mon 2 Jan"),
			Offset:      p.Offset,
			Seats:       nullSeats(p.Seats),
			BookingRate: nullFloat(p.BookingRate),
			LoadFactor:  nullFloat(p.LoadFactor),
			AvgPickup:   nullFloat(p.AvgPickup),
			Imputed:     p.Imputed,
			Outlier:     p.Outlier,
		})
	}

	run, err := s.store.GetForecastRun(route, date)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return data, nil
	}

	data.HasRun = true
	data.GeneratedAt = run.GeneratedAt.In(s.loc).Format("Jan 2, 3:04 PM")
	data.Accuracy = run.Accuracy
	data.CurveSVG = buildCurveSVG(run)
	data.Forecast = buildForecastTable(run)

	if s.compiler != nil {
		narrative, err := s.compiler.Narrative(ctx, run)
		if err != nil {
			log.Printf("api: narrative %s: %v", run.Key(), err)
		} else {
			data.Narrative = narrative
		}
	}

	return data, nil
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	data, err := s.getAccuracyData()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.tmpl.ExecuteTemplate(w, "accuracy.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) getAccuracyData() (*AccuracyData, error) {
	summaries, err := s.store.ListForecastRuns(accuracyRunLimit)
	if err != nil {
		return nil, err
	}

	type pool struct {
		mae, rmse, mape, smape, mase []float64
		points, runs                 int
	}
	pools := make(map[string]*pool)

	for _, sum := range summaries {
		run, err := s.store.GetForecastRun(sum.Route, sum.DepartureDate)
		if err != nil {
			log.Printf("get run %s: %v", sum.RunKey, err)
			continue
		}
		if run == nil {
			continue
		}
		for _, row := range run.Accuracy {
			p, ok := pools[row.Model]
			if !ok {
				p = &pool{}
				pools[row.Model] = p
			}
			p.mae = append(p.mae, row.MAE)
			p.rmse = append(p.rmse, row.RMSE)
			p.mape = append(p.mape, row.MAPE)
			p.smape = append(p.smape, row.SMAPE)
			p.mase = append(p.mase, row.MASE)
			p.points += row.Points
			p.runs++
		}
	}

	data := &AccuracyData{Runs: len(summaries)}
	for _, name := range []string{models.SeriesARIMA, models.SeriesLogistic, models.SeriesLogisticReg, models.SeriesPickup} {
		p, ok := pools[name]
		if !ok {
			continue
		}
		data.Models = append(data.Models, ModelAccuracy{
			Model:      name,
			Runs:       p.runs,
			Points:     p.points,
			MeanMAE:    avg(p.mae),
			MedianMAE:  median(p.mae),
			MeanRMSE:   avg(p.rmse),
			MedianRMSE: median(p.rmse),
			MeanMAPE:   avg(p.mape),
			MeanSMAPE:  avg(p.smape),
			MeanMASE:   avg(p.mase),
		})
	}
	return data, nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	data := RunsData{
		UpdatedAt: time.Now().In(s.loc).Format("Jan 2, 3:04 PM"),
	}

	stats, err := s.store.GetHealthStats()
	if err != nil {
		log.Printf("get health stats: %v", err)
	} else {
		data.Stats = stats
	}

	if health, err := s.store.GetBatchHealth(14); err != nil {
		log.Printf("get batch health: %v", err)
	} else {
		data.BatchHealth = health
	}

	if failures, err := s.store.GetRecentJobFailures(20); err != nil {
		log.Printf("get job failures: %v", err)
	} else {
		for _, f := range failures {
			data.Failures = append(data.Failures, FailureRow{
				Route:       f.Route,
				DateStr:     f.DepartureDate.Format("2006-01-02"),
				CompletedAt: f.CompletedAt.In(s.loc).Format("Jan 2, 3:04 PM"),
				Error:       f.ErrorMessage.String,
			})
		}
	}

	if runs, err := s.store.ListForecastRuns(50); err != nil {
		log.Printf("list runs: %v", err)
	} else {
		for _, run := range runs {
			data.Runs = append(data.Runs, RunRow{
				Route:       run.Route,
				DateStr:     run.DepartureDate.Format("2006-01-02"),
				GeneratedAt: run.GeneratedAt.In(s.loc).Format("Jan 2, 3:04 PM"),
				DaysAhead:   run.DaysAhead,
			})
		}
	}

	if err := s.tmpl.ExecuteTemplate(w, "runs.html", data); err != nil {
		log.Printf("template error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetHealthStats()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{
		Status:          "ok",
		SchemaVersion:   stats.SchemaVersion,
		ForecastFlights: stats.ForecastFlights,
		StoredRuns:      stats.StoredRuns,
		LastBatchOK:     true,
	}

	// The nightly batch runs once a day; anything older than a day plus
	// slack means forecasts have stopped refreshing.
	staleThreshold := 26 * time.Hour

	last, err := s.store.GetLastBatchRun()
	if err != nil {
		health.Errors = append(health.Errors, "last batch: "+err.Error())
	}
	if last != nil {
		started := last.StartedAt
		health.LastBatchAt = &started
		health.LastBatchOK = last.Success || !last.CompletedAt.Valid
		health.Stale = time.Since(last.StartedAt) > staleThreshold
	} else if stats.ForecastFlights > 0 {
		// Flights loaded but no batch has ever run.
		health.Stale = true
	}

	if health.Stale || !health.LastBatchOK {
		health.Status = "degraded"
	}
	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("health: write response: %v", err)
	}
}
