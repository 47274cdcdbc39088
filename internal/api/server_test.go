package api_test

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flightyield/seatcast/internal/api"
	"github.com/flightyield/seatcast/internal/insight"
	"github.com/flightyield/seatcast/internal/models"
	"github.com/flightyield/seatcast/internal/store"

	_ "modernc.org/sqlite"
)

func setupTestStore(t *testing.T) (*store.Store, *time.Location) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	loc := time.UTC
	s := store.New(db, loc)
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s, loc
}

func testDeparture() time.Time {
	return time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
}

func seedFlight(t *testing.T, s *store.Store, route string, date time.Time) {
	t.Helper()
	err := s.UpsertFlight(models.Flight{
		Route:         route,
		DepartureDate: date,
		Dataset:       models.DatasetForecast,
		Capacity:      sql.NullInt64{Int64: 180, Valid: true},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func testRun(route string, date time.Time) *models.ForecastRun {
	conf := func(v float64) *float64 { return &v }
	run := &models.ForecastRun{
		Route:         route,
		DepartureDate: date,
		GeneratedAt:   time.Date(2025, 9, 23, 3, 10, 0, 0, time.UTC),
		Capacity:      180,
		DaysAhead:     7,
		Accuracy: []models.AccuracyRow{
			{Model: models.SeriesARIMA, MAE: 6.1, MAPE: 5.0, MASE: 0.9, SMAPE: 4.8, RMSE: 7.3, Points: 14},
			{Model: models.SeriesLogisticReg, MAE: 4.2, MAPE: 3.1, MASE: 0.7, SMAPE: 3.0, RMSE: 5.0, Points: 14},
		},
		Facts: models.NarrativeFacts{
			Route:         route,
			DepartureDate: date.Format("2006-01-02"),
			Capacity:      180,
			CurrentSeats:  132,
		},
	}
	for off := 21; off >= 8; off-- {
		run.Series = append(run.Series, models.ForecastPoint{
			Series: models.SeriesActual,
			Date:   date.AddDate(0, 0, -off),
			Offset: off,
			Value:  float64(60 + (21-off)*5),
		})
	}
	for off := 7; off >= 0; off-- {
		v := float64(130 + (7-off)*4)
		run.Series = append(run.Series, models.ForecastPoint{
			Series:   models.SeriesLogisticReg,
			Date:     date.AddDate(0, 0, -off),
			Offset:   off,
			Value:    v,
			ConfLow:  conf(v - 9),
			ConfHigh: conf(v + 9),
		})
	}
	return run
}

func get(t *testing.T, srv *api.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("expected ok status, got %s", body)
	}
	if !strings.Contains(body, `"schema_version"`) {
		t.Error("expected schema_version field in JSON response")
	}
}

func TestHealthDegradedWhenBatchNeverRan(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/health")
	if w.Code != 503 {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("expected degraded status, got %s", w.Body.String())
	}
}

func TestHealthOKAfterRecentBatch(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	run, err := s.StartBatchRun("cli")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteBatchRun(run, 1, 1, 0, nil); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"last_batch_at"`) {
		t.Error("expected last_batch_at field")
	}
}

func TestIndexPage_NoData(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "No flights loaded yet") {
		t.Error("expected empty state message")
	}
}

func TestIndexPage_UnknownPathIs404(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/nope")
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestIndexPage_WithFlights(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceSummaries(false, []models.SummaryRow{
		{Route: "SYD-MEL", Offset: 14, Flights: 4, AvgSeats: sql.NullFloat64{Float64: 95, Valid: true}},
		{Route: "SYD-MEL", Offset: 7, Flights: 4, AvgSeats: sql.NullFloat64{Float64: 130, Valid: true}},
		{Route: "SYD-MEL", Offset: 0, Flights: 4, AvgSeats: sql.NullFloat64{Float64: 165, Valid: true}},
	}); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "SYD-MEL") {
		t.Error("expected flight route in index")
	}
	if !strings.Contains(body, "132") {
		t.Error("expected current seats sold from the stored run")
	}
	if !strings.Contains(body, "<svg") {
		t.Error("expected trend chart")
	}
}

func TestFlightPage(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	if err := s.ReplaceCurve("SYD-MEL", testDeparture(), []models.CurvePoint{
		{Offset: 9, Seats: sql.NullInt64{Int64: 120, Valid: true},
			BookingRate: sql.NullFloat64{Float64: 4.0, Valid: true}},
		{Offset: 8, Seats: sql.NullInt64{Int64: 125, Valid: true}, Imputed: true},
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/flight?route=SYD-MEL&date=2025-09-30")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Forecast by model") {
		t.Error("expected forecast table")
	}
	if !strings.Contains(body, "<svg") {
		t.Error("expected booking curve chart")
	}
	if !strings.Contains(body, "imputed") {
		t.Error("expected imputed badge on the filled snapshot")
	}
	if !strings.Contains(body, "ARIMA") {
		t.Error("expected accuracy rows")
	}
}

func TestFlightPage_NoRun(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/flight?route=SYD-MEL&date=2025-09-30")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "forecast unavailable") {
		t.Error("expected forecast unavailable message")
	}
}

func TestFlightPage_UnknownFlightIs404(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/flight?route=SYD-MEL&date=2025-09-30")
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestFlightPage_BadParams(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	if w := get(t, srv, "/flight"); w.Code != 400 {
		t.Errorf("missing params: expected 400, got %d", w.Code)
	}
	if w := get(t, srv, "/flight?route=SYD-MEL&date=tuesday"); w.Code != 400 {
		t.Errorf("bad date: expected 400, got %d", w.Code)
	}
}

func TestFlightPage_NarrativeCompiledOnDemand(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}

	calls := 0
	generate := func(ctx context.Context, system, user string, maxTokens int) (string, error) {
		calls++
		return "Demand is pacing ahead of the route trend.", nil
	}
	compiler, err := insight.NewCompiler(generate, s)
	if err != nil {
		t.Fatal(err)
	}

	srv := api.NewServer(s, "8080", loc)
	srv.SetCompiler(compiler)

	w := get(t, srv, "/flight?route=SYD-MEL&date=2025-09-30")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pacing ahead") {
		t.Error("expected compiled narrative on the page")
	}

	get(t, srv, "/flight?route=SYD-MEL&date=2025-09-30")
	if calls != 1 {
		t.Errorf("generate calls = %d, want 1 (second view should hit the cache)", calls)
	}
}

func TestAccuracyPage(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveForecastRun(testRun("BNE-SYD", testDeparture().AddDate(0, 0, 3))); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/accuracy")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "ARIMA") {
		t.Error("expected ARIMA accuracy row")
	}
	if !strings.Contains(body, "Logistic") {
		t.Error("expected regressor model accuracy row")
	}
	if !strings.Contains(body, "2 stored forecast runs") {
		t.Errorf("expected pooled run count, got %s", body)
	}
}

func TestAccuracyPage_NoData(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/accuracy")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No stored runs yet") {
		t.Error("expected empty state message")
	}
}

func TestRunsPage(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	run, err := s.StartBatchRun("cron")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordBatchJob(run.ID, "SYD-MEL", testDeparture(), nil); err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteBatchRun(run, 1, 1, 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/runs")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Nightly batch") {
		t.Error("expected batch health section")
	}
	if !strings.Contains(body, "2025-09-30") {
		t.Error("expected stored run row")
	}
	if !strings.Contains(body, "Schema version") {
		t.Error("expected database stats")
	}
}

func TestAPIForecast(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/api/forecast?route=SYD-MEL&date=2025-09-30")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"series"`) {
		t.Error("expected series field in run JSON")
	}
	if !strings.Contains(body, `"ACTUAL"`) {
		t.Error("expected actual series in run JSON")
	}

	if w := get(t, srv, "/api/forecast?route=MEL-OOL&date=2025-09-30"); w.Code != 404 {
		t.Errorf("unknown run: expected 404, got %d", w.Code)
	}
	if w := get(t, srv, "/api/forecast?date=2025-09-30"); w.Code != 400 {
		t.Errorf("missing route: expected 400, got %d", w.Code)
	}
}

func TestAPIFlightsAndTrend(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	seedFlight(t, s, "SYD-MEL", testDeparture())
	if err := s.ReplaceSummaries(false, []models.SummaryRow{
		{Route: "SYD-MEL", Offset: 7, Flights: 3, AvgSeats: sql.NullFloat64{Float64: 120, Valid: true}},
	}); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/api/flights")
	if w.Code != 200 {
		t.Fatalf("flights: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "SYD-MEL") {
		t.Error("expected flight in JSON list")
	}

	w = get(t, srv, "/api/trend?route=SYD-MEL")
	if w.Code != 200 {
		t.Fatalf("trend: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"AvgSeats"`) {
		t.Error("expected summary rows in trend JSON")
	}
}

func TestAPIAccuracy(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/api/accuracy")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"MeanMAE"`) {
		t.Error("expected pooled accuracy JSON")
	}
}

func TestCardEndpoint(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	if err := s.SaveForecastRun(testRun("SYD-MEL", testDeparture())); err != nil {
		t.Fatal(err)
	}
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/card?route=SYD-MEL&date=2025-09-30")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	first := w.Body.Bytes()
	if len(first) == 0 || !strings.HasPrefix(string(first), "\x89PNG") {
		t.Fatal("expected PNG payload")
	}

	w = get(t, srv, "/card?route=SYD-MEL&date=2025-09-30")
	if w.Body.Len() != len(first) {
		t.Error("expected cached card on second request")
	}

	if w := get(t, srv, "/card?route=MEL-OOL&date=2025-09-30"); w.Code != 404 {
		t.Errorf("unknown flight: expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s, loc := setupTestStore(t)
	srv := api.NewServer(s, "8080", loc)

	w := get(t, srv, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected Go runtime metrics")
	}
}
