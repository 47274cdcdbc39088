package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// runSchemaVersion tags stored payloads so a future payload shape change
// can skip or re-run stale rows instead of failing to decode them.
const runSchemaVersion = 1

// RunSummary is the lightweight listing row for stored forecast runs.
type RunSummary struct {
	RunKey        string
	Route         string
	DepartureDate time.Time
	GeneratedAt   time.Time
	DaysAhead     int
}

// SaveForecastRun persists a completed run, gzip-compressed, keyed by the
// flight's run key. A re-run of the same flight replaces the stored payload.
// Failed runs are never saved; only the engine's completed output lands here.
func (s *Store) SaveForecastRun(run *models.ForecastRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal forecast run %s: %w", run.Key(), err)
	}

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	if _, err := gw.Write(payload); err != nil {
		return fmt.Errorf("compress forecast run: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}

	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])

	_, err = s.db.Exec(`
		INSERT INTO forecast_runs (run_key, route, departure_date, generated_at,
			days_ahead, schema_version, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_key) DO UPDATE SET
			generated_at = excluded.generated_at,
			days_ahead = excluded.days_ahead,
			schema_version = excluded.schema_version,
			payload_compressed = excluded.payload_compressed,
			payload_hash = excluded.payload_hash
	`, run.Key(), run.Route, run.DepartureDate, run.GeneratedAt,
		run.DaysAhead, runSchemaVersion, compressed.Bytes(), hashHex)
	if err != nil {
		return fmt.Errorf("save forecast run %s: %w", run.Key(), err)
	}
	return nil
}

// GetForecastRun loads and decodes one stored run, or nil when the flight
// has never been forecast.
func (s *Store) GetForecastRun(route string, departureDate time.Time) (*models.ForecastRun, error) {
	key := models.RunKey(route, departureDate)

	var compressed []byte
	err := s.db.QueryRow(
		`SELECT payload_compressed FROM forecast_runs WHERE run_key = ?`, key,
	).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get forecast run %s: %w", key, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader for run %s: %w", key, err)
	}
	defer gr.Close()

	payload, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("decompress run %s: %w", key, err)
	}

	var run models.ForecastRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", key, err)
	}
	return &run, nil
}

// ListForecastRuns returns run metadata newest first, without decoding
// payloads.
func (s *Store) ListForecastRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT run_key, route, departure_date, generated_at, days_ahead
		FROM forecast_runs
		ORDER BY generated_at DESC, run_key
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunKey, &r.Route, &r.DepartureDate,
			&r.GeneratedAt, &r.DaysAhead); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
