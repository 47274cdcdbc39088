package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS flights (
    route TEXT NOT NULL,
    departure_date DATE NOT NULL,
    dataset TEXT NOT NULL,
    capacity INTEGER,
    weekend BOOLEAN NOT NULL DEFAULT FALSE,
    quality_flags TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (route, departure_date)
);

CREATE INDEX IF NOT EXISTS idx_flights_dataset ON flights(dataset, departure_date);

CREATE TABLE IF NOT EXISTS curve_points (
    route TEXT NOT NULL,
    departure_date DATE NOT NULL,
    days_out INTEGER NOT NULL,
    seats INTEGER,
    weekend BOOLEAN NOT NULL DEFAULT FALSE,
    outlier BOOLEAN NOT NULL DEFAULT FALSE,
    imputed BOOLEAN NOT NULL DEFAULT FALSE,
    booking_rate REAL,
    acceleration REAL,
    load_factor REAL,
    lead_load_factor REAL,
    avg_pickup REAL,
    PRIMARY KEY (route, departure_date, days_out)
);

CREATE TABLE IF NOT EXISTS summaries (
    route TEXT NOT NULL,
    days_out INTEGER NOT NULL,
    weekend BOOLEAN,
    flights INTEGER NOT NULL,
    avg_seats REAL,
    avg_pickup REAL,
    avg_booking_rate REAL,
    avg_acceleration REAL,
    avg_load_factor REAL,
    avg_lead_load_factor REAL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summaries_route ON summaries(route, days_out);

CREATE TABLE IF NOT EXISTS forecast_runs (
    run_key TEXT PRIMARY KEY,
    route TEXT NOT NULL,
    departure_date DATE NOT NULL,
    generated_at DATETIME NOT NULL,
    days_ahead INTEGER NOT NULL,
    schema_version INTEGER NOT NULL,
    payload_compressed BLOB NOT NULL,
    payload_hash TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_forecast_runs_generated ON forecast_runs(generated_at);

CREATE TABLE IF NOT EXISTS batch_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    completed_at DATETIME,
    source TEXT NOT NULL,
    jobs_total INTEGER,
    jobs_succeeded INTEGER,
    jobs_failed INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE TABLE IF NOT EXISTS batch_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_run_id INTEGER NOT NULL REFERENCES batch_runs(id),
    route TEXT NOT NULL,
    departure_date DATE NOT NULL,
    completed_at DATETIME NOT NULL,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_batch_jobs_run ON batch_jobs(batch_run_id);
`,
	},
	{
		Version:     2,
		Description: "Add narratives cache",
		SQL: `
CREATE TABLE IF NOT EXISTS narratives (
    route TEXT NOT NULL,
    departure_date DATE NOT NULL,
    narrative TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME,
    PRIMARY KEY (route, departure_date)
);
`,
	},
	{
		Version:     3,
		Description: "Add snapshot file archive",
		SQL: `
CREATE TABLE IF NOT EXISTS snapshot_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    filename TEXT NOT NULL,
    dataset TEXT NOT NULL,
    fetched_at DATETIME NOT NULL,
    size_bytes INTEGER NOT NULL,
    payload_hash TEXT NOT NULL UNIQUE,
    payload_compressed BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_files_fetched ON snapshot_files(fetched_at);
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
