package store

import (
	"database/sql"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// HealthStats summarises what the database currently holds, for the
// health endpoint and for operators poking at a fresh deployment.
type HealthStats struct {
	SchemaVersion     int
	HistoricalFlights int
	ForecastFlights   int
	CurvePoints       int
	StoredRuns        int
	Narratives        int
	SnapshotFiles     int
	NewestSnapshotAt  time.Time
}

// GetHealthStats counts rows across the main tables.
func (s *Store) GetHealthStats() (*HealthStats, error) {
	stats := &HealthStats{}

	version, err := s.MigrationVersion()
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	row := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM flights WHERE dataset = ?),
			(SELECT COUNT(*) FROM flights WHERE dataset = ?),
			(SELECT COUNT(*) FROM curve_points),
			(SELECT COUNT(*) FROM forecast_runs),
			(SELECT COUNT(*) FROM narratives),
			(SELECT COUNT(*) FROM snapshot_files)
	`, models.DatasetHistorical, models.DatasetForecast)
	if err := row.Scan(&stats.HistoricalFlights, &stats.ForecastFlights,
		&stats.CurvePoints, &stats.StoredRuns, &stats.Narratives, &stats.SnapshotFiles); err != nil {
		return nil, err
	}

	var newest sql.NullTime
	if err := s.db.QueryRow(`SELECT MAX(fetched_at) FROM snapshot_files`).Scan(&newest); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if newest.Valid {
		stats.NewestSnapshotAt = newest.Time
	}

	return stats, nil
}
