package store

import (
	"fmt"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// ReplaceSummaries rewrites one aggregation granularity wholesale. Segmented
// rows carry a weekend value; pooled rows leave it null. Replacing one
// granularity never touches the other.
func (s *Store) ReplaceSummaries(segmented bool, summaries []models.SummaryRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace summaries: %w", err)
	}
	defer tx.Rollback()

	clear := `DELETE FROM summaries WHERE weekend IS NULL`
	if segmented {
		clear = `DELETE FROM summaries WHERE weekend IS NOT NULL`
	}
	if _, err := tx.Exec(clear); err != nil {
		return fmt.Errorf("clear summaries: %w", err)
	}

	now := time.Now().UTC()
	for _, row := range summaries {
		if row.Weekend.Valid != segmented {
			return fmt.Errorf("summary %s day %d: granularity mismatch", row.Route, row.Offset)
		}
		if _, err := tx.Exec(`
			INSERT INTO summaries (route, days_out, weekend, flights, avg_seats,
				avg_pickup, avg_booking_rate, avg_acceleration, avg_load_factor,
				avg_lead_load_factor, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, row.Route, row.Offset, row.Weekend, row.Flights, row.AvgSeats,
			row.AvgPickup, row.AvgBookingRate, row.AvgAcceleration, row.AvgLoadFactor,
			row.AvgLeadLoadFactor, now); err != nil {
			return fmt.Errorf("insert summary %s day %d: %w", row.Route, row.Offset, err)
		}
	}

	return tx.Commit()
}

// GetTrend loads every summary row across both granularities. Callers feed
// the result to curve.NewTrendLookup, which prefers segmented rows and falls
// back to pooled ones.
func (s *Store) GetTrend() ([]models.SummaryRow, error) {
	rows, err := s.db.Query(`
		SELECT route, days_out, weekend, flights, avg_seats, avg_pickup,
			   avg_booking_rate, avg_acceleration, avg_load_factor, avg_lead_load_factor
		FROM summaries
		ORDER BY route, days_out DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.SummaryRow
	for rows.Next() {
		var row models.SummaryRow
		if err := rows.Scan(&row.Route, &row.Offset, &row.Weekend, &row.Flights,
			&row.AvgSeats, &row.AvgPickup, &row.AvgBookingRate, &row.AvgAcceleration,
			&row.AvgLoadFactor, &row.AvgLeadLoadFactor); err != nil {
			return nil, err
		}
		summaries = append(summaries, row)
	}
	return summaries, rows.Err()
}

// GetRouteTrend returns one route's summary rows, both granularities, for
// the dashboard trend table.
func (s *Store) GetRouteTrend(route string) ([]models.SummaryRow, error) {
	rows, err := s.db.Query(`
		SELECT route, days_out, weekend, flights, avg_seats, avg_pickup,
			   avg_booking_rate, avg_acceleration, avg_load_factor, avg_lead_load_factor
		FROM summaries
		WHERE route = ?
		ORDER BY weekend IS NOT NULL, days_out DESC
	`, route)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.SummaryRow
	for rows.Next() {
		var row models.SummaryRow
		if err := rows.Scan(&row.Route, &row.Offset, &row.Weekend, &row.Flights,
			&row.AvgSeats, &row.AvgPickup, &row.AvgBookingRate, &row.AvgAcceleration,
			&row.AvgLoadFactor, &row.AvgLeadLoadFactor); err != nil {
			return nil, err
		}
		summaries = append(summaries, row)
	}
	return summaries, rows.Err()
}
