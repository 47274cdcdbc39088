package store

import (
	"fmt"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// ReplaceCurve swaps the stored booking curve for one flight inside a single
// transaction. The cleaning pipeline recomputes every point from the raw
// snapshot on each run, so partial updates are never useful.
func (s *Store) ReplaceCurve(route string, departureDate time.Time, points []models.CurvePoint) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace curve: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM curve_points WHERE route = ? AND departure_date = ?`,
		route, departureDate,
	); err != nil {
		return fmt.Errorf("clear curve %s: %w", models.RunKey(route, departureDate), err)
	}

	for _, p := range points {
		if _, err := tx.Exec(`
			INSERT INTO curve_points (route, departure_date, days_out, seats, weekend,
				outlier, imputed, booking_rate, acceleration, load_factor,
				lead_load_factor, avg_pickup)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, route, departureDate, p.Offset, p.Seats, p.Weekend,
			p.Outlier, p.Imputed, p.BookingRate, p.Acceleration, p.LoadFactor,
			p.LeadLoadFactor, p.AvgPickup); err != nil {
			return fmt.Errorf("insert curve point %s day %d: %w",
				models.RunKey(route, departureDate), p.Offset, err)
		}
	}

	return tx.Commit()
}

// GetCurve returns one flight's booking curve in calendar order, oldest
// snapshot first (largest days-out value down to departure day).
func (s *Store) GetCurve(route string, departureDate time.Time) ([]models.CurvePoint, error) {
	rows, err := s.db.Query(`
		SELECT route, departure_date, days_out, seats, weekend, outlier, imputed,
			   booking_rate, acceleration, load_factor, lead_load_factor, avg_pickup
		FROM curve_points
		WHERE route = ? AND departure_date = ?
		ORDER BY days_out DESC
	`, route, departureDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.CurvePoint
	for rows.Next() {
		var p models.CurvePoint
		if err := rows.Scan(&p.Route, &p.DepartureDate, &p.Offset, &p.Seats, &p.Weekend,
			&p.Outlier, &p.Imputed, &p.BookingRate, &p.Acceleration, &p.LoadFactor,
			&p.LeadLoadFactor, &p.AvgPickup); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
