package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// UpsertFlight inserts or refreshes one flight header. A flight that moves
// from the to-forecast feed into the historical feed keeps its row and
// picks up the new dataset label.
func (s *Store) UpsertFlight(f models.Flight) error {
	_, err := s.db.Exec(`
		INSERT INTO flights (route, departure_date, dataset, capacity, weekend, quality_flags)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(route, departure_date) DO UPDATE SET
			dataset = excluded.dataset,
			capacity = excluded.capacity,
			weekend = excluded.weekend,
			quality_flags = excluded.quality_flags
	`, f.Route, f.DepartureDate, f.Dataset, f.Capacity, f.Weekend, f.QualityFlags)
	if err != nil {
		return fmt.Errorf("upsert flight %s: %w", f.RunKey(), err)
	}
	return nil
}

// GetFlight returns one flight header, or nil when the flight is unknown.
func (s *Store) GetFlight(route string, departureDate time.Time) (*models.Flight, error) {
	var f models.Flight
	var flags sql.NullString
	err := s.db.QueryRow(`
		SELECT route, departure_date, dataset, capacity, weekend, quality_flags, created_at
		FROM flights
		WHERE route = ? AND departure_date = ?
	`, route, departureDate).Scan(
		&f.Route, &f.DepartureDate, &f.Dataset, &f.Capacity, &f.Weekend, &flags, &f.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flight %s: %w", models.RunKey(route, departureDate), err)
	}
	f.QualityFlags = flags.String
	return &f, nil
}

// ListFlights returns all flights in one dataset ordered by departure then
// route, so batch runs and the dashboard walk them in a stable order.
func (s *Store) ListFlights(dataset string) ([]models.Flight, error) {
	rows, err := s.db.Query(`
		SELECT route, departure_date, dataset, capacity, weekend, quality_flags, created_at
		FROM flights
		WHERE dataset = ?
		ORDER BY departure_date, route
	`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flights []models.Flight
	for rows.Next() {
		var f models.Flight
		var flags sql.NullString
		if err := rows.Scan(&f.Route, &f.DepartureDate, &f.Dataset, &f.Capacity,
			&f.Weekend, &flags, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.QualityFlags = flags.String
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// ListRoutes returns the distinct routes present in either dataset.
func (s *Store) ListRoutes() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT route FROM flights ORDER BY route`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
