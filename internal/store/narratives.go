package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/flightyield/seatcast/internal/models"
)

// Narrative returns the cached narrative for a flight. The second return
// reports whether one exists; an absent narrative is not an error.
func (s *Store) Narrative(route string, departureDate time.Time) (string, bool, error) {
	var text string
	err := s.db.QueryRow(`
		SELECT narrative FROM narratives
		WHERE route = ? AND departure_date = ?
	`, route, departureDate).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get narrative %s: %w", models.RunKey(route, departureDate), err)
	}
	return text, true, nil
}

// SaveNarrative stores or replaces a flight's narrative.
func (s *Store) SaveNarrative(route string, departureDate time.Time, text string) error {
	_, err := s.db.Exec(`
		INSERT INTO narratives (route, departure_date, narrative, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(route, departure_date) DO UPDATE SET
			narrative = excluded.narrative,
			updated_at = excluded.updated_at
	`, route, departureDate, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save narrative %s: %w", models.RunKey(route, departureDate), err)
	}
	return nil
}
