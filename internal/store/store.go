package store

import (
	"database/sql"
	"time"
)

// Store wraps the SQLite database. All persistence goes through here;
// callers never touch *sql.DB directly.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

func New(db *sql.DB, loc *time.Location) *Store {
	return &Store{db: db, loc: loc}
}
