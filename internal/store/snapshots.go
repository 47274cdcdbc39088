package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// SnapshotFile is the metadata row for one archived snapshot drop.
type SnapshotFile struct {
	ID        int64
	Filename  string
	Dataset   string
	FetchedAt time.Time
	SizeBytes int64
}

// StoreSnapshotFile archives one fetched snapshot CSV, gzip-compressed and
// deduplicated on the hash of the raw bytes. Returns false when an identical
// payload was archived before, regardless of filename.
func (s *Store) StoreSnapshotFile(filename, dataset string, data []byte) (bool, error) {
	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	if _, err := gw.Write(data); err != nil {
		return false, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gw.Close(); err != nil {
		return false, fmt.Errorf("close gzip writer: %w", err)
	}

	hash := sha256.Sum256(data)
	hashHex := hex.EncodeToString(hash[:])

	res, err := s.db.Exec(`
		INSERT INTO snapshot_files (filename, dataset, fetched_at, size_bytes, payload_hash, payload_compressed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, filename, dataset, time.Now().UTC(), len(data), hashHex, compressed.Bytes())
	if err != nil {
		return false, fmt.Errorf("store snapshot %s: %w", filename, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("snapshot rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListSnapshotFiles returns archive metadata oldest first, optionally
// filtered by dataset. Payloads stay on disk until asked for.
func (s *Store) ListSnapshotFiles(dataset string) ([]SnapshotFile, error) {
	query := `
		SELECT id, filename, dataset, fetched_at, size_bytes
		FROM snapshot_files
	`
	var args []any
	if dataset != "" {
		query += ` WHERE dataset = ?`
		args = append(args, dataset)
	}
	query += ` ORDER BY fetched_at, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []SnapshotFile
	for rows.Next() {
		var f SnapshotFile
		if err := rows.Scan(&f.ID, &f.Filename, &f.Dataset, &f.FetchedAt, &f.SizeBytes); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetSnapshotPayload returns one archived snapshot decompressed, or nil when
// the id is unknown.
func (s *Store) GetSnapshotPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(
		`SELECT payload_compressed FROM snapshot_files WHERE id = ?`, id,
	).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open gzip reader for snapshot %d: %w", id, err)
	}
	defer gr.Close()

	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot %d: %w", id, err)
	}
	return data, nil
}

// LatestSnapshot returns the newest archived file for a dataset, decompressed,
// or nil metadata when the archive holds none. Batch refresh reads the most
// recent drop of each feed.
func (s *Store) LatestSnapshot(dataset string) (*SnapshotFile, []byte, error) {
	var f SnapshotFile
	err := s.db.QueryRow(`
		SELECT id, filename, dataset, fetched_at, size_bytes
		FROM snapshot_files
		WHERE dataset = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, dataset).Scan(&f.ID, &f.Filename, &f.Dataset, &f.FetchedAt, &f.SizeBytes)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("latest snapshot %s: %w", dataset, err)
	}

	data, err := s.GetSnapshotPayload(f.ID)
	if err != nil {
		return nil, nil, err
	}
	return &f, data, nil
}
