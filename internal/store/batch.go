package store

import (
	"database/sql"
	"fmt"
	"time"
)

// BatchRun is one batch execution's audit row.
type BatchRun struct {
	ID            int64
	StartedAt     time.Time
	CompletedAt   sql.NullTime
	Source        string
	JobsTotal     sql.NullInt64
	JobsSucceeded sql.NullInt64
	JobsFailed    sql.NullInt64
	Success       bool
	ErrorMessage  sql.NullString
}

// BatchJob records the terminal outcome of one per-flight forecast job.
type BatchJob struct {
	ID            int64
	BatchRunID    int64
	Route         string
	DepartureDate time.Time
	CompletedAt   time.Time
	Success       bool
	ErrorMessage  sql.NullString
}

// BatchHealthSummary aggregates batch outcomes per calendar day for the
// health endpoint.
type BatchHealthSummary struct {
	Date          string
	TotalRuns     int
	SuccessRuns   int
	FailedRuns    int
	JobsSucceeded int
	JobsFailed    int
}

// StartBatchRun opens an audit row for a batch execution. Source names the
// trigger, "cron" or "cli".
func (s *Store) StartBatchRun(source string) (*BatchRun, error) {
	started := time.Now().UTC()
	res, err := s.db.Exec(`
		INSERT INTO batch_runs (started_at, source)
		VALUES (?, ?)
	`, started, source)
	if err != nil {
		return nil, fmt.Errorf("start batch run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("batch run id: %w", err)
	}

	return &BatchRun{ID: id, StartedAt: started, Source: source}, nil
}

// CompleteBatchRun closes the audit row with job totals. A run is healthy
// only when it hit no run-level error and every job succeeded.
func (s *Store) CompleteBatchRun(run *BatchRun, total, succeeded, failed int, runErr error) error {
	if run == nil {
		return nil
	}

	var errMsg sql.NullString
	if runErr != nil {
		errMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}
	success := runErr == nil && failed == 0

	_, err := s.db.Exec(`
		UPDATE batch_runs
		SET completed_at = ?, jobs_total = ?, jobs_succeeded = ?, jobs_failed = ?,
			success = ?, error_message = ?
		WHERE id = ?
	`, time.Now().UTC(), total, succeeded, failed, success, errMsg, run.ID)
	if err != nil {
		return fmt.Errorf("complete batch run %d: %w", run.ID, err)
	}
	return nil
}

// RecordBatchJob writes one job outcome. Jobs are recorded once, after they
// finish, so there is no start/complete pair at this level.
func (s *Store) RecordBatchJob(runID int64, route string, departureDate time.Time, jobErr error) error {
	var errMsg sql.NullString
	if jobErr != nil {
		errMsg = sql.NullString{String: jobErr.Error(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO batch_jobs (batch_run_id, route, departure_date, completed_at, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, route, departureDate, time.Now().UTC(), jobErr == nil, errMsg)
	if err != nil {
		return fmt.Errorf("record batch job: %w", err)
	}
	return nil
}

// GetLastBatchRun returns the most recently started batch run, or nil when
// no batch has ever run.
func (s *Store) GetLastBatchRun() (*BatchRun, error) {
	var run BatchRun
	err := s.db.QueryRow(`
		SELECT id, started_at, completed_at, source, jobs_total, jobs_succeeded,
			jobs_failed, success, error_message
		FROM batch_runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`).Scan(&run.ID, &run.StartedAt, &run.CompletedAt, &run.Source, &run.JobsTotal,
		&run.JobsSucceeded, &run.JobsFailed, &run.Success, &run.ErrorMessage)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetBatchHealth returns per-day batch health for the last N days.
func (s *Store) GetBatchHealth(days int) ([]BatchHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(jobs_succeeded), 0) as jobs_succeeded,
			COALESCE(SUM(jobs_failed), 0) as jobs_failed
		FROM batch_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date
		ORDER BY date DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []BatchHealthSummary
	for rows.Next() {
		var h BatchHealthSummary
		if err := rows.Scan(&h.Date, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns,
			&h.JobsSucceeded, &h.JobsFailed); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentJobFailures returns the latest failed jobs for the health view.
func (s *Store) GetRecentJobFailures(limit int) ([]BatchJob, error) {
	rows, err := s.db.Query(`
		SELECT id, batch_run_id, route, departure_date, completed_at, success, error_message
		FROM batch_jobs
		WHERE success = FALSE
		ORDER BY completed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []BatchJob
	for rows.Next() {
		var j BatchJob
		if err := rows.Scan(&j.ID, &j.BatchRunID, &j.Route, &j.DepartureDate,
			&j.CompletedAt, &j.Success, &j.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, j)
	}
	return results, rows.Err()
}
