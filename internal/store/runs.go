package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the persisted state of one ingestion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunRetrying  RunStatus = "retrying"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a terminal outcome.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunSucceeded, RunFailed, RunCancelled:
		return true
	}
	return false
}

// IngestRun is a row in the durable job table. Each run captures the
// generation it was started with; an in-flight run compares its captured
// generation against the table before every batch to detect supersession.
type IngestRun struct {
	ID           int64
	JobName      string
	Generation   int64
	RunToken     string
	Status       RunStatus
	Processed    int64
	Total        int64
	ErrorKind    sql.NullString
	ErrorMessage sql.NullString
	StartedAt    time.Time
	CompletedAt  sql.NullTime
}

// StartRun supersedes any in-flight run for the job and creates a new run
// with the next generation. The supersede-then-insert runs in one
// transaction so there is never more than one non-terminal run per job name.
func (s *Store) StartRun(jobName string) (*IngestRun, error) {
	run := &IngestRun{
		JobName:  jobName,
		RunToken: uuid.NewString(),
		Status:   RunRunning,
	}

	err := s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE ingest_runs
			SET status = 'cancelled',
			    error_kind = 'CANCELLED',
			    error_message = 'superseded by new run',
			    completed_at = datetime('now')
			WHERE job_name = ? AND status IN ('running', 'retrying')
		`, jobName)
		if err != nil {
			return fmt.Errorf("supersede old runs: %w", err)
		}

		var maxGen sql.NullInt64
		err = tx.QueryRow(`
			SELECT MAX(generation) FROM ingest_runs WHERE job_name = ?
		`, jobName).Scan(&maxGen)
		if err != nil {
			return fmt.Errorf("read generation: %w", err)
		}
		run.Generation = maxGen.Int64 + 1

		result, err := tx.Exec(`
			INSERT INTO ingest_runs (job_name, generation, run_token, status)
			VALUES (?, ?, ?, 'running')
		`, jobName, run.Generation, run.RunToken)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		run.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}

	run.StartedAt = time.Now()
	return run, nil
}

// CurrentGeneration returns the latest generation recorded for a job name,
// or 0 when the job has never run.
func (s *Store) CurrentGeneration(jobName string) (int64, error) {
	var gen sql.NullInt64
	err := s.db.QueryRow(`
		SELECT MAX(generation) FROM ingest_runs WHERE job_name = ?
	`, jobName).Scan(&gen)
	if err != nil {
		return 0, err
	}
	return gen.Int64, nil
}

// UpdateRunProgress persists the processed/total checkpoint for a run. The
// processed count is clamped to the total so a device store growing mid-scan
// cannot push the durable checkpoint past the snapshotted total.
func (s *Store) UpdateRunProgress(runID int64, processed, total int64) error {
	if total > 0 && processed > total {
		processed = total
	}
	_, err := s.db.Exec(`
		UPDATE ingest_runs SET processed = ?, total = ? WHERE id = ?
	`, processed, total, runID)
	return err
}

// SetRunStatus records a non-terminal status transition (running/retrying).
func (s *Store) SetRunStatus(runID int64, status RunStatus) error {
	_, err := s.db.Exec(`UPDATE ingest_runs SET status = ? WHERE id = ?`, status, runID)
	return err
}

// CompleteRun marks a run as succeeded with its terminal counts.
func (s *Store) CompleteRun(runID int64, processed, total int64) error {
	_, err := s.db.Exec(`
		UPDATE ingest_runs
		SET status = 'succeeded',
		    processed = ?,
		    total = ?,
		    completed_at = datetime('now')
		WHERE id = ?
	`, processed, total, runID)
	return err
}

// FailRun marks a run as failed with the mapped error kind and message.
func (s *Store) FailRun(runID int64, kind, message string) error {
	_, err := s.db.Exec(`
		UPDATE ingest_runs
		SET status = 'failed',
		    error_kind = ?,
		    error_message = ?,
		    completed_at = datetime('now')
		WHERE id = ?
	`, kind, message, runID)
	return err
}

// CancelRun marks a run as cancelled. Committed batches stay committed;
// only the run record is closed out.
func (s *Store) CancelRun(runID int64, message string) error {
	_, err := s.db.Exec(`
		UPDATE ingest_runs
		SET status = 'cancelled',
		    error_kind = 'CANCELLED',
		    error_message = ?,
		    completed_at = datetime('now')
		WHERE id = ? AND status IN ('running', 'retrying')
	`, message, runID)
	return err
}

// LatestRun returns the newest run for a job name, or nil if the job has
// never been triggered.
func (s *Store) LatestRun(jobName string) (*IngestRun, error) {
	row := s.db.QueryRow(`
		SELECT id, job_name, generation, run_token, status, processed, total,
		       error_kind, error_message, started_at, completed_at
		FROM ingest_runs
		WHERE job_name = ?
		ORDER BY generation DESC
		LIMIT 1
	`, jobName)

	var run IngestRun
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(&run.ID, &run.JobName, &run.Generation, &run.RunToken,
		&run.Status, &run.Processed, &run.Total,
		&run.ErrorKind, &run.ErrorMessage, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.StartedAt, _ = time.Parse("2006-01-02 15:04:05", startedAt)
	if completedAt.Valid {
		t, _ := time.Parse("2006-01-02 15:04:05", completedAt.String)
		run.CompletedAt = sql.NullTime{Time: t, Valid: true}
	}
	return &run, nil
}
