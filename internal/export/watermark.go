package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dbsmedya/treestream/internal/logger"
)

// JobStatus represents the state of an export job.
type JobStatus int

const (
	JobStatusIdle    JobStatus = 0
	JobStatusRunning JobStatus = 1
	JobStatusFailed  JobStatus = 2
)

// RunOutcome is the recorded result of a single export run.
type RunOutcome string

const (
	RunOutcomeRunning   RunOutcome = "running"
	RunOutcomeCompleted RunOutcome = "completed"
	RunOutcomeCancelled RunOutcome = "cancelled"
	RunOutcomeFailed    RunOutcome = "failed"
)

const createJobTableSQL = `
CREATE TABLE IF NOT EXISTS treestream_job (
	job_name VARCHAR(255) PRIMARY KEY,
	watermark TIMESTAMP NULL DEFAULT NULL,
	job_status TINYINT NOT NULL DEFAULT 0,
	leaves_exported BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	INDEX idx_status (job_status)
) ENGINE=InnoDB;
`

const createJobRunTableSQL = `
CREATE TABLE IF NOT EXISTS treestream_job_run (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	job_name VARCHAR(255) NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NULL DEFAULT NULL,
	outcome VARCHAR(20) NOT NULL DEFAULT 'running',
	leaves_exported BIGINT NOT NULL DEFAULT 0,
	error_message TEXT,
	INDEX idx_job_started (job_name, started_at),
	FOREIGN KEY (job_name) REFERENCES treestream_job(job_name) ON DELETE CASCADE
) ENGINE=InnoDB;
`

// JobState represents a job's persisted state.
type JobState struct {
	JobName        string
	Watermark      *time.Time
	Status         JobStatus
	LeavesExported int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WatermarkManager persists per-job changed-since watermarks and a log of
// export runs in the catalog database. The watermark is only ever advanced
// after a fully completed run, so an interrupted export re-covers the same
// window next time instead of silently skipping it.
type WatermarkManager struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewWatermarkManager creates a watermark manager for job state tracking.
func NewWatermarkManager(db *sql.DB, log *logger.Logger) (*WatermarkManager, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &WatermarkManager{
		db:     db,
		logger: log,
	}, nil
}

// InitializeTables creates the watermark tables if they don't exist.
// Idempotent and safe to call on every startup.
func (w *WatermarkManager) InitializeTables(ctx context.Context) error {
	w.logger.Debug("Initializing watermark tables")

	if _, err := w.db.ExecContext(ctx, createJobTableSQL); err != nil {
		return fmt.Errorf("failed to create treestream_job table: %w", err)
	}

	if _, err := w.db.ExecContext(ctx, createJobRunTableSQL); err != nil {
		return fmt.Errorf("failed to create treestream_job_run table: %w", err)
	}

	return nil
}

// GetOrCreateJob retrieves an existing job or creates a new one with no
// watermark (meaning: the first run exports everything).
func (w *WatermarkManager) GetOrCreateJob(ctx context.Context, jobName string) (*JobState, error) {
	var state JobState
	var watermark sql.NullTime
	err := w.db.QueryRowContext(ctx,
		"SELECT job_name, watermark, job_status, leaves_exported, created_at, updated_at FROM treestream_job WHERE job_name = ?",
		jobName,
	).Scan(&state.JobName, &watermark, &state.Status, &state.LeavesExported, &state.CreatedAt, &state.UpdatedAt)

	if err == sql.ErrNoRows {
		w.logger.Infof("Creating new job %q", jobName)
		_, err = w.db.ExecContext(ctx,
			"INSERT INTO treestream_job (job_name, job_status) VALUES (?, ?)",
			jobName, JobStatusIdle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create job: %w", err)
		}

		return &JobState{
			JobName: jobName,
			Status:  JobStatusIdle,
		}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if watermark.Valid {
		t := watermark.Time
		state.Watermark = &t
		w.logger.Infof("Job %q has watermark %s, running incrementally", jobName, t.Format(time.RFC3339))
	} else {
		w.logger.Infof("Job %q has no watermark, running full export", jobName)
	}

	return &state, nil
}

// GetWatermark retrieves the current watermark for a job. A nil time with
// a nil error means no watermark exists yet (full export).
func (w *WatermarkManager) GetWatermark(ctx context.Context, jobName string) (*time.Time, error) {
	var watermark sql.NullTime
	err := w.db.QueryRowContext(ctx,
		"SELECT watermark FROM treestream_job WHERE job_name = ?",
		jobName,
	).Scan(&watermark)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	if !watermark.Valid {
		return nil, nil
	}
	t := watermark.Time
	return &t, nil
}

// UpdateJobStatus updates the job's status.
func (w *WatermarkManager) UpdateJobStatus(ctx context.Context, jobName string, status JobStatus) error {
	_, err := w.db.ExecContext(ctx,
		"UPDATE treestream_job SET job_status = ?, updated_at = CURRENT_TIMESTAMP WHERE job_name = ?",
		status, jobName,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	w.logger.Debugf("Job %q status updated to %d", jobName, status)
	return nil
}

// BeginRun records the start of an export run and marks the job running.
// Returns the run id for FinishRun.
func (w *WatermarkManager) BeginRun(ctx context.Context, jobName string, startedAt time.Time) (int64, error) {
	res, err := w.db.ExecContext(ctx,
		"INSERT INTO treestream_job_run (job_name, started_at, outcome) VALUES (?, ?, ?)",
		jobName, startedAt, RunOutcomeRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	if err := w.UpdateJobStatus(ctx, jobName, JobStatusRunning); err != nil {
		return 0, err
	}

	return runID, nil
}

// FinishRun records the terminal outcome of a run. The error message is
// stored only for failed runs.
func (w *WatermarkManager) FinishRun(ctx context.Context, runID int64, outcome RunOutcome, leavesExported int64, errorMsg string) error {
	_, err := w.db.ExecContext(ctx,
		"UPDATE treestream_job_run SET finished_at = CURRENT_TIMESTAMP, outcome = ?, leaves_exported = ?, error_message = ? WHERE id = ?",
		outcome, leavesExported, nullIfEmpty(errorMsg), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to record run outcome: %w", err)
	}

	w.logger.Debugf("Run %d finished with outcome %q (%d leaves)", runID, outcome, leavesExported)
	return nil
}

// AdvanceWatermark moves the job's watermark forward and marks it idle.
// Callers invoke this only after a fully completed, verified export: a
// cancelled or failed run keeps the old watermark so the next run covers
// the same window again.
func (w *WatermarkManager) AdvanceWatermark(ctx context.Context, jobName string, watermark time.Time, leavesExported int64) error {
	_, err := w.db.ExecContext(ctx,
		"UPDATE treestream_job SET watermark = ?, job_status = ?, leaves_exported = leaves_exported + ?, updated_at = CURRENT_TIMESTAMP WHERE job_name = ?",
		watermark, JobStatusIdle, leavesExported, jobName,
	)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}

	w.logger.Infof("Job %q watermark advanced to %s", jobName, watermark.Format(time.RFC3339))
	return nil
}

// GetRunStats returns counts of runs per outcome for a job.
func (w *WatermarkManager) GetRunStats(ctx context.Context, jobName string) (completed, cancelled, failed int, err error) {
	rows, err := w.db.QueryContext(ctx,
		"SELECT outcome, COUNT(*) FROM treestream_job_run WHERE job_name = ? GROUP BY outcome",
		jobName,
	)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get run stats: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			w.logger.Warnf("Failed to close rows: %v", err)
		}
	}()

	for rows.Next() {
		var outcome RunOutcome
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return 0, 0, 0, fmt.Errorf("failed to scan run stats: %w", err)
		}

		switch outcome {
		case RunOutcomeCompleted:
			completed = count
		case RunOutcomeCancelled:
			cancelled = count
		case RunOutcomeFailed:
			failed = count
		}
	}

	return completed, cancelled, failed, rows.Err()
}

// SetLogger sets a custom logger for the watermark manager.
func (w *WatermarkManager) SetLogger(log *logger.Logger) {
	w.logger = log
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
