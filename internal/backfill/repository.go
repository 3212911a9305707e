package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fortuna/juno/internal/store"
)

const jobColumns = `j.job_id, j.job_type, j.season, j.start_date, j.end_date, j.game_ids,
	j.status, j.status_message, j.progress_current, j.progress_total,
	j.last_error, j.retry_count, j.created_at, j.updated_at, j.started_at, j.completed_at`

// Repository persists backfill jobs and their event trail in Postgres.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

// CreateJob stores job under a fresh UUID and returns the persisted row.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	query := `
		WITH j AS (
			INSERT INTO backfill_jobs (
				job_id, job_type, season, start_date, end_date, game_ids,
				status, status_message, progress_current, progress_total
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING *
		)
		SELECT ` + jobColumns + ` FROM j`

	row := r.db.DB().QueryRowContext(ctx, query,
		uuid.NewString(), job.JobType, job.Season, job.StartDate, job.EndDate, job.GameIDs,
		job.Status, job.StatusMessage, job.ProgressCurrent, job.ProgressTotal,
	)

	stored, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert backfill job: %w", err)
	}
	return stored, nil
}

// Finish records a terminal status. lastErr may be nil.
func (r *Repository) Finish(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE backfill_jobs
		SET status = $2, status_message = $3, last_error = $4,
			updated_at = NOW(), completed_at = NOW()
		WHERE job_id = $1`,
		jobID, string(status), message, errText)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	return nil
}

// UpdateProgress moves the job's progress counters.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE backfill_jobs
		SET progress_current = $2, progress_total = $3, status_message = $4, updated_at = NOW()
		WHERE job_id = $1`,
		jobID, current, total, message)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// AppendEvent adds an entry to the job's event trail.
func (r *Repository) AppendEvent(ctx context.Context, jobID string, kind EventType, message string) error {
	_, err := r.db.DB().ExecContext(ctx, `
		INSERT INTO backfill_job_events (job_id, event_type, message)
		VALUES ($1,$2,$3)`,
		jobID, string(kind), message)
	if err != nil {
		return fmt.Errorf("insert job event: %w", err)
	}
	return nil
}

// ListEvents returns the newest events of a job, newest first.
func (r *Repository) ListEvents(ctx context.Context, jobID string, limit int) ([]*JobEvent, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT event_type, message, created_at
		FROM backfill_job_events
		WHERE job_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", err)
	}
	defer rows.Close()

	var events []*JobEvent
	for rows.Next() {
		e := &JobEvent{}
		if err := rows.Scan(&e.Type, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Requeue moves interrupted jobs back to the queue and bumps their retry
// count. Jobs that already used up maxRetries are failed instead.
func (r *Repository) Requeue(ctx context.Context, maxRetries int) (requeued, failed int64, err error) {
	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE backfill_jobs
		SET status = $2, status_message = 'Interrupted, failed after retries',
			updated_at = NOW(), completed_at = NOW()
		WHERE status = $1 AND retry_count >= $3`,
		string(JobStatusRunning), string(JobStatusFailed), maxRetries)
	if err != nil {
		return 0, 0, fmt.Errorf("fail exhausted jobs: %w", err)
	}
	failed, _ = res.RowsAffected()

	res, err = r.db.DB().ExecContext(ctx, `
		UPDATE backfill_jobs
		SET status = $2, status_message = 'Requeued after restart',
			retry_count = retry_count + 1, updated_at = NOW()
		WHERE status = $1`,
		string(JobStatusRunning), string(JobStatusQueued))
	if err != nil {
		return 0, failed, fmt.Errorf("requeue interrupted jobs: %w", err)
	}
	requeued, _ = res.RowsAffected()
	return requeued, failed, nil
}

// Cancel withdraws a job that has not started. It returns store.ErrNotFound
// when no queued job has that id.
func (r *Repository) Cancel(ctx context.Context, jobID string) error {
	res, err := r.db.DB().ExecContext(ctx, `
		UPDATE backfill_jobs
		SET status = $3, status_message = 'Cancelled', updated_at = NOW(), completed_at = NOW()
		WHERE job_id = $1 AND status = $2`,
		jobID, string(JobStatusQueued), string(JobStatusCancelled))
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("queued job %s: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// ClaimNext marks the oldest queued job as running and returns it, or nil
// when the queue is empty. SKIP LOCKED keeps concurrent workers apart.
func (r *Repository) ClaimNext(ctx context.Context) (*Job, error) {
	query := `
		WITH j AS (
			UPDATE backfill_jobs
			SET status = $2, status_message = 'Starting',
				started_at = COALESCE(started_at, NOW()), updated_at = NOW()
			WHERE job_id = (
				SELECT job_id FROM backfill_jobs
				WHERE status = $1
				ORDER BY created_at
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING *
		)
		SELECT ` + jobColumns + ` FROM j`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query, string(JobStatusQueued), string(JobStatusRunning)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM backfill_jobs j
		WHERE j.status = $1
		ORDER BY j.started_at DESC
		LIMIT 1`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query, string(JobStatusRunning)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recently created jobs.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM backfill_jobs j
		ORDER BY j.created_at DESC
		LIMIT $1`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	if err := row.Scan(
		&j.JobID, &j.JobType, &j.Season, &j.StartDate, &j.EndDate, &j.GameIDs,
		&j.Status, &j.StatusMessage, &j.ProgressCurrent, &j.ProgressTotal,
		&j.LastError, &j.RetryCount, &j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	); err != nil {
		return nil, err
	}
	return j, nil
}
