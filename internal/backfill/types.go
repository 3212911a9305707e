package backfill

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

// ErrInvalidRequest is returned when a request does not describe a job.
var ErrInvalidRequest = errors.New("invalid backfill request")

// JobType enumerates the supported backfill job variants.
type JobType string

const (
	JobTypeSeason    JobType = "season"
	JobTypeDateRange JobType = "date_range"
	JobTypeGame      JobType = "game"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// EventType classifies entries of a job's event trail.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventGame      EventType = "game"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// JobEvent is one entry of a job's event trail.
type JobEvent struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Job models the database representation of a backfill job.
type Job struct {
	JobID           string         `json:"job_id"`
	JobType         JobType        `json:"job_type"`
	Season          sql.NullString `json:"season"`
	StartDate       sql.NullTime   `json:"start_date"`
	EndDate         sql.NullTime   `json:"end_date"`
	GameIDs         pq.StringArray `json:"game_ids,omitempty"`
	Status          JobStatus      `json:"status"`
	StatusMessage   sql.NullString `json:"status_message"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	LastError       sql.NullString `json:"last_error"`
	RetryCount      int            `json:"retry_count"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	StartedAt       sql.NullTime   `json:"started_at"`
	CompletedAt     sql.NullTime   `json:"completed_at"`
}

// JobSpec describes the work to be performed by the runner.
type JobSpec struct {
	Type    JobType
	Season  string
	Start   time.Time
	End     time.Time
	GameIDs []string
	DryRun  bool
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(spec JobSpec)
	OnDateStart(date time.Time, index int, total int)
	OnGameProcessed(gameID string)
	OnProgress(message string, current int, total int)
	OnJobComplete()
	OnJobError(err error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job        `json:"active_job,omitempty"`
	Events    []*JobEvent `json:"events,omitempty"`
	History   []*Job      `json:"recent_jobs,omitempty"`
}
