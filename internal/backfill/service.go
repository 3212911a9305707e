package backfill

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

const (
	defaultHistoryLimit = 10
	defaultEventLimit   = 20
	defaultPollInterval = 3 * time.Second
	defaultMaxRetries   = 2
)

// Request represents a backfill invocation request.
type Request struct {
	Season    string     `json:"season,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	GameIDs   []string   `json:"game_ids,omitempty"`
	DryRun    bool       `json:"dry_run,omitempty"`
}

// DeriveType infers the job type based on populated fields.
func (r Request) DeriveType() (JobType, error) {
	if len(r.GameIDs) > 0 {
		return JobTypeGame, nil
	}
	if r.StartDate != nil && r.EndDate != nil {
		return JobTypeDateRange, nil
	}
	if r.Season != "" {
		return JobTypeSeason, nil
	}
	return "", fmt.Errorf("%w: unable to determine job type", ErrInvalidRequest)
}

// Plan validates a request and resolves it into the work it describes.
func Plan(req Request) (JobSpec, error) {
	jobType, err := req.DeriveType()
	if err != nil {
		return JobSpec{}, err
	}

	spec := JobSpec{Type: jobType, Season: req.Season, DryRun: req.DryRun}
	switch jobType {
	case JobTypeGame:
		spec.GameIDs = req.GameIDs
	case JobTypeSeason:
		start, end, err := seasonWindow(req.Season)
		if err != nil {
			return JobSpec{}, err
		}
		spec.Start, spec.End = start, end
	case JobTypeDateRange:
		start, end := fantasy.Day(*req.StartDate), fantasy.Day(*req.EndDate)
		if end.Before(start) {
			return JobSpec{}, fmt.Errorf("%w: end_date before start_date", ErrInvalidRequest)
		}
		spec.Start, spec.End = start, end
	}
	return spec, nil
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo   *Repository
	runner *Runner

	historyLimit int
	pollInterval time.Duration
	maxRetries   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// NewService constructs a Service. Call Start to launch workers.
func NewService(db *store.Database, ingester GameIngester, log *logrus.Entry) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:         NewRepository(db),
		runner:       NewRunner(ingester),
		historyLimit: defaultHistoryLimit,
		pollInterval: defaultPollInterval,
		maxRetries:   defaultMaxRetries,
		ctx:          ctx,
		cancel:       cancel,
		log:          log,
	}
}

// Start requeues jobs interrupted by a previous shutdown and launches the
// background worker loop.
func (s *Service) Start() {
	requeued, failed, err := s.repo.Requeue(s.ctx, s.maxRetries)
	if err != nil {
		s.log.WithError(err).Warn("Failed to requeue interrupted jobs")
	} else if requeued+failed > 0 {
		s.log.WithFields(logrus.Fields{"requeued": requeued, "failed": failed}).Info("Recovered interrupted jobs")
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops workers and waits for completion.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request. Dry runs are
// planned but never queued.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if req.DryRun {
		return nil, fmt.Errorf("%w: dry runs are not queued", ErrInvalidRequest)
	}

	spec, err := Plan(req)
	if err != nil {
		return nil, err
	}

	job := &Job{
		JobType:       spec.Type,
		Season:        sql.NullString{String: spec.Season, Valid: spec.Season != ""},
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
		ProgressTotal: specProgressUnits(spec),
	}
	if spec.Type == JobTypeGame {
		job.GameIDs = spec.GameIDs
	} else {
		job.StartDate = sql.NullTime{Time: spec.Start, Valid: true}
		job.EndDate = sql.NullTime{Time: spec.End, Valid: true}
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendEvent(ctx, stored.JobID, EventQueued, "Job queued"); err != nil {
		s.log.WithError(err).WithField("job_id", stored.JobID).Warn("Failed to record job event")
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   stored.JobID,
		"job_type": stored.JobType,
		"units":    stored.ProgressTotal,
	}).Info("Backfill job queued")
	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	summary := &StatusSummary{ActiveJob: active, History: history}
	if active != nil {
		if summary.Events, err = s.repo.ListEvents(ctx, active.JobID, defaultEventLimit); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

// Cancel withdraws a queued job. Running jobs cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if err := s.repo.Cancel(ctx, jobID); err != nil {
		return err
	}
	if err := s.repo.AppendEvent(ctx, jobID, EventCancelled, "Job cancelled"); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Warn("Failed to record job event")
	}
	s.log.WithField("job_id", jobID).Info("Backfill job cancelled")
	return nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		job, err := s.repo.ClaimNext(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("Failed to claim backfill job")
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

func (s *Service) executeJob(job *Job) {
	log := s.log.WithFields(logrus.Fields{"job_id": job.JobID, "job_type": job.JobType})

	spec, err := buildSpec(job)
	if err != nil {
		log.WithError(err).Error("Invalid job specification")
		s.finish(job.JobID, JobStatusFailed, "Invalid job specification", err)
		return
	}

	reporter := &jobReporter{
		ctx:   s.ctx,
		repo:  s.repo,
		jobID: job.JobID,
		total: specProgressUnits(spec),
		log:   log,
	}

	log.Info("Backfill job started")
	if err := s.runner.Run(s.ctx, spec, reporter); err != nil {
		log.WithError(err).Error("Backfill job failed")
		s.finish(job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	log.Info("Backfill job completed")
	s.finish(job.JobID, JobStatusCompleted, "Job completed", nil)
}

// finish records the outcome unless the service is shutting down, in which
// case the job stays running and is requeued on the next start.
func (s *Service) finish(jobID string, status JobStatus, message string, jobErr error) {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.repo.Finish(s.ctx, jobID, status, message, jobErr); err != nil {
		s.log.WithError(err).WithField("job_id", jobID).Error("Failed to record job outcome")
	}
}

func buildSpec(job *Job) (JobSpec, error) {
	spec := JobSpec{
		Type:   job.JobType,
		Season: job.Season.String,
	}

	switch job.JobType {
	case JobTypeGame:
		if len(job.GameIDs) == 0 {
			return spec, fmt.Errorf("game job missing game_ids")
		}
		spec.GameIDs = job.GameIDs
	case JobTypeSeason, JobTypeDateRange:
		if !job.StartDate.Valid || !job.EndDate.Valid {
			return spec, fmt.Errorf("job missing start/end dates")
		}
		spec.Start = job.StartDate.Time
		spec.End = job.EndDate.Time
	default:
		return spec, fmt.Errorf("unknown job type %s", job.JobType)
	}

	return spec, nil
}

type jobReporter struct {
	ctx   context.Context
	repo  *Repository
	jobID string
	total int
	log   *logrus.Entry
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	if r.total == 0 {
		r.total = specProgressUnits(spec)
	}
	r.update(0, r.total, "Job starting")
}

func (r *jobReporter) OnDateStart(date time.Time, index int, total int) {
	msg := fmt.Sprintf("Processing %s (%d/%d)", date.Format("Jan 2, 2006"), index+1, total)
	r.update(index, valueOr(total, r.total), msg)
}

func (r *jobReporter) OnGameProcessed(gameID string) {
	if err := r.repo.AppendEvent(r.ctx, r.jobID, EventGame, fmt.Sprintf("Game %s processed", gameID)); err != nil {
		r.log.WithError(err).Debug("Failed to record job event")
	}
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	r.update(current, valueOr(total, r.total), message)
}

func (r *jobReporter) OnJobComplete() {
	r.update(r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	if appendErr := r.repo.AppendEvent(r.ctx, r.jobID, EventError, err.Error()); appendErr != nil {
		r.log.WithError(appendErr).Debug("Failed to record job event")
	}
}

func (r *jobReporter) update(current, total int, message string) {
	if err := r.repo.UpdateProgress(r.ctx, r.jobID, current, total, message); err != nil {
		r.log.WithError(err).Debug("Failed to update job progress")
	}
}

func specProgressUnits(spec JobSpec) int {
	switch spec.Type {
	case JobTypeGame:
		return len(spec.GameIDs)
	case JobTypeSeason, JobTypeDateRange:
		return len(fantasy.DatesBetween(orderedRange(spec.Start, spec.End)))
	default:
		return 0
	}
}

func valueOr(val, fallback int) int {
	if val > 0 {
		return val
	}
	return fallback
}

// seasonWindow returns the calendar span of a season label ("2025-26" or
// the starting year alone): October 1 through June 30.
func seasonWindow(season string) (time.Time, time.Time, error) {
	first, _, _ := strings.Cut(strings.TrimSpace(season), "-")
	startYear, err := strconv.Atoi(first)
	if err != nil || startYear < 1946 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: season %q", ErrInvalidRequest, season)
	}
	start := time.Date(startYear, time.October, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(startYear+1, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end, nil
}
