package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/ingest"
	"github.com/fortuna/juno/internal/ingest/espn"
)

// Job identifiers
const (
	JobDailyIngestion = "daily_ingestion"
	JobScheduleSync   = "schedule_sync"
	JobLivePolling    = "live_polling"
)

// DateIngester loads scoreboards and box scores
type DateIngester interface {
	IngestDate(ctx context.Context, date time.Time) (*espn.DateResult, error)
	SyncSchedule(ctx context.Context, start time.Time, days int) (int, error)
}

// StatusPoller advances the status of games still in flight
type StatusPoller interface {
	Poll(ctx context.Context) (*ingest.PollResult, error)
}

// Refresher recomputes the current week's projections
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Config holds scheduler configuration
type Config struct {
	DailyIngestCron  string
	ScheduleSyncCron string
	LivePollCron     string

	EnableDailyIngestion bool
	EnableScheduleSync   bool
	EnableLivePolling    bool

	ScheduleLookahead int
	JobTimeout        time.Duration
	Location          *time.Location
	Now               func() time.Time
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		DailyIngestCron:      "0 3 * * *",
		ScheduleSyncCron:     "30 4 * * *",
		LivePollCron:         "*/2 * * * *",
		EnableDailyIngestion: true,
		EnableScheduleSync:   true,
		EnableLivePolling:    true,
		ScheduleLookahead:    14,
		JobTimeout:           30 * time.Minute,
	}
}

// JobInfo describes one registered job
type JobInfo struct {
	Name      string        `json:"name"`
	Schedule  string        `json:"schedule"`
	LastRun   time.Time     `json:"last_run,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Runs      int           `json:"runs"`
	NextRun   time.Time     `json:"next_run,omitempty"`

	entryID cron.EntryID
}

// Orchestrator manages scheduled tasks for data ingestion
type Orchestrator struct {
	cron      *cron.Cron
	ingester  DateIngester
	poller    StatusPoller
	refresher Refresher
	config    Config
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]*JobInfo
}

// NewOrchestrator registers the enabled jobs. poller and refresher may be nil,
// in which case live polling and post-ingest refreshes are skipped.
func NewOrchestrator(ingester DateIngester, poller StatusPoller, refresher Refresher, config Config, log *logrus.Entry) (*Orchestrator, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	cronLog := cron.PrintfLogger(log.WithField("component", "cron"))

	o := &Orchestrator{
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		ingester:  ingester,
		poller:    poller,
		refresher: refresher,
		config:    config,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*JobInfo),
	}

	if config.EnableDailyIngestion {
		if err := o.addJob(JobDailyIngestion, config.DailyIngestCron, o.RunDailyIngestion); err != nil {
			return nil, err
		}
	}
	if config.EnableScheduleSync {
		if err := o.addJob(JobScheduleSync, config.ScheduleSyncCron, o.SyncSchedule); err != nil {
			return nil, err
		}
	}
	if config.EnableLivePolling && poller != nil {
		if err := o.addJob(JobLivePolling, config.LivePollCron, o.PollStatus); err != nil {
			return nil, err
		}
	}

	return o, nil
}

func (o *Orchestrator) addJob(name, spec string, fn func(context.Context) error) error {
	id, err := o.cron.AddFunc(spec, func() { o.runJob(name, fn) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	o.mu.Lock()
	o.jobs[name] = &JobInfo{Name: name, Schedule: spec, entryID: id}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) runJob(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(o.ctx, o.config.JobTimeout)
	defer cancel()

	log := o.log.WithField("job", name)
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	o.mu.Lock()
	if job, ok := o.jobs[name]; ok {
		job.LastRun = start
		job.Duration = elapsed
		job.Runs++
		job.LastError = ""
		if err != nil {
			job.LastError = err.Error()
		}
	}
	o.mu.Unlock()

	if err != nil {
		log.WithError(err).WithField("duration", elapsed.String()).Error("Scheduled job failed")
		return
	}
	log.WithField("duration", elapsed.String()).Debug("Scheduled job finished")
}

// Start begins all scheduled tasks
func (o *Orchestrator) Start() {
	names := make([]string, 0, len(o.jobs))
	for name := range o.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	o.log.WithFields(logrus.Fields{
		"jobs":     names,
		"timezone": o.config.Location.String(),
	}).Info("Scheduler starting")
	o.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.cancel()
	done := o.cron.Stop()

	select {
	case <-done.Done():
		o.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) today() time.Time {
	return fantasy.Day(o.config.Now().In(o.config.Location))
}

// RunDailyIngestion loads yesterday's and today's scoreboards, then refreshes
// projections so the new lines are reflected.
func (o *Orchestrator) RunDailyIngestion(ctx context.Context) error {
	today := o.today()
	var errs []error
	games, lines := 0, 0

	for _, date := range []time.Time{today.AddDate(0, 0, -1), today} {
		res, err := o.ingester.IngestDate(ctx, date)
		if err != nil {
			errs = append(errs, fmt.Errorf("ingest %s: %w", fantasy.DateKey(date), err))
			continue
		}
		games += len(res.Games)
		lines += res.Lines
	}

	o.log.WithFields(logrus.Fields{
		"games": games,
		"lines": lines,
	}).Info("Daily ingestion complete")

	if o.refresher != nil {
		refreshed, err := o.refresher.RefreshAll(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh projections: %w", err))
		} else {
			o.log.WithField("matchups", refreshed).Info("Projections refreshed")
		}
	}

	return errors.Join(errs...)
}

// SyncSchedule pulls upcoming games so projections see future schedules
func (o *Orchestrator) SyncSchedule(ctx context.Context) error {
	n, err := o.ingester.SyncSchedule(ctx, o.today(), o.config.ScheduleLookahead)
	if err != nil {
		return fmt.Errorf("sync schedule: %w", err)
	}

	o.log.WithFields(logrus.Fields{
		"games": n,
		"days":  o.config.ScheduleLookahead,
	}).Info("Schedule synced")
	return nil
}

// PollStatus advances game statuses for today's slate
func (o *Orchestrator) PollStatus(ctx context.Context) error {
	if o.poller == nil {
		return nil
	}
	res, err := o.poller.Poll(ctx)
	if err != nil {
		return fmt.Errorf("poll status: %w", err)
	}

	if res.Updated > 0 {
		o.log.WithFields(logrus.Fields{
			"source":    res.Source,
			"updated":   res.Updated,
			"finalized": res.Finalized,
		}).Info("Game statuses updated")
	}
	return nil
}

// Trigger runs a registered job immediately, outside its schedule
func (o *Orchestrator) Trigger(ctx context.Context, name string) error {
	switch name {
	case JobDailyIngestion:
		return o.RunDailyIngestion(ctx)
	case JobScheduleSync:
		return o.SyncSchedule(ctx)
	case JobLivePolling:
		return o.PollStatus(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

// Status returns the registered jobs ordered by name
func (o *Orchestrator) Status() []JobInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]JobInfo, 0, len(o.jobs))
	for _, job := range o.jobs {
		info := *job
		info.NextRun = o.cron.Entry(job.entryID).Next
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
