package backfill

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/ingest/espn"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/store"
)

func day(s string) time.Time {
	t, err := time.Parse(fantasy.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPlan(t *testing.T) {
	spec, err := Plan(Request{Season: "2025-26"})
	require.NoError(t, err)
	assert.Equal(t, JobTypeSeason, spec.Type)
	assert.Equal(t, "2025-10-01", fantasy.DateKey(spec.Start))
	assert.Equal(t, "2026-06-30", fantasy.DateKey(spec.End))

	start, end := day("2025-11-01"), day("2025-11-03")
	spec, err = Plan(Request{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, JobTypeDateRange, spec.Type)
	assert.Equal(t, 3, specProgressUnits(spec))

	spec, err = Plan(Request{GameIDs: []string{"1", "2"}, Season: "2025-26"})
	require.NoError(t, err)
	assert.Equal(t, JobTypeGame, spec.Type)
	assert.Equal(t, 2, specProgressUnits(spec))
}

func TestPlanRejectsBadRequests(t *testing.T) {
	_, err := Plan(Request{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = Plan(Request{Season: "next year"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	start, end := day("2025-11-03"), day("2025-11-01")
	_, err = Plan(Request{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

type fakeIngester struct {
	dates []string
	games []string
	fail  string
}

func (f *fakeIngester) IngestDate(_ context.Context, date time.Time) (*espn.DateResult, error) {
	key := fantasy.DateKey(date)
	if key == f.fail {
		return nil, errors.New("scoreboard unavailable")
	}
	f.dates = append(f.dates, key)
	return &espn.DateResult{Date: date, Games: []*store.Game{{ExternalID: "g" + key}}, Lines: 20}, nil
}

func (f *fakeIngester) IngestGame(_ context.Context, id string) (*store.Game, error) {
	if id == f.fail {
		return nil, errors.New("not found")
	}
	f.games = append(f.games, id)
	return &store.Game{ExternalID: id}, nil
}

type recordingReporter struct {
	started   bool
	completed bool
	processed []string
	errs      []error
	last      int
}

func (r *recordingReporter) OnJobStart(JobSpec)              { r.started = true }
func (r *recordingReporter) OnDateStart(time.Time, int, int) {}
func (r *recordingReporter) OnGameProcessed(id string)       { r.processed = append(r.processed, id) }
func (r *recordingReporter) OnProgress(_ string, cur, _ int) { r.last = cur }
func (r *recordingReporter) OnJobComplete()                  { r.completed = true }
func (r *recordingReporter) OnJobError(err error)            { r.errs = append(r.errs, err) }

func TestRunnerDateRange(t *testing.T) {
	ing := &fakeIngester{}
	rep := &recordingReporter{}
	spec := JobSpec{Type: JobTypeDateRange, Start: day("2025-11-03"), End: day("2025-11-01")}

	require.NoError(t, NewRunner(ing).Run(context.Background(), spec, rep))
	assert.Equal(t, []string{"2025-11-01", "2025-11-02", "2025-11-03"}, ing.dates)
	assert.Len(t, rep.processed, 3)
	assert.Equal(t, 3, rep.last)
	assert.True(t, rep.started)
	assert.True(t, rep.completed)
}

func TestRunnerStopsOnFailure(t *testing.T) {
	ing := &fakeIngester{fail: "b"}
	rep := &recordingReporter{}
	spec := JobSpec{Type: JobTypeGame, GameIDs: []string{"a", "b", "c"}}

	err := NewRunner(ing).Run(context.Background(), spec, rep)
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, ing.games)
	assert.Len(t, rep.errs, 1)
	assert.False(t, rep.completed)
}

func TestRunnerDryRunTouchesNothing(t *testing.T) {
	ing := &fakeIngester{}
	rep := &recordingReporter{}
	spec, err := Plan(Request{Season: "2025-26", DryRun: true})
	require.NoError(t, err)

	require.NoError(t, NewRunner(ing).Run(context.Background(), spec, nil))
	require.NoError(t, NewRunner(ing).Run(context.Background(), spec, rep))
	assert.Empty(t, ing.dates)
	assert.True(t, rep.completed)
}

var jobCols = []string{"job_id", "job_type", "season", "start_date", "end_date", "game_ids",
	"status", "status_message", "progress_current", "progress_total",
	"last_error", "retry_count", "created_at", "updated_at", "started_at", "completed_at"}

func TestEnqueuePersistsJob(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	svc := NewService(store.NewFromDB(conn, logger.Discard()), &fakeIngester{}, logger.Discard())
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO backfill_jobs")).
		WithArgs(sqlmock.AnyArg(), JobTypeDateRange, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), JobStatusQueued, sqlmock.AnyArg(), 0, 2).
		WillReturnRows(sqlmock.NewRows(jobCols).AddRow(
			"7d9f3c1e-2b4a-4c55-9a63-0e8f4a1b2c3d", "date_range", nil, day("2025-11-01"), day("2025-11-02"), nil,
			"queued", "Queued", 0, 2, nil, 0, now, now, nil, nil))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO backfill_job_events")).
		WithArgs("7d9f3c1e-2b4a-4c55-9a63-0e8f4a1b2c3d", "queued", "Job queued").
		WillReturnResult(sqlmock.NewResult(1, 1))

	start, end := day("2025-11-01"), day("2025-11-02")
	job, err := svc.Enqueue(context.Background(), Request{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, JobTypeDateRange, job.JobType)
	assert.Equal(t, 2, job.ProgressTotal)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = svc.Enqueue(context.Background(), Request{Season: "2025-26", DryRun: true})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCancelOnlyQueuedJobs(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	svc := NewService(store.NewFromDB(conn, logger.Discard()), &fakeIngester{}, logger.Discard())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE backfill_jobs")).
		WithArgs("job-1", "queued", "cancelled").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO backfill_job_events")).
		WithArgs("job-1", "cancelled", "Job cancelled").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, svc.Cancel(context.Background(), "job-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE backfill_jobs")).
		WithArgs("job-2", "queued", "cancelled").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = svc.Cancel(context.Background(), "job-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatusIncludesActiveJobEvents(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewRepository(store.NewFromDB(conn, logger.Discard()))
	svc := &Service{repo: repo, historyLimit: 5, log: logger.Discard()}
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM backfill_jobs j")).
		WithArgs("running").
		WillReturnRows(sqlmock.NewRows(jobCols).AddRow(
			"job-1", "season", "2025-26", day("2025-10-01"), day("2026-06-30"), nil,
			"running", "Processing", 12, 273, nil, 0, now, now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM backfill_jobs j")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(jobCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM backfill_job_events")).
		WithArgs("job-1", defaultEventLimit).
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "message", "created_at"}).
			AddRow("game", "Game 401 processed", now))

	summary, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary.ActiveJob)
	assert.Equal(t, "2025-26", summary.ActiveJob.Season.String)
	assert.Equal(t, 12, summary.ActiveJob.ProgressCurrent)
	require.Len(t, summary.Events, 1)
	assert.Equal(t, EventGame, summary.Events[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequeueInterruptedJobs(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewRepository(store.NewFromDB(conn, logger.Discard()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE backfill_jobs")).
		WithArgs("running", "failed", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("retry_count = retry_count + 1")).
		WithArgs("running", "queued").
		WillReturnResult(sqlmock.NewResult(0, 3))

	requeued, failed, err := repo.Requeue(context.Background(), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, requeued)
	assert.EqualValues(t, 1, failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
