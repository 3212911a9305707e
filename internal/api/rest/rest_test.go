package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/backfill"
	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/matchup"
	"github.com/fortuna/juno/internal/reconciliation"
	"github.com/fortuna/juno/internal/service"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

type fakeMatchups struct {
	week     int
	teamWeek int
	opts     service.ProjectionOptions
	err      error
}

func (f *fakeMatchups) ProjectTeam(_ context.Context, _, teamKey string, week int, opts service.ProjectionOptions) (*matchup.TeamProjection, error) {
	f.teamWeek, f.opts = week, opts
	if f.err != nil {
		return nil, f.err
	}
	return &matchup.TeamProjection{TeamKey: teamKey, Mode: fantasy.Window(opts.Mode)}, nil
}

func (f *fakeMatchups) ProjectWeek(_ context.Context, leagueKey string, week int, opts service.ProjectionOptions) ([]*service.MatchupResult, error) {
	f.week, f.opts = week, opts
	if f.err != nil {
		return nil, f.err
	}
	return []*service.MatchupResult{{LeagueKey: leagueKey, Week: week}}, nil
}

type fakeLeagues struct {
	date    time.Time
	entries []fantasy.RosterEntry
}

func (f *fakeLeagues) GetSettings(_ context.Context, key string) (*service.LeagueSettings, error) {
	if key != "nba.l.1" {
		return nil, fmt.Errorf("league %s: %w", key, store.ErrNotFound)
	}
	return &service.LeagueSettings{League: &store.FantasyLeague{LeagueKey: key}}, nil
}

func (f *fakeLeagues) ImportRoster(_ context.Context, _, _ string, date time.Time, entries []fantasy.RosterEntry) error {
	f.date, f.entries = date, entries
	return nil
}

type fakePlayers struct {
	window string
	asOf   time.Time
}

func (f *fakePlayers) GetPlayer(_ context.Context, id int) (*service.PlayerProfile, error) {
	if id != 7 {
		return nil, store.ErrNotFound
	}
	return &service.PlayerProfile{Player: &store.Player{PlayerID: 7, FullName: "Stephen Curry"}}, nil
}

func (f *fakePlayers) SearchPlayers(_ context.Context, term string, limit int) ([]*store.Player, error) {
	return []*store.Player{{PlayerID: 7, FullName: term}}, nil
}

func (f *fakePlayers) MatchNames(_ context.Context, names []string) ([]reconciliation.PlayerMatch, error) {
	out := make([]reconciliation.PlayerMatch, 0, len(names))
	for i, n := range names {
		m := reconciliation.PlayerMatch{Query: n, Method: reconciliation.MatchNone}
		if i == 0 {
			m.PlayerID, m.Method = 7, reconciliation.MatchExact
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakePlayers) GetGameLog(context.Context, int, int) ([]*repository.GameLogEntry, error) {
	return []*repository.GameLogEntry{{Result: "W"}}, nil
}

func (f *fakePlayers) GetSnapshot(_ context.Context, _ int, window, _ string, asOf time.Time) (*service.SnapshotView, error) {
	f.window, f.asOf = window, asOf
	if window == "fortnight" {
		return nil, fmt.Errorf("%w: %q", fantasy.ErrInvalidWindow, window)
	}
	return &service.SnapshotView{HasData: true}, nil
}

func (f *fakePlayers) GetMinutesTrend(_ context.Context, id int, asOf time.Time) (*service.MinutesTrend, error) {
	return &service.MinutesTrend{PlayerID: fantasy.PlayerID(id), AsOf: asOf, Trend: 4.5, Available: true}, nil
}

type fakeRankings struct{ req service.RankingRequest }

func (f *fakeRankings) Rank(_ context.Context, req service.RankingRequest) (*service.RankingResult, error) {
	f.req = req
	return &service.RankingResult{Window: fantasy.Window(req.Window)}, nil
}

type fakeGames struct{ abbr string }

func (f *fakeGames) GetGamesByDate(context.Context, time.Time) ([]*service.GameSummary, error) {
	return nil, errors.New("connection refused")
}

func (f *fakeGames) GetTeamSchedule(_ context.Context, abbr string, _, _ time.Time) ([]*store.TeamGame, error) {
	f.abbr = abbr
	return []*store.TeamGame{}, nil
}

type fakeBackfill struct{ enqueued int }

func (f *fakeBackfill) Enqueue(_ context.Context, req backfill.Request) (*backfill.Job, error) {
	if _, err := backfill.Plan(req); err != nil {
		return nil, err
	}
	f.enqueued++
	return &backfill.Job{JobID: "job-1", JobType: backfill.JobTypeSeason, Status: backfill.JobStatusQueued}, nil
}

func (f *fakeBackfill) GetStatus(context.Context) (*backfill.StatusSummary, error) {
	return &backfill.StatusSummary{}, nil
}

func (f *fakeBackfill) Cancel(_ context.Context, jobID string) error {
	if jobID != "job-1" {
		return fmt.Errorf("queued job %s: %w", jobID, store.ErrNotFound)
	}
	return nil
}

type checkFunc func(context.Context) error

func (c checkFunc) HealthCheck(ctx context.Context) error { return c(ctx) }

type fixture struct {
	handler   http.Handler
	matchups  *fakeMatchups
	leagues   *fakeLeagues
	players   *fakePlayers
	rankings  *fakeRankings
	games     *fakeGames
	backfills *fakeBackfill
}

func newFixture(checks map[string]HealthChecker) *fixture {
	f := &fixture{
		matchups:  &fakeMatchups{},
		leagues:   &fakeLeagues{},
		players:   &fakePlayers{},
		rankings:  &fakeRankings{},
		games:     &fakeGames{},
		backfills: &fakeBackfill{},
	}
	svc := Services{
		Matchups: f.matchups,
		Leagues:  f.leagues,
		Players:  f.players,
		Rankings: f.rankings,
		Games:    f.games,
		Backfill: f.backfills,
	}
	f.handler = NewServer("0", svc, checks, logger.Discard()).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(map[string]HealthChecker{
		"database": checkFunc(func(context.Context) error { return nil }),
	})
	rec, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	f = newFixture(map[string]HealthChecker{
		"database": checkFunc(func(context.Context) error { return nil }),
		"redis":    checkFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	})
	rec, body = f.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "ok", deps["database"])
}

func TestWeekMatchupsPassesOptions(t *testing.T) {
	f := newFixture(nil)
	rec, body := f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.1/matchups/6?mode=last7&optimize=true&today=2025-11-20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, 6, f.matchups.week)
	assert.Equal(t, "last7", f.matchups.opts.Mode)
	assert.True(t, f.matchups.opts.Optimize)
	assert.Equal(t, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC), f.matchups.opts.Today)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.1/matchups/6?optimize=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamProjectionErrors(t *testing.T) {
	f := newFixture(nil)
	rec, body := f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.1/teams/nba.l.1.t.3/projection?week=4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nba.l.1.t.3", body["team_key"])
	assert.Equal(t, 4, f.matchups.teamWeek)

	f.matchups.err = fmt.Errorf("mode %q: %w", "yesterday", fantasy.ErrInvalidProjectionMode)
	rec, body = f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.1/teams/nba.l.1.t.3/projection?mode=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "invalid projection mode")

	f.matchups.err = fmt.Errorf("team: %w", store.ErrNotFound)
	rec, _ = f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.1/teams/nope/projection", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeagueAndRosterImport(t *testing.T) {
	f := newFixture(nil)
	rec, _ := f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.do(t, http.MethodGet, "/api/v1/leagues/nba.l.2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := `{"date":"2025-11-18","entries":[{"player_id":7,"name":"Stephen Curry","slot":"PG","eligible_positions":["PG","G"]}]}`
	rec, out := f.do(t, http.MethodPut, "/api/v1/leagues/nba.l.1/teams/nba.l.1.t.3/roster", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-11-18", out["date"])
	require.Len(t, f.leagues.entries, 1)
	assert.Equal(t, fantasy.PlayerID(7), f.leagues.entries[0].PlayerID)

	rec, _ = f.do(t, http.MethodPut, "/api/v1/leagues/nba.l.1/teams/nba.l.1.t.3/roster", `{"date":"11/18/2025"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlayerRoutes(t *testing.T) {
	f := newFixture(nil)

	rec, body := f.do(t, http.MethodGet, "/api/v1/players/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Stephen Curry", body["full_name"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/players/8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/players/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/v1/players/search?q=curry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/players/7/games?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(7), body["player_id"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/players/7/minutes-trend?asof=2025-11-20", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.5, body["trend"])
}

func TestPlayerSnapshotDefaultsAndValidation(t *testing.T) {
	f := newFixture(nil)

	rec, body := f.do(t, http.MethodGet, "/api/v1/players/7/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["has_data"])
	assert.Equal(t, "season", f.players.window)
	assert.True(t, f.players.asOf.IsZero())

	rec, _ = f.do(t, http.MethodGet, "/api/v1/players/7/snapshot?window=fortnight", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/players/7/snapshot?asof=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchPlayers(t *testing.T) {
	f := newFixture(nil)
	rec, body := f.do(t, http.MethodPost, "/api/v1/players/match", `{"names":["Steph Curry","Nobody"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["resolved"])
	assert.Len(t, body["matches"], 2)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/players/match", `{"names":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRankingsAndGames(t *testing.T) {
	f := newFixture(nil)
	rec, _ := f.do(t, http.MethodGet, "/api/v1/rankings?window=last14d&limit=25", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "last14d", f.rankings.req.Window)
	assert.Equal(t, 25, f.rankings.req.Limit)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/rankings?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/rankings?week_start=2025-11-10&week_end=2025-11-16", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-11-10", fantasy.DateKey(f.rankings.req.WeekStart))
	assert.Equal(t, "2025-11-16", fantasy.DateKey(f.rankings.req.WeekEnd))

	rec, _ = f.do(t, http.MethodGet, "/api/v1/rankings?week_start=next", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := f.do(t, http.MethodGet, "/api/v1/games?date=2025-11-20", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch games", body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/teams/gsw/schedule?start=2025-11-17&end=2025-11-23", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GSW", body["team"])
	assert.Equal(t, "GSW", f.games.abbr)
}

func TestBackfillRoutes(t *testing.T) {
	f := newFixture(nil)

	rec, body := f.do(t, http.MethodPost, "/api/v1/backfill", `{"season":"2025-26","dry_run":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := body["plan"].(map[string]interface{})
	assert.Equal(t, "2025-10-01", plan["start_date"])
	assert.Equal(t, "2026-06-30", plan["end_date"])
	assert.Equal(t, 0, f.backfills.enqueued)

	rec, body = f.do(t, http.MethodPost, "/api/v1/backfill", `{"season":"2025-26"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.backfills.enqueued)
	assert.Equal(t, "job-1", body["job"].(map[string]interface{})["job_id"])

	rec, _ = f.do(t, http.MethodPost, "/api/v1/backfill", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/v1/backfill/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", body["status"])

	rec, body = f.do(t, http.MethodPost, "/api/v1/backfill/job-1/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", body["status"])

	rec, _ = f.do(t, http.MethodPost, "/api/v1/backfill/job-9/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflightAndRecovery(t *testing.T) {
	f := newFixture(nil)
	rec, _ := f.do(t, http.MethodOptions, "/api/v1/rankings", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	panicky := RecoveryMiddleware(logger.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec = httptest.NewRecorder()
	panicky.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
