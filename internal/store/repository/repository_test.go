package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/store"
)

func newMock(t *testing.T) (*store.Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return store.NewFromDB(conn, logger.Discard()), mock
}

var statColumnNames = []string{
	"id", "game_id", "player_id", "team_id", "points", "rebounds", "assists",
	"steals", "blocks", "turnovers", "field_goals_made", "field_goals_attempted",
	"three_pointers_made", "three_pointers_attempted", "free_throws_made",
	"free_throws_attempted", "minutes_played", "plus_minus", "usage_rate", "starter",
	"created_at", "updated_at",
}

func TestTeamGetByAbbreviationNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM teams WHERE abbreviation = \\$1").
		WithArgs("XYZ").
		WillReturnError(sql.ErrNoRows)

	_, err := NewTeamRepository(db).GetByAbbreviation(context.Background(), "XYZ")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlayerGetByIDsSkipsEmpty(t *testing.T) {
	db, mock := newMock(t)
	players, err := NewPlayerRepository(db).GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, players)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGameTeamSchedule(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	date := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"game_id", "external_id", "season", "game_date", "game_time",
		"home_team_id", "away_team_id", "home_score", "away_score", "status",
		"game_type", "period", "clock", "created_at", "updated_at", "team", "opponent",
	}).AddRow(7, "401", "2025-26", date, nil, 1, 2, nil, nil, "postponed",
		"regular_season", nil, nil, now, now, "BOS", "NYK")

	mock.ExpectQuery("FROM games g").
		WithArgs(1, "2025-11-03", "2025-11-09").
		WillReturnRows(rows)

	games, err := NewGameRepository(db).GetTeamSchedule(context.Background(), 1, date, date.AddDate(0, 0, 6))
	require.NoError(t, err)
	require.Len(t, games, 1)

	sg := games[0].Scheduled()
	assert.Equal(t, "401", sg.GameID)
	assert.Equal(t, "NYK", sg.Opponent)
	assert.Equal(t, fantasy.GamePostponed, sg.Status)
	assert.False(t, sg.Status.Played())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGameUpdateStatusReportsChange(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("UPDATE games").
		WithArgs("401", "final").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE games").
		WithArgs("401", "final").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewGameRepository(db)
	changed, err := repo.UpdateStatus(context.Background(), "401", fantasy.GameFinal)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatus(context.Background(), "401", fantasy.GameFinal)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsPlayerRecords(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	date := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)

	cols := append(append([]string{}, statColumnNames...), "external_id", "game_date", "abbreviation")
	rows := sqlmock.NewRows(cols).AddRow(
		1, 7, 42, 1, 25, 8, 6,
		2, 1, 3, 9, 18,
		3, 7, 4, 5,
		34.5, 6, 0.28, true,
		now, now,
		"401", date, "BOS",
	)

	mock.ExpectQuery("FROM player_game_stats s").
		WithArgs(42, "2025-11-05", sqlmock.AnyArg()).
		WillReturnRows(rows)

	through := time.Date(2025, 11, 5, 18, 0, 0, 0, time.UTC)
	records, err := NewStatsRepository(db).GetPlayerRecords(context.Background(), 42, through, []string{"regular_season"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, fantasy.PlayerID(42), r.PlayerID)
	assert.Equal(t, "401", r.GameID)
	assert.Equal(t, "BOS", r.Team)
	assert.Equal(t, 25.0, r.Points)
	assert.Equal(t, 18.0, r.FGAtt)
	assert.InDelta(t, 0.28, r.UsageRate, 1e-9)
	assert.True(t, r.Starter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeagueCategoriesRejectsUnknownKind(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"league_key", "category_id", "name", "stat", "kind", "display_only", "sort_order"}).
		AddRow("nba.l.1", "PTS", "Points", "PTS", "counting_desc", false, 0).
		AddRow("nba.l.1", "XX", "Mystery", "PTS", "sideways", false, 1)
	mock.ExpectQuery("FROM league_categories").WithArgs("nba.l.1").WillReturnRows(rows)

	_, err := NewLeagueRepository(db).GetCategories(context.Background(), "nba.l.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, fantasy.ErrUnknownCategory)
}

func TestLeagueReplaceRosterAssignment(t *testing.T) {
	db, mock := newMock(t)
	date := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roster_assignments").
		WithArgs("t1", "2025-11-04").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO roster_assignments").
		WithArgs("t1", "2025-11-04", 9, "Guard One", "PG", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewLeagueRepository(db).ReplaceRosterAssignment(context.Background(), "t1", date, []fantasy.RosterEntry{
		{PlayerID: 9, Name: "Guard One", Slot: fantasy.SlotPG, Eligible: []fantasy.Position{fantasy.PositionPG}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeagueReplaceRosterAssignmentRollsBack(t *testing.T) {
	db, mock := newMock(t)
	date := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM roster_assignments").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := NewLeagueRepository(db).ReplaceRosterAssignment(context.Background(), "t1", date, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeagueMatchupForTeamNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM fantasy_matchups").
		WithArgs("t1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"matchup_id"}))

	_, err := NewLeagueRepository(db).GetMatchupForTeam(context.Background(), "t1", 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
