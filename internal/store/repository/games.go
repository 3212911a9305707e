package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

const gameColumns = `g.game_id, g.external_id, g.season, g.game_date, g.game_time,
	g.home_team_id, g.away_team_id, g.home_score, g.away_score, g.status,
	g.game_type, g.period, g.clock, g.created_at, g.updated_at`

// GameRepository handles game data access
type GameRepository struct {
	db *store.Database
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *store.Database) *GameRepository {
	return &GameRepository{db: db}
}

// GetByID finds a game by its database ID
func (r *GameRepository) GetByID(ctx context.Context, gameID int) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games g WHERE g.game_id = $1`
	return r.getOne(ctx, query, gameID)
}

// GetByExternalID finds a game by the statistics provider's event ID
func (r *GameRepository) GetByExternalID(ctx context.Context, externalID string) (*store.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games g WHERE g.external_id = $1`
	return r.getOne(ctx, query, externalID)
}

// GetByDate returns all games on a calendar date
func (r *GameRepository) GetByDate(ctx context.Context, date time.Time) ([]*store.Game, error) {
	query := `SELECT ` + gameColumns + `
		FROM games g
		WHERE g.game_date = $1::date
		ORDER BY g.game_time NULLS LAST, g.game_id`

	rows, err := r.db.DB().QueryContext(ctx, query, fantasy.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("querying games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// GetUnfinishedByDate returns the date's games that are not final,
// postponed or cancelled. The status poller watches these.
func (r *GameRepository) GetUnfinishedByDate(ctx context.Context, date time.Time) ([]*store.Game, error) {
	query := `SELECT ` + gameColumns + `
		FROM games g
		WHERE g.game_date = $1::date AND g.status IN ('scheduled', 'in_progress')
		ORDER BY g.game_time NULLS LAST, g.game_id`

	rows, err := r.db.DB().QueryContext(ctx, query, fantasy.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("querying unfinished games: %w", err)
	}
	defer rows.Close()

	return scanGames(rows)
}

// GetTeamSchedule returns a team's games between start and end inclusive,
// seen from that team
func (r *GameRepository) GetTeamSchedule(ctx context.Context, teamID int, start, end time.Time) ([]*store.TeamGame, error) {
	query := `SELECT ` + gameColumns + `,
			CASE WHEN g.home_team_id = $1 THEN ht.abbreviation ELSE at.abbreviation END,
			CASE WHEN g.home_team_id = $1 THEN at.abbreviation ELSE ht.abbreviation END
		FROM games g
		JOIN teams ht ON ht.team_id = g.home_team_id
		JOIN teams at ON at.team_id = g.away_team_id
		WHERE (g.home_team_id = $1 OR g.away_team_id = $1)
			AND g.game_date BETWEEN $2::date AND $3::date
		ORDER BY g.game_date, g.game_time NULLS LAST`

	rows, err := r.db.DB().QueryContext(ctx, query, teamID, fantasy.DateKey(start), fantasy.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("querying team schedule: %w", err)
	}
	defer rows.Close()

	var games []*store.TeamGame
	for rows.Next() {
		tg := &store.TeamGame{}
		g := &tg.Game
		err := rows.Scan(
			&g.GameID, &g.ExternalID, &g.Season, &g.GameDate, &g.GameTime,
			&g.HomeTeamID, &g.AwayTeamID, &g.HomeScore, &g.AwayScore, &g.Status,
			&g.GameType, &g.Period, &g.Clock, &g.CreatedAt, &g.UpdatedAt,
			&tg.TeamAbbr, &tg.OpponentAbbr,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning team game: %w", err)
		}
		games = append(games, tg)
	}

	return games, rows.Err()
}

// Upsert inserts or updates a game keyed by external ID and sets GameID
func (r *GameRepository) Upsert(ctx context.Context, game *store.Game) error {
	query := `
		INSERT INTO games (external_id, season, game_date, game_time,
			home_team_id, away_team_id, home_score, away_score, status,
			game_type, period, clock)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (external_id) DO UPDATE SET
			game_date = EXCLUDED.game_date,
			game_time = EXCLUDED.game_time,
			home_team_id = EXCLUDED.home_team_id,
			away_team_id = EXCLUDED.away_team_id,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			status = EXCLUDED.status,
			game_type = EXCLUDED.game_type,
			period = EXCLUDED.period,
			clock = EXCLUDED.clock,
			updated_at = NOW()
		RETURNING game_id
	`

	gameType := game.GameType
	if gameType == "" {
		gameType = string(fantasy.GameRegularSeason)
	}

	err := r.db.DB().QueryRowContext(ctx, query,
		game.ExternalID, game.Season, fantasy.DateKey(game.GameDate), game.GameTime,
		game.HomeTeamID, game.AwayTeamID, game.HomeScore, game.AwayScore, game.Status,
		gameType, game.Period, game.Clock,
	).Scan(&game.GameID)
	if err != nil {
		return fmt.Errorf("upserting game: %w", err)
	}

	return nil
}

// UpdateStatus sets a game's status. It reports whether the stored status
// changed.
func (r *GameRepository) UpdateStatus(ctx context.Context, externalID string, status fantasy.GameStatus) (bool, error) {
	query := `
		UPDATE games
		SET status = $2, updated_at = NOW()
		WHERE external_id = $1 AND status <> $2
	`

	result, err := r.db.DB().ExecContext(ctx, query, externalID, string(status))
	if err != nil {
		return false, fmt.Errorf("updating game status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CleanupStaleGames marks games that started before the threshold and are
// still in progress as final
func (r *GameRepository) CleanupStaleGames(ctx context.Context, threshold time.Time) (int64, error) {
	query := `
		UPDATE games
		SET status = 'final', updated_at = NOW()
		WHERE status = 'in_progress' AND game_time < $1
	`

	result, err := r.db.DB().ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleaning up stale games: %w", err)
	}

	return result.RowsAffected()
}

func (r *GameRepository) getOne(ctx context.Context, query string, arg interface{}) (*store.Game, error) {
	game, err := scanGame(r.db.DB().QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("game %v: %w", arg, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying game: %w", err)
	}
	return game, nil
}

func scanGame(row rowScanner) (*store.Game, error) {
	g := &store.Game{}
	err := row.Scan(
		&g.GameID, &g.ExternalID, &g.Season, &g.GameDate, &g.GameTime,
		&g.HomeTeamID, &g.AwayTeamID, &g.HomeScore, &g.AwayScore, &g.Status,
		&g.GameType, &g.Period, &g.Clock, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func scanGames(rows *sql.Rows) ([]*store.Game, error) {
	var games []*store.Game
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning game: %w", err)
		}
		games = append(games, game)
	}
	return games, rows.Err()
}
