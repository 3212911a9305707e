package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

const statColumns = `s.id, s.game_id, s.player_id, s.team_id, s.points, s.rebounds, s.assists,
	s.steals, s.blocks, s.turnovers, s.field_goals_made, s.field_goals_attempted,
	s.three_pointers_made, s.three_pointers_attempted, s.free_throws_made,
	s.free_throws_attempted, s.minutes_played, s.plus_minus, s.usage_rate, s.starter,
	s.created_at, s.updated_at`

// StatsRepository handles player box score data access
type StatsRepository struct {
	db *store.Database
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *store.Database) *StatsRepository {
	return &StatsRepository{db: db}
}

// GameLogEntry is one finalized box score with its game context
type GameLogEntry struct {
	*store.PlayerGameStats
	GameDate     time.Time `json:"game_date"`
	GameType     string    `json:"game_type"`
	TeamAbbr     string    `json:"team"`
	OpponentAbbr string    `json:"opponent"`
	IsHome       bool      `json:"is_home"`
	TeamScore    int       `json:"team_score"`
	OppScore     int       `json:"opponent_score"`
	Result       string    `json:"result"`
}

// GetGameBoxScore returns every player line recorded for a game
func (r *StatsRepository) GetGameBoxScore(ctx context.Context, gameID int) ([]*store.PlayerGameStats, error) {
	query := `SELECT ` + statColumns + `
		FROM player_game_stats s
		WHERE s.game_id = $1
		ORDER BY s.starter DESC, s.minutes_played DESC NULLS LAST`

	rows, err := r.db.DB().QueryContext(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("querying box score: %w", err)
	}
	defer rows.Close()

	var lines []*store.PlayerGameStats
	for rows.Next() {
		stats, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning player stats: %w", err)
		}
		lines = append(lines, stats)
	}
	return lines, rows.Err()
}

// GetPlayerGameLog returns a player's most recent finalized games, newest first
func (r *StatsRepository) GetPlayerGameLog(ctx context.Context, playerID int, limit int) ([]*GameLogEntry, error) {
	query := `SELECT ` + statColumns + `,
			g.game_date, g.game_type,
			own.abbreviation, opp.abbreviation,
			s.team_id = g.home_team_id,
			COALESCE(g.home_score, 0), COALESCE(g.away_score, 0)
		FROM player_game_stats s
		JOIN games g ON g.game_id = s.game_id
		JOIN teams own ON own.team_id = s.team_id
		JOIN teams opp ON opp.team_id = CASE WHEN s.team_id = g.home_team_id THEN g.away_team_id ELSE g.home_team_id END
		WHERE s.player_id = $1 AND g.status = 'final'
		ORDER BY g.game_date DESC
		LIMIT $2`

	rows, err := r.db.DB().QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying game log: %w", err)
	}
	defer rows.Close()

	var entries []*GameLogEntry
	for rows.Next() {
		s := &store.PlayerGameStats{}
		e := &GameLogEntry{PlayerGameStats: s}
		var homeScore, awayScore int
		err := rows.Scan(
			&s.ID, &s.GameID, &s.PlayerID, &s.TeamID, &s.Points, &s.Rebounds, &s.Assists,
			&s.Steals, &s.Blocks, &s.Turnovers, &s.FieldGoalsMade, &s.FieldGoalsAttempted,
			&s.ThreePointersMade, &s.ThreePointersAttempted, &s.FreeThrowsMade,
			&s.FreeThrowsAttempted, &s.MinutesPlayed, &s.PlusMinus, &s.UsageRate, &s.Starter,
			&s.CreatedAt, &s.UpdatedAt,
			&e.GameDate, &e.GameType, &e.TeamAbbr, &e.OpponentAbbr, &e.IsHome,
			&homeScore, &awayScore,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning game log: %w", err)
		}

		e.TeamScore, e.OppScore = awayScore, homeScore
		if e.IsHome {
			e.TeamScore, e.OppScore = homeScore, awayScore
		}
		e.Result = "L"
		if e.TeamScore > e.OppScore {
			e.Result = "W"
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetPlayerRecords returns a player's finalized game records dated on or
// before through, oldest first. Only games whose type is in gameTypes are
// returned; an empty gameTypes returns every type.
func (r *StatsRepository) GetPlayerRecords(ctx context.Context, playerID int, through time.Time, gameTypes []string) ([]fantasy.GameRecord, error) {
	query := `SELECT ` + statColumns + `, g.external_id, g.game_date, t.abbreviation
		FROM player_game_stats s
		JOIN games g ON g.game_id = s.game_id
		JOIN teams t ON t.team_id = s.team_id
		WHERE s.player_id = $1
			AND g.status = 'final'
			AND g.game_date <= $2::date
			AND (cardinality($3::text[]) = 0 OR g.game_type = ANY($3::text[]))
		ORDER BY g.game_date, g.game_id`

	if gameTypes == nil {
		gameTypes = []string{}
	}

	rows, err := r.db.DB().QueryContext(ctx, query, playerID, fantasy.DateKey(through), pq.Array(gameTypes))
	if err != nil {
		return nil, fmt.Errorf("querying player records: %w", err)
	}
	defer rows.Close()

	var records []fantasy.GameRecord
	for rows.Next() {
		s := &store.PlayerGameStats{}
		var externalID, team string
		var date time.Time
		err := rows.Scan(
			&s.ID, &s.GameID, &s.PlayerID, &s.TeamID, &s.Points, &s.Rebounds, &s.Assists,
			&s.Steals, &s.Blocks, &s.Turnovers, &s.FieldGoalsMade, &s.FieldGoalsAttempted,
			&s.ThreePointersMade, &s.ThreePointersAttempted, &s.FreeThrowsMade,
			&s.FreeThrowsAttempted, &s.MinutesPlayed, &s.PlusMinus, &s.UsageRate, &s.Starter,
			&s.CreatedAt, &s.UpdatedAt,
			&externalID, &date, &team,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning player record: %w", err)
		}
		records = append(records, fantasy.GameRecord{
			PlayerID:  fantasy.PlayerID(s.PlayerID),
			GameID:    externalID,
			Date:      fantasy.Day(date),
			Team:      team,
			Line:      s.Line(),
			UsageRate: s.UsageRate.Float64,
			Starter:   s.Starter,
		})
	}

	return records, rows.Err()
}

// UpsertPlayerStats inserts or updates a player's line for a game
func (r *StatsRepository) UpsertPlayerStats(ctx context.Context, stats *store.PlayerGameStats) error {
	query := `
		INSERT INTO player_game_stats (game_id, player_id, team_id, points, rebounds, assists,
			steals, blocks, turnovers, field_goals_made, field_goals_attempted,
			three_pointers_made, three_pointers_attempted, free_throws_made, free_throws_attempted,
			minutes_played, plus_minus, usage_rate, starter)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (game_id, player_id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			points = EXCLUDED.points,
			rebounds = EXCLUDED.rebounds,
			assists = EXCLUDED.assists,
			steals = EXCLUDED.steals,
			blocks = EXCLUDED.blocks,
			turnovers = EXCLUDED.turnovers,
			field_goals_made = EXCLUDED.field_goals_made,
			field_goals_attempted = EXCLUDED.field_goals_attempted,
			three_pointers_made = EXCLUDED.three_pointers_made,
			three_pointers_attempted = EXCLUDED.three_pointers_attempted,
			free_throws_made = EXCLUDED.free_throws_made,
			free_throws_attempted = EXCLUDED.free_throws_attempted,
			minutes_played = EXCLUDED.minutes_played,
			plus_minus = EXCLUDED.plus_minus,
			usage_rate = COALESCE(EXCLUDED.usage_rate, player_game_stats.usage_rate),
			starter = EXCLUDED.starter,
			updated_at = NOW()
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		stats.GameID, stats.PlayerID, stats.TeamID, stats.Points, stats.Rebounds, stats.Assists,
		stats.Steals, stats.Blocks, stats.Turnovers, stats.FieldGoalsMade, stats.FieldGoalsAttempted,
		stats.ThreePointersMade, stats.ThreePointersAttempted, stats.FreeThrowsMade, stats.FreeThrowsAttempted,
		stats.MinutesPlayed, stats.PlusMinus, stats.UsageRate, stats.Starter,
	).Scan(&stats.ID)
	if err != nil {
		return fmt.Errorf("upserting player stats: %w", err)
	}

	return nil
}

func scanStats(row rowScanner) (*store.PlayerGameStats, error) {
	s := &store.PlayerGameStats{}
	err := row.Scan(
		&s.ID, &s.GameID, &s.PlayerID, &s.TeamID, &s.Points, &s.Rebounds, &s.Assists,
		&s.Steals, &s.Blocks, &s.Turnovers, &s.FieldGoalsMade, &s.FieldGoalsAttempted,
		&s.ThreePointersMade, &s.ThreePointersAttempted, &s.FreeThrowsMade,
		&s.FreeThrowsAttempted, &s.MinutesPlayed, &s.PlusMinus, &s.UsageRate, &s.Starter,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
