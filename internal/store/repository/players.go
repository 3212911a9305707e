package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/fortuna/juno/internal/store"
)

const playerColumns = `player_id, external_id, first_name, last_name, full_name, position,
	eligible_positions, team_id, jersey_number, status, created_at, updated_at`

// PlayerRepository handles player data access
type PlayerRepository struct {
	db *store.Database
}

// NewPlayerRepository creates a new player repository
func NewPlayerRepository(db *store.Database) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// GetByID finds a player by ID
func (r *PlayerRepository) GetByID(ctx context.Context, playerID int) (*store.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE player_id = $1`

	player, err := scanPlayer(r.db.DB().QueryRowContext(ctx, query, playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %d: %w", playerID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying player: %w", err)
	}
	return player, nil
}

// GetByExternalID finds a player by the statistics provider's ID
func (r *PlayerRepository) GetByExternalID(ctx context.Context, externalID string) (*store.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE external_id = $1`

	player, err := scanPlayer(r.db.DB().QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player %s: %w", externalID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying player: %w", err)
	}
	return player, nil
}

// GetByIDs returns the players with the given IDs, in no particular order
func (r *PlayerRepository) GetByIDs(ctx context.Context, ids []int) ([]*store.Player, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + playerColumns + ` FROM players WHERE player_id = ANY($1)`

	rows, err := r.db.DB().QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	return scanPlayers(rows)
}

// Search returns players whose name contains the term (case-insensitive)
func (r *PlayerRepository) Search(ctx context.Context, term string, limit int) ([]*store.Player, error) {
	query := `SELECT ` + playerColumns + `
		FROM players
		WHERE full_name ILIKE $1
		ORDER BY full_name
		LIMIT $2`

	rows, err := r.db.DB().QueryContext(ctx, query, "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	return scanPlayers(rows)
}

// GetActive returns every active player, used as the name reconciliation
// candidate set
func (r *PlayerRepository) GetActive(ctx context.Context) ([]*store.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE status = 'active' ORDER BY full_name`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying players: %w", err)
	}
	defer rows.Close()

	return scanPlayers(rows)
}

// GetWithGamesSince returns active players with at least one finalized game
// on or after the date. This is the ranking candidate pool.
func (r *PlayerRepository) GetWithGamesSince(ctx context.Context, since sql.NullTime) ([]*store.Player, error) {
	query := `SELECT ` + playerColumns + `
		FROM players p
		WHERE p.status = 'active' AND EXISTS (
			SELECT 1 FROM player_game_stats s
			JOIN games g ON g.game_id = s.game_id
			WHERE s.player_id = p.player_id AND g.status = 'final'
				AND ($1::date IS NULL OR g.game_date >= $1::date)
		)
		ORDER BY p.player_id`

	rows, err := r.db.DB().QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("querying player pool: %w", err)
	}
	defer rows.Close()

	return scanPlayers(rows)
}

// Upsert inserts or updates a player keyed by external ID and sets PlayerID
func (r *PlayerRepository) Upsert(ctx context.Context, player *store.Player) error {
	query := `
		INSERT INTO players (external_id, first_name, last_name, full_name, position,
			eligible_positions, team_id, jersey_number, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			full_name = EXCLUDED.full_name,
			position = COALESCE(EXCLUDED.position, players.position),
			eligible_positions = CASE WHEN cardinality(EXCLUDED.eligible_positions) > 0
				THEN EXCLUDED.eligible_positions ELSE players.eligible_positions END,
			team_id = COALESCE(EXCLUDED.team_id, players.team_id),
			jersey_number = COALESCE(EXCLUDED.jersey_number, players.jersey_number),
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING player_id
	`

	eligible := player.EligiblePositions
	if eligible == nil {
		eligible = pq.StringArray{}
	}

	err := r.db.DB().QueryRowContext(ctx, query,
		player.ExternalID, player.FirstName, player.LastName, player.FullName, player.Position,
		eligible, player.TeamID, player.JerseyNumber, player.Status,
	).Scan(&player.PlayerID)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

func scanPlayer(row rowScanner) (*store.Player, error) {
	player := &store.Player{}
	err := row.Scan(
		&player.PlayerID, &player.ExternalID, &player.FirstName, &player.LastName, &player.FullName,
		&player.Position, &player.EligiblePositions, &player.TeamID, &player.JerseyNumber,
		&player.Status, &player.CreatedAt, &player.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return player, nil
}

func scanPlayers(rows *sql.Rows) ([]*store.Player, error) {
	var players []*store.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}
