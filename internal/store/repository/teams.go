package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/juno/internal/store"
)

const teamColumns = `team_id, external_id, abbreviation, full_name, short_name,
	conference, division, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// TeamRepository handles team data access
type TeamRepository struct {
	db *store.Database
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *store.Database) *TeamRepository {
	return &TeamRepository{db: db}
}

// GetAll returns all active NBA teams
func (r *TeamRepository) GetAll(ctx context.Context) ([]*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE is_active = true ORDER BY abbreviation`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying teams: %w", err)
	}
	defer rows.Close()

	var teams []*store.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning team: %w", err)
		}
		teams = append(teams, team)
	}

	return teams, rows.Err()
}

// GetByID finds a team by ID
func (r *TeamRepository) GetByID(ctx context.Context, teamID int) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE team_id = $1`
	return r.getOne(ctx, query, teamID)
}

// GetByAbbreviation finds a team by abbreviation (e.g., "LAL", "BOS")
func (r *TeamRepository) GetByAbbreviation(ctx context.Context, abbr string) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE abbreviation = $1`
	return r.getOne(ctx, query, abbr)
}

// GetByExternalID finds a team by the statistics provider's team ID
func (r *TeamRepository) GetByExternalID(ctx context.Context, externalID string) (*store.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE external_id = $1`
	return r.getOne(ctx, query, externalID)
}

func (r *TeamRepository) getOne(ctx context.Context, query string, arg interface{}) (*store.Team, error) {
	team, err := scanTeam(r.db.DB().QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("team %v: %w", arg, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying team: %w", err)
	}
	return team, nil
}

func scanTeam(row rowScanner) (*store.Team, error) {
	team := &store.Team{}
	err := row.Scan(
		&team.TeamID, &team.ExternalID, &team.Abbreviation, &team.FullName, &team.ShortName,
		&team.Conference, &team.Division, &team.IsActive, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return team, nil
}
