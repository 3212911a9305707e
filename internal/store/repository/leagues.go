package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

// LeagueRepository handles fantasy league, team, matchup and roster data access
type LeagueRepository struct {
	db *store.Database
}

// NewLeagueRepository creates a new league repository
func NewLeagueRepository(db *store.Database) *LeagueRepository {
	return &LeagueRepository{db: db}
}

// GetLeague finds a league by key
func (r *LeagueRepository) GetLeague(ctx context.Context, leagueKey string) (*store.FantasyLeague, error) {
	query := `
		SELECT league_key, name, season, num_teams, current_week, created_at, updated_at
		FROM fantasy_leagues
		WHERE league_key = $1
	`

	l := &store.FantasyLeague{}
	err := r.db.DB().QueryRowContext(ctx, query, leagueKey).Scan(
		&l.LeagueKey, &l.Name, &l.Season, &l.NumTeams, &l.CurrentWeek, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("league %s: %w", leagueKey, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying league: %w", err)
	}
	return l, nil
}

// ListLeagues returns every stored league
func (r *LeagueRepository) ListLeagues(ctx context.Context) ([]*store.FantasyLeague, error) {
	query := `
		SELECT league_key, name, season, num_teams, current_week, created_at, updated_at
		FROM fantasy_leagues
		ORDER BY league_key
	`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying leagues: %w", err)
	}
	defer rows.Close()

	var leagues []*store.FantasyLeague
	for rows.Next() {
		l := &store.FantasyLeague{}
		if err := rows.Scan(&l.LeagueKey, &l.Name, &l.Season, &l.NumTeams, &l.CurrentWeek, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning league: %w", err)
		}
		leagues = append(leagues, l)
	}
	return leagues, rows.Err()
}

// UpsertLeague inserts or updates a league
func (r *LeagueRepository) UpsertLeague(ctx context.Context, l *store.FantasyLeague) error {
	query := `
		INSERT INTO fantasy_leagues (league_key, name, season, num_teams, current_week)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (league_key) DO UPDATE SET
			name = EXCLUDED.name,
			season = EXCLUDED.season,
			num_teams = EXCLUDED.num_teams,
			current_week = EXCLUDED.current_week,
			updated_at = NOW()
	`

	_, err := r.db.DB().ExecContext(ctx, query, l.LeagueKey, l.Name, l.Season, l.NumTeams, l.CurrentWeek)
	if err != nil {
		return fmt.Errorf("upserting league: %w", err)
	}
	return nil
}

// GetCategories returns a league's scoring categories in display order.
// A league with no stored categories yields nil.
func (r *LeagueRepository) GetCategories(ctx context.Context, leagueKey string) ([]fantasy.Category, error) {
	query := `
		SELECT league_key, category_id, name, stat, kind, display_only, sort_order
		FROM league_categories
		WHERE league_key = $1
		ORDER BY sort_order, category_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query, leagueKey)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []fantasy.Category
	for rows.Next() {
		var lc store.LeagueCategory
		if err := rows.Scan(&lc.LeagueKey, &lc.CategoryID, &lc.Name, &lc.Stat, &lc.Kind, &lc.DisplayOnly, &lc.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cat, err := lc.Category()
		if err != nil {
			return nil, fmt.Errorf("league %s category %s: %w", leagueKey, lc.CategoryID, err)
		}
		cats = append(cats, cat)
	}
	return cats, rows.Err()
}

// ReplaceCategories swaps a league's scoring categories in one transaction
func (r *LeagueRepository) ReplaceCategories(ctx context.Context, leagueKey string, cats []fantasy.Category) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM league_categories WHERE league_key = $1`, leagueKey); err != nil {
			return err
		}
		for i, c := range cats {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO league_categories (league_key, category_id, name, stat, kind, display_only, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				leagueKey, c.ID, c.Name, string(c.Stat), c.Kind.String(), c.DisplayOnly, i,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetSlots returns a league's starting and reserve roster positions in order
func (r *LeagueRepository) GetSlots(ctx context.Context, leagueKey string) ([]fantasy.Slot, error) {
	query := `SELECT slot FROM league_slots WHERE league_key = $1 ORDER BY position_order`

	rows, err := r.db.DB().QueryContext(ctx, query, leagueKey)
	if err != nil {
		return nil, fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	var slots []fantasy.Slot
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}
		slots = append(slots, fantasy.Slot(s))
	}
	return slots, rows.Err()
}

// ReplaceSlots swaps a league's roster positions in one transaction
func (r *LeagueRepository) ReplaceSlots(ctx context.Context, leagueKey string, slots []fantasy.Slot) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM league_slots WHERE league_key = $1`, leagueKey); err != nil {
			return err
		}
		for i, s := range slots {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO league_slots (league_key, position_order, slot) VALUES ($1, $2, $3)`,
				leagueKey, i, string(s),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTeam finds a fantasy team by key
func (r *LeagueRepository) GetTeam(ctx context.Context, teamKey string) (*store.FantasyTeam, error) {
	query := `SELECT team_key, league_key, name, manager, created_at FROM fantasy_teams WHERE team_key = $1`

	t := &store.FantasyTeam{}
	err := r.db.DB().QueryRowContext(ctx, query, teamKey).Scan(&t.TeamKey, &t.LeagueKey, &t.Name, &t.Manager, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fantasy team %s: %w", teamKey, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying fantasy team: %w", err)
	}
	return t, nil
}

// GetTeams returns every team in a league
func (r *LeagueRepository) GetTeams(ctx context.Context, leagueKey string) ([]*store.FantasyTeam, error) {
	query := `
		SELECT team_key, league_key, name, manager, created_at
		FROM fantasy_teams
		WHERE league_key = $1
		ORDER BY team_key
	`

	rows, err := r.db.DB().QueryContext(ctx, query, leagueKey)
	if err != nil {
		return nil, fmt.Errorf("querying fantasy teams: %w", err)
	}
	defer rows.Close()

	var teams []*store.FantasyTeam
	for rows.Next() {
		t := &store.FantasyTeam{}
		if err := rows.Scan(&t.TeamKey, &t.LeagueKey, &t.Name, &t.Manager, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning fantasy team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// UpsertTeam inserts or updates a fantasy team
func (r *LeagueRepository) UpsertTeam(ctx context.Context, t *store.FantasyTeam) error {
	query := `
		INSERT INTO fantasy_teams (team_key, league_key, name, manager)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_key) DO UPDATE SET
			name = EXCLUDED.name,
			manager = EXCLUDED.manager
	`

	if _, err := r.db.DB().ExecContext(ctx, query, t.TeamKey, t.LeagueKey, t.Name, t.Manager); err != nil {
		return fmt.Errorf("upserting fantasy team: %w", err)
	}
	return nil
}

const matchupColumns = `matchup_id, league_key, week, week_start, week_end, team_a, team_b`

// GetMatchups returns a league's pairings for a week
func (r *LeagueRepository) GetMatchups(ctx context.Context, leagueKey string, week int) ([]*store.Matchup, error) {
	query := `SELECT ` + matchupColumns + `
		FROM fantasy_matchups
		WHERE league_key = $1 AND week = $2
		ORDER BY matchup_id`

	rows, err := r.db.DB().QueryContext(ctx, query, leagueKey, week)
	if err != nil {
		return nil, fmt.Errorf("querying matchups: %w", err)
	}
	defer rows.Close()

	var matchups []*store.Matchup
	for rows.Next() {
		m, err := scanMatchup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning matchup: %w", err)
		}
		matchups = append(matchups, m)
	}
	return matchups, rows.Err()
}

// GetMatchupForTeam returns the pairing a team plays in for a week
func (r *LeagueRepository) GetMatchupForTeam(ctx context.Context, teamKey string, week int) (*store.Matchup, error) {
	query := `SELECT ` + matchupColumns + `
		FROM fantasy_matchups
		WHERE week = $2 AND (team_a = $1 OR team_b = $1)`

	m, err := scanMatchup(r.db.DB().QueryRowContext(ctx, query, teamKey, week))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("matchup for %s week %d: %w", teamKey, week, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying matchup: %w", err)
	}
	return m, nil
}

// UpsertMatchup inserts or updates a weekly pairing and sets MatchupID
func (r *LeagueRepository) UpsertMatchup(ctx context.Context, m *store.Matchup) error {
	query := `
		INSERT INTO fantasy_matchups (league_key, week, week_start, week_end, team_a, team_b)
		VALUES ($1, $2, $3::date, $4::date, $5, $6)
		ON CONFLICT (league_key, week, team_a) DO UPDATE SET
			week_start = EXCLUDED.week_start,
			week_end = EXCLUDED.week_end,
			team_b = EXCLUDED.team_b
		RETURNING matchup_id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		m.LeagueKey, m.Week, fantasy.DateKey(m.WeekStart), fantasy.DateKey(m.WeekEnd), m.TeamA, m.TeamB,
	).Scan(&m.MatchupID)
	if err != nil {
		return fmt.Errorf("upserting matchup: %w", err)
	}
	return nil
}

// GetRosterAssignment returns a team's published slots for a date, ordered
// by player ID. A date with nothing published yields no rows and no error.
func (r *LeagueRepository) GetRosterAssignment(ctx context.Context, teamKey string, date time.Time) ([]*store.RosterAssignment, error) {
	query := `
		SELECT team_key, roster_date, player_id, player_name, slot, eligible_positions
		FROM roster_assignments
		WHERE team_key = $1 AND roster_date = $2::date
		ORDER BY player_id
	`

	rows, err := r.db.DB().QueryContext(ctx, query, teamKey, fantasy.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("querying roster: %w", err)
	}
	defer rows.Close()

	var out []*store.RosterAssignment
	for rows.Next() {
		a := &store.RosterAssignment{}
		if err := rows.Scan(&a.TeamKey, &a.RosterDate, &a.PlayerID, &a.PlayerName, &a.Slot, &a.EligiblePositions); err != nil {
			return nil, fmt.Errorf("scanning roster: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceRosterAssignment overwrites a team's published slots for a date
func (r *LeagueRepository) ReplaceRosterAssignment(ctx context.Context, teamKey string, date time.Time, entries []fantasy.RosterEntry) error {
	day := fantasy.DateKey(date)
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM roster_assignments WHERE team_key = $1 AND roster_date = $2::date`, teamKey, day); err != nil {
			return err
		}
		for _, e := range entries {
			eligible := make([]string, len(e.Eligible))
			for i, p := range e.Eligible {
				eligible[i] = string(p)
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO roster_assignments (team_key, roster_date, player_id, player_name, slot, eligible_positions)
				VALUES ($1, $2::date, $3, $4, $5, $6)`,
				teamKey, day, int(e.PlayerID), e.Name, string(e.Slot), pq.Array(eligible),
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *LeagueRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func scanMatchup(row rowScanner) (*store.Matchup, error) {
	m := &store.Matchup{}
	err := row.Scan(&m.MatchupID, &m.LeagueKey, &m.Week, &m.WeekStart, &m.WeekEnd, &m.TeamA, &m.TeamB)
	if err != nil {
		return nil, err
	}
	return m, nil
}
