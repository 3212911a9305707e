package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

// LeagueSettings is a league with its scoring and roster configuration
type LeagueSettings struct {
	League     *store.FantasyLeague `json:"league"`
	Categories []fantasy.Category   `json:"categories"`
	Slots      []fantasy.Slot       `json:"slots"`
	Teams      []*store.FantasyTeam `json:"teams"`
}

// LeagueService manages league settings and roster imports. League data
// comes from the fantasy provider, which is synced outside this service.
type LeagueService struct {
	deps Deps
}

// NewLeagueService creates a league service
func NewLeagueService(deps Deps) *LeagueService {
	return &LeagueService{deps: deps}
}

// GetSettings returns a league with its categories, slots and teams
func (s *LeagueService) GetSettings(ctx context.Context, leagueKey string) (*LeagueSettings, error) {
	league, err := s.deps.Stores.Leagues.GetLeague(ctx, leagueKey)
	if err != nil {
		return nil, err
	}
	cats, err := s.deps.Stores.Leagues.GetCategories(ctx, leagueKey)
	if err != nil {
		return nil, err
	}
	slots, err := s.deps.Stores.Leagues.GetSlots(ctx, leagueKey)
	if err != nil {
		return nil, err
	}
	teams, err := s.deps.Stores.Leagues.GetTeams(ctx, leagueKey)
	if err != nil {
		return nil, err
	}
	return &LeagueSettings{League: league, Categories: cats, Slots: slots, Teams: teams}, nil
}

// SaveSettings stores a league together with its categories and slots
func (s *LeagueService) SaveSettings(ctx context.Context, league *store.FantasyLeague, cats []fantasy.Category, slots []fantasy.Slot) error {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}
	if err := s.deps.Stores.Leagues.UpsertLeague(ctx, league); err != nil {
		return err
	}
	if err := s.deps.Stores.Leagues.ReplaceCategories(ctx, league.LeagueKey, cats); err != nil {
		return fmt.Errorf("saving categories: %w", err)
	}
	if err := s.deps.Stores.Leagues.ReplaceSlots(ctx, league.LeagueKey, slots); err != nil {
		return fmt.Errorf("saving slots: %w", err)
	}
	return nil
}

// ImportRoster replaces a team's published lineup for one date. Every
// player must be known and appear once; missing names are filled in.
func (s *LeagueService) ImportRoster(ctx context.Context, leagueKey, teamKey string, date time.Time, entries []fantasy.RosterEntry) error {
	team, err := s.deps.Stores.Leagues.GetTeam(ctx, teamKey)
	if err != nil {
		return err
	}
	if team.LeagueKey != leagueKey {
		return fmt.Errorf("fantasy team %s in league %s: %w", teamKey, leagueKey, store.ErrNotFound)
	}

	ids := make([]int, 0, len(entries))
	seen := make(map[fantasy.PlayerID]bool, len(entries))
	for _, e := range entries {
		if seen[e.PlayerID] {
			return fmt.Errorf("%w: player %d listed twice", fantasy.ErrInvalidRoster, e.PlayerID)
		}
		if e.Slot == "" {
			return fmt.Errorf("%w: player %d has no slot", fantasy.ErrInvalidRoster, e.PlayerID)
		}
		seen[e.PlayerID] = true
		ids = append(ids, int(e.PlayerID))
	}

	players, err := s.deps.Stores.Players.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[fantasy.PlayerID]*store.Player, len(players))
	for _, p := range players {
		byID[fantasy.PlayerID(p.PlayerID)] = p
	}

	out := make([]fantasy.RosterEntry, len(entries))
	for i, e := range entries {
		p, ok := byID[e.PlayerID]
		if !ok {
			return fmt.Errorf("%w: unknown player %d", fantasy.ErrInvalidRoster, e.PlayerID)
		}
		if e.Name == "" {
			e.Name = p.FullName
		}
		if len(e.Eligible) == 0 {
			for _, pos := range p.EligiblePositions {
				e.Eligible = append(e.Eligible, fantasy.Position(pos))
			}
		}
		out[i] = e
	}

	return s.deps.Stores.Leagues.ReplaceRosterAssignment(ctx, teamKey, date, out)
}
