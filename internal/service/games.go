package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

// GameSummary contains game details with team information
type GameSummary struct {
	Game     *store.Game `json:"game"`
	HomeTeam *store.Team `json:"home_team"`
	AwayTeam *store.Team `json:"away_team"`
}

// GameService handles game-related business logic
type GameService struct {
	deps Deps
}

// NewGameService creates a new game service
func NewGameService(deps Deps) *GameService {
	return &GameService{deps: deps}
}

// GetGamesByDate retrieves all games on a specific date. A zero date means
// today.
func (s *GameService) GetGamesByDate(ctx context.Context, date time.Time) ([]*GameSummary, error) {
	if date.IsZero() {
		date = s.deps.Today()
	}
	games, err := s.deps.Stores.Games.GetByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetching games by date: %w", err)
	}

	return s.enrichGamesWithTeams(ctx, games)
}

// GetTeamSchedule retrieves a team's games between two dates, inclusive
func (s *GameService) GetTeamSchedule(ctx context.Context, abbr string, start, end time.Time) ([]*store.TeamGame, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s is before %s", fantasy.ErrInvalidDateRange, fantasy.DateKey(end), fantasy.DateKey(start))
	}
	team, err := s.deps.Stores.Teams.GetByAbbreviation(ctx, abbr)
	if err != nil {
		return nil, fmt.Errorf("fetching team: %w", err)
	}

	games, err := s.deps.Stores.Games.GetTeamSchedule(ctx, team.TeamID, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching team schedule: %w", err)
	}
	return games, nil
}

// enrichGamesWithTeams adds team details to games
func (s *GameService) enrichGamesWithTeams(ctx context.Context, games []*store.Game) ([]*GameSummary, error) {
	teams := make(map[int]*store.Team)
	lookup := func(id int) (*store.Team, error) {
		if t, ok := teams[id]; ok {
			return t, nil
		}
		t, err := s.deps.Stores.Teams.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		teams[id] = t
		return t, nil
	}

	summaries := make([]*GameSummary, 0, len(games))
	for _, game := range games {
		homeTeam, err := lookup(game.HomeTeamID)
		if err != nil {
			return nil, fmt.Errorf("fetching home team for game %s: %w", game.ExternalID, err)
		}

		awayTeam, err := lookup(game.AwayTeamID)
		if err != nil {
			return nil, fmt.Errorf("fetching away team for game %s: %w", game.ExternalID, err)
		}

		summaries = append(summaries, &GameSummary{
			Game:     game,
			HomeTeam: homeTeam,
			AwayTeam: awayTeam,
		})
	}

	return summaries, nil
}
