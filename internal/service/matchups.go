package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/matchup"
	"github.com/fortuna/juno/internal/publisher"
	"github.com/fortuna/juno/internal/stats"
	"github.com/fortuna/juno/internal/store"
)

// ProjectionPublisher records computed projections on an event stream
type ProjectionPublisher interface {
	PublishMatchupProjection(ctx context.Context, event publisher.MatchupProjected) error
}

// ProjectionBroadcaster pushes computed projections to live subscribers
type ProjectionBroadcaster interface {
	BroadcastProjection(leagueKey string, week int, payload interface{})
}

// ProjectionOptions tune a projection request. Zero values take the
// service defaults.
type ProjectionOptions struct {
	Mode     string
	Optimize bool
	Today    time.Time
}

// MatchupResult is one projected pairing of a league week
type MatchupResult struct {
	LeagueKey  string                    `json:"league_key"`
	Week       int                       `json:"week"`
	WeekStart  time.Time                 `json:"week_start"`
	WeekEnd    time.Time                 `json:"week_end"`
	Categories []fantasy.Category        `json:"categories"`
	Projection matchup.MatchupProjection `json:"projection"`
}

// MatchupService runs weekly projections for fantasy leagues
type MatchupService struct {
	deps        Deps
	defaultMode fantasy.Window
	publisher   ProjectionPublisher
	broadcaster ProjectionBroadcaster
	log         *logrus.Entry
}

// NewMatchupService creates a matchup service. publisher and broadcaster
// may be nil.
func NewMatchupService(deps Deps, defaultMode fantasy.Window, pub ProjectionPublisher, hub ProjectionBroadcaster) *MatchupService {
	if defaultMode == "" {
		defaultMode = fantasy.WindowSeason
	}
	return &MatchupService{
		deps:        deps,
		defaultMode: defaultMode,
		publisher:   pub,
		broadcaster: hub,
		log:         deps.logger().WithField("component", "matchups"),
	}
}

// ProjectTeam projects one team's week. week <= 0 means the league's current week.
func (s *MatchupService) ProjectTeam(ctx context.Context, leagueKey, teamKey string, week int, opts ProjectionOptions) (*matchup.TeamProjection, error) {
	league, err := s.deps.Stores.Leagues.GetLeague(ctx, leagueKey)
	if err != nil {
		return nil, err
	}
	team, err := s.deps.Stores.Leagues.GetTeam(ctx, teamKey)
	if err != nil {
		return nil, err
	}
	if team.LeagueKey != leagueKey {
		return nil, fmt.Errorf("fantasy team %s in league %s: %w", teamKey, leagueKey, store.ErrNotFound)
	}
	if week <= 0 {
		week = league.CurrentWeek
	}

	m, err := s.deps.Stores.Leagues.GetMatchupForTeam(ctx, teamKey, week)
	if err != nil {
		return nil, err
	}
	base, err := s.request(ctx, leagueKey, m, opts)
	if err != nil {
		return nil, err
	}
	base.TeamKey = teamKey

	proj, err := matchup.Project(ctx, s.deps.Source(), base)
	if err != nil {
		return nil, err
	}
	return &proj, nil
}

// ProjectWeek projects every pairing of a league week, publishes each
// result and pushes it to live subscribers. week <= 0 means the league's
// current week.
func (s *MatchupService) ProjectWeek(ctx context.Context, leagueKey string, week int, opts ProjectionOptions) ([]*MatchupResult, error) {
	league, err := s.deps.Stores.Leagues.GetLeague(ctx, leagueKey)
	if err != nil {
		return nil, err
	}
	if week <= 0 {
		week = league.CurrentWeek
	}

	matchups, err := s.deps.Stores.Leagues.GetMatchups(ctx, leagueKey, week)
	if err != nil {
		return nil, err
	}

	src := s.deps.Source()
	results := make([]*MatchupResult, 0, len(matchups))
	for _, m := range matchups {
		home, err := s.request(ctx, leagueKey, m, opts)
		if err != nil {
			return nil, err
		}
		home.TeamKey = m.TeamA

		proj, err := matchup.ProjectMatchup(ctx, src, matchup.MatchupRequest{
			Home: home,
			Away: matchup.TeamRequest{TeamKey: m.TeamB, Optimize: home.Optimize, GameTypes: home.GameTypes},
		})
		if err != nil {
			return nil, err
		}

		result := &MatchupResult{
			LeagueKey:  leagueKey,
			Week:       week,
			WeekStart:  home.WeekStart,
			WeekEnd:    home.WeekEnd,
			Categories: home.Categories,
			Projection: proj,
		}
		results = append(results, result)
		s.announce(ctx, result)
	}

	return results, nil
}

// RefreshAll projects the current week of every league. One league failing
// does not stop the others; the number of leagues refreshed is returned.
func (s *MatchupService) RefreshAll(ctx context.Context) (int, error) {
	leagues, err := s.deps.Stores.Leagues.ListLeagues(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, l := range leagues {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, err := s.ProjectWeek(ctx, l.LeagueKey, l.CurrentWeek, ProjectionOptions{}); err != nil {
			s.log.WithError(err).WithField("league_key", l.LeagueKey).Warn("Projection refresh failed")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *MatchupService) request(ctx context.Context, leagueKey string, m *store.Matchup, opts ProjectionOptions) (matchup.TeamRequest, error) {
	mode := s.defaultMode
	if opts.Mode != "" {
		parsed, err := stats.ParseProjectionMode(opts.Mode)
		if err != nil {
			return matchup.TeamRequest{}, err
		}
		mode = parsed
	}

	today := opts.Today
	if today.IsZero() {
		today = s.deps.Today()
	}

	cats, err := s.deps.Stores.Leagues.GetCategories(ctx, leagueKey)
	if err != nil {
		return matchup.TeamRequest{}, err
	}
	if len(cats) == 0 {
		cats = fantasy.NineCategories()
	}

	return matchup.TeamRequest{
		Categories: cats,
		Mode:       mode,
		WeekStart:  fantasy.Day(m.WeekStart),
		WeekEnd:    fantasy.Day(m.WeekEnd),
		Today:      fantasy.Day(today),
		Optimize:   opts.Optimize,
		GameTypes:  s.deps.GameTypes,
	}, nil
}

func (s *MatchupService) announce(ctx context.Context, r *MatchupResult) {
	p := r.Projection
	if s.publisher != nil {
		event := publisher.MatchupProjected{
			LeagueKey:   r.LeagueKey,
			Week:        r.Week,
			HomeTeam:    p.Home.TeamKey,
			AwayTeam:    p.Away.TeamKey,
			Mode:        string(p.Home.Mode),
			HomeWins:    p.ProjectedPoints.Wins,
			AwayWins:    p.ProjectedPoints.Losses,
			Ties:        p.ProjectedPoints.Ties,
			CurrentHome: p.CurrentPoints.Wins,
			CurrentAway: p.CurrentPoints.Losses,
		}
		if err := s.publisher.PublishMatchupProjection(ctx, event); err != nil {
			s.log.WithError(err).WithField("league_key", r.LeagueKey).Warn("Failed to publish projection")
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastProjection(r.LeagueKey, r.Week, r)
	}
}
