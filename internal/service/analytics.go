package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/ranking"
	"github.com/fortuna/juno/internal/stats"
)

// RankingRequest selects the window and size of a ranking pass. WeekStart and
// WeekEnd bound the fantasy week used for schedule counts; when both are zero
// the Monday to Sunday week containing AsOf is used.
type RankingRequest struct {
	Window    string
	AsOf      time.Time
	Limit     int
	WeekStart time.Time
	WeekEnd   time.Time
}

// ScheduleOutlook counts a player's upcoming games. Postponed and cancelled
// games and game types the league ignores are left out.
type ScheduleOutlook struct {
	RemainingGames int  `json:"remaining_games"`
	NextWeekGames  int  `json:"next_week_games"`
	BackToBack     bool `json:"has_back_to_back"`
}

// RankedPlayer is a ranking entry with the player's schedule outlook
type RankedPlayer struct {
	ranking.Ranked
	ScheduleOutlook
}

// RankingResult is an ordered player list with the inputs that produced it
type RankingResult struct {
	Window    fantasy.Window `json:"window"`
	AsOf      time.Time      `json:"as_of"`
	WeekStart time.Time      `json:"week_start"`
	WeekEnd   time.Time      `json:"week_end"`
	PoolSize  int            `json:"pool_size"`
	Players   []RankedPlayer `json:"players"`
}

// RankingService ranks the active player pool by 9-category z-score value
type RankingService struct {
	deps    Deps
	maxRank int
}

// NewRankingService creates a ranking service. maxRank caps results when a
// request does not ask for fewer.
func NewRankingService(deps Deps, maxRank int) *RankingService {
	if maxRank <= 0 {
		maxRank = ranking.DefaultMaxRank
	}
	return &RankingService{deps: deps, maxRank: maxRank}
}

// Rank builds the candidate pool for the window and ranks it. Only players
// with at least one finalized game in the window take part.
func (s *RankingService) Rank(ctx context.Context, req RankingRequest) (*RankingResult, error) {
	window := fantasy.WindowSeason
	if req.Window != "" {
		w, err := stats.ParseWindow(req.Window)
		if err != nil {
			return nil, err
		}
		window = w
	}
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = s.deps.Today()
	}
	asOf = fantasy.Day(asOf)

	weekStart, weekEnd, err := rankingWeek(req, asOf)
	if err != nil {
		return nil, err
	}

	var since sql.NullTime
	if start, ok := stats.WindowStart(window, asOf); ok {
		since = sql.NullTime{Time: start, Valid: true}
	}

	players, err := s.deps.Stores.Players.GetWithGamesSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("building ranking pool: %w", err)
	}

	src := s.deps.Source()
	pool := make([]ranking.Candidate, 0, len(players))
	for _, p := range players {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := fantasy.PlayerID(p.PlayerID)
		snap, ok, err := src.GetSnapshot(ctx, id, window, fantasy.ReductionAvg, asOf)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pool = append(pool, ranking.Candidate{PlayerID: id, Name: p.FullName, Snapshot: snap})
	}

	limit := s.maxRank
	if req.Limit > 0 && req.Limit < limit {
		limit = req.Limit
	}

	ranked := ranking.Rank(pool, ranking.Options{MaxRank: limit})
	out := make([]RankedPlayer, 0, len(ranked))
	for _, r := range ranked {
		outlook, err := s.outlook(ctx, src, r.PlayerID, asOf, weekStart, weekEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, RankedPlayer{Ranked: r, ScheduleOutlook: outlook})
	}

	return &RankingResult{
		Window:    window,
		AsOf:      asOf,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
		PoolSize:  len(pool),
		Players:   out,
	}, nil
}

// outlook counts games from asOf to the end of the week, games in the
// following week of the same length, and whether the team plays on both
// asOf and the day after.
func (s *RankingService) outlook(ctx context.Context, src *DataSource, player fantasy.PlayerID, asOf, weekStart, weekEnd time.Time) (ScheduleOutlook, error) {
	var out ScheduleOutlook
	nextStart := weekEnd.AddDate(0, 0, 1)
	nextEnd := nextStart.AddDate(0, 0, int(weekEnd.Sub(weekStart).Hours()/24))
	from := asOf
	if weekStart.After(from) {
		from = weekStart
	}

	games, err := src.GetSchedule(ctx, player, asOf, nextEnd)
	if err != nil {
		return out, err
	}

	playing := make(map[string]bool, len(games))
	for _, g := range games {
		if !g.Status.Played() || !s.deps.GameTypes.Counts(g.Type) {
			continue
		}
		d := fantasy.Day(g.Date)
		playing[fantasy.DateKey(d)] = true
		switch {
		case !d.Before(from) && !d.After(weekEnd):
			out.RemainingGames++
		case !d.Before(nextStart) && !d.After(nextEnd):
			out.NextWeekGames++
		}
	}
	out.BackToBack = playing[fantasy.DateKey(asOf)] && playing[fantasy.DateKey(asOf.AddDate(0, 0, 1))]
	return out, nil
}

func rankingWeek(req RankingRequest, asOf time.Time) (time.Time, time.Time, error) {
	if req.WeekStart.IsZero() && req.WeekEnd.IsZero() {
		start := asOf.AddDate(0, 0, -((int(asOf.Weekday()) + 6) % 7))
		return start, start.AddDate(0, 0, 6), nil
	}
	start, end := fantasy.Day(req.WeekStart), fantasy.Day(req.WeekEnd)
	if req.WeekStart.IsZero() || req.WeekEnd.IsZero() || end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: week %s to %s", fantasy.ErrInvalidDateRange,
			fantasy.DateKey(req.WeekStart), fantasy.DateKey(req.WeekEnd))
	}
	return start, end, nil
}
