package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/reconciliation"
	"github.com/fortuna/juno/internal/stats"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

// Deps carries what every service shares
type Deps struct {
	Stores    Stores
	Snapshots SnapshotStore
	GameTypes fantasy.GameTypeSettings
	Location  *time.Location
	// Now defaults to time.Now
	Now func() time.Time
	Log *logrus.Entry
}

// Source builds a fresh request-scoped data source
func (d Deps) Source() *DataSource {
	return NewDataSource(d.Stores, d.GameTypes, d.Snapshots, d.logger())
}

// Today is the current calendar date in the configured time zone
func (d Deps) Today() time.Time {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return fantasy.Day(now().In(loc))
}

func (d Deps) logger() *logrus.Entry {
	if d.Log == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return d.Log
}

// PlayerProfile is a player with their current NBA team
type PlayerProfile struct {
	*store.Player
	Team *store.Team `json:"team,omitempty"`
}

// SnapshotView is a snapshot plus whether any game qualified
type SnapshotView struct {
	fantasy.Snapshot
	HasData bool `json:"has_data"`
}

// MinutesTrend compares a player's latest minutes with the games before it
type MinutesTrend struct {
	PlayerID  fantasy.PlayerID `json:"player_id"`
	AsOf      time.Time        `json:"as_of"`
	Trend     float64          `json:"trend"`
	Available bool             `json:"available"`
}

// PlayerService handles player-related business logic
type PlayerService struct {
	deps Deps
}

// NewPlayerService creates a new player service
func NewPlayerService(deps Deps) *PlayerService {
	return &PlayerService{deps: deps}
}

// GetPlayer retrieves a player by ID with team details
func (s *PlayerService) GetPlayer(ctx context.Context, playerID int) (*PlayerProfile, error) {
	player, err := s.deps.Stores.Players.GetByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	profile := &PlayerProfile{Player: player}
	if player.TeamID.Valid {
		team, err := s.deps.Stores.Teams.GetByID(ctx, int(player.TeamID.Int32))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("fetching team: %w", err)
		}
		profile.Team = team
	}
	return profile, nil
}

// SearchPlayers searches for players by name
func (s *PlayerService) SearchPlayers(ctx context.Context, term string, limit int) ([]*store.Player, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	players, err := s.deps.Stores.Players.Search(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("searching players: %w", err)
	}
	return players, nil
}

// MatchNames resolves player names as spelled by the fantasy provider to
// stored players. Unresolved names carry suggestions.
func (s *PlayerService) MatchNames(ctx context.Context, names []string) ([]reconciliation.PlayerMatch, error) {
	players, err := s.deps.Stores.Players.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching active players: %w", err)
	}

	candidates := make([]reconciliation.Candidate, 0, len(players))
	for _, p := range players {
		candidates = append(candidates, reconciliation.Candidate{ID: p.PlayerID, Name: p.FullName})
	}
	matcher := reconciliation.NewPlayerMatcher(candidates)

	matches := make([]reconciliation.PlayerMatch, 0, len(names))
	unresolved := 0
	for _, name := range names {
		m := matcher.Match(name)
		if !m.Resolved() {
			unresolved++
		}
		matches = append(matches, m)
	}
	if unresolved > 0 {
		s.deps.logger().WithFields(logrus.Fields{
			"names":      len(names),
			"unresolved": unresolved,
		}).Info("Some player names could not be matched")
	}
	return matches, nil
}

// GetGameLog returns the player's most recent finalized games
func (s *PlayerService) GetGameLog(ctx context.Context, playerID int, limit int) ([]*repository.GameLogEntry, error) {
	if _, err := s.deps.Stores.Players.GetByID(ctx, playerID); err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}
	if limit <= 0 || limit > 82 {
		limit = 10
	}
	log, err := s.deps.Stores.Stats.GetPlayerGameLog(ctx, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching game log: %w", err)
	}
	return log, nil
}

// GetSnapshot aggregates the player's games for a window. A zero asOf
// means today.
func (s *PlayerService) GetSnapshot(ctx context.Context, playerID int, window, reduction string, asOf time.Time) (*SnapshotView, error) {
	w, err := stats.ParseWindow(window)
	if err != nil {
		return nil, err
	}
	r, err := stats.ParseReduction(reduction)
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.deps.Today()
	}
	if _, err := s.deps.Stores.Players.GetByID(ctx, playerID); err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	snap, ok, err := s.deps.Source().GetSnapshot(ctx, fantasy.PlayerID(playerID), w, r, asOf)
	if err != nil {
		return nil, err
	}
	return &SnapshotView{Snapshot: snap, HasData: ok}, nil
}

// GetMinutesTrend reports the player's latest minutes minus the mean of the
// three games before it
func (s *PlayerService) GetMinutesTrend(ctx context.Context, playerID int, asOf time.Time) (*MinutesTrend, error) {
	if asOf.IsZero() {
		asOf = s.deps.Today()
	}
	if _, err := s.deps.Stores.Players.GetByID(ctx, playerID); err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	records, err := s.deps.Source().GetGameRecords(ctx, fantasy.PlayerID(playerID), asOf)
	if err != nil {
		return nil, err
	}
	trend, ok := stats.MinutesTrend(records, asOf)
	return &MinutesTrend{
		PlayerID:  fantasy.PlayerID(playerID),
		AsOf:      fantasy.Day(asOf),
		Trend:     trend,
		Available: ok,
	}, nil
}
