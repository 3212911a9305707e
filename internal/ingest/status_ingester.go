package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/ingest/espn"
	"github.com/fortuna/juno/internal/reconciliation"
	"github.com/fortuna/juno/internal/store"
)

// Status sources
const (
	SourceNone     = "none"
	SourceESPN     = "espn"
	SourceFallback = "google"
)

// PrimarySource is the authoritative scoreboard and box score provider
type PrimarySource interface {
	Available() bool
	IngestDate(ctx context.Context, date time.Time) (*espn.DateResult, error)
}

// FallbackSource reports game statuses when the primary is unavailable
type FallbackSource interface {
	Observations(ctx context.Context) ([]reconciliation.ObservedGame, error)
}

// GameStore is the game data the poller reads and updates
type GameStore interface {
	GetUnfinishedByDate(ctx context.Context, date time.Time) ([]*store.Game, error)
	UpdateStatus(ctx context.Context, externalID string, status fantasy.GameStatus) (bool, error)
}

// TeamLister loads the NBA teams used to match fallback observations
type TeamLister interface {
	GetAll(ctx context.Context) ([]*store.Team, error)
}

// Refresher recomputes projections once new results are in
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// StatusConfig configures the status poller
type StatusConfig struct {
	Location *time.Location
	Now      func() time.Time
	Fallback FallbackSource // nil disables the fallback
	Refresh  Refresher      // nil skips projection refreshes
}

// PollResult summarises one poll
type PollResult struct {
	Source    string `json:"source"`
	Watched   int    `json:"watched"`
	Updated   int    `json:"updated"`
	Finalized int    `json:"finalized"`
	Refreshed int    `json:"refreshed"`
}

// StatusIngester keeps the statuses of today's games current. ESPN is
// polled while its breaker is closed; otherwise the fallback's statuses are
// reconciled into the stored games. Box scores of games that went final
// are stored by the ESPN pass.
type StatusIngester struct {
	primary PrimarySource
	games   GameStore
	teams   TeamLister
	cfg     StatusConfig
	log     *logrus.Entry

	mu     sync.Mutex
	engine *reconciliation.Engine
}

// NewStatusIngester creates a status poller
func NewStatusIngester(primary PrimarySource, games GameStore, teams TeamLister, cfg StatusConfig, log *logrus.Entry) *StatusIngester {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &StatusIngester{primary: primary, games: games, teams: teams, cfg: cfg, log: log}
}

// Poll runs one status pass over the games of yesterday and today that are
// not yet settled. Yesterday is included for games that run past midnight.
func (s *StatusIngester) Poll(ctx context.Context) (*PollResult, error) {
	today := fantasy.Day(s.cfg.Now().In(s.cfg.Location))

	byDate := make(map[time.Time][]*store.Game)
	var dates []time.Time
	watched := 0
	for _, date := range []time.Time{today.AddDate(0, 0, -1), today} {
		games, err := s.games.GetUnfinishedByDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("load unfinished games: %w", err)
		}
		if len(games) > 0 {
			byDate[date] = games
			dates = append(dates, date)
			watched += len(games)
		}
	}

	result := &PollResult{Source: SourceNone, Watched: watched}
	if watched == 0 {
		s.log.Debug("No unsettled games to poll")
		return result, nil
	}

	var primaryErr error
	if s.primary.Available() {
		primaryErr = s.pollPrimary(ctx, dates, byDate, result)
		if primaryErr == nil {
			result.Source = SourceESPN
		} else {
			s.log.WithError(primaryErr).Warn("ESPN status poll failed")
		}
	}

	if result.Source == SourceNone {
		if s.cfg.Fallback == nil {
			if primaryErr != nil {
				return nil, primaryErr
			}
			return nil, fmt.Errorf("%w and no fallback configured", espn.ErrUnavailable)
		}
		if err := s.pollFallback(ctx, byDate, result); err != nil {
			return nil, err
		}
		result.Source = SourceFallback
	}

	if result.Finalized > 0 && s.cfg.Refresh != nil {
		n, err := s.cfg.Refresh.RefreshAll(ctx)
		if err != nil {
			s.log.WithError(err).Warn("Projection refresh failed")
		}
		result.Refreshed = n
	}

	s.log.WithFields(logrus.Fields{
		"source":    result.Source,
		"watched":   result.Watched,
		"updated":   result.Updated,
		"finalized": result.Finalized,
	}).Info("Status poll complete")
	return result, nil
}

func (s *StatusIngester) pollPrimary(ctx context.Context, dates []time.Time, byDate map[time.Time][]*store.Game, result *PollResult) error {
	for _, date := range dates {
		before := make(map[string]string, len(byDate[date]))
		for _, g := range byDate[date] {
			before[g.ExternalID] = g.Status
		}

		res, err := s.primary.IngestDate(ctx, date)
		if err != nil {
			return err
		}
		for _, g := range res.Games {
			prev, watched := before[g.ExternalID]
			if !watched || prev == g.Status {
				continue
			}
			result.Updated++
			if g.IsFinal() {
				result.Finalized++
			}
		}
	}
	return nil
}

func (s *StatusIngester) pollFallback(ctx context.Context, byDate map[time.Time][]*store.Game, result *PollResult) error {
	engine, err := s.reconciler(ctx)
	if err != nil {
		return err
	}

	observed, err := s.cfg.Fallback.Observations(ctx)
	if err != nil {
		return fmt.Errorf("fallback status source: %w", err)
	}

	var pending []*store.Game
	for _, games := range byDate {
		pending = append(pending, games...)
	}

	for _, change := range engine.Reconcile(pending, observed) {
		changed, err := s.games.UpdateStatus(ctx, change.Game.ExternalID, change.To)
		if err != nil {
			s.log.WithError(err).WithField("game_id", change.Game.ExternalID).Warn("Failed to update game status")
			continue
		}
		if !changed {
			continue
		}
		result.Updated++
		if change.To == fantasy.GameFinal {
			// The box score follows on the next ESPN pass.
			result.Finalized++
		}
		s.log.WithFields(logrus.Fields{
			"game_id": change.Game.ExternalID,
			"from":    change.From,
			"to":      change.To,
		}).Info("Game status updated from fallback source")
	}
	return nil
}

func (s *StatusIngester) reconciler(ctx context.Context) (*reconciliation.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return s.engine, nil
	}
	teams, err := s.teams.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	s.engine = reconciliation.NewEngine(reconciliation.NewTeamResolver(teams), s.log)
	return s.engine, nil
}

// Metrics returns the fallback reconciliation counters
func (s *StatusIngester) Metrics() reconciliation.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return reconciliation.Metrics{}
	}
	return s.engine.GetMetrics()
}
