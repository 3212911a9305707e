package reconciliation

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

// maxScoreDiscrepancy is the score gap beyond which two sources are taken
// to describe different games.
const maxScoreDiscrepancy = 20

// ObservedGame is a game as reported by a secondary status source. Team
// fields may hold abbreviations or display names.
type ObservedGame struct {
	HomeTeam  string
	AwayTeam  string
	Status    fantasy.GameStatus
	HomeScore int
	AwayScore int
}

// StatusChange is a status update the engine accepted for a stored game
type StatusChange struct {
	Game *store.Game
	From fantasy.GameStatus
	To   fantasy.GameStatus
}

// Metrics tracks reconciliation statistics
type Metrics struct {
	TotalReconciliations int       `json:"total_reconciliations"`
	Matched              int       `json:"matched"`
	Unmatched            int       `json:"unmatched"`
	Conflicts            int       `json:"conflicts"`
	Applied              int       `json:"applied"`
	LastReconciliation   time.Time `json:"last_reconciliation"`
}

// Engine reconciles stored game statuses with a secondary source. The
// stats provider stays authoritative: the secondary source may only move a
// game forward or mark it postponed or cancelled, never reopen a final.
type Engine struct {
	teams *TeamResolver
	log   *logrus.Entry

	mu      sync.Mutex
	metrics Metrics
}

// NewEngine creates a reconciliation engine
func NewEngine(teams *TeamResolver, log *logrus.Entry) *Engine {
	return &Engine{teams: teams, log: log}
}

// Reconcile matches observed games to stored games by team pairing and
// returns the status changes that should be persisted.
func (e *Engine) Reconcile(stored []*store.Game, observed []ObservedGame) []StatusChange {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.TotalReconciliations++
	e.metrics.LastReconciliation = time.Now()

	var changes []StatusChange
	for _, game := range stored {
		obs := e.find(game, observed)
		if obs == nil {
			e.metrics.Unmatched++
			continue
		}
		e.metrics.Matched++

		if hasConflict(game, obs) {
			e.metrics.Conflicts++
			e.log.WithFields(logrus.Fields{
				"game_id":     game.ExternalID,
				"stored_home": game.HomeScore.Int32,
				"seen_home":   obs.HomeScore,
			}).Warn("Score discrepancy between sources, keeping stored status")
			continue
		}

		from := fantasy.GameStatus(game.Status)
		if to, ok := nextStatus(from, obs.Status); ok {
			changes = append(changes, StatusChange{Game: game, From: from, To: to})
			e.metrics.Applied++
		}
	}
	return changes
}

func (e *Engine) find(game *store.Game, observed []ObservedGame) *ObservedGame {
	home, ok := e.teams.Abbreviation(game.HomeTeamID)
	if !ok {
		return nil
	}
	away, ok := e.teams.Abbreviation(game.AwayTeamID)
	if !ok {
		return nil
	}

	for i := range observed {
		obs := &observed[i]
		h, okH := e.teams.Resolve(obs.HomeTeam)
		a, okA := e.teams.Resolve(obs.AwayTeam)
		if !okH || !okA {
			continue
		}
		// Some sources list the visiting team first.
		if (h == home && a == away) || (h == away && a == home) {
			return obs
		}
	}
	return nil
}

func hasConflict(game *store.Game, obs *ObservedGame) bool {
	if game.HomeScore.Valid && obs.HomeScore > 0 && abs(int(game.HomeScore.Int32)-obs.HomeScore) > maxScoreDiscrepancy {
		return true
	}
	if game.AwayScore.Valid && obs.AwayScore > 0 && abs(int(game.AwayScore.Int32)-obs.AwayScore) > maxScoreDiscrepancy {
		return true
	}
	return false
}

// nextStatus decides whether an observed status replaces the stored one.
func nextStatus(stored, seen fantasy.GameStatus) (fantasy.GameStatus, bool) {
	if stored == seen || stored == fantasy.GameFinal {
		return "", false
	}
	switch seen {
	case fantasy.GamePostponed, fantasy.GameCancelled, fantasy.GameFinal:
		return seen, true
	case fantasy.GameInProgress:
		return seen, stored == fantasy.GameScheduled
	default:
		return "", false
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// GetMetrics returns a copy of the current reconciliation metrics
func (e *Engine) GetMetrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}
