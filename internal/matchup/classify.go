// Package matchup projects head-to-head category totals for a scoring week.
package matchup

import (
	"time"

	"github.com/fortuna/juno/internal/fantasy"
)

// Classification says whether a player's date counts as accrued, projected,
// or not at all.
type Classification int

const (
	// None means the player has no countable game that date.
	None Classification = iota
	// Current means the result is already known.
	Current
	// Remaining means the game is still to be played and gets projected.
	Remaining
)

func (c Classification) String() string {
	switch c {
	case Current:
		return "CURRENT"
	case Remaining:
		return "REMAINING"
	default:
		return "NONE"
	}
}

// MarshalText renders the classification by name in JSON payloads.
func (c Classification) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// PlayerDay is what is known about one player on one date. Game is nil when
// the player's team is not scheduled; Record is nil when no finalized line
// exists for the player.
type PlayerDay struct {
	Date   time.Time
	Game   *fantasy.ScheduledGame
	Record *fantasy.GameRecord
}

// Classify decides how a player's date is counted:
//
//   - no game, a postponed or cancelled game, or a game type the league does
//     not count is None;
//   - a finalized box score for the player's team is Current;
//   - any date before today is Current, with a missing line counting as zero;
//   - everything else is Remaining.
func Classify(day PlayerDay, today time.Time, settings fantasy.GameTypeSettings) Classification {
	if day.Game == nil {
		if day.Record != nil {
			return Current
		}
		return None
	}
	if !day.Game.Status.Played() || !settings.Counts(day.Game.Type) {
		return None
	}
	if day.Record != nil || day.Game.Status == fantasy.GameFinal {
		return Current
	}
	if fantasy.Day(day.Date).Before(fantasy.Day(today)) {
		return Current
	}
	return Remaining
}
