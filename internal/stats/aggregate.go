// Package stats reduces a player's game records into windowed snapshots.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
)

type windowSpec struct {
	games int
	days  int
}

var windows = map[fantasy.Window]windowSpec{
	fantasy.WindowLast:    {games: 1},
	fantasy.WindowLast3:   {games: 3},
	fantasy.WindowLast7:   {games: 7},
	fantasy.WindowLast7d:  {days: 7},
	fantasy.WindowLast14d: {days: 14},
	fantasy.WindowLast30d: {days: 30},
	fantasy.WindowSeason:  {},
}

// projectionModes are the windows usable to project remaining games.
var projectionModes = map[fantasy.Window]bool{
	fantasy.WindowSeason:  true,
	fantasy.WindowLast3:   true,
	fantasy.WindowLast7:   true,
	fantasy.WindowLast7d:  true,
	fantasy.WindowLast30d: true,
}

// ParseWindow validates a window name.
func ParseWindow(s string) (fantasy.Window, error) {
	w := fantasy.Window(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := windows[w]; !ok {
		return "", fmt.Errorf("%w: %q", fantasy.ErrInvalidWindow, s)
	}
	return w, nil
}

// ParseReduction validates a reduction name. The literal reduction is
// output-only and is rejected here.
func ParseReduction(s string) (fantasy.Reduction, error) {
	r := fantasy.Reduction(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case fantasy.ReductionSum, fantasy.ReductionAvg:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", fantasy.ErrInvalidReduction, s)
}

// ParseProjectionMode validates the window used for remaining-game projections.
func ParseProjectionMode(s string) (fantasy.Window, error) {
	w := fantasy.Window(strings.ToLower(strings.TrimSpace(s)))
	if !projectionModes[w] {
		return "", fmt.Errorf("%w: %q", fantasy.ErrInvalidProjectionMode, s)
	}
	return w, nil
}

// Aggregate reduces records to a snapshot for player as of asOf. Records dated
// after asOf are ignored. The boolean is false when no record qualifies, in
// which case the snapshot carries only its identifying fields.
func Aggregate(player fantasy.PlayerID, records []fantasy.GameRecord, window fantasy.Window, reduction fantasy.Reduction, asOf time.Time) (fantasy.Snapshot, bool, error) {
	spec, ok := windows[window]
	if !ok {
		return fantasy.Snapshot{}, false, fmt.Errorf("%w: %q", fantasy.ErrInvalidWindow, window)
	}
	if reduction != fantasy.ReductionSum && reduction != fantasy.ReductionAvg {
		return fantasy.Snapshot{}, false, fmt.Errorf("%w: %q", fantasy.ErrInvalidReduction, reduction)
	}
	if window == fantasy.WindowLast {
		reduction = fantasy.ReductionLiteral
	}

	asOf = fantasy.Day(asOf)
	snap := fantasy.Snapshot{
		PlayerID:  player,
		Window:    window,
		Reduction: reduction,
		AsOf:      asOf,
	}

	history := sortedThrough(records, asOf)
	qualifying := selectWindow(history, spec, asOf)
	if len(qualifying) == 0 {
		return snap, false, nil
	}

	var total fantasy.Line
	var usageMinutes float64
	for _, r := range qualifying {
		total = total.Add(r.Line)
		usageMinutes += r.UsageRate * r.Minutes
		if r.Starter {
			snap.GamesStarted++
		}
	}
	snap.GamesCount = len(qualifying)
	snap.LastGameDate = fantasy.Day(qualifying[len(qualifying)-1].Date)

	// Percentages always come from the window totals, whatever the reduction.
	snap.FGPct = fantasy.SafeDiv(total.FGMade, total.FGAtt)
	snap.NoFGAtt = total.FGAtt == 0
	snap.ThreePct = fantasy.SafeDiv(total.ThreesMade, total.ThreesAtt)
	snap.NoThreesAtt = total.ThreesAtt == 0
	snap.FTPct = fantasy.SafeDiv(total.FTMade, total.FTAtt)
	snap.NoFTAtt = total.FTAtt == 0
	snap.UsagePct = fantasy.SafeDiv(usageMinutes, total.Minutes)
	snap.NoUsage = usageMinutes == 0

	if reduction == fantasy.ReductionAvg {
		total = total.Scale(1 / float64(len(qualifying)))
	}
	snap.Line = total

	if trend, ok := MinutesTrend(history, asOf); ok {
		snap.MinutesTrend = trend
		snap.HasMinutesTrend = true
	}

	return snap, true, nil
}

// MinutesTrend is the minutes of the most recent game on or before asOf minus
// the mean minutes of the (up to) three games before it. It needs at least
// two games.
func MinutesTrend(records []fantasy.GameRecord, asOf time.Time) (float64, bool) {
	history := sortedThrough(records, fantasy.Day(asOf))
	if len(history) < 2 {
		return 0, false
	}

	last := history[len(history)-1]
	prior := history[:len(history)-1]
	if len(prior) > 3 {
		prior = prior[len(prior)-3:]
	}

	var sum float64
	for _, r := range prior {
		sum += r.Minutes
	}
	return last.Minutes - sum/float64(len(prior)), true
}

// WindowStart is the earliest date a day-based window reaches back to from
// asOf. Game-count and season windows have no date bound and report false.
func WindowStart(window fantasy.Window, asOf time.Time) (time.Time, bool) {
	spec, ok := windows[window]
	if !ok || spec.days == 0 {
		return time.Time{}, false
	}
	return fantasy.Day(asOf).AddDate(0, 0, -spec.days), true
}

// sortedThrough copies records dated on or before asOf, ordered by date.
func sortedThrough(records []fantasy.GameRecord, asOf time.Time) []fantasy.GameRecord {
	out := make([]fantasy.GameRecord, 0, len(records))
	for _, r := range records {
		if !fantasy.Day(r.Date).After(asOf) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return fantasy.Day(out[i].Date).Before(fantasy.Day(out[j].Date))
	})
	return out
}

func selectWindow(history []fantasy.GameRecord, spec windowSpec, asOf time.Time) []fantasy.GameRecord {
	switch {
	case spec.games > 0:
		if len(history) > spec.games {
			return history[len(history)-spec.games:]
		}
		return history
	case spec.days > 0:
		cutoff := asOf.AddDate(0, 0, -spec.days)
		start := sort.Search(len(history), func(i int) bool {
			return !fantasy.Day(history[i].Date).Before(cutoff)
		})
		return history[start:]
	default:
		return history
	}
}
