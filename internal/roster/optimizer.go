// Package roster rearranges a fantasy team's daily lineup so that as many
// players with a game as possible sit in active slots.
package roster

import (
	"fmt"
	"sort"

	"github.com/fortuna/juno/internal/fantasy"
)

// Assignment is the optimizer's result for one day.
type Assignment struct {
	Day fantasy.RosterDay `json:"day"`
	// Unfilled lists active slots nobody could be placed in.
	Unfilled []fantasy.Slot `json:"unfilled,omitempty"`
	// ActiveWithGames counts players in active slots who have a game.
	ActiveWithGames int `json:"active_with_games"`
}

// Optimize assigns players to the day's active slots. Players with a game are
// matched first using augmenting paths, which yields the maximum number of
// active player-games; players without a game then fill what is left and
// everyone else goes to the bench. Injured-list players keep their slot.
//
// Ties are broken by player id, so identical input yields identical output.
// When not every active slot can be filled the best partial assignment is
// returned with the empty slots listed in Unfilled.
func Optimize(day fantasy.RosterDay, hasGame map[fantasy.PlayerID]bool) (Assignment, error) {
	seen := make(map[fantasy.PlayerID]bool, len(day.Entries))
	for _, e := range day.Entries {
		if seen[e.PlayerID] {
			return Assignment{}, fmt.Errorf("%w: player %d listed twice on %s", fantasy.ErrInvalidRoster, e.PlayerID, fantasy.DateKey(day.Date))
		}
		seen[e.PlayerID] = true
	}

	slots := activeSlots(day)
	m := newMatcher(slots)

	var candidates []int
	for i, e := range day.Entries {
		if !e.Slot.Injured() {
			candidates = append(candidates, i)
		}
	}

	eligibleCount := func(i int) int {
		n := 0
		for _, s := range slots {
			if s.Accepts(day.Entries[i].Eligible) {
				n++
			}
		}
		return n
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		ea, eb := day.Entries[candidates[a]], day.Entries[candidates[b]]
		ga, gb := hasGame[ea.PlayerID], hasGame[eb.PlayerID]
		if ga != gb {
			return ga
		}
		ca, cb := eligibleCount(candidates[a]), eligibleCount(candidates[b])
		if ca != cb {
			return ca < cb
		}
		return ea.PlayerID < eb.PlayerID
	})

	// Game players first, so later augmentations can only move them.
	for _, withGame := range []bool{true, false} {
		for _, i := range candidates {
			e := day.Entries[i]
			if hasGame[e.PlayerID] != withGame {
				continue
			}
			m.assign(i, e.Eligible)
		}
	}

	out := fantasy.RosterDay{
		TeamKey: day.TeamKey,
		Date:    day.Date,
		Slots:   append([]fantasy.Slot(nil), day.Slots...),
		Entries: make([]fantasy.RosterEntry, len(day.Entries)),
	}
	copy(out.Entries, day.Entries)

	placed := make(map[int]fantasy.Slot, len(slots))
	var result Assignment
	for si, owner := range m.slotOwner {
		if owner < 0 {
			result.Unfilled = append(result.Unfilled, slots[si])
			continue
		}
		placed[owner] = slots[si]
		if hasGame[day.Entries[owner].PlayerID] {
			result.ActiveWithGames++
		}
	}

	for i := range out.Entries {
		if out.Entries[i].Slot.Injured() {
			continue
		}
		if s, ok := placed[i]; ok {
			out.Entries[i].Slot = s
		} else {
			out.Entries[i].Slot = fantasy.SlotBench
		}
	}

	result.Day = out
	return result, nil
}

// CountActiveWithGames counts players in active slots who have a game. It is
// used to compare a published lineup with an optimized one.
func CountActiveWithGames(day fantasy.RosterDay, hasGame map[fantasy.PlayerID]bool) int {
	n := 0
	for _, e := range day.Entries {
		if e.Slot.Active() && hasGame[e.PlayerID] {
			n++
		}
	}
	return n
}

// activeSlots returns the day's active slots, most restrictive first. Without
// a league slot list the active slots currently in use are taken as the list.
func activeSlots(day fantasy.RosterDay) []fantasy.Slot {
	source := day.Slots
	if len(source) == 0 {
		for _, e := range day.Entries {
			source = append(source, e.Slot)
		}
	}

	var slots []fantasy.Slot
	for _, s := range source {
		if s.Active() {
			slots = append(slots, s)
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Priority() < slots[j].Priority()
	})
	return slots
}

// matcher is a Kuhn-style bipartite matcher between roster entries and slots.
type matcher struct {
	slots     []fantasy.Slot
	slotOwner []int
	eligible  map[int][]fantasy.Position
}

func newMatcher(slots []fantasy.Slot) *matcher {
	owner := make([]int, len(slots))
	for i := range owner {
		owner[i] = -1
	}
	return &matcher{slots: slots, slotOwner: owner, eligible: make(map[int][]fantasy.Position)}
}

// assign tries to place entry i, moving already placed entries along an
// augmenting path when needed. Placed entries are never displaced.
func (m *matcher) assign(i int, eligible []fantasy.Position) bool {
	m.eligible[i] = eligible
	visited := make([]bool, len(m.slots))
	return m.augment(i, visited)
}

func (m *matcher) augment(i int, visited []bool) bool {
	// A free slot is taken before anyone is asked to move.
	for si, s := range m.slots {
		if !visited[si] && m.slotOwner[si] < 0 && s.Accepts(m.eligible[i]) {
			visited[si] = true
			m.slotOwner[si] = i
			return true
		}
	}
	for si, s := range m.slots {
		if visited[si] || !s.Accepts(m.eligible[i]) {
			continue
		}
		visited[si] = true
		if m.augment(m.slotOwner[si], visited) {
			m.slotOwner[si] = i
			return true
		}
	}
	return false
}
