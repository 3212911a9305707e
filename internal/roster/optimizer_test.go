package roster

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/fantasy"
)

var testDate = time.Date(2025, time.November, 12, 0, 0, 0, 0, time.UTC)

func entry(id int, slot fantasy.Slot, positions ...fantasy.Position) fantasy.RosterEntry {
	return fantasy.RosterEntry{PlayerID: fantasy.PlayerID(id), Slot: slot, Eligible: positions}
}

func slotOf(t *testing.T, a Assignment, id int) fantasy.Slot {
	t.Helper()
	e, ok := a.Day.Player(fantasy.PlayerID(id))
	require.True(t, ok, "player %d missing", id)
	return e.Slot
}

func allWithGames(ids ...int) map[fantasy.PlayerID]bool {
	m := make(map[fantasy.PlayerID]bool, len(ids))
	for _, id := range ids {
		m[fantasy.PlayerID(id)] = true
	}
	return m
}

func TestOptimizeComplexRoster(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotPG, fantasy.SlotSG, fantasy.SlotSF, fantasy.SlotPF, fantasy.SlotC},
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotBench, fantasy.PositionC),
			entry(2, fantasy.SlotBench, fantasy.PositionPF, fantasy.PositionC),
			entry(3, fantasy.SlotBench, fantasy.PositionSF),
			entry(4, fantasy.SlotBench, fantasy.PositionPG, fantasy.PositionSG),
		},
	}

	got, err := Optimize(day, allWithGames(1, 2, 3, 4))
	require.NoError(t, err)

	assert.Equal(t, fantasy.SlotC, slotOf(t, got, 1))
	assert.Equal(t, fantasy.SlotPF, slotOf(t, got, 2))
	assert.Equal(t, fantasy.SlotSF, slotOf(t, got, 3))
	assert.Contains(t, []fantasy.Slot{fantasy.SlotPG, fantasy.SlotSG}, slotOf(t, got, 4))
	assert.Equal(t, 4, got.ActiveWithGames)
	assert.Len(t, got.Unfilled, 1)
}

func TestOptimizeUtilOverflow(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotC, fantasy.SlotUtil, fantasy.SlotUtil, fantasy.SlotBench, fantasy.SlotBench},
		Entries: []fantasy.RosterEntry{
			entry(10, fantasy.SlotBench, fantasy.PositionC),
			entry(11, fantasy.SlotBench, fantasy.PositionC),
			entry(12, fantasy.SlotBench, fantasy.PositionC),
			entry(13, fantasy.SlotBench, fantasy.PositionC),
		},
	}

	got, err := Optimize(day, allWithGames(10, 11, 12, 13))
	require.NoError(t, err)

	assert.Equal(t, 3, got.ActiveWithGames)
	assert.Empty(t, got.Unfilled)
	// Lowest ids win the tie; the overflow goes to the bench.
	assert.Equal(t, fantasy.SlotC, slotOf(t, got, 10))
	assert.Equal(t, fantasy.SlotUtil, slotOf(t, got, 11))
	assert.Equal(t, fantasy.SlotUtil, slotOf(t, got, 12))
	assert.Equal(t, fantasy.SlotBench, slotOf(t, got, 13))
}

func TestOptimizeKeepsInjuredListInPlace(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotPG, fantasy.SlotUtil, fantasy.SlotBench, fantasy.SlotIL, fantasy.SlotILPlus},
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotIL, fantasy.PositionPG),
			entry(2, fantasy.SlotILPlus, fantasy.PositionPG),
			entry(3, fantasy.SlotBench, fantasy.PositionPG),
		},
	}

	got, err := Optimize(day, allWithGames(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, fantasy.SlotIL, slotOf(t, got, 1))
	assert.Equal(t, fantasy.SlotILPlus, slotOf(t, got, 2))
	assert.Equal(t, fantasy.SlotPG, slotOf(t, got, 3))
	assert.Equal(t, []fantasy.Slot{fantasy.SlotUtil}, got.Unfilled)
}

func TestOptimizePrefersPlayersWithGames(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotG, fantasy.SlotUtil, fantasy.SlotBench},
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotG, fantasy.PositionPG),
			entry(2, fantasy.SlotUtil, fantasy.PositionSG),
			entry(3, fantasy.SlotBench, fantasy.PositionSG),
		},
	}

	got, err := Optimize(day, allWithGames(3))
	require.NoError(t, err)

	assert.True(t, slotOf(t, got, 3).Active())
	assert.Equal(t, 1, got.ActiveWithGames)
	// The second active slot is still filled by someone without a game.
	assert.Empty(t, got.Unfilled)
	assert.Equal(t, fantasy.SlotBench, slotOf(t, got, 2))
}

func TestOptimizeFillsFlexBeforeUtil(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotUtil, fantasy.SlotF},
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotBench, fantasy.PositionSF),
			entry(2, fantasy.SlotBench, fantasy.PositionC),
		},
	}

	got, err := Optimize(day, allWithGames(1, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, got.ActiveWithGames)
	assert.Equal(t, fantasy.SlotF, slotOf(t, got, 1))
	assert.Equal(t, fantasy.SlotUtil, slotOf(t, got, 2))
}

func TestOptimizeExactSlotBeforeFlex(t *testing.T) {
	// Player 2 only fits G, so player 1 has to end up at PG.
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotG, fantasy.SlotPG},
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotBench, fantasy.PositionPG),
			entry(2, fantasy.SlotBench, fantasy.PositionSG),
		},
	}

	got, err := Optimize(day, allWithGames(1, 2))
	require.NoError(t, err)

	assert.Equal(t, 2, got.ActiveWithGames)
	assert.Equal(t, fantasy.SlotPG, slotOf(t, got, 1))
	assert.Equal(t, fantasy.SlotG, slotOf(t, got, 2))
}

func TestOptimizeInfeasibleReportsUnfilled(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotC, fantasy.SlotC, fantasy.SlotPG},
		Entries: []fantasy.RosterEntry{
			entry(5, fantasy.SlotBench, fantasy.PositionC),
		},
	}

	got, err := Optimize(day, allWithGames(5))
	require.NoError(t, err)

	assert.Equal(t, 1, got.ActiveWithGames)
	assert.ElementsMatch(t, []fantasy.Slot{fantasy.SlotC, fantasy.SlotPG}, got.Unfilled)
}

func TestOptimizeRejectsDuplicatePlayers(t *testing.T) {
	day := fantasy.RosterDay{
		Date: testDate,
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotPG, fantasy.PositionPG),
			entry(1, fantasy.SlotBench, fantasy.PositionPG),
		},
	}

	_, err := Optimize(day, nil)
	assert.True(t, errors.Is(err, fantasy.ErrInvalidRoster))
}

func TestOptimizeDerivesSlotsFromEntries(t *testing.T) {
	day := fantasy.RosterDay{
		Date: testDate,
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotPG, fantasy.PositionPG),
			entry(2, fantasy.SlotBench, fantasy.PositionPG),
		},
	}

	got, err := Optimize(day, allWithGames(2))
	require.NoError(t, err)

	assert.Equal(t, fantasy.SlotPG, slotOf(t, got, 2))
	assert.Equal(t, fantasy.SlotBench, slotOf(t, got, 1))
}

func TestOptimizeDoesNotMutateInput(t *testing.T) {
	day := fantasy.RosterDay{
		Date:  testDate,
		Slots: []fantasy.Slot{fantasy.SlotPG},
		Entries: []fantasy.RosterEntry{
			entry(1, fantasy.SlotPG, fantasy.PositionPG),
			entry(2, fantasy.SlotBench, fantasy.PositionPG),
		},
	}

	_, err := Optimize(day, allWithGames(2))
	require.NoError(t, err)
	assert.Equal(t, fantasy.SlotPG, day.Entries[0].Slot)
	assert.Equal(t, fantasy.SlotBench, day.Entries[1].Slot)
}

func TestOptimizeIsReproducible(t *testing.T) {
	day := randomDay(rand.New(rand.NewSource(7)), 12)
	games := randomGames(rand.New(rand.NewSource(8)), day)

	first, err := Optimize(day, games)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Optimize(day, games)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// Any deterministic tie-break is acceptable as long as the count of active
// players with games matches the brute-force maximum.
func TestOptimizeMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(15)
		day := randomDay(rng, n)
		games := randomGames(rng, day)

		got, err := Optimize(day, games)
		require.NoError(t, err)

		want := bruteForceMax(day, games)
		require.Equal(t, want, got.ActiveWithGames, "iteration %d", iter)
		require.Equal(t, want, CountActiveWithGames(got.Day, games), "iteration %d", iter)
		require.GreaterOrEqual(t, got.ActiveWithGames, CountActiveWithGames(day, games))
	}
}

var leagueSlots = []fantasy.Slot{
	fantasy.SlotPG, fantasy.SlotSG, fantasy.SlotG, fantasy.SlotSF, fantasy.SlotPF,
	fantasy.SlotF, fantasy.SlotC, fantasy.SlotC, fantasy.SlotUtil, fantasy.SlotUtil,
	fantasy.SlotBench, fantasy.SlotBench, fantasy.SlotBench, fantasy.SlotIL, fantasy.SlotILPlus,
}

var positions = []fantasy.Position{
	fantasy.PositionPG, fantasy.PositionSG, fantasy.PositionSF, fantasy.PositionPF, fantasy.PositionC,
}

func randomDay(rng *rand.Rand, n int) fantasy.RosterDay {
	day := fantasy.RosterDay{Date: testDate, Slots: leagueSlots}
	for i := 0; i < n; i++ {
		var elig []fantasy.Position
		for _, p := range positions {
			if rng.Intn(3) == 0 {
				elig = append(elig, p)
			}
		}
		if len(elig) == 0 {
			elig = append(elig, positions[rng.Intn(len(positions))])
		}
		slot := fantasy.SlotBench
		if rng.Intn(8) == 0 {
			slot = fantasy.SlotIL
		}
		day.Entries = append(day.Entries, fantasy.RosterEntry{
			PlayerID: fantasy.PlayerID(100 + rng.Intn(900)*20 + i),
			Slot:     slot,
			Eligible: elig,
		})
	}
	return day
}

func randomGames(rng *rand.Rand, day fantasy.RosterDay) map[fantasy.PlayerID]bool {
	games := make(map[fantasy.PlayerID]bool)
	for _, e := range day.Entries {
		if rng.Intn(3) > 0 {
			games[e.PlayerID] = true
		}
	}
	return games
}

// bruteForceMax returns the largest number of non-injured players with games
// that fit in the active slots, by memoized search over slots and a bitmask
// of used players.
func bruteForceMax(day fantasy.RosterDay, games map[fantasy.PlayerID]bool) int {
	var players []fantasy.RosterEntry
	for _, e := range day.Entries {
		if !e.Slot.Injured() && games[e.PlayerID] {
			players = append(players, e)
		}
	}
	var slots []fantasy.Slot
	for _, s := range day.Slots {
		if s.Active() {
			slots = append(slots, s)
		}
	}

	memo := make(map[[2]int]int)
	var best func(si, mask int) int
	best = func(si, mask int) int {
		if si == len(slots) {
			return 0
		}
		key := [2]int{si, mask}
		if v, ok := memo[key]; ok {
			return v
		}
		result := best(si+1, mask)
		for pi, p := range players {
			if mask&(1<<pi) != 0 || !slots[si].Accepts(p.Eligible) {
				continue
			}
			if v := 1 + best(si+1, mask|1<<pi); v > result {
				result = v
			}
		}
		memo[key] = result
		return result
	}
	return best(0, 0)
}
