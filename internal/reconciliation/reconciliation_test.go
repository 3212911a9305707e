package reconciliation

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/store"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "nikola jokic", NormalizeName("Nikola Jokić"))
	assert.Equal(t, "luka doncic", NormalizeName("  Luka   Dončić "))
	assert.Equal(t, "shai gilgeous alexander", NormalizeName("Shai Gilgeous-Alexander"))
	assert.Equal(t, "jaren jackson jr", NormalizeName("Jaren Jackson Jr."))
	assert.Equal(t, "deaaron fox", NormalizeName("De'Aaron Fox"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc", "abc"))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
	assert.Equal(t, 1.0, Similarity("", ""))
}

func candidates() []Candidate {
	return []Candidate{
		{ID: 1, Name: "Nikola Jokić"},
		{ID: 2, Name: "Jaren Jackson Jr."},
		{ID: 3, Name: "Jimmy Butler III"},
		{ID: 4, Name: "Anthony Davis"},
		{ID: 5, Name: "Anthony Edwards"},
		{ID: 6, Name: "Victor Wembanyama"},
	}
}

func TestPlayerMatcherExact(t *testing.T) {
	m := NewPlayerMatcher(candidates()).Match("Nikola Jokic")
	assert.True(t, m.Resolved())
	assert.Equal(t, 1, m.PlayerID)
	assert.Equal(t, MatchExact, m.Method)
}

func TestPlayerMatcherUniqueSubstring(t *testing.T) {
	m := NewPlayerMatcher(candidates()).Match("Wembanyama")
	assert.Equal(t, 6, m.PlayerID)
	assert.Equal(t, MatchSubstring, m.Method)
}

func TestPlayerMatcherAmbiguousSubstringSuggests(t *testing.T) {
	m := NewPlayerMatcher(candidates()).Match("Anthony")
	assert.False(t, m.Resolved())
	assert.Equal(t, MatchNone, m.Method)
	require.Len(t, m.Suggestions, 2)
}

func TestPlayerMatcherFuzzy(t *testing.T) {
	m := NewPlayerMatcher(candidates()).Match("Victor Wembanyamma")
	assert.Equal(t, 6, m.PlayerID)
	assert.Equal(t, MatchFuzzy, m.Method)
	assert.GreaterOrEqual(t, m.Similarity, AutoResolveSimilarity)
}

func TestPlayerMatcherNoMatch(t *testing.T) {
	m := NewPlayerMatcher(candidates()).Match("Steve Settle III")
	assert.False(t, m.Resolved())
	assert.Empty(t, m.Suggestions)

	assert.False(t, NewPlayerMatcher(candidates()).Match("  ").Resolved())
}

func teams() []*store.Team {
	return []*store.Team{
		{TeamID: 1, Abbreviation: "GSW", FullName: "Golden State Warriors", ShortName: "Warriors"},
		{TeamID: 2, Abbreviation: "LAC", FullName: "LA Clippers", ShortName: "Clippers"},
		{TeamID: 3, Abbreviation: "POR", FullName: "Portland Trail Blazers", ShortName: "Trail Blazers"},
		{TeamID: 4, Abbreviation: "UTA", FullName: "Utah Jazz", ShortName: "Jazz"},
		{TeamID: 5, Abbreviation: "LAL", FullName: "Los Angeles Lakers", ShortName: "Lakers"},
	}
}

func TestNormalizeTeamAbbreviation(t *testing.T) {
	assert.Equal(t, "GSW", NormalizeTeamAbbreviation("gs"))
	assert.Equal(t, "UTA", NormalizeTeamAbbreviation("UTAH"))
	assert.Equal(t, "PHX", NormalizeTeamAbbreviation("PHO"))
	assert.Equal(t, "BOS", NormalizeTeamAbbreviation(" bos "))
}

func TestTeamResolver(t *testing.T) {
	r := NewTeamResolver(teams())

	cases := map[string]string{
		"GS":                    "GSW",
		"Golden State Warriors": "GSW",
		"LA Clippers":           "LAC",
		"Clippers":              "LAC",
		"Blazers":               "POR",
		"Utah":                  "UTA",
		"Los Angeles Lakers":    "LAL",
	}
	for name, want := range cases {
		got, ok := r.Resolve(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := r.Resolve("Celtics")
	assert.False(t, ok)

	abbr, ok := r.Abbreviation(3)
	assert.True(t, ok)
	assert.Equal(t, "POR", abbr)
}

func storedGame(id string, home, away int, status fantasy.GameStatus) *store.Game {
	return &store.Game{ExternalID: id, HomeTeamID: home, AwayTeamID: away, Status: string(status)}
}

func TestEngineReconcile(t *testing.T) {
	e := NewEngine(NewTeamResolver(teams()), logger.Discard())

	live := storedGame("1", 1, 2, fantasy.GameInProgress)
	upcoming := storedGame("2", 3, 4, fantasy.GameScheduled)
	done := storedGame("3", 5, 1, fantasy.GameFinal)

	changes := e.Reconcile([]*store.Game{live, upcoming, done}, []ObservedGame{
		{HomeTeam: "Warriors", AwayTeam: "Clippers", Status: fantasy.GameFinal},
		// listed visitor first
		{HomeTeam: "Jazz", AwayTeam: "Trail Blazers", Status: fantasy.GamePostponed},
		{HomeTeam: "Lakers", AwayTeam: "Warriors", Status: fantasy.GameInProgress},
	})

	require.Len(t, changes, 2)
	assert.Equal(t, "1", changes[0].Game.ExternalID)
	assert.Equal(t, fantasy.GameFinal, changes[0].To)
	assert.Equal(t, "2", changes[1].Game.ExternalID)
	assert.Equal(t, fantasy.GamePostponed, changes[1].To)

	m := e.GetMetrics()
	assert.Equal(t, 3, m.Matched)
	assert.Equal(t, 2, m.Applied)
}

func TestEngineSkipsConflictingScores(t *testing.T) {
	e := NewEngine(NewTeamResolver(teams()), logger.Discard())
	g := storedGame("1", 1, 2, fantasy.GameInProgress)
	g.HomeScore = sql.NullInt32{Int32: 40, Valid: true}

	changes := e.Reconcile([]*store.Game{g}, []ObservedGame{
		{HomeTeam: "GSW", AwayTeam: "LAC", Status: fantasy.GameFinal, HomeScore: 110},
	})
	assert.Empty(t, changes)
	assert.Equal(t, 1, e.GetMetrics().Conflicts)
}

func TestNextStatus(t *testing.T) {
	_, ok := nextStatus(fantasy.GameInProgress, fantasy.GameScheduled)
	assert.False(t, ok)
	to, ok := nextStatus(fantasy.GameScheduled, fantasy.GameInProgress)
	assert.True(t, ok)
	assert.Equal(t, fantasy.GameInProgress, to)
	_, ok = nextStatus(fantasy.GameFinal, fantasy.GamePostponed)
	assert.False(t, ok)
}
