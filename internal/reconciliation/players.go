package reconciliation

import (
	"sort"
	"strings"
)

// Fuzzy thresholds. Below AutoResolveSimilarity a close name is only suggested.
const (
	AutoResolveSimilarity = 0.85
	SuggestSimilarity     = 0.75
	DefaultSuggestions    = 5
)

// MatchMethod records how a name was resolved
type MatchMethod string

const (
	MatchExact     MatchMethod = "exact"
	MatchSubstring MatchMethod = "substring"
	MatchFuzzy     MatchMethod = "fuzzy"
	MatchNone      MatchMethod = "none"
)

// Candidate is a player known to the stats provider
type Candidate struct {
	ID   int    `json:"player_id"`
	Name string `json:"name"`
}

// Suggestion is a candidate offered when a name could not be resolved
type Suggestion struct {
	Candidate
	Similarity float64 `json:"similarity"`
}

// PlayerMatch is the outcome of resolving one name. PlayerID is zero
// unless the name resolved to exactly one candidate.
type PlayerMatch struct {
	Query       string       `json:"query"`
	PlayerID    int          `json:"player_id,omitempty"`
	Method      MatchMethod  `json:"method"`
	Similarity  float64      `json:"similarity,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Resolved reports whether the match identified a single player.
func (m PlayerMatch) Resolved() bool {
	return m.PlayerID != 0
}

type indexed struct {
	Candidate
	norm string
}

// PlayerMatcher resolves names from the league provider against the stats
// provider's players.
type PlayerMatcher struct {
	candidates []indexed
	limit      int
}

// NewPlayerMatcher indexes candidates. Order is by id so results are stable.
func NewPlayerMatcher(candidates []Candidate) *PlayerMatcher {
	idx := make([]indexed, 0, len(candidates))
	for _, c := range candidates {
		idx = append(idx, indexed{Candidate: c, norm: NormalizeName(c.Name)})
	}
	sort.Slice(idx, func(i, j int) bool { return idx[i].ID < idx[j].ID })
	return &PlayerMatcher{candidates: idx, limit: DefaultSuggestions}
}

// Match tries an exact normalized match, then a unique substring match,
// then fuzzy similarity. Several substring hits are returned as
// suggestions rather than guessed between.
func (m *PlayerMatcher) Match(name string) PlayerMatch {
	query := NormalizeName(name)
	result := PlayerMatch{Query: name, Method: MatchNone}
	if query == "" {
		return result
	}

	for _, c := range m.candidates {
		if c.norm == query {
			result.PlayerID = c.ID
			result.Method = MatchExact
			result.Similarity = 1
			return result
		}
	}

	var subs []Suggestion
	for _, c := range m.candidates {
		if strings.Contains(c.norm, query) {
			subs = append(subs, Suggestion{Candidate: c.Candidate, Similarity: Similarity(query, c.norm)})
		}
	}
	switch {
	case len(subs) == 1:
		result.PlayerID = subs[0].ID
		result.Method = MatchSubstring
		result.Similarity = subs[0].Similarity
		return result
	case len(subs) > 1:
		result.Suggestions = m.top(subs)
		return result
	}

	var near []Suggestion
	for _, c := range m.candidates {
		if s := Similarity(query, c.norm); s >= SuggestSimilarity {
			near = append(near, Suggestion{Candidate: c.Candidate, Similarity: s})
		}
	}
	near = m.top(near)
	if len(near) == 1 && near[0].Similarity >= AutoResolveSimilarity {
		result.PlayerID = near[0].ID
		result.Method = MatchFuzzy
		result.Similarity = near[0].Similarity
		return result
	}
	result.Suggestions = near
	return result
}

func (m *PlayerMatcher) top(s []Suggestion) []Suggestion {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Similarity > s[j].Similarity })
	if len(s) > m.limit {
		s = s[:m.limit]
	}
	return s
}
