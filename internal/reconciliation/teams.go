package reconciliation

import (
	"strings"

	"github.com/fortuna/juno/internal/store"
)

// teamAliases maps provider-specific abbreviations onto the stored ones.
var teamAliases = map[string]string{
	"GS":   "GSW",
	"NO":   "NOP",
	"NY":   "NYK",
	"SA":   "SAS",
	"UTAH": "UTA",
	"WSH":  "WAS",
	"PHO":  "PHX",
	"BRK":  "BKN",
}

// NormalizeTeamAbbreviation uppercases an abbreviation and resolves known
// aliases. Unknown abbreviations are returned uppercased.
func NormalizeTeamAbbreviation(abbr string) string {
	abbr = strings.ToUpper(strings.TrimSpace(abbr))
	if canonical, ok := teamAliases[abbr]; ok {
		return canonical
	}
	return abbr
}

// TeamResolver maps abbreviations and display names ("LA Clippers",
// "Trail Blazers") onto stored team abbreviations.
type TeamResolver struct {
	byAbbr    map[string]*store.Team
	byID      map[int]string
	byName    map[string]string
	nicknames map[string]string
}

// NewTeamResolver indexes the given teams.
func NewTeamResolver(teams []*store.Team) *TeamResolver {
	r := &TeamResolver{
		byAbbr:    make(map[string]*store.Team, len(teams)),
		byID:      make(map[int]string, len(teams)),
		byName:    make(map[string]string, len(teams)*2),
		nicknames: make(map[string]string, len(teams)),
	}
	for _, t := range teams {
		abbr := strings.ToUpper(t.Abbreviation)
		r.byAbbr[abbr] = t
		r.byID[t.TeamID] = abbr
		if full := NormalizeName(t.FullName); full != "" {
			r.byName[full] = abbr
		}
		if short := NormalizeName(t.ShortName); short != "" {
			r.byName[short] = abbr
			r.nicknames[short] = abbr
		}
	}
	return r
}

// Team returns the stored team for a resolved abbreviation.
func (r *TeamResolver) Team(abbr string) (*store.Team, bool) {
	t, ok := r.byAbbr[NormalizeTeamAbbreviation(abbr)]
	return t, ok
}

// Abbreviation returns the abbreviation of a stored team id.
func (r *TeamResolver) Abbreviation(teamID int) (string, bool) {
	abbr, ok := r.byID[teamID]
	return abbr, ok
}

// Resolve returns the stored abbreviation for an abbreviation, alias, full
// name or nickname. Ambiguous or unknown names do not resolve.
func (r *TeamResolver) Resolve(name string) (string, bool) {
	if abbr := NormalizeTeamAbbreviation(name); abbr != "" {
		if _, ok := r.byAbbr[abbr]; ok {
			return abbr, true
		}
	}

	norm := NormalizeName(name)
	if norm == "" {
		return "", false
	}
	if abbr, ok := r.byName[norm]; ok {
		return abbr, true
	}

	found := ""
	for nick, abbr := range r.nicknames {
		if containsWord(norm, nick) || (len(norm) >= 4 && containsWord(nick, norm)) {
			if found != "" && found != abbr {
				return "", false
			}
			found = abbr
		}
	}
	return found, found != ""
}

// containsWord reports whether needle appears in s on word boundaries.
func containsWord(s, needle string) bool {
	return strings.Contains(" "+s+" ", " "+needle+" ")
}
