package espn

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
)

// Box score columns are looked up by label, not index.
const (
	statLabelMinutes   = "MIN"
	statLabelPoints    = "PTS"
	statLabelReb       = "REB"
	statLabelAst       = "AST"
	statLabelStl       = "STL"
	statLabelBlk       = "BLK"
	statLabelTO        = "TO"
	statLabelFG        = "FG"  // "made-attempted"
	statLabel3PT       = "3PT" // "made-attempted"
	statLabelFT        = "FT"  // "made-attempted"
	statLabelPlusMinus = "+/-"
)

// ESPN season type codes.
const (
	seasonTypePreseason  = 1
	seasonTypeRegular    = 2
	seasonTypePostseason = 3
	seasonTypePlayIn     = 5
)

// ParseScoreboard returns the games of a scoreboard response. Game dates
// are taken in loc. Events that cannot be parsed are returned as errors
// alongside the games that could.
func ParseScoreboard(data map[string]interface{}, loc *time.Location, fallbackSeason string) ([]*ParsedGame, []error) {
	var games []*ParsedGame
	var errs []error
	for _, raw := range extractArray(data, "events") {
		event, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		game, err := parseEvent(event, loc, fallbackSeason)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", extractString(event, "id"), err))
			continue
		}
		games = append(games, game)
	}
	return games, errs
}

func parseEvent(event map[string]interface{}, loc *time.Location, fallbackSeason string) (*ParsedGame, error) {
	game := &store.Game{
		ExternalID: extractString(event, "id"),
		Season:     fallbackSeason,
	}
	if game.ExternalID == "" {
		return nil, fmt.Errorf("missing event id")
	}

	tipoff, err := parseEventTime(extractString(event, "date"))
	if err != nil {
		return nil, err
	}
	local := tipoff.In(loc)
	game.GameDate = fantasy.Day(local)
	game.GameTime = sql.NullTime{Time: tipoff, Valid: true}

	status := extractMap(event, "status")
	game.Status = string(ParseStatus(status))
	if period := extractInt(status, "period"); period > 0 {
		game.Period = sql.NullInt32{Int32: int32(period), Valid: true}
	}
	if clock := extractString(status, "displayClock"); clock != "" {
		game.Clock = sql.NullString{String: clock, Valid: true}
	}

	season := extractMap(event, "season")
	if year := extractInt(season, "year"); year > 0 {
		game.Season = seasonLabel(year)
	}

	competitions := extractArray(event, "competitions")
	if len(competitions) == 0 {
		return nil, fmt.Errorf("no competitions")
	}
	comp, _ := competitions[0].(map[string]interface{})

	game.GameType = string(ClassifyGameType(extractInt(season, "type"), noteHeadlines(comp)))

	parsed := &ParsedGame{Game: game}
	started := fantasy.GameStatus(game.Status) == fantasy.GameInProgress || fantasy.GameStatus(game.Status) == fantasy.GameFinal
	for _, raw := range extractArray(comp, "competitors") {
		competitor, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		team := extractMap(competitor, "team")
		meta := TeamMeta{
			Abbreviation: strings.ToUpper(extractString(team, "abbreviation")),
			ESPNID:       extractString(team, "id"),
			DisplayName:  extractString(team, "displayName"),
		}

		var score sql.NullInt32
		if started {
			score = sql.NullInt32{Int32: int32(extractInt(competitor, "score")), Valid: true}
		}

		switch extractString(competitor, "homeAway") {
		case "home":
			parsed.HomeTeam = meta
			game.HomeScore = score
		case "away":
			parsed.AwayTeam = meta
			game.AwayScore = score
		}
	}
	if parsed.HomeTeam.Abbreviation == "" || parsed.AwayTeam.Abbreviation == "" {
		return nil, fmt.Errorf("insufficient competitors")
	}

	return parsed, nil
}

// ESPN sometimes omits seconds: "2025-11-15T01:00Z".
func parseEventTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04Z07:00", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// seasonLabel turns ESPN's season year (the year the season ends) into
// "2025-26".
func seasonLabel(year int) string {
	return fmt.Sprintf("%d-%02d", year-1, year%100)
}

func noteHeadlines(comp map[string]interface{}) []string {
	var out []string
	for _, raw := range extractArray(comp, "notes") {
		if note, ok := raw.(map[string]interface{}); ok {
			if h := extractString(note, "headline"); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

// ClassifyGameType derives the calendar type of a game from its season
// type code and event note headlines ("NBA Cup - East Group B",
// "Play-In Tournament", "NBA Paris Game 2026"). The most specific match wins.
func ClassifyGameType(seasonType int, headlines []string) fantasy.GameType {
	for _, h := range headlines {
		lower := strings.ToLower(h)
		switch {
		case strings.Contains(lower, "all-star"):
			return fantasy.GameAllStar
		case strings.Contains(lower, "play-in"):
			return fantasy.GamePlayIn
		case strings.Contains(lower, "cup") || strings.Contains(lower, "in-season"):
			switch {
			case strings.Contains(lower, "championship"):
				return fantasy.GameCupFinal
			case strings.Contains(lower, "quarterfinal"), strings.Contains(lower, "semifinal"), strings.Contains(lower, "knockout"):
				return fantasy.GameCupKnockout
			case strings.HasSuffix(lower, " final"):
				return fantasy.GameCupFinal
			default:
				return fantasy.GameCupGroup
			}
		case strings.Contains(lower, "global games"), isInternationalGame(lower):
			return fantasy.GameGlobal
		}
	}

	switch seasonType {
	case seasonTypePreseason:
		return fantasy.GamePreseason
	case seasonTypePostseason:
		return fantasy.GamePlayoffs
	case seasonTypePlayIn:
		return fantasy.GamePlayIn
	default:
		return fantasy.GameRegularSeason
	}
}

var internationalCities = []string{"paris", "mexico city", "london", "berlin", "abu dhabi"}

func isInternationalGame(headline string) bool {
	if !strings.Contains(headline, "game") {
		return false
	}
	for _, city := range internationalCities {
		if strings.Contains(headline, city) {
			return true
		}
	}
	return false
}

// ParseStatus maps an ESPN status object onto a game status. Postponed and
// cancelled games are recognised by their status name.
func ParseStatus(status map[string]interface{}) fantasy.GameStatus {
	statusType := extractMap(status, "type")

	name := strings.ToUpper(extractString(statusType, "name"))
	switch {
	case strings.Contains(name, "POSTPONED"), strings.Contains(name, "SUSPENDED"):
		return fantasy.GamePostponed
	case strings.Contains(name, "CANCELED"), strings.Contains(name, "CANCELLED"):
		return fantasy.GameCancelled
	}

	if completed, ok := statusType["completed"].(bool); ok && completed {
		return fantasy.GameFinal
	}

	switch extractString(statusType, "state") {
	case "in":
		return fantasy.GameInProgress
	case "post":
		return fantasy.GameFinal
	default:
		return fantasy.GameScheduled
	}
}

// ParseBoxScore returns the lines of every player who appeared in the game.
// Players marked as not having played are skipped.
func ParseBoxScore(summary map[string]interface{}) ([]*ParsedPlayerStats, error) {
	boxscore := extractMap(summary, "boxscore")
	if len(boxscore) == 0 {
		return nil, fmt.Errorf("no boxscore data found")
	}

	teams := extractArray(boxscore, "players")
	if len(teams) == 0 {
		return nil, fmt.Errorf("no players data in boxscore")
	}

	var all []*ParsedPlayerStats
	for _, raw := range teams {
		teamData, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		teamAbbr := strings.ToUpper(extractString(extractMap(teamData, "team"), "abbreviation"))

		statistics := extractArray(teamData, "statistics")
		if len(statistics) == 0 {
			continue
		}
		group, _ := statistics[0].(map[string]interface{})

		index := make(map[string]int)
		for i, label := range extractArray(group, "labels") {
			if s, ok := label.(string); ok {
				index[s] = i
			}
		}
		if len(index) == 0 {
			for i, name := range extractArray(group, "names") {
				if s, ok := name.(string); ok {
					index[s] = i
				}
			}
		}

		for _, a := range extractArray(group, "athletes") {
			athleteData, ok := a.(map[string]interface{})
			if !ok {
				continue
			}
			if dnp, ok := athleteData["didNotPlay"].(bool); ok && dnp {
				continue
			}
			line, err := parsePlayerLine(athleteData, teamAbbr, index)
			if err != nil {
				continue
			}
			all = append(all, line)
		}
	}

	return all, nil
}

func parsePlayerLine(athleteData map[string]interface{}, teamAbbr string, index map[string]int) (*ParsedPlayerStats, error) {
	athlete := extractMap(athleteData, "athlete")
	values := extractArray(athleteData, "stats")
	if len(values) == 0 {
		return nil, fmt.Errorf("no stats array for player")
	}

	stat := func(label string) string {
		if i, ok := index[label]; ok && i < len(values) {
			return strings.TrimSpace(fmt.Sprint(values[i]))
		}
		return ""
	}

	line := &store.PlayerGameStats{}
	parsed := &ParsedPlayerStats{
		Stats:        line,
		TeamAbbr:     teamAbbr,
		ESPNPlayerID: extractString(athlete, "id"),
		PlayerName:   fallbackString(extractString(athlete, "displayName"), extractString(athlete, "shortName")),
		Jersey:       extractString(athlete, "jersey"),
		Position:     extractString(extractMap(athlete, "position"), "abbreviation"),
	}

	if m := stat(statLabelMinutes); m != "" {
		line.MinutesPlayed = sql.NullFloat64{Float64: ParseMinutes(m), Valid: true}
	}
	line.Points = parseInt(stat(statLabelPoints))
	line.Rebounds = parseInt(stat(statLabelReb))
	line.Assists = parseInt(stat(statLabelAst))
	line.Steals = parseInt(stat(statLabelStl))
	line.Blocks = parseInt(stat(statLabelBlk))
	line.Turnovers = parseInt(stat(statLabelTO))
	line.FieldGoalsMade, line.FieldGoalsAttempted = ParseShots(stat(statLabelFG))
	line.ThreePointersMade, line.ThreePointersAttempted = ParseShots(stat(statLabel3PT))
	line.FreeThrowsMade, line.FreeThrowsAttempted = ParseShots(stat(statLabelFT))
	if pm := stat(statLabelPlusMinus); pm != "" {
		line.PlusMinus = sql.NullInt32{Int32: int32(parseInt(strings.TrimPrefix(pm, "+"))), Valid: true}
	}
	if starter, ok := athleteData["starter"].(bool); ok {
		line.Starter = starter
	}

	return parsed, nil
}

// ParseMinutes accepts "MM:SS" or a plain number of minutes.
func ParseMinutes(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return 0
	}
	if mins, secs, ok := strings.Cut(s, ":"); ok {
		m, _ := strconv.Atoi(mins)
		sec, _ := strconv.Atoi(secs)
		return float64(m) + float64(sec)/60.0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// ParseShots splits "made-attempted". Malformed input yields zeros.
func ParseShots(s string) (made, attempted int) {
	m, a, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0
	}
	made, err1 := strconv.Atoi(strings.TrimSpace(m))
	attempted, err2 := strconv.Atoi(strings.TrimSpace(a))
	if err1 != nil || err2 != nil || made > attempted {
		return 0, 0
	}
	return made, attempted
}

// EligiblePositions expands ESPN's position abbreviation into the
// positions a player can fill. Guards and forwards are listed generically.
func EligiblePositions(pos string) []string {
	switch strings.ToUpper(strings.TrimSpace(pos)) {
	case "PG":
		return []string{"PG"}
	case "SG":
		return []string{"SG"}
	case "SF":
		return []string{"SF"}
	case "PF":
		return []string{"PF"}
	case "C":
		return []string{"C"}
	case "G":
		return []string{"PG", "SG"}
	case "F":
		return []string{"SF", "PF"}
	case "G-F", "GF":
		return []string{"SG", "SF"}
	case "F-C", "FC":
		return []string{"PF", "C"}
	default:
		return nil
	}
}

// BuildEventFromSummary rebuilds a scoreboard-shaped event from a game
// summary header, so single-game ingestion can share parseEvent.
func BuildEventFromSummary(summary map[string]interface{}) map[string]interface{} {
	header := extractMap(summary, "header")
	competitions := extractArray(header, "competitions")
	if len(competitions) == 0 {
		return nil
	}
	comp, ok := competitions[0].(map[string]interface{})
	if !ok {
		return nil
	}

	return map[string]interface{}{
		"id":           fallbackString(extractString(header, "id"), extractString(comp, "id")),
		"date":         extractString(comp, "date"),
		"status":       extractMap(comp, "status"),
		"competitions": []interface{}{comp},
		"season":       extractMap(header, "season"),
	}
}

// ParseSummaryGame parses the game carried in a summary response.
func ParseSummaryGame(summary map[string]interface{}, loc *time.Location, fallbackSeason string) (*ParsedGame, error) {
	event := BuildEventFromSummary(summary)
	if event == nil {
		return nil, fmt.Errorf("summary missing header data")
	}
	return parseEvent(event, loc, fallbackSeason)
}

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func fallbackString(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func extractInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		return parseInt(v)
	}
	return 0
}

func extractMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mapVal, ok := v.(map[string]interface{}); ok {
			return mapVal
		}
	}
	return map[string]interface{}{}
}

func extractArray(m map[string]interface{}, key string) []interface{} {
	if v, ok := m[key]; ok {
		if arrVal, ok := v.([]interface{}); ok {
			return arrVal
		}
	}
	return nil
}

func parseInt(v interface{}) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(val))
		return i
	case int:
		return val
	default:
		return 0
	}
}
