package google

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/reconciliation"
)

// LiveGame represents a game scraped from a Google Sports card. Cards list
// the visiting team first.
type LiveGame struct {
	AwayTeam      string `json:"away_team"`
	HomeTeam      string `json:"home_team"`
	AwayScore     int    `json:"away_score"`
	HomeScore     int    `json:"home_score"`
	StatusText    string `json:"status_text"`
	Period        int    `json:"period,omitempty"`
	TimeRemaining string `json:"time_remaining,omitempty"`
}

var (
	scoreLinePattern = regexp.MustCompile(`([A-Za-z0-9 .]+?)\s+(\d+)\s*-\s*(\d+)\s+([A-Za-z0-9 .]+)`)
	clockPattern     = regexp.MustCompile(`(\d{1,2}:\d{2})`)

	periodTokens = []struct {
		token  string
		period int
	}{
		{"q1", 1}, {"1st", 1}, {"first", 1},
		{"q2", 2}, {"2nd", 2}, {"second", 2},
		{"q3", 3}, {"3rd", 3}, {"third", 3},
		{"q4", 4}, {"4th", 4}, {"fourth", 4},
		{"ot", 5}, {"overtime", 5},
	}
)

// ParseLiveGames extracts NBA games from a Google results page. Sports card
// widgets are preferred; plain "Team 101 - 99 Team" text is the fallback.
func ParseLiveGames(doc *goquery.Document) []LiveGame {
	var games []LiveGame

	doc.Find("div.imso_mh__lv-m-stl-cont").Each(func(_ int, s *goquery.Selection) {
		if game := parseSportsCard(s); game != nil {
			games = append(games, *game)
		}
	})

	if len(games) == 0 {
		doc.Find("div[class*='sports']").Each(func(_ int, s *goquery.Selection) {
			if game := parseSportsDiv(s); game != nil {
				games = append(games, *game)
			}
		})
	}

	return games
}

func parseSportsCard(s *goquery.Selection) *LiveGame {
	game := &LiveGame{}

	s.Find("div.imso_mh__first-tn-ed").Each(func(i int, team *goquery.Selection) {
		name := strings.TrimSpace(team.Text())
		switch i {
		case 0:
			game.AwayTeam = name
		case 1:
			game.HomeTeam = name
		}
	})

	s.Find("div.imso_mh__l-tm-sc, div.imso_mh__r-tm-sc").Each(func(i int, score *goquery.Selection) {
		val, err := strconv.Atoi(strings.TrimSpace(score.Text()))
		if err != nil {
			return
		}
		switch i {
		case 0:
			game.AwayScore = val
		case 1:
			game.HomeScore = val
		}
	})

	game.StatusText = strings.TrimSpace(s.Find("span.imso_mh__ft-mtch").Text())
	game.Period, game.TimeRemaining = parseGameClock(game.StatusText)

	if game.HomeTeam == "" || game.AwayTeam == "" {
		return nil
	}
	return game
}

func parseSportsDiv(s *goquery.Selection) *LiveGame {
	text := strings.Join(strings.Fields(s.Text()), " ")
	if !strings.Contains(strings.ToLower(text), "nba") {
		return nil
	}

	m := scoreLinePattern.FindStringSubmatch(text)
	if len(m) != 5 {
		return nil
	}
	awayScore, _ := strconv.Atoi(m[2])
	homeScore, _ := strconv.Atoi(m[3])

	return &LiveGame{
		AwayTeam:  lastWord(m[1]),
		HomeTeam:  firstWord(m[4]),
		AwayScore: awayScore,
		HomeScore: homeScore,
	}
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

func lastWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[len(f)-1]
	}
	return ""
}

// parseGameClock extracts the period and time remaining from status text
// such as "Q4 2:30", "3rd 5:45" or "Halftime".
func parseGameClock(statusText string) (int, string) {
	lower := strings.ToLower(statusText)
	words := strings.Fields(lower)

	for _, pt := range periodTokens {
		for _, w := range words {
			if w != pt.token {
				continue
			}
			if m := clockPattern.FindStringSubmatch(statusText); len(m) > 0 {
				return pt.period, m[1]
			}
			return pt.period, ""
		}
	}

	if strings.Contains(lower, "half") {
		return 2, "Halftime"
	}
	return 0, ""
}

// Status maps the card's status text onto a game status. Unknown text is
// reported as scheduled, which never overrides a stored status.
func (g LiveGame) Status() fantasy.GameStatus {
	lower := strings.ToLower(g.StatusText)
	switch {
	case strings.Contains(lower, "postponed"):
		return fantasy.GamePostponed
	case strings.Contains(lower, "cancel"):
		return fantasy.GameCancelled
	case strings.Contains(lower, "final"):
		return fantasy.GameFinal
	case strings.Contains(lower, "live"), strings.Contains(lower, "half"), g.Period > 0:
		return fantasy.GameInProgress
	default:
		return fantasy.GameScheduled
	}
}

// Observed converts the card into an observation for reconciliation.
func (g LiveGame) Observed() reconciliation.ObservedGame {
	return reconciliation.ObservedGame{
		HomeTeam:  g.HomeTeam,
		AwayTeam:  g.AwayTeam,
		Status:    g.Status(),
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
	}
}
