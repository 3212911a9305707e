package matchup

import (
	"context"
	"fmt"
	"math"

	"github.com/fortuna/juno/internal/fantasy"
)

// tieEpsilon is the margin under which two category totals are level.
const tieEpsilon = 0.001

// Outcome is a single category result from the evaluated team's side.
type Outcome string

const (
	Win  Outcome = "W"
	Loss Outcome = "L"
	Tie  Outcome = "T"
)

// CategoryResult compares one category between two teams.
type CategoryResult struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name"`
	Own        float64 `json:"own"`
	Opponent   float64 `json:"opponent"`
	Margin     float64 `json:"margin"`
	Outcome    Outcome `json:"outcome"`
}

// Points is a head-to-head category score.
type Points struct {
	Wins       int              `json:"wins"`
	Losses     int              `json:"losses"`
	Ties       int              `json:"ties"`
	Categories []CategoryResult `json:"categories"`
}

// Total is the number of categories won.
func (p Points) Total() int {
	return p.Wins
}

// ProjectedPoints scores two stat lines category by category. Totals within
// tieEpsilon are level; a level percentage category goes to the side with
// more attempts. Display-only categories are skipped.
func ProjectedPoints(cats []fantasy.Category, own, opp fantasy.Line) Points {
	var out Points
	for _, c := range fantasy.ScoringCategories(cats) {
		o, p := c.Value(own), c.Value(opp)
		res := CategoryResult{CategoryID: c.ID, Name: c.Name, Own: o, Opponent: p, Margin: Margin(c, o, p)}

		switch {
		case res.Margin > tieEpsilon:
			res.Outcome = Win
		case res.Margin < -tieEpsilon:
			res.Outcome = Loss
		default:
			res.Outcome = volumeTiebreak(c, own, opp)
		}

		switch res.Outcome {
		case Win:
			out.Wins++
		case Loss:
			out.Losses++
		default:
			out.Ties++
		}
		out.Categories = append(out.Categories, res)
	}
	return out
}

func volumeTiebreak(c fantasy.Category, own, opp fantasy.Line) Outcome {
	if c.Kind != fantasy.Ratio {
		return Tie
	}
	_, att, ok := c.Stat.RatioParts()
	if !ok {
		return Tie
	}
	a, b := own.Value(att), opp.Value(att)
	switch {
	case math.Abs(a-b) <= tieEpsilon:
		return Tie
	case a > b:
		return Win
	default:
		return Loss
	}
}

// MatchupRequest projects two teams over the same week.
type MatchupRequest struct {
	Home TeamRequest
	Away TeamRequest
}

// MatchupProjection holds both projections and the category scores on
// current and projected totals, from the home side.
type MatchupProjection struct {
	Home            TeamProjection `json:"home"`
	Away            TeamProjection `json:"away"`
	CurrentPoints   Points         `json:"current_points"`
	ProjectedPoints Points         `json:"projected_points"`
}

// ProjectMatchup projects both teams and scores the result. The away request
// inherits the home week, mode, categories and game types when it leaves them
// unset.
func ProjectMatchup(ctx context.Context, ds fantasy.DataSource, req MatchupRequest) (MatchupProjection, error) {
	away := req.Away
	if away.WeekStart.IsZero() {
		away.WeekStart, away.WeekEnd = req.Home.WeekStart, req.Home.WeekEnd
	}
	if away.Today.IsZero() {
		away.Today = req.Home.Today
	}
	if away.Mode == "" {
		away.Mode = req.Home.Mode
	}
	if away.Categories == nil {
		away.Categories = req.Home.Categories
	}
	if away.GameTypes == (fantasy.GameTypeSettings{}) {
		away.GameTypes = req.Home.GameTypes
	}

	home, err := Project(ctx, ds, req.Home)
	if err != nil {
		return MatchupProjection{}, fmt.Errorf("projecting %s: %w", req.Home.TeamKey, err)
	}
	opp, err := Project(ctx, ds, away)
	if err != nil {
		return MatchupProjection{}, fmt.Errorf("projecting %s: %w", away.TeamKey, err)
	}

	return MatchupProjection{
		Home:            home,
		Away:            opp,
		CurrentPoints:   ProjectedPoints(req.Home.Categories, home.Current, opp.Current),
		ProjectedPoints: ProjectedPoints(req.Home.Categories, home.Projected, opp.Projected),
	}, nil
}
