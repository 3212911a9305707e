package fantasy

// Stat identifies a single box-score statistic.
type Stat string

const (
	StatPoints     Stat = "PTS"
	StatRebounds   Stat = "REB"
	StatAssists    Stat = "AST"
	StatSteals     Stat = "STL"
	StatBlocks     Stat = "BLK"
	StatTurnovers  Stat = "TO"
	StatThreesMade Stat = "3PM"
	StatThreesAtt  Stat = "3PA"
	StatFGMade     Stat = "FGM"
	StatFGAtt      Stat = "FGA"
	StatFTMade     Stat = "FTM"
	StatFTAtt      Stat = "FTA"
	StatMinutes    Stat = "MIN"
	StatFGPct      Stat = "FG%"
	StatFTPct      Stat = "FT%"
	StatThreePct   Stat = "3P%"
)

// ratioParts maps a percentage stat to its numerator and denominator.
var ratioParts = map[Stat][2]Stat{
	StatFGPct:    {StatFGMade, StatFGAtt},
	StatFTPct:    {StatFTMade, StatFTAtt},
	StatThreePct: {StatThreesMade, StatThreesAtt},
}

// IsRatio reports whether the stat is a percentage derived from makes and attempts.
func (s Stat) IsRatio() bool {
	_, ok := ratioParts[s]
	return ok
}

// RatioParts returns the makes and attempts stats behind a percentage stat.
func (s Stat) RatioParts() (made, attempted Stat, ok bool) {
	parts, ok := ratioParts[s]
	if !ok {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Line is a counting stat line. It is used both for a single game and for
// aggregated totals, so every field is a float.
type Line struct {
	Points     float64 `json:"points"`
	Rebounds   float64 `json:"rebounds"`
	Assists    float64 `json:"assists"`
	Steals     float64 `json:"steals"`
	Blocks     float64 `json:"blocks"`
	Turnovers  float64 `json:"turnovers"`
	FGMade     float64 `json:"fgm"`
	FGAtt      float64 `json:"fga"`
	ThreesMade float64 `json:"threes_made"`
	ThreesAtt  float64 `json:"threes_attempted"`
	FTMade     float64 `json:"ftm"`
	FTAtt      float64 `json:"fta"`
	Minutes    float64 `json:"minutes"`
	PlusMinus  float64 `json:"plus_minus"`
}

// Add returns the field-wise sum of two lines.
func (l Line) Add(o Line) Line {
	return Line{
		Points:     l.Points + o.Points,
		Rebounds:   l.Rebounds + o.Rebounds,
		Assists:    l.Assists + o.Assists,
		Steals:     l.Steals + o.Steals,
		Blocks:     l.Blocks + o.Blocks,
		Turnovers:  l.Turnovers + o.Turnovers,
		FGMade:     l.FGMade + o.FGMade,
		FGAtt:      l.FGAtt + o.FGAtt,
		ThreesMade: l.ThreesMade + o.ThreesMade,
		ThreesAtt:  l.ThreesAtt + o.ThreesAtt,
		FTMade:     l.FTMade + o.FTMade,
		FTAtt:      l.FTAtt + o.FTAtt,
		Minutes:    l.Minutes + o.Minutes,
		PlusMinus:  l.PlusMinus + o.PlusMinus,
	}
}

// Scale multiplies every field by f.
func (l Line) Scale(f float64) Line {
	return Line{
		Points:     l.Points * f,
		Rebounds:   l.Rebounds * f,
		Assists:    l.Assists * f,
		Steals:     l.Steals * f,
		Blocks:     l.Blocks * f,
		Turnovers:  l.Turnovers * f,
		FGMade:     l.FGMade * f,
		FGAtt:      l.FGAtt * f,
		ThreesMade: l.ThreesMade * f,
		ThreesAtt:  l.ThreesAtt * f,
		FTMade:     l.FTMade * f,
		FTAtt:      l.FTAtt * f,
		Minutes:    l.Minutes * f,
		PlusMinus:  l.PlusMinus * f,
	}
}

// Value returns the line's value for a stat. Percentages are recomputed from
// makes and attempts and are 0 when there were no attempts.
func (l Line) Value(s Stat) float64 {
	switch s {
	case StatPoints:
		return l.Points
	case StatRebounds:
		return l.Rebounds
	case StatAssists:
		return l.Assists
	case StatSteals:
		return l.Steals
	case StatBlocks:
		return l.Blocks
	case StatTurnovers:
		return l.Turnovers
	case StatThreesMade:
		return l.ThreesMade
	case StatThreesAtt:
		return l.ThreesAtt
	case StatFGMade:
		return l.FGMade
	case StatFGAtt:
		return l.FGAtt
	case StatFTMade:
		return l.FTMade
	case StatFTAtt:
		return l.FTAtt
	case StatMinutes:
		return l.Minutes
	}

	if made, att, ok := s.RatioParts(); ok {
		return SafeDiv(l.Value(made), l.Value(att))
	}
	return 0
}

// SafeDiv divides made by attempted, returning 0 when nothing was attempted.
func SafeDiv(made, attempted float64) float64 {
	if attempted == 0 {
		return 0
	}
	return made / attempted
}
