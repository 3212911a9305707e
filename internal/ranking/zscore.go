// Package ranking orders a player pool by composite 9-category z-score value.
package ranking

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/fortuna/juno/internal/fantasy"
)

// DefaultMaxRank caps the ranked list when the caller does not choose.
const DefaultMaxRank = 150

// stdDevFloor is the smallest spread treated as real variance.
const stdDevFloor = 1e-9

// countingStats are z-scored on their raw value.
var countingStats = []fantasy.Stat{
	fantasy.StatThreesMade,
	fantasy.StatPoints,
	fantasy.StatRebounds,
	fantasy.StatAssists,
	fantasy.StatSteals,
	fantasy.StatBlocks,
	fantasy.StatTurnovers,
}

// Candidate is one player in the ranking pool.
type Candidate struct {
	PlayerID fantasy.PlayerID `json:"player_id"`
	Name     string           `json:"name"`
	Snapshot fantasy.Snapshot `json:"snapshot"`
}

// Ranked is a candidate with its z-scores and composite value.
type Ranked struct {
	Rank      int                      `json:"rank"`
	PlayerID  fantasy.PlayerID         `json:"player_id"`
	Name      string                   `json:"name"`
	Composite float64                  `json:"composite"`
	Z         map[fantasy.Stat]float64 `json:"z_scores"`
	FGImpact  float64                  `json:"fg_impact"`
	FTImpact  float64                  `json:"ft_impact"`
	Snapshot  fantasy.Snapshot         `json:"snapshot"`
}

// Options tunes a ranking pass.
type Options struct {
	// MaxRank truncates the result; zero or negative means DefaultMaxRank.
	MaxRank int
}

// Rank computes per-category z-scores across the pool and orders players by
// their composite value, highest first. The turnover z-score is subtracted
// from the composite. FG% and FT% are scored by impact, makes minus attempts
// times the pool's percentage, so volume counts. Ties go to the lower id.
func Rank(pool []Candidate, opts Options) []Ranked {
	if len(pool) == 0 {
		return nil
	}

	out := make([]Ranked, len(pool))
	for i, c := range pool {
		out[i] = Ranked{
			PlayerID: c.PlayerID,
			Name:     c.Name,
			Z:        make(map[fantasy.Stat]float64, len(countingStats)+2),
			Snapshot: c.Snapshot,
		}
	}

	values := make([]float64, len(pool))
	for _, s := range countingStats {
		for i, c := range pool {
			values[i] = c.Snapshot.Value(s)
		}
		for i, z := range zScores(values) {
			out[i].Z[s] = z
		}
	}

	fg := impacts(pool, func(l fantasy.Line) (float64, float64) { return l.FGMade, l.FGAtt })
	ft := impacts(pool, func(l fantasy.Line) (float64, float64) { return l.FTMade, l.FTAtt })
	fgZ, ftZ := zScores(fg), zScores(ft)

	for i := range out {
		out[i].FGImpact = fg[i]
		out[i].FTImpact = ft[i]
		out[i].Z[fantasy.StatFGPct] = fgZ[i]
		out[i].Z[fantasy.StatFTPct] = ftZ[i]

		var composite float64
		for _, s := range countingStats {
			if s == fantasy.StatTurnovers {
				composite -= out[i].Z[s]
				continue
			}
			composite += out[i].Z[s]
		}
		out[i].Composite = composite + fgZ[i] + ftZ[i]
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Composite != out[b].Composite {
			return out[a].Composite > out[b].Composite
		}
		return out[a].PlayerID < out[b].PlayerID
	})

	limit := opts.MaxRank
	if limit <= 0 {
		limit = DefaultMaxRank
	}
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// impacts returns makes - attempts*poolPct for every candidate.
func impacts(pool []Candidate, shots func(fantasy.Line) (made, att float64)) []float64 {
	made := make([]float64, len(pool))
	att := make([]float64, len(pool))
	for i, c := range pool {
		made[i], att[i] = shots(c.Snapshot.Line)
	}

	pct := fantasy.SafeDiv(floats.Sum(made), floats.Sum(att))
	out := make([]float64, len(pool))
	for i := range pool {
		out[i] = made[i] - att[i]*pct
	}
	return out
}

// zScores standardizes values against their population mean and standard
// deviation. A pool of one, or one without spread, scores zero everywhere.
func zScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) <= 1 {
		return out
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if std < stdDevFloor {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
