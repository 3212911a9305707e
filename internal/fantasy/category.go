package fantasy

import (
	"fmt"
	"strings"
)

// CategoryKind tags how a category is compared and aggregated.
type CategoryKind int

const (
	// CountingHigherBetter is a counting stat sorted descending (points, rebounds).
	CountingHigherBetter CategoryKind = iota
	// CountingLowerBetter is a counting stat sorted ascending (turnovers).
	CountingLowerBetter
	// Ratio is a percentage tracked as makes over attempts. Higher is better.
	Ratio
)

func (k CategoryKind) String() string {
	switch k {
	case CountingHigherBetter:
		return "counting_desc"
	case CountingLowerBetter:
		return "counting_asc"
	case Ratio:
		return "ratio"
	default:
		return fmt.Sprintf("CategoryKind(%d)", int(k))
	}
}

// ParseCategoryKind converts the stored representation back to a kind.
func ParseCategoryKind(s string) (CategoryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "counting_desc":
		return CountingHigherBetter, nil
	case "counting_asc":
		return CountingLowerBetter, nil
	case "ratio":
		return Ratio, nil
	}
	return 0, fmt.Errorf("%w: kind %q", ErrUnknownCategory, s)
}

// Category is one league scoring category.
type Category struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Stat        Stat         `json:"stat"`
	Kind        CategoryKind `json:"kind"`
	DisplayOnly bool         `json:"display_only,omitempty"`
}

// LowerIsBetter reports whether a smaller total wins the category.
func (c Category) LowerIsBetter() bool {
	return c.Kind == CountingLowerBetter
}

// Value extracts the category value from a stat line.
func (c Category) Value(l Line) float64 {
	return l.Value(c.Stat)
}

// Validate checks that the kind and stat agree.
func (c Category) Validate() error {
	switch c.Kind {
	case Ratio:
		if !c.Stat.IsRatio() {
			return fmt.Errorf("%w: %s is not a percentage stat", ErrUnknownCategory, c.Stat)
		}
	case CountingHigherBetter, CountingLowerBetter:
		if c.Stat.IsRatio() {
			return fmt.Errorf("%w: %s is a percentage stat", ErrUnknownCategory, c.Stat)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCategory, c.Kind)
	}
	return nil
}

// NineCategories returns the standard 9-cat scoring set keyed by the
// league provider's stat ids.
func NineCategories() []Category {
	return []Category{
		{ID: "5", Name: "FG%", Stat: StatFGPct, Kind: Ratio},
		{ID: "8", Name: "FT%", Stat: StatFTPct, Kind: Ratio},
		{ID: "10", Name: "3PTM", Stat: StatThreesMade, Kind: CountingHigherBetter},
		{ID: "12", Name: "PTS", Stat: StatPoints, Kind: CountingHigherBetter},
		{ID: "15", Name: "REB", Stat: StatRebounds, Kind: CountingHigherBetter},
		{ID: "16", Name: "AST", Stat: StatAssists, Kind: CountingHigherBetter},
		{ID: "17", Name: "ST", Stat: StatSteals, Kind: CountingHigherBetter},
		{ID: "18", Name: "BLK", Stat: StatBlocks, Kind: CountingHigherBetter},
		{ID: "19", Name: "TO", Stat: StatTurnovers, Kind: CountingLowerBetter},
	}
}

// ScoringCategories drops display-only categories.
func ScoringCategories(cats []Category) []Category {
	out := make([]Category, 0, len(cats))
	for _, c := range cats {
		if !c.DisplayOnly {
			out = append(out, c)
		}
	}
	return out
}
