package fantasy

// GameType classifies a game on the NBA calendar.
type GameType string

const (
	GameRegularSeason GameType = "regular_season"
	GamePreseason     GameType = "preseason"
	GameAllStar       GameType = "all_star"
	GamePlayIn        GameType = "play_in"
	GamePlayoffs      GameType = "playoffs"
	GameCupGroup      GameType = "cup_group"
	GameCupKnockout   GameType = "cup_knockout"
	GameCupFinal      GameType = "cup_final"
	GameGlobal        GameType = "global"
)

// GameTypeSettings controls which kinds of games count toward fantasy totals.
type GameTypeSettings struct {
	RegularSeason bool `mapstructure:"regular_season" json:"regular_season"`
	Preseason     bool `mapstructure:"preseason" json:"preseason"`
	AllStar       bool `mapstructure:"all_star" json:"all_star"`
	PlayIn        bool `mapstructure:"play_in" json:"play_in"`
	Playoffs      bool `mapstructure:"playoffs" json:"playoffs"`
	CupGroup      bool `mapstructure:"cup_group" json:"cup_group"`
	CupKnockout   bool `mapstructure:"cup_knockout" json:"cup_knockout"`
	CupFinal      bool `mapstructure:"cup_final" json:"cup_final"`
	Global        bool `mapstructure:"global" json:"global"`
}

// DefaultGameTypeSettings counts regular-season games, NBA Cup group and
// knockout games and international regular-season games. The Cup final is
// excluded because it does not count toward regular-season stats.
func DefaultGameTypeSettings() GameTypeSettings {
	return GameTypeSettings{
		RegularSeason: true,
		CupGroup:      true,
		CupKnockout:   true,
		Global:        true,
	}
}

// Counts reports whether games of type t contribute to fantasy totals.
// An unknown or empty type is treated as a regular-season game.
func (s GameTypeSettings) Counts(t GameType) bool {
	switch t {
	case GamePreseason:
		return s.Preseason
	case GameAllStar:
		return s.AllStar
	case GamePlayIn:
		return s.PlayIn
	case GamePlayoffs:
		return s.Playoffs
	case GameCupGroup:
		return s.CupGroup
	case GameCupKnockout:
		return s.CupKnockout
	case GameCupFinal:
		return s.CupFinal
	case GameGlobal:
		return s.Global
	default:
		return s.RegularSeason
	}
}

// Validate rejects settings under which no game would ever count.
func (s GameTypeSettings) Validate() error {
	if s == (GameTypeSettings{}) {
		return ErrNoCountedGameTypes
	}
	return nil
}

// Counted lists the game types that contribute, in a fixed order.
func (s GameTypeSettings) Counted() []GameType {
	all := []GameType{
		GameRegularSeason, GamePreseason, GameAllStar, GamePlayIn, GamePlayoffs,
		GameCupGroup, GameCupKnockout, GameCupFinal, GameGlobal,
	}
	var out []GameType
	for _, t := range all {
		if s.Counts(t) {
			out = append(out, t)
		}
	}
	return out
}
