package store

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/fortuna/juno/internal/fantasy"
)

// Team represents an NBA franchise
type Team struct {
	TeamID       int            `json:"team_id" db:"team_id"`
	ExternalID   string         `json:"external_id" db:"external_id"`
	Abbreviation string         `json:"abbreviation" db:"abbreviation"`
	FullName     string         `json:"full_name" db:"full_name"`
	ShortName    string         `json:"short_name" db:"short_name"`
	Conference   sql.NullString `json:"conference,omitempty" db:"conference"`
	Division     sql.NullString `json:"division,omitempty" db:"division"`
	IsActive     bool           `json:"is_active" db:"is_active"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Player represents an NBA player as known to the statistics provider
type Player struct {
	PlayerID          int            `json:"player_id" db:"player_id"`
	ExternalID        sql.NullString `json:"external_id,omitempty" db:"external_id"`
	FirstName         sql.NullString `json:"first_name,omitempty" db:"first_name"`
	LastName          string         `json:"last_name" db:"last_name"`
	FullName          string         `json:"full_name" db:"full_name"`
	Position          sql.NullString `json:"position,omitempty" db:"position"`
	EligiblePositions pq.StringArray `json:"eligible_positions" db:"eligible_positions"`
	TeamID            sql.NullInt32  `json:"team_id,omitempty" db:"team_id"`
	JerseyNumber      sql.NullString `json:"jersey_number,omitempty" db:"jersey_number"`
	Status            sql.NullString `json:"status,omitempty" db:"status"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// Game represents an NBA game
type Game struct {
	GameID     int            `json:"game_id" db:"game_id"`
	ExternalID string         `json:"external_id" db:"external_id"`
	Season     string         `json:"season" db:"season"`
	GameDate   time.Time      `json:"game_date" db:"game_date"`
	GameTime   sql.NullTime   `json:"game_time,omitempty" db:"game_time"`
	HomeTeamID int            `json:"home_team_id" db:"home_team_id"`
	AwayTeamID int            `json:"away_team_id" db:"away_team_id"`
	HomeScore  sql.NullInt32  `json:"home_score,omitempty" db:"home_score"`
	AwayScore  sql.NullInt32  `json:"away_score,omitempty" db:"away_score"`
	Status     string         `json:"status" db:"status"`
	GameType   string         `json:"game_type" db:"game_type"`
	Period     sql.NullInt32  `json:"period,omitempty" db:"period"`
	Clock      sql.NullString `json:"clock,omitempty" db:"clock"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// IsFinal reports whether the box score for the game is complete.
func (g *Game) IsFinal() bool {
	return fantasy.GameStatus(g.Status) == fantasy.GameFinal
}

// TeamGame is a game seen from one team, with abbreviations resolved.
type TeamGame struct {
	Game
	TeamAbbr     string `json:"team"`
	OpponentAbbr string `json:"opponent"`
}

// Scheduled converts the row into the engine's schedule entry.
func (g *TeamGame) Scheduled() fantasy.ScheduledGame {
	return fantasy.ScheduledGame{
		GameID:   g.ExternalID,
		Date:     fantasy.Day(g.GameDate),
		Team:     g.TeamAbbr,
		Opponent: g.OpponentAbbr,
		Status:   fantasy.GameStatus(g.Status),
		Type:     fantasy.GameType(g.GameType),
	}
}

// PlayerGameStats represents player stats for a single game
type PlayerGameStats struct {
	ID                     int             `json:"id" db:"id"`
	GameID                 int             `json:"game_id" db:"game_id"`
	PlayerID               int             `json:"player_id" db:"player_id"`
	TeamID                 int             `json:"team_id" db:"team_id"`
	Points                 int             `json:"points" db:"points"`
	Rebounds               int             `json:"rebounds" db:"rebounds"`
	Assists                int             `json:"assists" db:"assists"`
	Steals                 int             `json:"steals" db:"steals"`
	Blocks                 int             `json:"blocks" db:"blocks"`
	Turnovers              int             `json:"turnovers" db:"turnovers"`
	FieldGoalsMade         int             `json:"field_goals_made" db:"field_goals_made"`
	FieldGoalsAttempted    int             `json:"field_goals_attempted" db:"field_goals_attempted"`
	ThreePointersMade      int             `json:"three_pointers_made" db:"three_pointers_made"`
	ThreePointersAttempted int             `json:"three_pointers_attempted" db:"three_pointers_attempted"`
	FreeThrowsMade         int             `json:"free_throws_made" db:"free_throws_made"`
	FreeThrowsAttempted    int             `json:"free_throws_attempted" db:"free_throws_attempted"`
	MinutesPlayed          sql.NullFloat64 `json:"minutes_played,omitempty" db:"minutes_played"`
	PlusMinus              sql.NullInt32   `json:"plus_minus,omitempty" db:"plus_minus"`
	UsageRate              sql.NullFloat64 `json:"usage_rate,omitempty" db:"usage_rate"`
	Starter                bool            `json:"starter" db:"starter"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

// Line converts the box score into an engine stat line.
func (s *PlayerGameStats) Line() fantasy.Line {
	return fantasy.Line{
		Points:     float64(s.Points),
		Rebounds:   float64(s.Rebounds),
		Assists:    float64(s.Assists),
		Steals:     float64(s.Steals),
		Blocks:     float64(s.Blocks),
		Turnovers:  float64(s.Turnovers),
		FGMade:     float64(s.FieldGoalsMade),
		FGAtt:      float64(s.FieldGoalsAttempted),
		ThreesMade: float64(s.ThreePointersMade),
		ThreesAtt:  float64(s.ThreePointersAttempted),
		FTMade:     float64(s.FreeThrowsMade),
		FTAtt:      float64(s.FreeThrowsAttempted),
		Minutes:    s.MinutesPlayed.Float64,
		PlusMinus:  float64(s.PlusMinus.Int32),
	}
}

// FantasyLeague is a head-to-head categories league imported from the
// league provider.
type FantasyLeague struct {
	LeagueKey   string    `json:"league_key" db:"league_key"`
	Name        string    `json:"name" db:"name"`
	Season      string    `json:"season" db:"season"`
	NumTeams    int       `json:"num_teams" db:"num_teams"`
	CurrentWeek int       `json:"current_week" db:"current_week"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// LeagueCategory is one scoring category of a league.
type LeagueCategory struct {
	LeagueKey   string `json:"league_key" db:"league_key"`
	CategoryID  string `json:"category_id" db:"category_id"`
	Name        string `json:"name" db:"name"`
	Stat        string `json:"stat" db:"stat"`
	Kind        string `json:"kind" db:"kind"`
	DisplayOnly bool   `json:"display_only" db:"display_only"`
	SortOrder   int    `json:"sort_order" db:"sort_order"`
}

// Category converts the row into the engine's tagged category.
func (c *LeagueCategory) Category() (fantasy.Category, error) {
	kind, err := fantasy.ParseCategoryKind(c.Kind)
	if err != nil {
		return fantasy.Category{}, err
	}
	cat := fantasy.Category{
		ID:          c.CategoryID,
		Name:        c.Name,
		Stat:        fantasy.Stat(c.Stat),
		Kind:        kind,
		DisplayOnly: c.DisplayOnly,
	}
	return cat, cat.Validate()
}

// FantasyTeam is one manager's team in a league.
type FantasyTeam struct {
	TeamKey   string         `json:"team_key" db:"team_key"`
	LeagueKey string         `json:"league_key" db:"league_key"`
	Name      string         `json:"name" db:"name"`
	Manager   sql.NullString `json:"manager,omitempty" db:"manager"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Matchup pairs two fantasy teams for one scoring week.
type Matchup struct {
	MatchupID int       `json:"matchup_id" db:"matchup_id"`
	LeagueKey string    `json:"league_key" db:"league_key"`
	Week      int       `json:"week" db:"week"`
	WeekStart time.Time `json:"week_start" db:"week_start"`
	WeekEnd   time.Time `json:"week_end" db:"week_end"`
	TeamA     string    `json:"team_a" db:"team_a"`
	TeamB     string    `json:"team_b" db:"team_b"`
}

// RosterAssignment places one player in one slot on one date.
type RosterAssignment struct {
	TeamKey           string         `json:"team_key" db:"team_key"`
	RosterDate        time.Time      `json:"roster_date" db:"roster_date"`
	PlayerID          int            `json:"player_id" db:"player_id"`
	PlayerName        string         `json:"player_name" db:"player_name"`
	Slot              string         `json:"slot" db:"slot"`
	EligiblePositions pq.StringArray `json:"eligible_positions" db:"eligible_positions"`
}

// Entry converts the row into an engine roster entry.
func (a *RosterAssignment) Entry() fantasy.RosterEntry {
	eligible := make([]fantasy.Position, len(a.EligiblePositions))
	for i, p := range a.EligiblePositions {
		eligible[i] = fantasy.Position(p)
	}
	return fantasy.RosterEntry{
		PlayerID: fantasy.PlayerID(a.PlayerID),
		Name:     a.PlayerName,
		Slot:     fantasy.Slot(a.Slot),
		Eligible: eligible,
	}
}
