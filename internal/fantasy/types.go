package fantasy

import (
	"context"
	"time"
)

// DateLayout is the calendar-date format used in keys, URLs and logs.
const DateLayout = "2006-01-02"

// PlayerID is the statistics provider's player identifier.
type PlayerID int

// Day truncates t to its calendar date, keeping the year/month/day that t
// shows in its own location and expressing it as UTC midnight.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats the calendar date of t.
func DateKey(t time.Time) string {
	return Day(t).Format(DateLayout)
}

// DatesBetween returns every calendar date from start to end inclusive.
func DatesBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// GameRecord is one player's finalized statistical line for one date.
type GameRecord struct {
	PlayerID PlayerID  `json:"player_id"`
	GameID   string    `json:"game_id"`
	Date     time.Time `json:"date"`
	Team     string    `json:"team,omitempty"`
	Line
	// UsageRate is a fraction in [0,1]; zero when the provider did not report it.
	UsageRate float64 `json:"usage_rate"`
	Starter   bool    `json:"starter"`
}

// GameStatus is the lifecycle state of a scheduled game.
type GameStatus string

const (
	GameScheduled  GameStatus = "scheduled"
	GameInProgress GameStatus = "in_progress"
	GameFinal      GameStatus = "final"
	GamePostponed  GameStatus = "postponed"
	GameCancelled  GameStatus = "cancelled"
)

// Played reports whether the game is off the calendar for counting purposes.
func (s GameStatus) Played() bool {
	return s != GamePostponed && s != GameCancelled
}

// ScheduledGame is a team's game on a date as seen from one player.
type ScheduledGame struct {
	GameID   string     `json:"game_id"`
	Date     time.Time  `json:"date"`
	Team     string     `json:"team"`
	Opponent string     `json:"opponent"`
	Status   GameStatus `json:"status"`
	Type     GameType   `json:"game_type"`
}

// Snapshot is a player's aggregated statistics over one window.
type Snapshot struct {
	PlayerID  PlayerID  `json:"player_id"`
	Window    Window    `json:"window"`
	Reduction Reduction `json:"reduction"`
	AsOf      time.Time `json:"as_of"`
	Line

	FGPct       float64 `json:"fg_pct"`
	ThreePct    float64 `json:"three_pct"`
	FTPct       float64 `json:"ft_pct"`
	UsagePct    float64 `json:"usage_pct"`
	NoFGAtt     bool    `json:"no_fg_attempts,omitempty"`
	NoThreesAtt bool    `json:"no_three_attempts,omitempty"`
	NoFTAtt     bool    `json:"no_ft_attempts,omitempty"`
	NoUsage     bool    `json:"no_usage,omitempty"`

	GamesCount   int       `json:"games_count"`
	GamesStarted int       `json:"games_started"`
	LastGameDate time.Time `json:"last_game_date,omitempty"`

	MinutesTrend    float64 `json:"minutes_trend"`
	HasMinutesTrend bool    `json:"has_minutes_trend"`
}

// Window selects which of a player's games feed a snapshot.
type Window string

const (
	WindowLast    Window = "last"
	WindowLast3   Window = "last3"
	WindowLast7   Window = "last7"
	WindowLast7d  Window = "last7d"
	WindowLast14d Window = "last14d"
	WindowLast30d Window = "last30d"
	WindowSeason  Window = "season"
)

// Reduction selects how qualifying games are combined.
type Reduction string

const (
	ReductionSum Reduction = "sum"
	ReductionAvg Reduction = "avg"
	// ReductionLiteral is reported for the single-game window, which is
	// never summed or averaged.
	ReductionLiteral Reduction = "literal"
)

// RosterEntry places one player in one slot for a day.
type RosterEntry struct {
	PlayerID PlayerID   `json:"player_id"`
	Name     string     `json:"name"`
	Slot     Slot       `json:"slot"`
	Eligible []Position `json:"eligible_positions"`
}

// RosterDay is a fantasy team's assignment for one date. Slots lists the
// league's roster positions; an empty list means "derive from Entries".
type RosterDay struct {
	TeamKey string        `json:"team_key"`
	Date    time.Time     `json:"date"`
	Slots   []Slot        `json:"slots,omitempty"`
	Entries []RosterEntry `json:"entries"`
}

// Player returns the entry for id, if present.
func (d RosterDay) Player(id PlayerID) (RosterEntry, bool) {
	for _, e := range d.Entries {
		if e.PlayerID == id {
			return e, true
		}
	}
	return RosterEntry{}, false
}

// DataSource supplies the already-fetched upstream data the engine reads.
// Implementations own all I/O; the engine only calls these methods.
type DataSource interface {
	// GetGameRecords returns the player's finalized game records dated on or
	// before through, ordered by date ascending.
	GetGameRecords(ctx context.Context, player PlayerID, through time.Time) ([]GameRecord, error)
	// GetSchedule returns the player's team games between start and end inclusive.
	GetSchedule(ctx context.Context, player PlayerID, start, end time.Time) ([]ScheduledGame, error)
	// GetRosterAssignment returns the team's published assignment for date.
	// A date with no published assignment yields a RosterDay with no entries.
	GetRosterAssignment(ctx context.Context, teamKey string, date time.Time) (RosterDay, error)
}
