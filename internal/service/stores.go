package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

// The services read through these narrow views of the repositories so they
// can be exercised against in-memory fakes.

// PlayerStore is the player data the services need
type PlayerStore interface {
	GetByID(ctx context.Context, playerID int) (*store.Player, error)
	GetByIDs(ctx context.Context, ids []int) ([]*store.Player, error)
	Search(ctx context.Context, term string, limit int) ([]*store.Player, error)
	GetActive(ctx context.Context) ([]*store.Player, error)
	GetWithGamesSince(ctx context.Context, since sql.NullTime) ([]*store.Player, error)
}

// GameStore is the game data the services need
type GameStore interface {
	GetByDate(ctx context.Context, date time.Time) ([]*store.Game, error)
	GetTeamSchedule(ctx context.Context, teamID int, start, end time.Time) ([]*store.TeamGame, error)
}

// TeamStore is the NBA team data the services need
type TeamStore interface {
	GetByID(ctx context.Context, teamID int) (*store.Team, error)
	GetByAbbreviation(ctx context.Context, abbr string) (*store.Team, error)
}

// StatsStore is the box score data the services need
type StatsStore interface {
	GetPlayerRecords(ctx context.Context, playerID int, through time.Time, gameTypes []string) ([]fantasy.GameRecord, error)
	GetPlayerGameLog(ctx context.Context, playerID int, limit int) ([]*repository.GameLogEntry, error)
}

// LeagueStore is the fantasy league data the services need
type LeagueStore interface {
	GetLeague(ctx context.Context, leagueKey string) (*store.FantasyLeague, error)
	ListLeagues(ctx context.Context) ([]*store.FantasyLeague, error)
	UpsertLeague(ctx context.Context, l *store.FantasyLeague) error
	GetCategories(ctx context.Context, leagueKey string) ([]fantasy.Category, error)
	ReplaceCategories(ctx context.Context, leagueKey string, cats []fantasy.Category) error
	GetSlots(ctx context.Context, leagueKey string) ([]fantasy.Slot, error)
	ReplaceSlots(ctx context.Context, leagueKey string, slots []fantasy.Slot) error
	GetTeam(ctx context.Context, teamKey string) (*store.FantasyTeam, error)
	GetTeams(ctx context.Context, leagueKey string) ([]*store.FantasyTeam, error)
	UpsertTeam(ctx context.Context, t *store.FantasyTeam) error
	GetMatchups(ctx context.Context, leagueKey string, week int) ([]*store.Matchup, error)
	GetMatchupForTeam(ctx context.Context, teamKey string, week int) (*store.Matchup, error)
	UpsertMatchup(ctx context.Context, m *store.Matchup) error
	GetRosterAssignment(ctx context.Context, teamKey string, date time.Time) ([]*store.RosterAssignment, error)
	ReplaceRosterAssignment(ctx context.Context, teamKey string, date time.Time, entries []fantasy.RosterEntry) error
}

// SnapshotStore memoizes aggregated snapshots
type SnapshotStore interface {
	Get(ctx context.Context, player fantasy.PlayerID, window fantasy.Window, reduction fantasy.Reduction, asOf time.Time) (fantasy.Snapshot, bool, bool, error)
	Put(ctx context.Context, reduction fantasy.Reduction, snap fantasy.Snapshot, hasData bool) error
}

// Stores bundles the repositories behind the services
type Stores struct {
	Players PlayerStore
	Games   GameStore
	Teams   TeamStore
	Stats   StatsStore
	Leagues LeagueStore
}

// NewStores builds the Postgres-backed repositories
func NewStores(db *store.Database) Stores {
	return Stores{
		Players: repository.NewPlayerRepository(db),
		Games:   repository.NewGameRepository(db),
		Teams:   repository.NewTeamRepository(db),
		Stats:   repository.NewStatsRepository(db),
		Leagues: repository.NewLeagueRepository(db),
	}
}
