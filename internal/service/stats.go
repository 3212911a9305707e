package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/stats"
	"github.com/fortuna/juno/internal/store"
)

// DataSource is the repository-backed fantasy.DataSource. It also serves
// snapshots through the snapshot memo when one is configured, which makes it
// a matchup.SnapshotSource.
//
// Player rows and league slot lists are memoized for the lifetime of the
// value, so build one per request or per job.
type DataSource struct {
	stores    Stores
	snapshots SnapshotStore
	gameTypes []string
	log       *logrus.Entry

	mu      sync.Mutex
	players map[fantasy.PlayerID]*store.Player
	slots   map[string][]fantasy.Slot
}

// NewDataSource creates a data source. snapshots may be nil.
func NewDataSource(stores Stores, settings fantasy.GameTypeSettings, snapshots SnapshotStore, log *logrus.Entry) *DataSource {
	counted := settings.Counted()
	types := make([]string, len(counted))
	for i, t := range counted {
		types[i] = string(t)
	}
	return &DataSource{
		stores:    stores,
		snapshots: snapshots,
		gameTypes: types,
		log:       log,
		players:   make(map[fantasy.PlayerID]*store.Player),
		slots:     make(map[string][]fantasy.Slot),
	}
}

// GetGameRecords returns the player's finalized records through a date
func (d *DataSource) GetGameRecords(ctx context.Context, player fantasy.PlayerID, through time.Time) ([]fantasy.GameRecord, error) {
	records, err := d.stores.Stats.GetPlayerRecords(ctx, int(player), through, d.gameTypes)
	if err != nil {
		return nil, fmt.Errorf("loading records for player %d: %w", player, err)
	}
	return records, nil
}

// GetSchedule returns the games of the player's current NBA team. A free
// agent has no schedule.
func (d *DataSource) GetSchedule(ctx context.Context, player fantasy.PlayerID, start, end time.Time) ([]fantasy.ScheduledGame, error) {
	p, err := d.player(ctx, player)
	if err != nil {
		return nil, err
	}
	if !p.TeamID.Valid {
		return nil, nil
	}

	games, err := d.stores.Games.GetTeamSchedule(ctx, int(p.TeamID.Int32), start, end)
	if err != nil {
		return nil, fmt.Errorf("loading schedule for player %d: %w", player, err)
	}

	out := make([]fantasy.ScheduledGame, len(games))
	for i, g := range games {
		out[i] = g.Scheduled()
	}
	return out, nil
}

// GetRosterAssignment returns the team's published lineup for a date along
// with the league's roster positions
func (d *DataSource) GetRosterAssignment(ctx context.Context, teamKey string, date time.Time) (fantasy.RosterDay, error) {
	slots, err := d.leagueSlots(ctx, teamKey)
	if err != nil {
		return fantasy.RosterDay{}, err
	}

	rows, err := d.stores.Leagues.GetRosterAssignment(ctx, teamKey, date)
	if err != nil {
		return fantasy.RosterDay{}, fmt.Errorf("loading roster for %s: %w", teamKey, err)
	}

	day := fantasy.RosterDay{TeamKey: teamKey, Date: fantasy.Day(date), Slots: slots}
	for _, row := range rows {
		day.Entries = append(day.Entries, row.Entry())
	}
	return day, nil
}

// GetSnapshot aggregates a player's records, reading and filling the memo
func (d *DataSource) GetSnapshot(ctx context.Context, player fantasy.PlayerID, window fantasy.Window, reduction fantasy.Reduction, asOf time.Time) (fantasy.Snapshot, bool, error) {
	asOf = fantasy.Day(asOf)
	if d.snapshots != nil {
		snap, hasData, found, err := d.snapshots.Get(ctx, player, window, reduction, asOf)
		if err != nil {
			d.log.WithError(err).WithField("player_id", player).Warn("Snapshot cache read failed")
		} else if found {
			return snap, hasData, nil
		}
	}

	records, err := d.GetGameRecords(ctx, player, asOf)
	if err != nil {
		return fantasy.Snapshot{}, false, err
	}
	snap, hasData, err := stats.Aggregate(player, records, window, reduction, asOf)
	if err != nil {
		return fantasy.Snapshot{}, false, err
	}

	if d.snapshots != nil {
		if err := d.snapshots.Put(ctx, reduction, snap, hasData); err != nil {
			d.log.WithError(err).WithField("player_id", player).Warn("Snapshot cache write failed")
		}
	}
	return snap, hasData, nil
}

func (d *DataSource) player(ctx context.Context, id fantasy.PlayerID) (*store.Player, error) {
	d.mu.Lock()
	p, ok := d.players[id]
	d.mu.Unlock()
	if ok {
		return p, nil
	}

	p, err := d.stores.Players.GetByID(ctx, int(id))
	if err != nil {
		return nil, fmt.Errorf("loading player %d: %w", id, err)
	}

	d.mu.Lock()
	d.players[id] = p
	d.mu.Unlock()
	return p, nil
}

func (d *DataSource) leagueSlots(ctx context.Context, teamKey string) ([]fantasy.Slot, error) {
	d.mu.Lock()
	slots, ok := d.slots[teamKey]
	d.mu.Unlock()
	if ok {
		return slots, nil
	}

	team, err := d.stores.Leagues.GetTeam(ctx, teamKey)
	if err != nil {
		return nil, fmt.Errorf("loading fantasy team: %w", err)
	}
	slots, err = d.stores.Leagues.GetSlots(ctx, team.LeagueKey)
	if err != nil {
		return nil, fmt.Errorf("loading league slots: %w", err)
	}

	d.mu.Lock()
	d.slots[teamKey] = slots
	d.mu.Unlock()
	return slots, nil
}
