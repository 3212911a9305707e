package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/publisher"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

func day(d int) time.Time {
	return time.Date(2025, time.November, d, 0, 0, 0, 0, time.UTC)
}

type fakePlayers struct {
	byID map[int]*store.Player
}

func (f *fakePlayers) add(id, teamID int, name string) {
	if f.byID == nil {
		f.byID = make(map[int]*store.Player)
	}
	p := &store.Player{PlayerID: id, FullName: name}
	if teamID > 0 {
		p.TeamID = sql.NullInt32{Int32: int32(teamID), Valid: true}
	}
	f.byID[id] = p
}

func (f *fakePlayers) GetByID(_ context.Context, id int) (*store.Player, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("player %d: %w", id, store.ErrNotFound)
	}
	return p, nil
}

func (f *fakePlayers) GetByIDs(_ context.Context, ids []int) ([]*store.Player, error) {
	var out []*store.Player
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlayers) Search(_ context.Context, term string, limit int) ([]*store.Player, error) {
	var out []*store.Player
	for _, p := range f.sorted() {
		if strings.Contains(strings.ToLower(p.FullName), strings.ToLower(term)) && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlayers) GetActive(_ context.Context) ([]*store.Player, error) {
	return f.sorted(), nil
}

func (f *fakePlayers) GetWithGamesSince(_ context.Context, _ sql.NullTime) ([]*store.Player, error) {
	return f.sorted(), nil
}

func (f *fakePlayers) sorted() []*store.Player {
	out := make([]*store.Player, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

type fakeGames struct {
	schedule map[int][]*store.TeamGame
}

func (f *fakeGames) GetByDate(_ context.Context, _ time.Time) ([]*store.Game, error) {
	return nil, nil
}

func (f *fakeGames) GetTeamSchedule(_ context.Context, teamID int, start, end time.Time) ([]*store.TeamGame, error) {
	var out []*store.TeamGame
	for _, g := range f.schedule[teamID] {
		if !g.GameDate.Before(start) && !g.GameDate.After(end) {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeTeams struct{}

func (fakeTeams) GetByID(_ context.Context, id int) (*store.Team, error) {
	return &store.Team{TeamID: id, Abbreviation: fmt.Sprintf("T%d", id)}, nil
}

func (fakeTeams) GetByAbbreviation(_ context.Context, abbr string) (*store.Team, error) {
	return nil, fmt.Errorf("team %s: %w", abbr, store.ErrNotFound)
}

type fakeStats struct {
	records map[int][]fantasy.GameRecord
	calls   int
}

func (f *fakeStats) add(player, d int, line fantasy.Line) {
	if f.records == nil {
		f.records = make(map[int][]fantasy.GameRecord)
	}
	f.records[player] = append(f.records[player], fantasy.GameRecord{
		PlayerID: fantasy.PlayerID(player),
		GameID:   fmt.Sprintf("g%d-%d", player, d),
		Date:     day(d),
		Line:     line,
	})
}

func (f *fakeStats) GetPlayerRecords(_ context.Context, playerID int, through time.Time, _ []string) ([]fantasy.GameRecord, error) {
	f.calls++
	var out []fantasy.GameRecord
	for _, r := range f.records[playerID] {
		if !r.Date.After(fantasy.Day(through)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStats) GetPlayerGameLog(_ context.Context, _ int, _ int) ([]*repository.GameLogEntry, error) {
	return nil, nil
}

type fakeLeagues struct {
	leagues  map[string]*store.FantasyLeague
	cats     map[string][]fantasy.Category
	slots    map[string][]fantasy.Slot
	teams    map[string]*store.FantasyTeam
	matchups []*store.Matchup
	rosters  map[string][]fantasy.RosterEntry
}

func newFakeLeagues() *fakeLeagues {
	return &fakeLeagues{
		leagues: make(map[string]*store.FantasyLeague),
		cats:    make(map[string][]fantasy.Category),
		slots:   make(map[string][]fantasy.Slot),
		teams:   make(map[string]*store.FantasyTeam),
		rosters: make(map[string][]fantasy.RosterEntry),
	}
}

func rosterKey(teamKey string, date time.Time) string {
	return teamKey + "|" + fantasy.DateKey(date)
}

func (f *fakeLeagues) GetLeague(_ context.Context, key string) (*store.FantasyLeague, error) {
	l, ok := f.leagues[key]
	if !ok {
		return nil, fmt.Errorf("league %s: %w", key, store.ErrNotFound)
	}
	return l, nil
}

func (f *fakeLeagues) ListLeagues(_ context.Context) ([]*store.FantasyLeague, error) {
	var out []*store.FantasyLeague
	for _, l := range f.leagues {
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeLeagues) UpsertLeague(_ context.Context, l *store.FantasyLeague) error {
	f.leagues[l.LeagueKey] = l
	return nil
}

func (f *fakeLeagues) GetCategories(_ context.Context, key string) ([]fantasy.Category, error) {
	return f.cats[key], nil
}

func (f *fakeLeagues) ReplaceCategories(_ context.Context, key string, cats []fantasy.Category) error {
	f.cats[key] = cats
	return nil
}

func (f *fakeLeagues) GetSlots(_ context.Context, key string) ([]fantasy.Slot, error) {
	return f.slots[key], nil
}

func (f *fakeLeagues) ReplaceSlots(_ context.Context, key string, slots []fantasy.Slot) error {
	f.slots[key] = slots
	return nil
}

func (f *fakeLeagues) GetTeam(_ context.Context, key string) (*store.FantasyTeam, error) {
	t, ok := f.teams[key]
	if !ok {
		return nil, fmt.Errorf("fantasy team %s: %w", key, store.ErrNotFound)
	}
	return t, nil
}

func (f *fakeLeagues) GetTeams(_ context.Context, league string) ([]*store.FantasyTeam, error) {
	var out []*store.FantasyTeam
	for _, t := range f.teams {
		if t.LeagueKey == league {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLeagues) UpsertTeam(_ context.Context, t *store.FantasyTeam) error {
	f.teams[t.TeamKey] = t
	return nil
}

func (f *fakeLeagues) GetMatchups(_ context.Context, league string, week int) ([]*store.Matchup, error) {
	var out []*store.Matchup
	for _, m := range f.matchups {
		if m.LeagueKey == league && m.Week == week {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeLeagues) GetMatchupForTeam(_ context.Context, team string, week int) (*store.Matchup, error) {
	for _, m := range f.matchups {
		if m.Week == week && (m.TeamA == team || m.TeamB == team) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("matchup: %w", store.ErrNotFound)
}

func (f *fakeLeagues) UpsertMatchup(_ context.Context, m *store.Matchup) error {
	f.matchups = append(f.matchups, m)
	return nil
}

func (f *fakeLeagues) GetRosterAssignment(_ context.Context, team string, date time.Time) ([]*store.RosterAssignment, error) {
	var out []*store.RosterAssignment
	for _, e := range f.rosters[rosterKey(team, date)] {
		a := &store.RosterAssignment{TeamKey: team, RosterDate: date, PlayerID: int(e.PlayerID), PlayerName: e.Name, Slot: string(e.Slot)}
		for _, p := range e.Eligible {
			a.EligiblePositions = append(a.EligiblePositions, string(p))
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeLeagues) ReplaceRosterAssignment(_ context.Context, team string, date time.Time, entries []fantasy.RosterEntry) error {
	f.rosters[rosterKey(team, date)] = entries
	return nil
}

type fakeSnapshots struct {
	entries map[string]fantasy.Snapshot
	hasData map[string]bool
	puts    int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{entries: make(map[string]fantasy.Snapshot), hasData: make(map[string]bool)}
}

func snapKey(p fantasy.PlayerID, w fantasy.Window, r fantasy.Reduction, asOf time.Time) string {
	return fmt.Sprintf("%d:%s:%s:%s", p, w, r, fantasy.DateKey(asOf))
}

func (f *fakeSnapshots) Get(_ context.Context, p fantasy.PlayerID, w fantasy.Window, r fantasy.Reduction, asOf time.Time) (fantasy.Snapshot, bool, bool, error) {
	k := snapKey(p, w, r, asOf)
	s, ok := f.entries[k]
	return s, f.hasData[k], ok, nil
}

func (f *fakeSnapshots) Put(_ context.Context, r fantasy.Reduction, s fantasy.Snapshot, hasData bool) error {
	k := snapKey(s.PlayerID, s.Window, r, s.AsOf)
	f.entries[k] = s
	f.hasData[k] = hasData
	f.puts++
	return nil
}

type recordingPublisher struct {
	events []publisher.MatchupProjected
}

func (r *recordingPublisher) PublishMatchupProjection(_ context.Context, e publisher.MatchupProjected) error {
	r.events = append(r.events, e)
	return nil
}

type recordingHub struct {
	weeks []int
}

func (r *recordingHub) BroadcastProjection(_ string, week int, _ interface{}) {
	r.weeks = append(r.weeks, week)
}

type fixture struct {
	players   *fakePlayers
	games     *fakeGames
	stats     *fakeStats
	leagues   *fakeLeagues
	snapshots *fakeSnapshots
}

func newFixture() *fixture {
	return &fixture{
		players:   &fakePlayers{},
		games:     &fakeGames{schedule: make(map[int][]*store.TeamGame)},
		stats:     &fakeStats{},
		leagues:   newFakeLeagues(),
		snapshots: newFakeSnapshots(),
	}
}

func (f *fixture) deps(today time.Time) Deps {
	return Deps{
		Stores: Stores{
			Players: f.players,
			Games:   f.games,
			Teams:   fakeTeams{},
			Stats:   f.stats,
			Leagues: f.leagues,
		},
		Snapshots: f.snapshots,
		GameTypes: fantasy.DefaultGameTypeSettings(),
		Location:  time.UTC,
		Now:       func() time.Time { return today.Add(12 * time.Hour) },
		Log:       logger.Discard(),
	}
}

func (f *fixture) addGame(teamID, d int, opp string) {
	f.games.schedule[teamID] = append(f.games.schedule[teamID], &store.TeamGame{
		Game: store.Game{
			ExternalID: fmt.Sprintf("e%d-%d", teamID, d),
			GameDate:   day(d),
			Status:     string(fantasy.GameScheduled),
			GameType:   string(fantasy.GameRegularSeason),
		},
		TeamAbbr:     fmt.Sprintf("T%d", teamID),
		OpponentAbbr: opp,
	})
}
