package matchup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/roster"
	"github.com/fortuna/juno/internal/stats"
)

// SnapshotSource is an optional DataSource extension. When the data source
// implements it, remaining-game projections are read through it, which lets
// callers memoize snapshots.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, player fantasy.PlayerID, window fantasy.Window, reduction fantasy.Reduction, asOf time.Time) (fantasy.Snapshot, bool, error)
}

// TeamRequest describes one team's projection.
type TeamRequest struct {
	TeamKey    string
	Categories []fantasy.Category
	Mode       fantasy.Window
	WeekStart  time.Time
	WeekEnd    time.Time
	Today      time.Time
	Optimize   bool
	GameTypes  fantasy.GameTypeSettings
}

// DayIndicator is one player's status on one date.
type DayIndicator struct {
	Date     time.Time      `json:"date"`
	Slot     fantasy.Slot   `json:"slot"`
	HasGame  bool           `json:"has_game"`
	Active   bool           `json:"active"`
	Outcome  Classification `json:"classification"`
	Opponent string         `json:"opponent,omitempty"`
}

// Contribution is a player's share of the team totals for one split.
type Contribution struct {
	PlayerID        fantasy.PlayerID   `json:"player_id"`
	Name            string             `json:"name"`
	Line            fantasy.Line       `json:"line"`
	Categories      map[string]float64 `json:"categories"`
	Games           int                `json:"games"`
	RemainingGames  int                `json:"remaining_games"`
	TotalGames      int                `json:"total_games"`
	IsOnRosterToday bool               `json:"is_on_roster_today"`
	Days            []DayIndicator     `json:"days"`
}

// CategoryTotal holds a category's accrued, projected-remaining and final
// projected value. For counting categories Projected == Current + Remaining.
type CategoryTotal struct {
	Current   float64 `json:"current"`
	Remaining float64 `json:"remaining"`
	Projected float64 `json:"projected"`
}

// DayEligibility summarizes the lineup used on one date.
type DayEligibility struct {
	Date            time.Time      `json:"date"`
	Optimized       bool           `json:"optimized"`
	ActiveWithGames int            `json:"active_with_games"`
	PlayersWithGame int            `json:"players_with_game"`
	Unfilled        []fantasy.Slot `json:"unfilled,omitempty"`
}

// TeamProjection is the result of Project.
type TeamProjection struct {
	TeamKey   string         `json:"team_key"`
	Mode      fantasy.Window `json:"mode"`
	WeekStart time.Time      `json:"week_start"`
	WeekEnd   time.Time      `json:"week_end"`
	Today     time.Time      `json:"today"`

	Current        fantasy.Line             `json:"current"`
	RemainingDelta fantasy.Line             `json:"remaining_delta"`
	Projected      fantasy.Line             `json:"projected"`
	Totals         map[string]CategoryTotal `json:"totals"`

	CurrentContributions   []Contribution   `json:"current_contributions"`
	RemainingContributions []Contribution   `json:"remaining_contributions"`
	Eligibility            []DayEligibility `json:"eligibility"`
}

type playerState struct {
	id       fantasy.PlayerID
	name     string
	games    map[string]*fantasy.ScheduledGame
	records  []fantasy.GameRecord
	byDate   map[string]*fantasy.GameRecord
	outcomes map[string]Classification

	snapshot       fantasy.Snapshot
	hasSnapshot    bool
	snapshotLoaded bool

	current, remaining           fantasy.Line
	currentGames, remainingGames int
	scheduledGames               int
	days                         []DayIndicator
	seenBeforeToday              bool
}

// Project splits a team's week into accrued and projected production.
//
// Every date in [WeekStart, WeekEnd] is classified once per rostered player.
// Players only contribute on dates they sit in an active slot. Current dates
// use the actual line (zero when the line is missing); remaining dates use
// the player's per-game average under Mode as of Today. Dates before Today
// use the published lineup; from Today on the lineup can be optimized, and a
// future date without a published lineup reuses the latest one.
func Project(ctx context.Context, ds fantasy.DataSource, req TeamRequest) (TeamProjection, error) {
	if err := validate(req); err != nil {
		return TeamProjection{}, err
	}

	today := fantasy.Day(req.Today)
	start, end := fantasy.Day(req.WeekStart), fantasy.Day(req.WeekEnd)
	dates := fantasy.DatesBetween(start, end)

	rosters, err := loadRosters(ctx, ds, req.TeamKey, dates, today)
	if err != nil {
		return TeamProjection{}, err
	}

	players, err := loadPlayers(ctx, ds, rosters, start, end, today)
	if err != nil {
		return TeamProjection{}, err
	}

	classify := func(p *playerState, date time.Time) Classification {
		key := fantasy.DateKey(date)
		if c, ok := p.outcomes[key]; ok {
			return c
		}
		c := Classify(PlayerDay{Date: date, Game: p.games[key], Record: p.byDate[key]}, today, req.GameTypes)
		p.outcomes[key] = c
		return c
	}

	out := TeamProjection{
		TeamKey:   req.TeamKey,
		Mode:      req.Mode,
		WeekStart: start,
		WeekEnd:   end,
		Today:     today,
		Totals:    make(map[string]CategoryTotal, len(req.Categories)),
	}

	for i, date := range dates {
		day := rosters[i]
		elig := DayEligibility{Date: date}

		hasGame := make(map[fantasy.PlayerID]bool, len(day.Entries))
		for _, e := range day.Entries {
			if classify(players[e.PlayerID], date) != None {
				hasGame[e.PlayerID] = true
				elig.PlayersWithGame++
			}
		}

		if req.Optimize && !date.Before(today) {
			asg, err := roster.Optimize(day, hasGame)
			if err != nil {
				return TeamProjection{}, fmt.Errorf("optimizing %s on %s: %w", req.TeamKey, fantasy.DateKey(date), err)
			}
			day = asg.Day
			elig.Optimized = true
			elig.Unfilled = asg.Unfilled
		}
		elig.ActiveWithGames = roster.CountActiveWithGames(day, hasGame)
		out.Eligibility = append(out.Eligibility, elig)

		for _, e := range day.Entries {
			p := players[e.PlayerID]
			outcome := classify(p, date)
			active := e.Slot.Active()

			ind := DayIndicator{Date: date, Slot: e.Slot, HasGame: outcome != None, Active: active, Outcome: outcome}
			if g := p.games[fantasy.DateKey(date)]; g != nil {
				ind.Opponent = g.Opponent
			}
			p.days = append(p.days, ind)
			if date.Before(today) {
				p.seenBeforeToday = true
			}

			if !active {
				continue
			}
			switch outcome {
			case Current:
				if r := p.byDate[fantasy.DateKey(date)]; r != nil {
					p.current = p.current.Add(r.Line)
				}
				p.currentGames++
			case Remaining:
				snap, ok, err := snapshotFor(ctx, ds, p, req.Mode, today)
				if err != nil {
					return TeamProjection{}, err
				}
				if ok {
					p.remaining = p.remaining.Add(snap.Line)
				}
				p.remainingGames++
			}
		}
	}

	reference := rosters[referenceIndex(dates, today)]
	onRoster := make(map[fantasy.PlayerID]bool, len(reference.Entries))
	for _, e := range reference.Entries {
		onRoster[e.PlayerID] = true
	}
	// Players on any lineup from today on project forward, which includes
	// pickups published ahead of their first day.
	upcoming := make(map[fantasy.PlayerID]bool, len(players))
	for i, date := range dates {
		if date.Before(today) {
			continue
		}
		for _, e := range rosters[i].Entries {
			upcoming[e.PlayerID] = true
		}
	}

	ids := make([]fantasy.PlayerID, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		p := players[id]
		// Total games follow the team's week, whether or not the player was
		// in an active slot.
		for _, date := range dates {
			if classify(p, date) != None {
				p.scheduledGames++
			}
		}
		rostered := onRoster[id]
		base := Contribution{
			PlayerID:        id,
			Name:            p.name,
			RemainingGames:  p.remainingGames,
			TotalGames:      p.scheduledGames,
			IsOnRosterToday: rostered,
			Days:            p.days,
		}

		if rostered || p.seenBeforeToday || p.currentGames > 0 {
			c := base
			c.Line = p.current
			c.Games = p.currentGames
			c.Categories = categoryValues(req.Categories, p.current)
			out.CurrentContributions = append(out.CurrentContributions, c)
			out.Current = out.Current.Add(p.current)
		}

		// Dropped players never project forward.
		if rostered || upcoming[id] {
			c := base
			c.Line = p.remaining
			c.Games = p.remainingGames
			c.Categories = categoryValues(req.Categories, p.remaining)
			out.RemainingContributions = append(out.RemainingContributions, c)
			out.RemainingDelta = out.RemainingDelta.Add(p.remaining)
		}
	}

	out.Projected = out.Current.Add(out.RemainingDelta)
	for _, c := range req.Categories {
		out.Totals[c.ID] = CategoryTotal{
			Current:   c.Value(out.Current),
			Remaining: c.Value(out.RemainingDelta),
			Projected: c.Value(out.Projected),
		}
	}
	return out, nil
}

// Margin is own minus opponent, flipped for lower-is-better categories so a
// positive margin always favors the evaluated team.
func Margin(c fantasy.Category, own, opp float64) float64 {
	if c.LowerIsBetter() {
		return opp - own
	}
	return own - opp
}

func validate(req TeamRequest) error {
	if req.WeekEnd.Before(req.WeekStart) {
		return fmt.Errorf("%w: week ends %s before it starts %s", fantasy.ErrInvalidDateRange,
			fantasy.DateKey(req.WeekEnd), fantasy.DateKey(req.WeekStart))
	}
	if _, err := stats.ParseProjectionMode(string(req.Mode)); err != nil {
		return err
	}
	if err := req.GameTypes.Validate(); err != nil {
		return err
	}
	for _, c := range req.Categories {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %s: %w", c.ID, err)
		}
	}
	return nil
}

// loadRosters fetches the lineup for every date. From today on, a date with
// no published lineup reuses the most recent one.
func loadRosters(ctx context.Context, ds fantasy.DataSource, teamKey string, dates []time.Time, today time.Time) ([]fantasy.RosterDay, error) {
	rosters := make([]fantasy.RosterDay, len(dates))
	var latest *fantasy.RosterDay
	for i, date := range dates {
		day, err := ds.GetRosterAssignment(ctx, teamKey, date)
		if err != nil {
			return nil, fmt.Errorf("loading roster for %s on %s: %w", teamKey, fantasy.DateKey(date), err)
		}
		if len(day.Entries) == 0 && latest != nil && !date.Before(today) {
			day = *latest
			day.Entries = append([]fantasy.RosterEntry(nil), latest.Entries...)
		}
		day.TeamKey = teamKey
		day.Date = date
		if err := checkDuplicates(day); err != nil {
			return nil, err
		}
		rosters[i] = day
		if len(day.Entries) > 0 {
			latest = &rosters[i]
		}
	}
	return rosters, nil
}

func checkDuplicates(day fantasy.RosterDay) error {
	seen := make(map[fantasy.PlayerID]bool, len(day.Entries))
	for _, e := range day.Entries {
		if seen[e.PlayerID] {
			return fmt.Errorf("%w: player %d listed twice on %s", fantasy.ErrInvalidRoster, e.PlayerID, fantasy.DateKey(day.Date))
		}
		seen[e.PlayerID] = true
	}
	return nil
}

func loadPlayers(ctx context.Context, ds fantasy.DataSource, rosters []fantasy.RosterDay, start, end, today time.Time) (map[fantasy.PlayerID]*playerState, error) {
	players := make(map[fantasy.PlayerID]*playerState)
	through := end
	if today.After(through) {
		through = today
	}

	for _, day := range rosters {
		for _, e := range day.Entries {
			if p, ok := players[e.PlayerID]; ok {
				if p.name == "" {
					p.name = e.Name
				}
				continue
			}

			schedule, err := ds.GetSchedule(ctx, e.PlayerID, start, end)
			if err != nil {
				return nil, fmt.Errorf("loading schedule for player %d: %w", e.PlayerID, err)
			}
			records, err := ds.GetGameRecords(ctx, e.PlayerID, through)
			if err != nil {
				return nil, fmt.Errorf("loading game records for player %d: %w", e.PlayerID, err)
			}

			p := &playerState{
				id:       e.PlayerID,
				name:     e.Name,
				games:    make(map[string]*fantasy.ScheduledGame, len(schedule)),
				records:  records,
				byDate:   make(map[string]*fantasy.GameRecord),
				outcomes: make(map[string]Classification),
			}
			for i := range schedule {
				p.games[fantasy.DateKey(schedule[i].Date)] = &schedule[i]
			}
			for i := range records {
				d := fantasy.Day(records[i].Date)
				if d.Before(start) || d.After(end) {
					continue
				}
				p.byDate[fantasy.DateKey(d)] = &records[i]
			}
			players[e.PlayerID] = p
		}
	}
	return players, nil
}

func snapshotFor(ctx context.Context, ds fantasy.DataSource, p *playerState, mode fantasy.Window, today time.Time) (fantasy.Snapshot, bool, error) {
	if p.snapshotLoaded {
		return p.snapshot, p.hasSnapshot, nil
	}

	var (
		snap fantasy.Snapshot
		ok   bool
		err  error
	)
	if src, isSource := ds.(SnapshotSource); isSource {
		snap, ok, err = src.GetSnapshot(ctx, p.id, mode, fantasy.ReductionAvg, today)
	} else {
		snap, ok, err = stats.Aggregate(p.id, p.records, mode, fantasy.ReductionAvg, today)
	}
	if err != nil {
		return fantasy.Snapshot{}, false, fmt.Errorf("projecting player %d: %w", p.id, err)
	}

	p.snapshot, p.hasSnapshot, p.snapshotLoaded = snap, ok, true
	return snap, ok, nil
}

// referenceIndex picks the roster that defines "on the roster today": today
// itself, or the nearest end of the week when today falls outside it.
func referenceIndex(dates []time.Time, today time.Time) int {
	for i, d := range dates {
		if d.Equal(today) {
			return i
		}
	}
	if today.Before(dates[0]) {
		return 0
	}
	return len(dates) - 1
}

func categoryValues(cats []fantasy.Category, l fantasy.Line) map[string]float64 {
	out := make(map[string]float64, len(cats))
	for _, c := range cats {
		out[c.ID] = c.Value(l)
	}
	return out
}
