package espn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/publisher"
	"github.com/fortuna/juno/internal/reconciliation"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

// BoxScorePublisher announces finalized box scores
type BoxScorePublisher interface {
	PublishBoxScoreFinalized(ctx context.Context, event publisher.BoxScoreFinalized) error
}

// SnapshotInvalidator drops cached aggregates for a player
type SnapshotInvalidator interface {
	InvalidatePlayer(ctx context.Context, player fantasy.PlayerID) (int, error)
}

// IngesterConfig wires optional collaborators. Location defines the game
// date of an event; Season labels games whose event carries no season.
type IngesterConfig struct {
	Location  *time.Location
	Season    string
	Publisher BoxScorePublisher
	Snapshots SnapshotInvalidator
}

// DateResult summarises one day of ingestion
type DateResult struct {
	Date   time.Time     `json:"date"`
	Games  []*store.Game `json:"games"`
	Lines  int           `json:"lines"`
	Failed int           `json:"failed"`
}

// Ingester handles the ingestion of ESPN data into the database.
type Ingester struct {
	client  *Client
	games   *repository.GameRepository
	stats   *repository.StatsRepository
	teams   *repository.TeamRepository
	players *repository.PlayerRepository
	cfg     IngesterConfig
	log     *logrus.Entry

	mu       sync.Mutex
	resolver *reconciliation.TeamResolver
	byESPN   map[string]int

	playerIDs sync.Map // espn player id -> player_id
}

// NewIngester creates a new ESPN data ingester
func NewIngester(db *store.Database, client *Client, cfg IngesterConfig, log *logrus.Entry) *Ingester {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Ingester{
		client:  client,
		games:   repository.NewGameRepository(db),
		stats:   repository.NewStatsRepository(db),
		teams:   repository.NewTeamRepository(db),
		players: repository.NewPlayerRepository(db),
		cfg:     cfg,
		log:     log,
	}
}

// Client returns the underlying API client
func (i *Ingester) Client() *Client {
	return i.client
}

// Available reports whether ESPN is currently being called.
func (i *Ingester) Available() bool {
	return i.client.Available()
}

// IngestDate fetches the scoreboard for a date, upserts every game and
// stores box scores of games that have started.
func (i *Ingester) IngestDate(ctx context.Context, date time.Time) (*DateResult, error) {
	games, err := i.fetchGames(ctx, date)
	if err != nil {
		return nil, err
	}

	result := &DateResult{Date: fantasy.Day(date)}
	for _, parsed := range games {
		game, err := i.persistGame(ctx, parsed)
		if err != nil {
			i.log.WithError(err).WithField("event_id", parsed.Game.ExternalID).Warn("Failed to upsert game")
			result.Failed++
			continue
		}
		result.Games = append(result.Games, game)

		if !hasBoxScore(game) {
			continue
		}
		n, err := i.IngestBoxScore(ctx, game)
		if err != nil {
			i.log.WithError(err).WithField("event_id", game.ExternalID).Warn("Failed to ingest box score")
			result.Failed++
			continue
		}
		result.Lines += n
	}

	i.log.WithFields(logrus.Fields{
		"date":   fantasy.DateKey(date),
		"games":  len(result.Games),
		"lines":  result.Lines,
		"failed": result.Failed,
	}).Info("Ingested scoreboard")
	return result, nil
}

// SyncSchedule upserts the games of the next days without box scores, so
// schedules and statuses stay current for projections.
func (i *Ingester) SyncSchedule(ctx context.Context, start time.Time, days int) (int, error) {
	synced := 0
	for d := 0; d <= days; d++ {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		date := fantasy.Day(start).AddDate(0, 0, d)
		games, err := i.fetchGames(ctx, date)
		if err != nil {
			return synced, err
		}
		for _, parsed := range games {
			if _, err := i.persistGame(ctx, parsed); err != nil {
				i.log.WithError(err).WithField("event_id", parsed.Game.ExternalID).Warn("Failed to upsert scheduled game")
				continue
			}
			synced++
		}
	}
	return synced, nil
}

// IngestGame fetches and stores a single game by ESPN event ID.
func (i *Ingester) IngestGame(ctx context.Context, eventID string) (*store.Game, error) {
	if err := i.ensureTeams(ctx); err != nil {
		return nil, err
	}

	summary, err := i.client.FetchGameSummary(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("fetch game summary: %w", err)
	}

	parsed, err := ParseSummaryGame(summary, i.cfg.Location, i.cfg.Season)
	if err != nil {
		return nil, fmt.Errorf("parse game %s: %w", eventID, err)
	}

	game, err := i.persistGame(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if hasBoxScore(game) {
		if _, err := i.storeBoxScore(ctx, game, summary); err != nil {
			return nil, err
		}
	}
	return game, nil
}

// IngestBoxScore fetches and stores the box score of a stored game. When
// the game is final the box score is announced and affected snapshots are
// invalidated. It returns the number of lines stored.
func (i *Ingester) IngestBoxScore(ctx context.Context, game *store.Game) (int, error) {
	summary, err := i.client.FetchGameSummary(ctx, game.ExternalID)
	if err != nil {
		return 0, fmt.Errorf("fetch game summary: %w", err)
	}
	return i.storeBoxScore(ctx, game, summary)
}

func (i *Ingester) storeBoxScore(ctx context.Context, game *store.Game, summary map[string]interface{}) (int, error) {
	if err := i.ensureTeams(ctx); err != nil {
		return 0, err
	}

	lines, err := ParseBoxScore(summary)
	if err != nil {
		return 0, fmt.Errorf("parse box score: %w", err)
	}

	var playerIDs []int
	for _, parsed := range lines {
		teamID, ok := i.teamID(parsed.TeamAbbr, "")
		if !ok {
			i.log.WithFields(logrus.Fields{"team": parsed.TeamAbbr, "player": parsed.PlayerName}).Warn("Unknown team in box score")
			continue
		}

		playerID, err := i.resolvePlayer(ctx, parsed, teamID)
		if err != nil {
			i.log.WithError(err).WithField("player", parsed.PlayerName).Warn("Unable to resolve player")
			continue
		}

		line := parsed.Stats
		line.GameID = game.GameID
		line.TeamID = teamID
		line.PlayerID = playerID
		if err := i.stats.UpsertPlayerStats(ctx, line); err != nil {
			i.log.WithError(err).WithFields(logrus.Fields{"player_id": playerID, "game_id": game.GameID}).Warn("Failed to upsert stats")
			continue
		}
		playerIDs = append(playerIDs, playerID)
	}

	if game.IsFinal() {
		i.finalize(ctx, game, playerIDs)
	}
	return len(playerIDs), nil
}

// finalize announces a final box score and drops stale snapshots. Both are
// best effort: the box score is already stored.
func (i *Ingester) finalize(ctx context.Context, game *store.Game, playerIDs []int) {
	if i.cfg.Snapshots != nil {
		for _, id := range playerIDs {
			if _, err := i.cfg.Snapshots.InvalidatePlayer(ctx, fantasy.PlayerID(id)); err != nil {
				i.log.WithError(err).WithField("player_id", id).Warn("Failed to invalidate snapshots")
			}
		}
	}
	if i.cfg.Publisher != nil {
		event := publisher.BoxScoreFinalized{
			GameID:    game.ExternalID,
			GameDate:  fantasy.DateKey(game.GameDate),
			PlayerIDs: playerIDs,
		}
		if err := i.cfg.Publisher.PublishBoxScoreFinalized(ctx, event); err != nil {
			i.log.WithError(err).WithField("event_id", game.ExternalID).Warn("Failed to publish box score")
		}
	}
}

func (i *Ingester) fetchGames(ctx context.Context, date time.Time) ([]*ParsedGame, error) {
	if err := i.ensureTeams(ctx); err != nil {
		return nil, err
	}

	scoreboard, err := i.client.FetchScoreboard(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch scoreboard: %w", err)
	}

	games, errs := ParseScoreboard(scoreboard, i.cfg.Location, i.cfg.Season)
	for _, err := range errs {
		i.log.WithError(err).Warn("Skipping unparseable event")
	}
	return games, nil
}

func (i *Ingester) persistGame(ctx context.Context, parsed *ParsedGame) (*store.Game, error) {
	homeID, ok := i.teamID(parsed.HomeTeam.Abbreviation, parsed.HomeTeam.ESPNID)
	if !ok {
		return nil, fmt.Errorf("unknown home team %s", parsed.HomeTeam.Abbreviation)
	}
	awayID, ok := i.teamID(parsed.AwayTeam.Abbreviation, parsed.AwayTeam.ESPNID)
	if !ok {
		return nil, fmt.Errorf("unknown away team %s", parsed.AwayTeam.Abbreviation)
	}

	game := parsed.Game
	game.HomeTeamID = homeID
	game.AwayTeamID = awayID
	if err := i.games.Upsert(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

func hasBoxScore(g *store.Game) bool {
	s := fantasy.GameStatus(g.Status)
	return s == fantasy.GameFinal || s == fantasy.GameInProgress
}

func (i *Ingester) ensureTeams(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.resolver != nil {
		return nil
	}

	teams, err := i.teams.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load teams: %w", err)
	}

	byESPN := make(map[string]int, len(teams))
	for _, t := range teams {
		if t.ExternalID != "" {
			byESPN[t.ExternalID] = t.TeamID
		}
	}
	i.resolver = reconciliation.NewTeamResolver(teams)
	i.byESPN = byESPN
	return nil
}

func (i *Ingester) teamID(abbr, espnID string) (int, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.resolver == nil {
		return 0, false
	}
	if espnID != "" {
		if id, ok := i.byESPN[espnID]; ok {
			return id, true
		}
	}
	if t, ok := i.resolver.Team(abbr); ok {
		return t.TeamID, true
	}
	return 0, false
}

func (i *Ingester) resolvePlayer(ctx context.Context, parsed *ParsedPlayerStats, teamID int) (int, error) {
	if parsed.ESPNPlayerID == "" {
		return 0, fmt.Errorf("player %q has no provider id", parsed.PlayerName)
	}
	if cached, ok := i.playerIDs.Load(parsed.ESPNPlayerID); ok {
		return cached.(int), nil
	}

	first, last := splitName(parsed.PlayerName)
	player := &store.Player{
		ExternalID:        sql.NullString{String: parsed.ESPNPlayerID, Valid: true},
		FirstName:         sql.NullString{String: first, Valid: first != ""},
		LastName:          last,
		FullName:          parsed.PlayerName,
		Position:          sql.NullString{String: parsed.Position, Valid: parsed.Position != ""},
		EligiblePositions: EligiblePositions(parsed.Position),
		TeamID:            sql.NullInt32{Int32: int32(teamID), Valid: true},
		JerseyNumber:      sql.NullString{String: parsed.Jersey, Valid: parsed.Jersey != ""},
		Status:            sql.NullString{String: "active", Valid: true},
	}
	if err := i.players.Upsert(ctx, player); err != nil {
		return 0, err
	}

	i.playerIDs.Store(parsed.ESPNPlayerID, player.PlayerID)
	return player.PlayerID, nil
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if idx := strings.LastIndex(full, " "); idx > 0 {
		return full[:idx], full[idx+1:]
	}
	return "", full
}
