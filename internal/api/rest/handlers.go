package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/backfill"
	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/matchup"
	"github.com/fortuna/juno/internal/reconciliation"
	"github.com/fortuna/juno/internal/service"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	defaultGameLog     = 10
	maxGameLog         = 82
	maxMatchNames      = 50
)

// Matchups projects fantasy weeks
type Matchups interface {
	ProjectTeam(ctx context.Context, leagueKey, teamKey string, week int, opts service.ProjectionOptions) (*matchup.TeamProjection, error)
	ProjectWeek(ctx context.Context, leagueKey string, week int, opts service.ProjectionOptions) ([]*service.MatchupResult, error)
}

// Leagues reads league settings and accepts roster imports
type Leagues interface {
	GetSettings(ctx context.Context, leagueKey string) (*service.LeagueSettings, error)
	ImportRoster(ctx context.Context, leagueKey, teamKey string, date time.Time, entries []fantasy.RosterEntry) error
}

// Players serves player lookups and statistical snapshots
type Players interface {
	GetPlayer(ctx context.Context, playerID int) (*service.PlayerProfile, error)
	SearchPlayers(ctx context.Context, term string, limit int) ([]*store.Player, error)
	MatchNames(ctx context.Context, names []string) ([]reconciliation.PlayerMatch, error)
	GetGameLog(ctx context.Context, playerID int, limit int) ([]*repository.GameLogEntry, error)
	GetSnapshot(ctx context.Context, playerID int, window, reduction string, asOf time.Time) (*service.SnapshotView, error)
	GetMinutesTrend(ctx context.Context, playerID int, asOf time.Time) (*service.MinutesTrend, error)
}

// Rankings orders the player pool by category value
type Rankings interface {
	Rank(ctx context.Context, req service.RankingRequest) (*service.RankingResult, error)
}

// Games serves NBA schedules
type Games interface {
	GetGamesByDate(ctx context.Context, date time.Time) ([]*service.GameSummary, error)
	GetTeamSchedule(ctx context.Context, abbr string, start, end time.Time) ([]*store.TeamGame, error)
}

// HealthChecker is a dependency probed by /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services bundles what the API exposes. Nil members leave their routes unmounted.
type Services struct {
	Matchups Matchups
	Leagues  Leagues
	Players  Players
	Rankings Rankings
	Games    Games
	Backfill BackfillService
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	svc    Services
	checks map[string]HealthChecker
	log    *logrus.Entry
}

// NewHandler creates a new handler
func NewHandler(svc Services, checks map[string]HealthChecker, log *logrus.Entry) *Handler {
	return &Handler{svc: svc, checks: checks, log: log}
}

// HealthCheck reports the state of each registered dependency
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      "juno",
		"dependencies": deps,
	})
}

// GetLeague returns a league's categories, slots and teams
func (h *Handler) GetLeague(w http.ResponseWriter, r *http.Request) {
	settings, err := h.svc.Leagues.GetSettings(r.Context(), mux.Vars(r)["leagueKey"])
	if err != nil {
		h.respondServiceError(w, "Failed to fetch league", err)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

type rosterImportRequest struct {
	Date    string                `json:"date"`
	Entries []fantasy.RosterEntry `json:"entries"`
}

// ImportRoster replaces a fantasy team's slot assignment for one day
func (h *Handler) ImportRoster(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req rosterImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.svc.Leagues.ImportRoster(r.Context(), vars["leagueKey"], vars["teamKey"], date, req.Entries); err != nil {
		h.respondServiceError(w, "Failed to import roster", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"league_key": vars["leagueKey"],
		"team_key":   vars["teamKey"],
		"date":       date.Format(fantasy.DateLayout),
		"entries":    len(req.Entries),
	})
}

// GetWeekMatchups projects every matchup of a league week
func (h *Handler) GetWeekMatchups(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	week, err := strconv.Atoi(vars["week"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid week", err)
		return
	}

	opts, err := projectionOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid projection options", err)
		return
	}

	results, err := h.svc.Matchups.ProjectWeek(r.Context(), vars["leagueKey"], week, opts)
	if err != nil {
		h.respondServiceError(w, "Failed to project matchups", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"league_key": vars["leagueKey"],
		"week":       week,
		"matchups":   results,
		"count":      len(results),
	})
}

// GetTeamProjection projects a single fantasy team for a week
func (h *Handler) GetTeamProjection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	week, err := intParam(r, "week", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid week", err)
		return
	}

	opts, err := projectionOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid projection options", err)
		return
	}

	projection, err := h.svc.Matchups.ProjectTeam(r.Context(), vars["leagueKey"], vars["teamKey"], week, opts)
	if err != nil {
		h.respondServiceError(w, "Failed to project team", err)
		return
	}

	respondJSON(w, http.StatusOK, projection)
}

// GetPlayer returns a player by ID
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.Atoi(mux.Vars(r)["playerID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	player, err := h.svc.Players.GetPlayer(r.Context(), playerID)
	if err != nil {
		h.respondServiceError(w, "Failed to fetch player", err)
		return
	}

	respondJSON(w, http.StatusOK, player)
}

// SearchPlayers searches for players by name
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		respondError(w, http.StatusBadRequest, "Search query 'q' is required", nil)
		return
	}

	limit := boundedLimit(r, defaultSearchLimit, maxSearchLimit)
	players, err := h.svc.Players.SearchPlayers(r.Context(), term, limit)
	if err != nil {
		h.respondServiceError(w, "Failed to search players", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"players": players,
		"count":   len(players),
	})
}

type matchRequest struct {
	Names []string `json:"names"`
}

// MatchPlayers resolves external player names to player IDs
func (h *Handler) MatchPlayers(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Names) == 0 || len(req.Names) > maxMatchNames {
		respondError(w, http.StatusBadRequest, "Provide between 1 and 50 names", nil)
		return
	}

	matches, err := h.svc.Players.MatchNames(r.Context(), req.Names)
	if err != nil {
		h.respondServiceError(w, "Failed to match players", err)
		return
	}

	resolved := 0
	for _, m := range matches {
		if m.Resolved() {
			resolved++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches":  matches,
		"resolved": resolved,
	})
}

// GetPlayerGames returns a player's most recent game lines
func (h *Handler) GetPlayerGames(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.Atoi(mux.Vars(r)["playerID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	limit := boundedLimit(r, defaultGameLog, maxGameLog)
	games, err := h.svc.Players.GetGameLog(r.Context(), playerID, limit)
	if err != nil {
		h.respondServiceError(w, "Failed to fetch game log", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": playerID,
		"games":     games,
		"count":     len(games),
	})
}

// GetPlayerSnapshot returns a windowed statistical summary for a player
func (h *Handler) GetPlayerSnapshot(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.Atoi(mux.Vars(r)["playerID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	q := r.URL.Query()
	asOf, err := parseDate(q.Get("asof"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid asof format (use YYYY-MM-DD)", err)
		return
	}

	window := q.Get("window")
	if window == "" {
		window = string(fantasy.WindowSeason)
	}
	reduction := q.Get("reduction")
	if reduction == "" {
		reduction = string(fantasy.ReductionAvg)
	}

	snap, err := h.svc.Players.GetSnapshot(r.Context(), playerID, window, reduction, asOf)
	if err != nil {
		h.respondServiceError(w, "Failed to compute snapshot", err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// GetMinutesTrend returns the player's latest minutes against their recent average
func (h *Handler) GetMinutesTrend(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.Atoi(mux.Vars(r)["playerID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	asOf, err := parseDate(r.URL.Query().Get("asof"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid asof format (use YYYY-MM-DD)", err)
		return
	}

	trend, err := h.svc.Players.GetMinutesTrend(r.Context(), playerID, asOf)
	if err != nil {
		h.respondServiceError(w, "Failed to compute minutes trend", err)
		return
	}

	respondJSON(w, http.StatusOK, trend)
}

// GetRankings ranks the player pool by 9-category z-score
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	asOf, err := parseDate(q.Get("asof"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid asof format (use YYYY-MM-DD)", err)
		return
	}

	limit, err := intParam(r, "limit", 0)
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	weekStart, err := parseDate(q.Get("week_start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid week_start format (use YYYY-MM-DD)", err)
		return
	}
	weekEnd, err := parseDate(q.Get("week_end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid week_end format (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.svc.Rankings.Rank(r.Context(), service.RankingRequest{
		Window:    q.Get("window"),
		AsOf:      asOf,
		Limit:     limit,
		WeekStart: weekStart,
		WeekEnd:   weekEnd,
	})
	if err != nil {
		h.respondServiceError(w, "Failed to rank players", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetGamesByDate returns all games on a specific date
func (h *Handler) GetGamesByDate(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	games, err := h.svc.Games.GetGamesByDate(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, "Failed to fetch games", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// GetTeamSchedule returns an NBA team's games between two dates
func (h *Handler) GetTeamSchedule(w http.ResponseWriter, r *http.Request) {
	abbr := strings.ToUpper(mux.Vars(r)["abbr"])
	q := r.URL.Query()

	start, err := parseDate(q.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid end format (use YYYY-MM-DD)", err)
		return
	}

	schedule, err := h.svc.Games.GetTeamSchedule(r.Context(), abbr, start, end)
	if err != nil {
		h.respondServiceError(w, "Failed to fetch team schedule", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"team":  abbr,
		"games": schedule,
		"count": len(schedule),
	})
}

func projectionOptions(r *http.Request) (service.ProjectionOptions, error) {
	q := r.URL.Query()
	opts := service.ProjectionOptions{Mode: q.Get("mode")}

	if raw := q.Get("optimize"); raw != "" {
		optimize, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, err
		}
		opts.Optimize = optimize
	}

	today, err := parseDate(q.Get("today"))
	if err != nil {
		return opts, err
	}
	opts.Today = today
	return opts, nil
}

// parseDate reads a YYYY-MM-DD value. Empty input yields the zero time,
// which services treat as "today".
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(fantasy.DateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return fantasy.Day(t), nil
}

func intParam(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func boundedLimit(r *http.Request, fallback, max int) int {
	limit, err := intParam(r, "limit", fallback)
	if err != nil || limit <= 0 || limit > max {
		return fallback
	}
	return limit
}

// respondServiceError maps service errors onto HTTP status codes
func (h *Handler) respondServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case fantasy.IsInvalidInput(err), errors.Is(err, backfill.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	default:
		h.log.WithError(err).Error(message)
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}
