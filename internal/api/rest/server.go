package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler http.Handler
	log     *logrus.Entry
}

// NewServer creates a new REST API server
func NewServer(port string, svc Services, checks map[string]HealthChecker, log *logrus.Entry) *Server {
	// CORS wraps the router so preflights are answered before route matching.
	handler := CORSMiddleware(NewRouter(svc, checks, log))

	return &Server{
		port:    port,
		handler: handler,
		log:     log,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the API routes. Handlers whose service is nil are not mounted.
func NewRouter(svc Services, checks map[string]HealthChecker, log *logrus.Entry) *mux.Router {
	handler := NewHandler(svc, checks, log)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggingMiddleware(log))

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)

	// Leagues and matchups
	if svc.Leagues != nil {
		api.HandleFunc("/leagues/{leagueKey}", handler.GetLeague).Methods(http.MethodGet)
		api.HandleFunc("/leagues/{leagueKey}/teams/{teamKey}/roster", handler.ImportRoster).Methods(http.MethodPut)
	}
	if svc.Matchups != nil {
		api.HandleFunc("/leagues/{leagueKey}/matchups/{week:[0-9]+}", handler.GetWeekMatchups).Methods(http.MethodGet)
		api.HandleFunc("/leagues/{leagueKey}/teams/{teamKey}/projection", handler.GetTeamProjection).Methods(http.MethodGet)
	}

	// Players
	if svc.Players != nil {
		api.HandleFunc("/players/search", handler.SearchPlayers).Methods(http.MethodGet)
		api.HandleFunc("/players/match", handler.MatchPlayers).Methods(http.MethodPost)
		api.HandleFunc("/players/{playerID:[0-9]+}", handler.GetPlayer).Methods(http.MethodGet)
		api.HandleFunc("/players/{playerID:[0-9]+}/games", handler.GetPlayerGames).Methods(http.MethodGet)
		api.HandleFunc("/players/{playerID:[0-9]+}/snapshot", handler.GetPlayerSnapshot).Methods(http.MethodGet)
		api.HandleFunc("/players/{playerID:[0-9]+}/minutes-trend", handler.GetMinutesTrend).Methods(http.MethodGet)
	}

	if svc.Rankings != nil {
		api.HandleFunc("/rankings", handler.GetRankings).Methods(http.MethodGet)
	}

	// Games and schedules
	if svc.Games != nil {
		api.HandleFunc("/games", handler.GetGamesByDate).Methods(http.MethodGet)
		api.HandleFunc("/teams/{abbr}/schedule", handler.GetTeamSchedule).Methods(http.MethodGet)
	}

	// Backfill operations
	if svc.Backfill != nil {
		backfillHandler := NewBackfillHandler(svc.Backfill)
		api.HandleFunc("/backfill", backfillHandler.HandleBackfillRequest).Methods(http.MethodPost)
		api.HandleFunc("/backfill/status", backfillHandler.HandleBackfillStatus).Methods(http.MethodGet)
		api.HandleFunc("/backfill/{jobID}/cancel", backfillHandler.HandleBackfillCancel).Methods(http.MethodPost)
	}

	return router
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.log.WithField("port", s.port).Info("REST API listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
