package websocket

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server represents the WebSocket server
type Server struct {
	port   string
	server *http.Server
	hub    *Hub
	log    *logrus.Entry
}

// NewServer creates a new WebSocket server around hub
func NewServer(port string, hub *Hub, log *logrus.Entry) *Server {
	s := &Server{port: port, hub: hub, log: log}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the WebSocket routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/projections", s.handleProjections)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start serves connections until Shutdown
func (s *Server) Start() error {
	s.log.WithField("port", s.port).Info("WebSocket server listening")
	return s.server.ListenAndServe()
}

// handleProjections subscribes the connection to projection updates. The
// optional league query parameter narrows the feed to one league.
func (s *Server) handleProjections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	client := &Client{
		id:     uuid.NewString(),
		league: strings.TrimSpace(r.URL.Query().Get("league")),
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 256),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
