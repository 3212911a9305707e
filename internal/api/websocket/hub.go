package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// MessageTypeProjection tags matchup projection pushes
	MessageTypeProjection = "matchup_projection"

	broadcastBuffer = 256
)

// Message is the envelope written to subscribers
type Message struct {
	Type      string      `json:"type"`
	LeagueKey string      `json:"league_key,omitempty"`
	Week      int         `json:"week,omitempty"`
	SentAt    time.Time   `json:"sent_at"`
	Data      interface{} `json:"data"`
}

type outbound struct {
	leagueKey string
	data      []byte
}

// Hub maintains active WebSocket connections and fans out projection updates
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logrus.Entry
	mu         sync.RWMutex
}

// NewHub creates a new hub. Call Run to start dispatching.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run handles registration and fan-out until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()

			h.log.WithFields(logrus.Fields{
				"client_id":     client.id,
				"league_key":    client.league,
				"total_clients": total,
			}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.leagueKey) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
					h.log.WithField("client_id", client.id).Warn("Dropping slow WebSocket client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// leave unregisters a client, giving up once the hub has stopped
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.log.WithFields(logrus.Fields{
			"client_id":     client.id,
			"total_clients": total,
		}).Info("WebSocket client disconnected")
	}
}

// BroadcastProjection pushes a projection to every subscriber of the league.
// It never blocks; updates are dropped when the hub is saturated.
func (h *Hub) BroadcastProjection(leagueKey string, week int, payload interface{}) {
	data, err := json.Marshal(Message{
		Type:      MessageTypeProjection,
		LeagueKey: leagueKey,
		Week:      week,
		SentAt:    time.Now().UTC(),
		Data:      payload,
	})
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	select {
	case h.broadcast <- outbound{leagueKey: leagueKey, data: data}:
	default:
		h.log.WithField("league_key", leagueKey).Warn("WebSocket broadcast buffer full, update dropped")
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
