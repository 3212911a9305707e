package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/juno/internal/logger"
)

func startServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.Discard())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer("0", hub, logger.Discard()).Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return hub, ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/projections" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestBroadcastRespectsLeagueFilter(t *testing.T) {
	hub, ts := startServer(t)
	filtered := dial(t, ts, "?league=nba.l.1")
	everything := dial(t, ts, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.BroadcastProjection("nba.l.2", 3, map[string]int{"home": 5})
	hub.BroadcastProjection("nba.l.1", 4, map[string]int{"home": 6})

	msg := readMessage(t, filtered)
	assert.Equal(t, MessageTypeProjection, msg.Type)
	assert.Equal(t, "nba.l.1", msg.LeagueKey)
	assert.Equal(t, 4, msg.Week)

	first := readMessage(t, everything)
	second := readMessage(t, everything)
	assert.Equal(t, "nba.l.2", first.LeagueKey)
	assert.Equal(t, "nba.l.1", second.LeagueKey)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, ts := startServer(t)
	conn := dial(t, ts, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthReportsClients(t *testing.T) {
	_, ts := startServer(t)
	resp, err := http.Get(ts.URL + "/ws/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["clients"])
}
