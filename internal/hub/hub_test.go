package hub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/evanhu96/load-management-app/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type hubFixture struct {
	registry *Registry
	server   *httptest.Server
	wsURL    string
}

func setupHub(t *testing.T) *hubFixture {
	t.Helper()
	registry := NewRegistry(logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))

	e := echo.New()
	e.GET("/ws", registry.ServeWS)
	server := httptest.NewServer(e)

	t.Cleanup(func() {
		registry.Close()
		server.Close()
	})

	return &hubFixture{
		registry: registry,
		server:   server,
		wsURL:    "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func dial(t *testing.T, f *hubFixture) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitForEvent reads until a message of the wanted type arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, event string) Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for time.Now().Before(deadline) {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", event)
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		if msg.Type == event {
			return msg
		}
	}
	t.Fatalf("event %q never arrived", event)
	return Message{}
}

func sendMessage(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(Message{Type: event, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, body))
}

func identify(t *testing.T, conn *websocket.Conn, role string) {
	t.Helper()
	sendMessage(t, conn, "identify", map[string]string{"type": role, "version": "1.0.0"})
}

func TestRegistry_WelcomeAndStats(t *testing.T) {
	f := setupHub(t)

	conn := dial(t, f)
	msg := waitForEvent(t, conn, EventConnected)

	var payload struct {
		Message  string `json:"message"`
		SocketID string `json:"socketId"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	assert.Equal(t, "Connected to Load Management Server", payload.Message)
	assert.NotEmpty(t, payload.SocketID)

	stats := f.registry.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.UnknownClients)
}

func TestRegistry_IdentifyChangesRole(t *testing.T) {
	f := setupHub(t)

	dashboard := dial(t, f)
	waitForEvent(t, dashboard, EventConnected)
	identify(t, dashboard, RoleDashboard)

	collector := dial(t, f)
	waitForEvent(t, collector, EventConnected)
	identify(t, collector, RoleCollector)

	require.Eventually(t, func() bool {
		stats := f.registry.Stats()
		return stats.DashboardClients == 1 && stats.CollectorClients == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.registry.Stats().TotalConnections)
}

func TestRegistry_HeartbeatAck(t *testing.T) {
	f := setupHub(t)

	conn := dial(t, f)
	waitForEvent(t, conn, EventConnected)

	sendMessage(t, conn, "heartbeat", map[string]string{})
	msg := waitForEvent(t, conn, EventHeartbeatAck)

	var payload struct {
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	_, err := time.Parse(time.RFC3339, payload.Timestamp)
	assert.NoError(t, err)
}

func TestRegistry_LoadDataRelayExcludesSender(t *testing.T) {
	f := setupHub(t)

	var mu sync.Mutex
	var received []string
	f.registry.OnLoadData(func(clientID string, payload json.RawMessage) {
		mu.Lock()
		received = append(received, string(payload))
		mu.Unlock()
	})

	sender := dial(t, f)
	waitForEvent(t, sender, EventConnected)
	identify(t, sender, RoleCollector)

	observer := dial(t, f)
	waitForEvent(t, observer, EventConnected)

	batch := []map[string]any{{"hash": "h1", "rate": 2000}}
	sendMessage(t, sender, "load_data", batch)

	msg := waitForEvent(t, observer, EventLoadDataReceived)
	var relayed []map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &relayed))
	require.Len(t, relayed, 1)
	assert.Equal(t, "h1", relayed[0]["hash"])

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// The sender must not see its own batch echoed back. Send a heartbeat
	// and verify the ack is the next relevant message.
	sendMessage(t, sender, "heartbeat", map[string]string{})
	ack := waitForEvent(t, sender, EventHeartbeatAck)
	assert.Equal(t, EventHeartbeatAck, ack.Type)
}

func TestRegistry_BroadcastReachesAll(t *testing.T) {
	f := setupHub(t)

	first := dial(t, f)
	waitForEvent(t, first, EventConnected)
	second := dial(t, f)
	waitForEvent(t, second, EventConnected)

	f.registry.Broadcast(EventLoadUpdate, map[string]string{"hash": "b-1"})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := waitForEvent(t, conn, EventLoadUpdate)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, "b-1", payload["hash"])
	}
}

func TestRegistry_BroadcastToRole(t *testing.T) {
	f := setupHub(t)

	dashboard := dial(t, f)
	waitForEvent(t, dashboard, EventConnected)
	identify(t, dashboard, RoleDashboard)

	collector := dial(t, f)
	waitForEvent(t, collector, EventConnected)
	identify(t, collector, RoleCollector)

	require.Eventually(t, func() bool {
		stats := f.registry.Stats()
		return stats.DashboardClients == 1 && stats.CollectorClients == 1
	}, 5*time.Second, 10*time.Millisecond)

	f.registry.BroadcastToRole(RoleCollector, EventRefreshRequested, nil)
	waitForEvent(t, collector, EventRefreshRequested)

	// The dashboard only sees its heartbeat ack, not the role broadcast.
	sendMessage(t, dashboard, "heartbeat", map[string]string{})
	ack := waitForEvent(t, dashboard, EventHeartbeatAck)
	assert.Equal(t, EventHeartbeatAck, ack.Type)
}

func TestRegistry_RequestRefreshFromClient(t *testing.T) {
	f := setupHub(t)

	requester := dial(t, f)
	waitForEvent(t, requester, EventConnected)
	other := dial(t, f)
	waitForEvent(t, other, EventConnected)

	sendMessage(t, requester, "request_refresh", map[string]string{})
	waitForEvent(t, other, EventRefreshRequested)
}

func TestRegistry_DisconnectUpdatesStats(t *testing.T) {
	f := setupHub(t)

	conn := dial(t, f)
	waitForEvent(t, conn, EventConnected)
	require.Equal(t, 1, f.registry.Stats().TotalConnections)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return f.registry.Stats().TotalConnections == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRegistry_MalformedMessageIgnored(t *testing.T) {
	f := setupHub(t)

	conn := dial(t, f)
	waitForEvent(t, conn, EventConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// The connection stays alive and keeps serving.
	sendMessage(t, conn, "heartbeat", map[string]string{})
	waitForEvent(t, conn, EventHeartbeatAck)
}

func TestRegistry_ManyConcurrentBroadcasts(t *testing.T) {
	f := setupHub(t)

	conn := dial(t, f)
	waitForEvent(t, conn, EventConnected)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.registry.Broadcast(EventLoadUpdate, map[string]string{"hash": fmt.Sprintf("c-%d", i)})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for len(seen) < n {
		msg := waitForEvent(t, conn, EventLoadUpdate)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		seen[payload["hash"]] = true
	}
	assert.Len(t, seen, n)
}

// A broadcast snapshots the client table and delivers outside the lock, so
// a snapshotted client can disconnect mid-loop. Delivery to the departed
// client must be dropped, never attempted on its closed queue.
func TestRegistry_BroadcastDuringDisconnect(t *testing.T) {
	r := NewRegistry(logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 500 {
			client := r.register(nil)
			r.Unregister(client.ID)
		}
	}()

	for range 500 {
		r.Broadcast(EventRefreshRequested, nil)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Stats().TotalConnections)
}
