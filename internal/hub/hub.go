// Package hub fans events out to connected dashboards and collector agents
// over websockets. Each connection runs a reader and a writer goroutine;
// the client table is the only shared structure and every mutation holds
// its mutex.
package hub

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/evanhu96/load-management-app/internal/logger"
)

// Server-to-client events.
const (
	EventConnected            = "connected"
	EventHeartbeatAck         = "heartbeat_ack"
	EventLoadDataReceived     = "load_data_received"
	EventRefreshRequested     = "refresh_requested"
	EventLoadUpdate           = "load_update"
	EventLoadsBulkUpdate      = "loads_bulk_update"
	EventLoadDeleted          = "load_deleted"
	EventConfigUpdated        = "config_updated"
	EventSettingsUpdated      = "settings_updated"
	EventDispatchInputsUpdate = "dispatch_inputs_updated"
)

// Client-to-server events.
const (
	eventIdentify       = "identify"
	eventHeartbeat      = "heartbeat"
	eventLoadData       = "load_data"
	eventRequestRefresh = "request_refresh"
	eventConfigUpdate   = "config_update"
)

// Message is the wire envelope in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// identifyPayload is the body of an identify message.
type identifyPayload struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// LoadDataHandler receives raw load batches pushed by collectors.
type LoadDataHandler func(clientID string, payload json.RawMessage)

// Stats counts connections by role.
type Stats struct {
	TotalConnections int `json:"totalConnections"`
	DashboardClients int `json:"dashboardClients"`
	CollectorClients int `json:"collectorClients"`
	UnknownClients   int `json:"unknownClients"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Validate Origin against Host to prevent cross-site websocket
		// hijacking. Non-browser clients (collectors, wscat) omit Origin
		// and are allowed through.
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Registry tracks connected clients and relays events between them.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client

	onLoadData LoadDataHandler
	log        logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// OnLoadData registers the handler invoked when a collector pushes a batch.
// Must be called before the registry starts accepting connections.
func (r *Registry) OnLoadData(handler LoadDataHandler) {
	r.onLoadData = handler
}

// ServeWS upgrades an HTTP request and runs the connection until it closes.
func (r *Registry) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		r.log.Error("websocket upgrade failed", logger.Error(err))
		return err
	}

	client := r.register(conn)
	go client.writePump()

	r.sendTo(client, EventConnected, map[string]any{
		"message":   "Connected to Load Management Server",
		"timestamp": time.Now().Format(time.RFC3339),
		"socketId":  client.ID,
	})

	r.readPump(client)
	// Connection is hijacked; Echo must not write a response.
	return nil
}

// register adds a new undeclared client.
func (r *Registry) register(conn *websocket.Conn) *Client {
	now := time.Now()
	client := &Client{
		ID:           uuid.NewString(),
		Role:         RoleUndeclared,
		ConnectedAt:  now,
		LastActivity: now,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
	}

	r.mu.Lock()
	r.clients[client.ID] = client
	total := len(r.clients)
	r.mu.Unlock()

	connectionsGauge.WithLabelValues(RoleUndeclared).Inc()
	r.log.Info("client connected",
		logger.String("socket_id", client.ID),
		logger.Int("total_clients", total))
	return client
}

// Unregister removes a client and closes its send queue.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	client, ok := r.clients[clientID]
	if ok {
		delete(r.clients, clientID)
	}
	total := len(r.clients)
	r.mu.Unlock()

	if !ok {
		return
	}
	connectionsGauge.WithLabelValues(client.Role).Dec()
	client.close()
	r.log.Info("client disconnected",
		logger.String("socket_id", clientID),
		logger.String("role", client.Role),
		logger.Int("total_clients", total))
}

// Identify sets a client's role and version. Repeat identifies overwrite.
func (r *Registry) Identify(clientID, role, version string) {
	if role != RoleDashboard && role != RoleCollector {
		role = RoleUndeclared
	}

	r.mu.Lock()
	client, ok := r.clients[clientID]
	var prev string
	if ok {
		prev = client.Role
		client.Role = role
		client.Version = version
		client.LastActivity = time.Now()
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if prev != role {
		connectionsGauge.WithLabelValues(prev).Dec()
		connectionsGauge.WithLabelValues(role).Inc()
	}
	r.log.Info("client identified",
		logger.String("socket_id", clientID),
		logger.String("role", role),
		logger.String("version", version))
}

// Heartbeat refreshes a client's activity timestamp and acknowledges with
// the server's current time.
func (r *Registry) Heartbeat(clientID string) {
	r.mu.Lock()
	client, ok := r.clients[clientID]
	if ok {
		client.LastActivity = time.Now()
	}
	r.mu.Unlock()

	if ok {
		r.sendTo(client, EventHeartbeatAck, map[string]string{
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

// RelayLoadData mirrors a collector batch to every other connection before
// the authoritative persisted broadcast happens.
func (r *Registry) RelayLoadData(fromID string, payload json.RawMessage) {
	msg, err := marshalMessage(EventLoadDataReceived, payload)
	if err != nil {
		r.log.Error("failed to marshal relay message", logger.Error(err))
		return
	}
	r.sendAll(EventLoadDataReceived, msg, fromID)
}

// RequestRefresh tells every connection to push its current state.
func (r *Registry) RequestRefresh() {
	r.Broadcast(EventRefreshRequested, nil)
}

// Broadcast sends an event to all connections.
func (r *Registry) Broadcast(event string, payload any) {
	msg, err := marshalMessage(event, payload)
	if err != nil {
		r.log.Error("failed to marshal broadcast",
			logger.String("event", event),
			logger.Error(err))
		return
	}
	r.sendAll(event, msg, "")
}

// BroadcastToRole sends an event only to connections with the given role.
func (r *Registry) BroadcastToRole(role, event string, payload any) {
	msg, err := marshalMessage(event, payload)
	if err != nil {
		r.log.Error("failed to marshal broadcast",
			logger.String("event", event),
			logger.Error(err))
		return
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		if client.Role == role {
			targets = append(targets, client)
		}
	}
	r.mu.RUnlock()

	for _, client := range targets {
		r.deliver(client, event, msg)
	}
}

// Stats returns connection counts by role.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{TotalConnections: len(r.clients)}
	for _, client := range r.clients {
		switch client.Role {
		case RoleDashboard:
			stats.DashboardClients++
		case RoleCollector:
			stats.CollectorClients++
		default:
			stats.UnknownClients++
		}
	}
	return stats
}

// Close disconnects every client. Used during shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, client := range clients {
		connectionsGauge.WithLabelValues(client.Role).Dec()
		client.close()
	}
}

// readPump processes incoming messages until the connection drops, then
// unregisters the client.
func (r *Registry) readPump(client *Client) {
	defer r.Unregister(client.ID)

	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Warn("websocket read error",
					logger.String("socket_id", client.ID),
					logger.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			r.log.Warn("discarding malformed message",
				logger.String("socket_id", client.ID),
				logger.Error(err))
			continue
		}
		messagesTotal.WithLabelValues(msg.Type, "in").Inc()
		r.handleMessage(client, &msg)
	}
}

func (r *Registry) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case eventIdentify:
		var payload identifyPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			r.log.Warn("malformed identify payload",
				logger.String("socket_id", client.ID),
				logger.Error(err))
			return
		}
		r.Identify(client.ID, payload.Type, payload.Version)
	case eventHeartbeat:
		r.Heartbeat(client.ID)
	case eventLoadData:
		r.touch(client.ID)
		r.RelayLoadData(client.ID, msg.Data)
		if r.onLoadData != nil {
			r.onLoadData(client.ID, msg.Data)
		}
	case eventRequestRefresh:
		r.log.Info("refresh requested", logger.String("socket_id", client.ID))
		r.RequestRefresh()
	case eventConfigUpdate:
		msgBytes, err := marshalMessage(EventConfigUpdated, msg.Data)
		if err != nil {
			return
		}
		r.sendAll(EventConfigUpdated, msgBytes, client.ID)
	default:
		r.log.Debug("ignoring unknown message type",
			logger.String("socket_id", client.ID),
			logger.String("type", msg.Type))
	}
}

func (r *Registry) touch(clientID string) {
	r.mu.Lock()
	if client, ok := r.clients[clientID]; ok {
		client.LastActivity = time.Now()
	}
	r.mu.Unlock()
}

// sendAll delivers a pre-marshaled message to every client except the one
// identified by exceptID (empty means no exception).
func (r *Registry) sendAll(event string, msg []byte, exceptID string) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for id, client := range r.clients {
		if id == exceptID {
			continue
		}
		targets = append(targets, client)
	}
	r.mu.RUnlock()

	for _, client := range targets {
		r.deliver(client, event, msg)
	}
}

func (r *Registry) sendTo(client *Client, event string, payload any) {
	msg, err := marshalMessage(event, payload)
	if err != nil {
		r.log.Error("failed to marshal message",
			logger.String("event", event),
			logger.Error(err))
		return
	}
	r.deliver(client, event, msg)
}

// deliver enqueues a message, dropping the client if its buffer is full so
// one slow dashboard cannot stall the rest.
func (r *Registry) deliver(client *Client, event string, msg []byte) {
	if client.enqueue(msg) {
		messagesTotal.WithLabelValues(event, "out").Inc()
		return
	}
	droppedClientsTotal.Inc()
	r.log.Warn("dropping slow client",
		logger.String("socket_id", client.ID),
		logger.String("role", client.Role))
	r.Unregister(client.ID)
}

func marshalMessage(event string, payload any) ([]byte, error) {
	msg := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: event, Data: payload}
	return json.Marshal(msg)
}
