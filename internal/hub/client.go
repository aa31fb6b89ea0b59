package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client roles. A connection starts undeclared and declares itself through
// an identify message.
const (
	RoleUndeclared = "undeclared"
	RoleDashboard  = "dashboard"
	RoleCollector  = "collector"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait
	maxMsgSize = 1024 * 1024         // collectors push whole batches

	// sendBufferSize is the per-client outbound queue. A client that
	// cannot drain this many messages is dropped as a slow consumer.
	sendBufferSize = 64
)

// Client is one websocket connection tracked by the registry.
type Client struct {
	ID           string
	Role         string
	Version      string
	ConnectedAt  time.Time
	LastActivity time.Time

	conn *websocket.Conn

	// sendMu guards send and closed so a broadcast holding a stale client
	// snapshot cannot write to a channel that Unregister already closed.
	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue queues a marshaled message for the writer goroutine. Returns
// false when the buffer is full, which marks the client as too slow.
// Messages for an already closed client are silently dropped.
func (c *Client) enqueue(msg []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once, releasing the writer goroutine.
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump serializes all writes to the connection. gorilla/websocket
// allows at most one concurrent writer, so queued messages and pings go
// through this single goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
