package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evanhu96/load-management-app/internal/errors"
	"github.com/evanhu96/load-management-app/internal/ingest"
	"github.com/evanhu96/load-management-app/internal/logger"
)

const wsWriteWait = 10 * time.Second

// wsMessage is the wire envelope shared with the server.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerConn is the collector's push channel to the server. Writes are
// serialized with a mutex since gorilla/websocket allows one writer at a
// time. The read loop dispatches server events to the registered handlers.
type ServerConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	log     logger.Logger

	// OnRefreshRequested fires when the server asks for a re-push of all
	// watched files. Set before calling Listen.
	OnRefreshRequested func()

	closeOnce sync.Once
	closed    chan struct{}
}

// DialServer opens and identifies a websocket connection to the server.
// serverURL is the HTTP base URL; the scheme is rewritten for the websocket
// endpoint.
func DialServer(ctx context.Context, serverURL, version string, timeout time.Duration, log logger.Logger) (*ServerConn, error) {
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, &errors.ConnectionError{Err: err}
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &errors.ConnectionError{Err: err}
	}

	sc := &ServerConn{
		conn:   conn,
		log:    log,
		closed: make(chan struct{}),
	}

	if err := sc.send("identify", map[string]string{
		"type":    "collector",
		"version": version,
	}); err != nil {
		sc.Close()
		return nil, &errors.ConnectionError{Err: err}
	}
	return sc, nil
}

// websocketURL rewrites an HTTP base URL into the ws endpoint URL.
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = "/api/ws"
	return u.String(), nil
}

// PushLoads sends a batch over the live channel.
func (s *ServerConn) PushLoads(loads []*ingest.LoadInput) error {
	return s.send("load_data", loads)
}

// Heartbeat reports liveness and current stats to the server.
func (s *ServerConn) Heartbeat(stats Stats) error {
	return s.send("heartbeat", map[string]any{
		"timestamp": time.Now().Format(time.RFC3339),
		"status":    "alive",
		"stats":     stats,
	})
}

// Listen reads server events until the connection drops or ctx is done.
// The returned error is nil on a clean shutdown.
func (s *ServerConn) Listen(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.closed:
		}
	}()

	for {
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &errors.ConnectionError{Err: err}
		}

		switch msg.Type {
		case "connected":
			s.log.Info("server welcome received")
		case "heartbeat_ack":
			s.log.Debug("heartbeat acknowledged")
		case "refresh_requested":
			s.log.Info("refresh requested by server")
			if s.OnRefreshRequested != nil {
				s.OnRefreshRequested()
			}
		default:
			s.log.Debug("ignoring server event", logger.String("type", msg.Type))
		}
	}
}

// Close shuts the connection down. Safe to call multiple times.
func (s *ServerConn) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.writeMu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *ServerConn) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := s.conn.WriteJSON(wsMessage{Type: event, Data: data}); err != nil {
		return &errors.ConnectionError{Err: err}
	}
	return nil
}
