// Package signal streams window snapshots to remote drivers over WebSocket.
package signal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meetprobe/internal/core/state"
	"meetprobe/pkg/listeners"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const sendQueueSize = 8

type WebSocketServer struct {
	window *state.Window

	connections map[string]*connection
	mu          sync.RWMutex

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

type connection struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	timers *listeners.Manager
}

// ClientMessage is a request from a driver.
type ClientMessage struct {
	Type    string `json:"type"`
	Binding string `json:"binding,omitempty"`
}

// SnapshotMessage is pushed on connect and after every sync.
type SnapshotMessage struct {
	Type     string         `json:"type"`
	Version  uint64         `json:"version"`
	Bindings map[string]any `json:"bindings"`
}

type BindingMessage struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Value   any    `json:"value"`
	Version uint64 `json:"version"`
}

func NewWebSocketServer(window *state.Window, logger *zap.SugaredLogger) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WebSocketServer{
		window:       window,
		connections:  make(map[string]*connection),
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       logger,
	}
}

func (s *WebSocketServer) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetReadTimeout bounds the silence tolerated from a driver, pongs included.
func (s *WebSocketServer) SetReadTimeout(timeout time.Duration) {
	s.readTimeout = timeout
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	c := &connection{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		timers: listeners.NewManager(s.logger),
	}

	s.mu.Lock()
	s.connections[c.id] = c
	s.mu.Unlock()
	s.logger.Infow("snapshot stream connected", "connection_id", c.id, "remote", r.RemoteAddr)

	defer s.cleanup(c)

	// Subscribe before the initial push so no sync falls in between.
	if _, err := c.timers.AddListener(s.window, state.EventSync, func(payload any) {
		if snap, ok := payload.(state.Snapshot); ok {
			s.enqueue(c, snapshotMessage(snap))
		}
	}); err != nil {
		s.logger.Errorw("failed to subscribe to window syncs", "connection_id", c.id, "error", err)
		return
	}
	s.enqueue(c, snapshotMessage(s.window.Snapshot()))

	done := make(chan struct{})
	go s.writeLoop(c, done)

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading from snapshot stream", "connection_id", c.id, "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		s.handleMessage(c, msg)
	}

	close(done)
}

func (s *WebSocketServer) handleMessage(c *connection, msg ClientMessage) {
	switch msg.Type {
	case "snapshot":
		s.enqueue(c, snapshotMessage(s.window.Snapshot()))
	case "get":
		v, ok := s.window.Lookup(msg.Binding)
		if !ok {
			s.enqueue(c, errorMessage(fmt.Sprintf("unknown binding: %s", msg.Binding)))
			return
		}
		s.enqueue(c, BindingMessage{Type: "binding", Name: msg.Binding, Value: v, Version: s.window.Version()})
	case "":
		s.enqueue(c, errorMessage("message type is required"))
	default:
		s.enqueue(c, errorMessage(fmt.Sprintf("unknown message type: %s", msg.Type)))
	}
}

// writeLoop owns all writes to the connection.
func (s *WebSocketServer) writeLoop(c *connection, done <-chan struct{}) {
	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Infow("error writing snapshot", "connection_id", c.id, "error", err)
				c.conn.Close()
				return
			}
		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "connection_id", c.id, "error", err)
				c.conn.Close()
				return
			}
		}
	}
}

// enqueue never blocks the sync path. A slow reader loses its oldest queued
// message; snapshots are cumulative so only the newest matters.
func (s *WebSocketServer) enqueue(c *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Errorw("failed to marshal stream message", "connection_id", c.id, "error", err)
		return
	}
	for {
		select {
		case c.send <- data:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (s *WebSocketServer) cleanup(c *connection) {
	c.timers.Cleanup()

	s.mu.Lock()
	delete(s.connections, c.id)
	s.mu.Unlock()

	c.conn.Close()
	s.logger.Infow("snapshot stream disconnected", "connection_id", c.id)
}

func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func snapshotMessage(snap state.Snapshot) SnapshotMessage {
	return SnapshotMessage{Type: "snapshot", Version: snap.Version, Bindings: snap.Bindings}
}

func errorMessage(message string) map[string]string {
	return map[string]string{
		"type":    "error",
		"message": message,
	}
}
