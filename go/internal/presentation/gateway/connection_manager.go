package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SessionTracker is told when a session gains or loses a connection. Join is
// called once per connection, Leave once per disconnect
type SessionTracker interface {
	Join(ctx context.Context, code string) error
	Leave(code string)
}

// ConnectionManager manages WebSocket connections for presentation screens
type ConnectionManager struct {
	// Connection pools organized by session code
	sessionConnections map[string]map[*Connection]bool
	mu                 sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Latest undelivered event per session; wake is signalled on every write
	pendingMu sync.Mutex
	pending   map[string]*SessionEvent
	wake      chan struct{}

	tracker SessionTracker
}

// Connection represents a WebSocket connection to a screen
type Connection struct {
	ID          string
	ClientID    string
	SessionCode string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager

	ConnectedAt time.Time

	// set once a broadcast has been queued; a snapshot read earlier is stale
	updated atomic.Bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	SessionCode string
	Event       *SessionEvent
}

// ConnectionStats summarizes the open connections
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			// Screens are served from arbitrary classroom hosts
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, tracker SessionTracker) *ConnectionManager {
	return &ConnectionManager{
		sessionConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		pending: make(map[string]*SessionEvent),
		wake:    make(chan struct{}, 1),
		tracker: tracker,
	}
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case <-cm.wake:
			for _, message := range cm.takePending() {
				cm.handleBroadcast(message)
			}
		}
	}
}

// SnapshotFunc returns the event a new connection starts from, or nil
type SnapshotFunc func(ctx context.Context) *SessionEvent

// UpgradeConnection upgrades an HTTP connection to WebSocket. The connection
// is registered before snapshot is read, so a write racing the connect is
// either in the snapshot or broadcast to it. Broadcasts reach a connection
// in write order, so once one has arrived the snapshot is dropped
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, clientID, code string, snapshot SnapshotFunc) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		SessionCode: code,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(r.Context(), connection)

	if snapshot != nil {
		if initial := snapshot(context.WithoutCancel(r.Context())); initial != nil {
			cm.queue(connection, initial)
		}
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("client_id", clientID).
		Str("session_code", code).
		Msg("WebSocket connection established")

	return nil
}

// queue sends a snapshot to a single registered connection. It holds the
// write lock so no broadcast interleaves, and skips connections that already
// got a broadcast
func (cm *ConnectionManager) queue(conn *Connection, event *SessionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal session event")
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if !cm.sessionConnections[conn.SessionCode][conn] {
		return
	}
	if conn.updated.Load() {
		log.Debug().Str("connection_id", conn.ID).Msg("connection already updated, skipping snapshot")
		return
	}
	select {
	case conn.Send <- data:
	default:
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, skipping snapshot")
	}
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(ctx context.Context, conn *Connection) {
	cm.mu.Lock()
	if cm.sessionConnections[conn.SessionCode] == nil {
		cm.sessionConnections[conn.SessionCode] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionCode][conn] = true
	total := len(cm.sessionConnections[conn.SessionCode])
	cm.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_code", conn.SessionCode).
		Int("total_connections", total).
		Msg("connection registered")

	if cm.tracker != nil {
		if err := cm.tracker.Join(context.WithoutCancel(ctx), conn.SessionCode); err != nil {
			// The screen keeps its snapshot and waits for the relay to recover
			log.Error().
				Err(err).
				Str("session_code", conn.SessionCode).
				Msg("failed to join session relay")
		}
	}
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	removed := false
	if connections, exists := cm.sessionConnections[conn.SessionCode]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)
			removed = true

			// Clean up empty session connection pools
			if len(connections) == 0 {
				delete(cm.sessionConnections, conn.SessionCode)
			}
		}
	}
	cm.mu.Unlock()

	if !removed {
		return
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("client_id", conn.ClientID).
		Str("session_code", conn.SessionCode).
		Msg("connection unregistered")

	if cm.tracker != nil {
		cm.tracker.Leave(conn.SessionCode)
	}
}

// BroadcastToSession sends an event to all connections for a session. An
// event not yet picked up by the broadcast loop is replaced by a newer one
// for the same session
func (cm *ConnectionManager) BroadcastToSession(code string, event *SessionEvent) {
	cm.pendingMu.Lock()
	if _, replaced := cm.pending[code]; replaced {
		log.Debug().Str("session_code", code).Msg("superseding undelivered session event")
	}
	cm.pending[code] = event
	cm.pendingMu.Unlock()

	select {
	case cm.wake <- struct{}{}:
	default:
	}
}

func (cm *ConnectionManager) takePending() []BroadcastMessage {
	cm.pendingMu.Lock()
	defer cm.pendingMu.Unlock()

	messages := make([]BroadcastMessage, 0, len(cm.pending))
	for code, event := range cm.pending {
		messages = append(messages, BroadcastMessage{SessionCode: code, Event: event})
	}
	clear(cm.pending)
	return messages
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the read lock so a concurrent unregister cannot
	// close a Send channel mid-broadcast
	var slow []*Connection
	cm.mu.RLock()
	connections := cm.sessionConnections[message.SessionCode]
	delivered := len(connections)
	for conn := range connections {
		select {
		case conn.Send <- eventData:
			conn.updated.Store(true)
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("client_id", conn.ClientID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session_code", message.SessionCode).
		Int("connections", delivered-len(slow)).
		Msg("event broadcasted")
}

// ConnectionCount returns the number of screens connected to a session
func (cm *ConnectionManager) ConnectionCount(code string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.sessionConnections[code])
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{SessionConnections: make(map[string]int)}
	for code, connections := range cm.sessionConnections {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[code] = len(connections)
	}
	stats.ActiveSessions = len(cm.sessionConnections)
	return stats
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.sessionConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading from the WebSocket connection. Screens are pure
// consumers, so anything they send is only logged
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		log.Debug().
			Str("connection_id", c.ID).
			Str("client_id", c.ClientID).
			Int("bytes", len(message)).
			Msg("ignoring client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
