// Package hub pushes workflow progress events to connected clients over
// WebSocket, grouped by session.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event - one progress notification sent to subscribers
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event types
const (
	EventGenerateStarted   = "generate_started"
	EventGenerateCompleted = "generate_completed"
	EventGenerateFailed    = "generate_failed"
	EventDownloadCompleted = "download_completed"
	EventDownloadFailed    = "download_failed"
	EventSessionReset      = "session_reset"
)

type client struct {
	id        string
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
}

// Hub - per-session registry of connected clients
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*client
	log      *zap.SugaredLogger
}

func New(log *zap.SugaredLogger) *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*client),
		log:      log,
	}
}

// HandleWS - upgrade the connection and subscribe it to a session's events.
// The session id comes from the "session" query parameter.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		id:        uuid.New().String(),
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 256),
	}

	h.mu.Lock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[string]*client)
	}
	h.sessions[sessionID][c.id] = c
	count := len(h.sessions[sessionID])
	h.mu.Unlock()

	h.log.Infof("🔌 Client connected to session %s (%d listening)", sessionID, count)

	go c.writePump()
	go h.readPump(c)
}

// Publish - send an event to every client subscribed to the session.
// Clients that cannot keep up are dropped.
func (h *Hub) Publish(sessionID, eventType string, payload interface{}) {
	event := Event{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Errorf("❌ Failed to marshal event %s: %v", eventType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.sessions[sessionID] {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.sessions[sessionID], id)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.sessions[c.sessionID]; ok {
		if _, exists := clients[c.id]; exists {
			close(c.send)
			delete(clients, c.id)
		}
		if len(clients) == 0 {
			delete(h.sessions, c.sessionID)
		}
	}
}

// readPump - drain incoming frames so pings and close frames are processed.
// Subscribers do not send application messages.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warnf("⚠️ WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
