package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// WebSocket errors
var (
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrConnectionBufferFull = errors.New("connection buffer full")
)

// Feed event types
const (
	EventCommentReplied = "comment_replied"
	EventMessageReplied = "message_replied"
	EventReplyFailed    = "reply_failed"
)

// WebSocketManager fans reply events out to connected dashboards
type WebSocketManager struct {
	connections map[string]*WebSocketConnection
	mu          sync.RWMutex
	broadcast   chan BroadcastMessage
	closeOnce   sync.Once
}

// WebSocketConnection represents a single dashboard connection
type WebSocketConnection struct {
	ID       string
	Conn     *websocket.Conn
	Username string
	// PageID limits the feed to one page when set
	PageID string
	Send   chan []byte
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	PageID string
	Type   string
	Data   interface{}
}

// MessagePayload represents the structure of WebSocket messages
type MessagePayload struct {
	Type      string      `json:"type"`
	PageID    string      `json:"page_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// NewWebSocketManager creates a manager and starts its broadcast loop
func NewWebSocketManager() *WebSocketManager {
	m := &WebSocketManager{
		connections: make(map[string]*WebSocketConnection),
		broadcast:   make(chan BroadcastMessage, 100),
	}
	go m.handleBroadcast()
	return m
}

// RegisterConnection registers a new WebSocket connection
func (m *WebSocketManager) RegisterConnection(conn *WebSocketConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[conn.ID] = conn

	slog.Info("WebSocket connection registered",
		"connectionID", conn.ID,
		"username", conn.Username,
		"totalConnections", len(m.connections))
}

// UnregisterConnection removes a WebSocket connection
func (m *WebSocketManager) UnregisterConnection(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, exists := m.connections[connID]; exists {
		close(conn.Send)
		delete(m.connections, connID)

		slog.Info("WebSocket connection unregistered",
			"connectionID", connID,
			"remainingConnections", len(m.connections))
	}
}

// Subscribe restricts a connection to one page; an empty pageID receives every page
func (m *WebSocketManager) Subscribe(connID, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, exists := m.connections[connID]
	if !exists {
		return ErrConnectionNotFound
	}
	conn.PageID = pageID
	return nil
}

// Broadcast queues a message for every matching connection. It never blocks.
func (m *WebSocketManager) Broadcast(message BroadcastMessage) {
	if m == nil {
		return
	}
	select {
	case m.broadcast <- message:
	default:
		slog.Warn("WebSocket broadcast queue full, dropping event", "type", message.Type, "pageID", message.PageID)
	}
}

// Close stops the broadcast loop
func (m *WebSocketManager) Close() {
	m.closeOnce.Do(func() { close(m.broadcast) })
}

// handleBroadcast processes broadcast messages
func (m *WebSocketManager) handleBroadcast() {
	for message := range m.broadcast {
		payload := MessagePayload{
			Type:      message.Type,
			PageID:    message.PageID,
			Data:      message.Data,
			Timestamp: time.Now().Unix(),
		}

		jsonData, err := json.Marshal(payload)
		if err != nil {
			slog.Error("Failed to marshal WebSocket message", "error", err)
			continue
		}

		m.mu.RLock()
		for _, conn := range m.connections {
			if conn.PageID != "" && message.PageID != "" && conn.PageID != message.PageID {
				continue
			}
			select {
			case conn.Send <- jsonData:
			default:
				slog.Warn("WebSocket connection buffer full",
					"connectionID", conn.ID,
					"username", conn.Username)
			}
		}
		m.mu.RUnlock()
	}
}

// SendToConnection sends a message to a specific connection
func (m *WebSocketManager) SendToConnection(connID string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, exists := m.connections[connID]
	if !exists {
		return ErrConnectionNotFound
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrConnectionBufferFull
	}
}

// ConnectionCount returns the number of active connections
func (m *WebSocketManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}
