package handlers

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"autoreply-bot/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// WebSocketMessage represents an incoming WebSocket message
type WebSocketMessage struct {
	Type   string `json:"type"`
	PageID string `json:"page_id,omitempty"`
}

// WebSocketUpgrade upgrades HTTP connection to WebSocket
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebSocketHandler streams reply events to operator dashboards
type WebSocketHandler struct {
	feed *services.WebSocketManager
}

func NewWebSocketHandler(feed *services.WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{feed: feed}
}

// Handle runs one dashboard connection until it closes
func (h *WebSocketHandler) Handle(c *websocket.Conn) {
	username, _ := c.Locals("username").(string)

	conn := &services.WebSocketConnection{
		ID:       uuid.NewString(),
		Conn:     c,
		Username: username,
		PageID:   c.Query("page_id"),
		Send:     make(chan []byte, 256),
	}

	h.feed.RegisterConnection(conn)
	defer h.feed.UnregisterConnection(conn.ID)

	h.reply(conn.ID, map[string]interface{}{
		"type":          "connected",
		"message":       "WebSocket connection established",
		"connection_id": conn.ID,
	})

	go writePump(conn)
	h.readPump(conn)
}

// writePump drains the connection's send queue and keeps it alive with pings
func writePump(conn *services.WebSocketConnection) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Error("Failed to write WebSocket message", "error", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) readPump(conn *services.WebSocketConnection) {
	conn.Conn.SetReadLimit(64 * 1024)
	conn.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket read error", "error", err)
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var msg WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Failed to parse WebSocket message", "error", err)
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(conn.ID, map[string]string{"type": "pong"})

		case "subscribe":
			if err := h.feed.Subscribe(conn.ID, msg.PageID); err != nil {
				slog.Error("Failed to subscribe", "error", err, "connectionID", conn.ID)
				continue
			}
			slog.Info("WebSocket client subscribed", "connectionID", conn.ID, "pageID", msg.PageID)
			h.reply(conn.ID, map[string]string{"type": "subscribed", "page_id": msg.PageID})

		default:
			slog.Warn("Unknown WebSocket message type", "type", msg.Type, "connectionID", conn.ID)
			h.reply(conn.ID, map[string]string{"type": "error", "error": "unknown message type"})
		}
	}
}

func (h *WebSocketHandler) reply(connID string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.feed.SendToConnection(connID, data); err != nil {
		slog.Warn("Failed to queue WebSocket reply", "error", err, "connectionID", connID)
	}
}
