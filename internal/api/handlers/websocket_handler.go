package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/chat"
	"github.com/agrodrone/backend/internal/middleware/validation"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/pkg/logger"
)

type WebSocketHandler struct {
	chat    Chatter
	history storage.ChatStore
}

func NewWebSocketHandler(chat Chatter, history storage.ChatStore) *WebSocketHandler {
	return &WebSocketHandler{
		chat:    chat,
		history: history,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	userID, _ := c.Locals(auth.LocalUserID).(int64)
	role, _ := c.Locals(auth.LocalRole).(string)
	logger.Info("WebSocket connection established", zap.Int64("user_id", userID))

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed", zap.Int64("user_id", userID))
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		message := validation.Sanitize(msg.Content)
		if message == "" || validation.ContainsXSS(message) {
			h.sendError(c, "Invalid message content")
			continue
		}

		if err := h.streamReply(c, userID, role, message); err != nil {
			logger.Warn("Failed to stream reply", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) streamReply(c *websocket.Conn, userID int64, role, message string) error {
	ctx := context.Background()

	start := time.Now()
	reply := h.chat.Chat(ctx, message, role)
	latency := time.Since(start)
	recordTurn(ctx, h.history, userID, message, reply, latency)

	words := strings.Fields(reply.Response)
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		if err := h.sendChunk(c, word); err != nil {
			return err
		}
	}

	return h.sendComplete(c, reply, latency)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    "chunk",
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, reply chat.Reply, latency time.Duration) error {
	return c.WriteJSON(fiber.Map{
		"type":         "complete",
		"context_used": reply.ContextUsed,
		"user_role":    reply.UserRole,
		"path":         reply.Path,
		"latency_ms":   latency.Milliseconds(),
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	if err := c.WriteJSON(fiber.Map{
		"type":  "error",
		"error": errorMsg,
	}); err != nil {
		logger.Warn("Failed to send WebSocket error", zap.Error(err))
	}
}
