package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/chat"
	"github.com/agrodrone/backend/internal/middleware/validation"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
	"github.com/agrodrone/backend/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Chatter answers one chat turn.
type Chatter interface {
	Chat(ctx context.Context, message, role string) chat.Reply
}

type ChatHandler struct {
	chat    Chatter
	history storage.ChatStore
}

func NewChatHandler(chat Chatter, history storage.ChatStore) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		history: history,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	message, _ := c.Locals(validation.LocalMessage).(string)
	if message == "" {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		message = validation.Sanitize(req.Message)
	}
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No message provided",
		})
	}

	start := time.Now()
	reply := h.chat.Chat(c.UserContext(), message, auth.Role(c))
	recordTurn(c.UserContext(), h.history, auth.UserID(c), message, reply, time.Since(start))

	return c.JSON(reply)
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	records, err := h.history.ChatHistory(c.UserContext(), auth.UserID(c), limit)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}
	if records == nil {
		records = []models.ChatRecord{}
	}

	return c.JSON(fiber.Map{
		"history": records,
	})
}

// recordTurn persists a chat turn. Failures are logged; the reply has already
// been produced.
func recordTurn(ctx context.Context, store storage.ChatStore, userID int64, message string, reply chat.Reply, latency time.Duration) {
	if store == nil {
		return
	}
	rec := &models.ChatRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		Message:     message,
		Response:    reply.Response,
		Path:        reply.Path,
		ContextUsed: reply.ContextUsed,
		LatencyMS:   int(latency.Milliseconds()),
	}
	if err := store.InsertChatRecord(ctx, rec); err != nil {
		logger.Warn("Failed to record chat turn", zap.Error(err))
	}
}
