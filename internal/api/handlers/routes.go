package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/middleware/validation"
)

// Routes mounts every /api/v1 endpoint. Nil limiters are skipped.
type Routes struct {
	Auth      *AuthHandler
	Analysis  *AnalysisHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler

	Tokens          *auth.TokenManager
	Validation      validation.Config
	ChatLimiter     fiber.Handler
	AnalysisLimiter fiber.Handler
}

func (r Routes) Register(api fiber.Router) {
	protected := auth.Protected(r.Tokens)

	api.Get("/health", r.Health.Health)
	api.Get("/ready", r.Health.Ready)

	authGroup := api.Group("/auth")
	authGroup.Post("/register", r.Auth.Register)
	authGroup.Post("/login", r.Auth.Login)
	authGroup.Post("/refresh", r.Auth.Refresh)
	authGroup.Get("/me", protected, r.Auth.Profile)
	authGroup.Patch("/me", protected, r.Auth.UpdateProfile)

	api.Post("/crop-analysis", withLimiter(r.AnalysisLimiter,
		protected, validation.Multipart(), r.Analysis.AnalyzeImages)...)
	api.Get("/sessions/latest", protected, r.Analysis.LatestSession)
	api.Get("/sessions/:id", protected, r.Analysis.GetSession)
	api.Delete("/sessions/:id", protected, r.Analysis.DeleteSession)

	api.Post("/chatbot", withLimiter(r.ChatLimiter,
		protected, validation.ChatMessage(r.Validation), r.Chat.HandleChat)...)
	api.Get("/chatbot/history", protected, r.Chat.GetHistory)

	api.Get("/ws/chat", protected, r.WebSocket.Upgrade, websocket.New(r.WebSocket.HandleConnection))
}

// withLimiter inserts limiter after the auth handler so buckets key on the user.
func withLimiter(limiter fiber.Handler, protected fiber.Handler, rest ...fiber.Handler) []fiber.Handler {
	chain := []fiber.Handler{protected}
	if limiter != nil {
		chain = append(chain, limiter)
	}
	return append(chain, rest...)
}
