package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

// Protected requires a valid access token, taken from the Authorization
// header or, for websocket upgrades, the token query parameter.
func Protected(m *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication credentials were not provided",
			})
		}

		claims, err := m.Parse(raw, TypeAccess)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		id, _ := claims.UserID()
		c.Locals(LocalUserID, id)
		c.Locals(LocalRole, claims.Role)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("token")
}

// UserID returns the authenticated user, or 0 on unprotected routes.
func UserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalUserID).(int64)
	return id
}

func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalRole).(string)
	return role
}
