package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	AllowedOrigins []string
	IsDevelopment  bool
}

func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	csp := strings.Join([]string{
		"default-src 'self'",
		"img-src 'self' data: blob:",
		"connect-src " + connectSrc(cfg.AllowedOrigins),
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}, "; ")

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", csp)

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		return c.Next()
	}
}

// connectSrc allows the configured front-ends plus websocket upgrades to self.
func connectSrc(origins []string) string {
	parts := append([]string{"'self'", "ws:", "wss:"}, origins...)
	return strings.Join(parts, " ")
}
