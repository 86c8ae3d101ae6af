package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/pkg/logger"
)

// LocalMessage holds the sanitized chat message for downstream handlers.
const LocalMessage = "sanitized_message"

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxMessageLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func (cfg *Config) defaults() {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEMultipartForm}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("validation")
	}
}

// ContentType rejects write requests whose body is neither JSON nor multipart.
func ContentType(cfg Config) fiber.Handler {
	cfg.defaults()
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		default:
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType == "" {
			return c.Next()
		}
		for _, allowed := range cfg.AllowedContentTypes {
			if strings.HasPrefix(strings.ToLower(contentType), allowed) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "Unsupported content type",
		})
	}
}

// ChatMessage validates {"message": "..."} bodies and stores the sanitized
// text under LocalMessage.
func ChatMessage(cfg Config) fiber.Handler {
	cfg.defaults()
	return func(c *fiber.Ctx) error {
		var req struct {
			Message string `json:"message"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}

		message := Sanitize(req.Message)
		if message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No message provided",
			})
		}
		if utf8.RuneCountInString(message) > cfg.MaxMessageLength {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Message exceeds maximum length",
			})
		}
		if ContainsXSS(message) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid message content",
			})
		}

		c.Locals(LocalMessage, message)
		return c.Next()
	}
}

// Multipart requires a multipart/form-data body.
func Multipart() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Expected multipart/form-data with an images field",
			})
		}
		return c.Next()
	}
}

func ContainsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

// Sanitize trims whitespace and drops NUL bytes.
func Sanitize(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
