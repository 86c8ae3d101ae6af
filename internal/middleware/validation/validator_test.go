package validation

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func chatApp() *fiber.App {
	app := fiber.New()
	app.Post("/chat", ChatMessage(Config{MaxMessageLength: 20}), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalMessage).(string))
	})
	return app
}

func TestChatMessage(t *testing.T) {
	t.Parallel()

	app := chatApp()
	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"ok", `{"message":"  canopy?  "}`, fiber.StatusOK, "canopy?"},
		{"nul stripped", `{"message":"yield\u0000"}`, fiber.StatusOK, "yield"},
		{"empty", `{"message":"   "}`, fiber.StatusBadRequest, ""},
		{"missing", `{}`, fiber.StatusBadRequest, ""},
		{"too long", `{"message":"` + strings.Repeat("a", 21) + `"}`, fiber.StatusBadRequest, ""},
		{"xss", `{"message":"<script>x</script>"}`, fiber.StatusBadRequest, ""},
		{"bad json", `{"message":`, fiber.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/chat", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
		if tc.want != "" {
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tc.want {
				t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, body)
			}
		}
	}
}

func TestContentTypeAndMultipart(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(ContentType(Config{}))
	app.Post("/upload", Multipart(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Post("/json", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	cases := []struct {
		path, contentType string
		status            int
	}{
		{"/json", "application/json", fiber.StatusNoContent},
		{"/json", "text/plain", fiber.StatusUnsupportedMediaType},
		{"/upload", "multipart/form-data; boundary=x", fiber.StatusNoContent},
		{"/upload", "application/json", fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", tc.path, strings.NewReader("{}"))
		req.Header.Set("Content-Type", tc.contentType)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.path, tc.contentType, tc.status, resp.StatusCode)
		}
	}
}
