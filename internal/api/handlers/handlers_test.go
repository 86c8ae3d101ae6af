package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agrodrone/backend/internal/analysis"
	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/chat"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/memory"
	"github.com/agrodrone/backend/internal/storage/models"
)

type noModel struct{}

func (noModel) Get(context.Context) (chat.Model, chat.Tokenizer, error) {
	return nil, nil, errors.New("model unavailable")
}

type testServer struct {
	app    *fiber.App
	repo   *memory.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := memory.New()
	tokens := auth.NewTokenManager("test-secret", "agrodrone", time.Hour, 24*time.Hour)
	dispatcher := chat.NewDispatcher(repo, noModel{}, chat.Options{
		Timeout: 200 * time.Millisecond,
		Pick:    func(int) int { return 0 },
	})

	app := fiber.New()
	Routes{
		Auth:      NewAuthHandler(repo, tokens),
		Analysis:  NewAnalysisHandler(analysis.NewService(repo, nil, nil, nil), repo, nil, 3),
		Chat:      NewChatHandler(dispatcher, repo),
		WebSocket: NewWebSocketHandler(dispatcher, repo),
		Health:    NewHealthHandler(map[string]Pinger{"storage": repo}),
		Tokens:    tokens,
	}.Register(app.Group("/api/v1"))

	return &testServer{app: app, repo: repo, tokens: tokens}
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) (*http.Response, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return resp, body
}

func (s *testServer) doJSON(t *testing.T, method, target, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return s.do(t, req, token)
}

// seedUser creates a user directly in the store and returns an access token.
func (s *testServer) seedUser(t *testing.T, email string, role models.Role) (*models.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{Email: email, Role: role, PasswordHash: hash, IsActive: true}
	if err := s.repo.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	pair, err := s.tokens.Issue(u)
	if err != nil {
		t.Fatal(err)
	}
	return u, pair.Access
}

func solidPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("images", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/v1/crop-analysis", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.doJSON(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"first_name": "Ada", "email": "Ada@Farm.test", "password": "secret1",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("register: %d %v", resp.StatusCode, body)
	}
	user := body["user"].(map[string]any)
	if user["email"] != "ada@farm.test" || user["role"] != "farmer" {
		t.Fatalf("unexpected user %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatal("password hash serialized")
	}

	resp, _ = s.doJSON(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"email": "ada@farm.test", "password": "secret1",
	})
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}

	resp, _ = s.doJSON(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "ada@farm.test", "password": "wrong-pass",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", resp.StatusCode)
	}

	resp, body = s.doJSON(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "ADA@farm.test", "password": "secret1",
	})
	if resp.StatusCode != fiber.StatusOK || body["success"] != true || body["message"] != "Login successful" {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	tokens := body["tokens"].(map[string]any)
	access, refresh := tokens["access"].(string), tokens["refresh"].(string)

	resp, body = s.doJSON(t, "GET", "/api/v1/auth/me", access, nil)
	if resp.StatusCode != fiber.StatusOK || body["user"].(map[string]any)["first_name"] != "Ada" {
		t.Fatalf("me: %d %v", resp.StatusCode, body)
	}

	resp, body = s.doJSON(t, "PATCH", "/api/v1/auth/me", access, map[string]string{
		"phone": "+254700000000", "role": "agronomist",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("patch: %d %v", resp.StatusCode, body)
	}
	if u := body["user"].(map[string]any); u["phone"] != "+254700000000" || u["role"] != "agronomist" || u["email"] != "ada@farm.test" {
		t.Fatalf("unexpected patched user %v", u)
	}

	resp, _ = s.doJSON(t, "PATCH", "/api/v1/auth/me", access, map[string]string{"role": "admin"})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("self-promotion: expected 403, got %d", resp.StatusCode)
	}

	resp, _ = s.doJSON(t, "GET", "/api/v1/auth/me", refresh, nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("refresh token as access: expected 401, got %d", resp.StatusCode)
	}

	resp, body = s.doJSON(t, "POST", "/api/v1/auth/refresh", "", map[string]string{"refresh": refresh})
	if resp.StatusCode != fiber.StatusOK || body["access"] == "" {
		t.Fatalf("refresh: %d %v", resp.StatusCode, body)
	}
	claims, err := s.tokens.Parse(body["access"].(string), auth.TypeAccess)
	if err != nil || claims.Role != "agronomist" {
		t.Fatalf("refreshed token should carry the new role: %v %+v", err, claims)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	cases := []map[string]string{
		{"email": "not-an-email", "password": "secret1"},
		{"email": "a@farm.test", "password": "short"},
		{"email": "a@farm.test", "password": "secret1", "role": "pilot"},
		{"email": "a@farm.test", "password": "secret1", "role": "admin"},
	}
	for _, payload := range cases {
		resp, body := s.doJSON(t, "POST", "/api/v1/auth/register", "", payload)
		if resp.StatusCode != fiber.StatusBadRequest || body["success"] != false {
			t.Fatalf("%v: expected 400, got %d %v", payload, resp.StatusCode, body)
		}
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	s := newTestServer(t)
	u, _ := s.seedUser(t, "off@farm.test", models.RoleFarmer)
	u.IsActive = false
	if err := s.repo.UpdateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	resp, body := s.doJSON(t, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": "off@farm.test", "password": "secret1",
	})
	if resp.StatusCode != fiber.StatusUnauthorized || body["message"] != "Account is disabled" {
		t.Fatalf("expected disabled account rejection, got %d %v", resp.StatusCode, body)
	}
}

func TestCropAnalysisAndSessions(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "grower@farm.test", models.RoleFarmer)

	resp, _ := s.doJSON(t, "GET", "/api/v1/sessions/latest", token, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("latest before upload: expected 404, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, httptest.NewRequest("POST", "/api/v1/crop-analysis", nil), "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("anonymous upload: expected 401, got %d", resp.StatusCode)
	}

	req := multipartRequest(t, map[string][]byte{
		"field.png":   solidPNG(t, color.NRGBA{0, 200, 0, 255}),
		"corrupt.png": []byte("not an image"),
	})
	resp, body := s.do(t, req, token)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("analysis: %d %v", resp.StatusCode, body)
	}
	if body["num_images_processed"] != float64(1) || body["canopy_cover"] != float64(100) {
		t.Fatalf("unexpected batch result %v", body)
	}
	if failed := body["failed_images"].([]any); len(failed) != 1 || failed[0] != "corrupt.png" {
		t.Fatalf("unexpected failed images %v", failed)
	}
	sessionID := body["session_id"].(float64)

	resp, body = s.doJSON(t, "GET", "/api/v1/sessions/latest", token, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("latest: %d", resp.StatusCode)
	}
	sess := body["session"].(map[string]any)
	if sess["id"] != sessionID || len(body["images"].([]any)) != 1 || len(body["recommendations"].([]any)) == 0 {
		t.Fatalf("unexpected latest session %v", body)
	}

	resp, _ = s.doJSON(t, "GET", "/api/v1/sessions/abc", token, nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", resp.StatusCode)
	}
	resp, _ = s.doJSON(t, "GET", "/api/v1/sessions/999", token, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("missing session: expected 404, got %d", resp.StatusCode)
	}
}

func TestCropAnalysisLimits(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "grower@farm.test", models.RoleFarmer)
	img := solidPNG(t, color.NRGBA{0, 200, 0, 255})

	resp, _ := s.do(t, multipartRequest(t, map[string][]byte{}), token)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("empty batch: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, multipartRequest(t, map[string][]byte{
		"a.png": img, "b.png": img, "c.png": img, "d.png": img,
	}), token)
	if resp.StatusCode != fiber.StatusRequestEntityTooLarge {
		t.Fatalf("oversized batch: expected 413, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest("POST", "/api/v1/crop-analysis", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = s.do(t, req, token)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("json body: expected 400, got %d", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestServer(t)
	_, owner := s.seedUser(t, "owner@farm.test", models.RoleFarmer)
	_, other := s.seedUser(t, "other@farm.test", models.RoleFarmer)
	_, admin := s.seedUser(t, "admin@farm.test", models.RoleAdmin)

	upload := func() string {
		_, body := s.do(t, multipartRequest(t, map[string][]byte{
			"a.png": solidPNG(t, color.NRGBA{0, 200, 0, 255}),
		}), owner)
		return "/api/v1/sessions/" + jsonNumber(body["session_id"])
	}

	path := upload()
	resp, _ := s.doJSON(t, "DELETE", path, other, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("other user delete: expected 403, got %d", resp.StatusCode)
	}
	resp, _ = s.doJSON(t, "DELETE", path, owner, nil)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("owner delete: expected 204, got %d", resp.StatusCode)
	}
	resp, _ = s.doJSON(t, "GET", path, owner, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("deleted session: expected 404, got %d", resp.StatusCode)
	}

	path = upload()
	resp, _ = s.doJSON(t, "DELETE", path, admin, nil)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("admin delete: expected 204, got %d", resp.StatusCode)
	}
}

func jsonNumber(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestChatbot(t *testing.T) {
	s := newTestServer(t)
	u, token := s.seedUser(t, "agro@farm.test", models.RoleAgronomist)

	resp, body := s.doJSON(t, "POST", "/api/v1/chatbot", token, map[string]string{"message": "hello"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("chat: %d %v", resp.StatusCode, body)
	}
	if body["response"] == "" || body["context_used"] != false || body["user_role"] != "agronomist" {
		t.Fatalf("unexpected reply %v", body)
	}
	if _, ok := body["path"]; ok {
		t.Fatal("dispatch path should not be part of the reply body")
	}

	resp, body = s.doJSON(t, "POST", "/api/v1/chatbot", token, map[string]string{"message": "how do I rotate crops on clay?"})
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(body["response"].(string), "rotate crops") {
		t.Fatalf("fallback reply: %d %v", resp.StatusCode, body)
	}

	resp, body = s.doJSON(t, "POST", "/api/v1/chatbot", token, map[string]string{"message": "   "})
	if resp.StatusCode != fiber.StatusBadRequest || body["error"] != "No message provided" {
		t.Fatalf("empty message: %d %v", resp.StatusCode, body)
	}

	records, err := s.repo.ChatHistory(context.Background(), u.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[0].Path != chat.PathFallback || records[1].Path != chat.PathQuick {
		t.Fatalf("unexpected history %+v", records)
	}

	resp, body = s.doJSON(t, "GET", "/api/v1/chatbot/history?limit=1", token, nil)
	if resp.StatusCode != fiber.StatusOK || len(body["history"].([]any)) != 1 {
		t.Fatalf("history: %d %v", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.doJSON(t, "GET", "/api/v1/health", "", nil)
	if resp.StatusCode != fiber.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
	resp, body = s.doJSON(t, "GET", "/api/v1/ready", "", nil)
	if resp.StatusCode != fiber.StatusOK || body["checks"].(map[string]any)["storage"] != "ok" {
		t.Fatalf("ready: %d %v", resp.StatusCode, body)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return storage.ErrNotFound }

func TestReadyReportsUnavailableDependency(t *testing.T) {
	app := fiber.New()
	h := NewHealthHandler(map[string]Pinger{"redis": downPinger{}})
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(t)
	_, token := s.seedUser(t, "ws@farm.test", models.RoleFarmer)

	resp, _ := s.doJSON(t, "GET", "/api/v1/ws/chat", token, nil)
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
	resp, _ = s.doJSON(t, "GET", "/api/v1/ws/chat", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}
