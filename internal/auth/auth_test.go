package auth

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agrodrone/backend/internal/storage/models"
)

func testUser() *models.User {
	return &models.User{ID: 7, Email: "ada@farm.test", Role: models.RoleAgronomist}
}

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", "agrodrone", time.Hour, 24*time.Hour)
	pair, err := m.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(pair.Access, TypeAccess)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	id, _ := claims.UserID()
	if id != 7 || claims.Role != "agronomist" || claims.Issuer != "agrodrone" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := m.Parse(pair.Refresh, TypeRefresh); err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", "agrodrone", 0, 0)
	pair, _ := m.Issue(testUser())

	if _, err := m.Parse(pair.Refresh, TypeAccess); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected ErrTokenType, got %v", err)
	}
}

func TestParseRejectsForeignSecretAndIssuer(t *testing.T) {
	t.Parallel()

	pair, _ := NewTokenManager("other", "agrodrone", 0, 0).Issue(testUser())
	m := NewTokenManager("secret", "agrodrone", 0, 0)
	if _, err := m.Parse(pair.Access, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}

	pair, _ = NewTokenManager("secret", "someone-else", 0, 0).Issue(testUser())
	if _, err := m.Parse(pair.Access, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign issuer, got %v", err)
	}

	if _, err := m.Parse("not-a-jwt", TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", "agrodrone", time.Minute, time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	pair, _ := m.Issue(testUser())

	m.now = time.Now
	if _, err := m.Parse(pair.Access, TypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired access token to be rejected, got %v", err)
	}
}

func TestPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("harvest")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "harvest" {
		t.Fatal("password stored in clear")
	}
	if !CheckPassword(hash, "harvest") {
		t.Fatal("expected password to match")
	}
	if CheckPassword(hash, "Harvest") {
		t.Fatal("expected mismatch")
	}
}

func protectedApp(m *TokenManager) *fiber.App {
	app := fiber.New()
	app.Get("/me", Protected(m), func(c *fiber.Ctx) error {
		return c.SendString(fmt.Sprintf("%s:%d", Role(c), UserID(c)))
	})
	return app
}

func TestProtected(t *testing.T) {
	t.Parallel()

	m := NewTokenManager("secret", "agrodrone", 0, 0)
	pair, _ := m.Issue(testUser())
	app := protectedApp(m)

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"bearer", "Bearer " + pair.Access, "", fiber.StatusOK},
		{"lowercase scheme", "bearer " + pair.Access, "", fiber.StatusOK},
		{"query token", "", pair.Access, fiber.StatusOK},
		{"refresh as access", "Bearer " + pair.Refresh, "", fiber.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		target := "/me"
		if tc.query != "" {
			target += "?token=" + tc.query
		}
		req := httptest.NewRequest("GET", target, nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
		if tc.status == fiber.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			if string(body) != "agronomist:7" {
				t.Fatalf("%s: unexpected locals %q", tc.name, body)
			}
		}
	}
}
