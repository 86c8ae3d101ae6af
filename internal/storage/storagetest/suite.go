// Package storagetest holds behaviour tests every storage.Repository backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
)

func ptr(v float64) *float64 { return &v }

// Run exercises repo-agnostic behaviour. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	t.Run("SessionLifecycle", func(t *testing.T) { testSessionLifecycle(t, newRepo(t)) })
	t.Run("LatestSession", func(t *testing.T) { testLatestSession(t, newRepo(t)) })
	t.Run("DeleteCascades", func(t *testing.T) { testDeleteCascades(t, newRepo(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newRepo(t)) })
	t.Run("ChatHistory", func(t *testing.T) { testChatHistory(t, newRepo(t)) })
}

func testSessionLifecycle(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	sess := &models.AnalysisSession{}
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID == 0 || sess.CreatedAt.IsZero() {
		t.Fatalf("session not assigned id/created_at: %+v", sess)
	}

	got, err := repo.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.CanopyCover != nil || got.NumImages != 0 {
		t.Fatalf("fresh session should have no aggregate: %+v", got)
	}

	for i, name := range []string{"a.png", "b.png"} {
		img := &models.DroneImage{
			SessionID:     sess.ID,
			ImagePath:     "drone_images/" + name,
			OriginalName:  name,
			VARI:          0.1 * float64(i+1),
			EXG:           10,
			GLI:           0.2,
			CanopyPct:     50,
			StressPct:     5,
			YieldEstimate: 2.85,
		}
		if err := repo.InsertImage(ctx, img); err != nil {
			t.Fatalf("insert image: %v", err)
		}
		if img.ID == 0 {
			t.Fatal("image id not assigned")
		}
	}

	n, err := repo.CountImages(ctx, sess.ID)
	if err != nil || n != 2 {
		t.Fatalf("count images = %d, %v", n, err)
	}
	images, err := repo.ListImages(ctx, sess.ID)
	if err != nil || len(images) != 2 || images[0].OriginalName != "a.png" {
		t.Fatalf("list images = %+v, %v", images, err)
	}

	sess.NumImages = 2
	sess.CanopyCover = ptr(50)
	sess.StressPercentage = ptr(5)
	sess.YieldEstimate = ptr(2.85)
	sess.VARI = ptr(0.15)
	sess.GLI = ptr(0.2)
	sess.EXG = ptr(10)
	if err := repo.UpdateSessionAggregate(ctx, sess); err != nil {
		t.Fatalf("update aggregate: %v", err)
	}

	got, err = repo.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.NumImages != 2 || got.CanopyCover == nil || *got.CanopyCover != 50 || *got.VARI != 0.15 {
		t.Fatalf("aggregate not persisted: %+v", got)
	}

	if _, err := repo.GetSession(ctx, sess.ID+1000); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	missing := &models.AnalysisSession{ID: sess.ID + 1000}
	if err := repo.UpdateSessionAggregate(ctx, missing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func testLatestSession(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	if _, err := repo.LatestSession(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := &models.AnalysisSession{CreatedAt: base}
	newer := &models.AnalysisSession{CreatedAt: base.Add(time.Minute)}
	// Insert the newer one first so ordering cannot come from ids alone.
	for _, s := range []*models.AnalysisSession{newer, older} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	latest, err := repo.LatestSession(ctx)
	if err != nil {
		t.Fatalf("latest session: %v", err)
	}
	if latest.ID != newer.ID {
		t.Fatalf("latest = %d, want %d", latest.ID, newer.ID)
	}
}

func testDeleteCascades(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	sess := &models.AnalysisSession{}
	if err := repo.CreateSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err := repo.InsertImage(ctx, &models.DroneImage{SessionID: sess.ID, ImagePath: "x.png"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	n, err := repo.CountImages(ctx, sess.ID)
	if err != nil || n != 0 {
		t.Fatalf("images survived session delete: %d, %v", n, err)
	}
}

func testUsers(t *testing.T, repo storage.Repository) {
	ctx := context.Background()

	u := &models.User{
		Email:        "Grower@Example.com",
		FirstName:    "Ama",
		LastName:     "Owusu",
		Role:         models.RoleFarmer,
		PasswordHash: "hash",
		IsActive:     true,
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := *u
	dup.ID = 0
	if err := repo.CreateUser(ctx, &dup); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate email, got %v", err)
	}

	byEmail, err := repo.GetUserByEmail(ctx, "grower@example.com")
	if err != nil || byEmail.ID != u.ID || !byEmail.IsActive || byEmail.Role != models.RoleFarmer {
		t.Fatalf("get by email = %+v, %v", byEmail, err)
	}

	byEmail.Role = models.RoleAgronomist
	byEmail.Phone = "+233200000000"
	if err := repo.UpdateUser(ctx, byEmail); err != nil {
		t.Fatalf("update user: %v", err)
	}
	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil || byID.Role != models.RoleAgronomist || byID.Phone != "+233200000000" {
		t.Fatalf("get by id = %+v, %v", byID, err)
	}

	if _, err := repo.GetUserByID(ctx, u.ID+99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testChatHistory(t *testing.T, repo storage.Repository) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, msg := range []string{"hello", "what is my yield", "thanks"} {
		r := &models.ChatRecord{
			ID:          uuid.NewString(),
			UserID:      7,
			Message:     msg,
			Response:    "reply",
			Path:        "quick",
			ContextUsed: i == 1,
			LatencyMS:   3,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.InsertChatRecord(ctx, r); err != nil {
			t.Fatalf("insert chat record: %v", err)
		}
	}
	other := &models.ChatRecord{ID: uuid.NewString(), UserID: 8, Message: "hi", Response: "r", Path: "quick", CreatedAt: base}
	if err := repo.InsertChatRecord(ctx, other); err != nil {
		t.Fatal(err)
	}

	history, err := repo.ChatHistory(ctx, 7, 2)
	if err != nil {
		t.Fatalf("chat history: %v", err)
	}
	if len(history) != 2 || history[0].Message != "thanks" || history[1].Message != "what is my yield" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if !history[1].ContextUsed {
		t.Fatal("context_used flag lost")
	}
}
