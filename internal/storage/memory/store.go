// Package memory is an in-process storage.Repository for tests and
// single-node demos.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	nextID   int64
	sessions map[int64]models.AnalysisSession
	images   map[int64][]models.DroneImage
	users    map[int64]models.User
	chats    []models.ChatRecord
}

func New() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[int64]models.AnalysisSession),
		images:   make(map[int64][]models.DroneImage),
		users:    make(map[int64]models.User),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneSession(in models.AnalysisSession) *models.AnalysisSession {
	cp := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	in.CanopyCover = cp(in.CanopyCover)
	in.StressPercentage = cp(in.StressPercentage)
	in.YieldEstimate = cp(in.YieldEstimate)
	in.VARI = cp(in.VARI)
	in.GLI = cp(in.GLI)
	in.EXG = cp(in.EXG)
	return &in
}

func (s *Store) CreateSession(_ context.Context, sess *models.AnalysisSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.ID = s.id()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	s.sessions[sess.ID] = *cloneSession(*sess)
	return nil
}

func (s *Store) UpdateSessionAggregate(_ context.Context, sess *models.AnalysisSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sess.ID]
	if !ok {
		return fmt.Errorf("session %d: %w", sess.ID, storage.ErrNotFound)
	}
	next := cloneSession(*sess)
	next.CreatedAt = cur.CreatedAt
	next.UserID = cur.UserID
	s.sessions[sess.ID] = *next
	return nil
}

func (s *Store) LatestSession(context.Context) (*models.AnalysisSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.AnalysisSession
	for _, sess := range s.sessions {
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) ||
			(sess.CreatedAt.Equal(latest.CreatedAt) && sess.ID > latest.ID) {
			latest = cloneSession(sess)
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("latest session: %w", storage.ErrNotFound)
	}
	return latest, nil
}

func (s *Store) GetSession(_ context.Context, id int64) (*models.AnalysisSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, storage.ErrNotFound)
	}
	return cloneSession(sess), nil
}

func (s *Store) DeleteSession(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("session %d: %w", id, storage.ErrNotFound)
	}
	delete(s.sessions, id)
	delete(s.images, id)
	return nil
}

func (s *Store) InsertImage(_ context.Context, img *models.DroneImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[img.SessionID]; !ok {
		return fmt.Errorf("session %d: %w", img.SessionID, storage.ErrNotFound)
	}
	img.ID = s.id()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = s.now()
	}
	s.images[img.SessionID] = append(s.images[img.SessionID], *img)
	return nil
}

func (s *Store) ListImages(_ context.Context, sessionID int64) ([]models.DroneImage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.images[sessionID]), nil
}

func (s *Store) CountImages(_ context.Context, sessionID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images[sessionID]), nil
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return fmt.Errorf("user %s: %w", u.Email, storage.ErrConflict)
		}
	}
	u.ID = s.id()
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return fmt.Errorf("user %d: %w", u.ID, storage.ErrNotFound)
	}
	u.Email = cur.Email
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) InsertChatRecord(_ context.Context, r *models.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.chats = append(s.chats, *r)
	return nil
}

func (s *Store) ChatHistory(_ context.Context, userID int64, limit int) ([]models.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatRecord
	for i := len(s.chats) - 1; i >= 0; i-- {
		if s.chats[i].UserID == userID {
			out = append(out, s.chats[i])
		}
	}
	slices.SortStableFunc(out, func(a, b models.ChatRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ storage.Repository = (*Store)(nil)
