// Package storage defines the datastore contract shared by the SQL and
// in-memory backends.
package storage

import (
	"context"
	"errors"

	"github.com/agrodrone/backend/internal/storage/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type SessionStore interface {
	// CreateSession assigns ID and CreatedAt.
	CreateSession(ctx context.Context, s *models.AnalysisSession) error
	InsertImage(ctx context.Context, img *models.DroneImage) error
	// UpdateSessionAggregate overwrites the image count and the six aggregate fields.
	UpdateSessionAggregate(ctx context.Context, s *models.AnalysisSession) error
	LatestSession(ctx context.Context) (*models.AnalysisSession, error)
	GetSession(ctx context.Context, id int64) (*models.AnalysisSession, error)
	DeleteSession(ctx context.Context, id int64) error
	ListImages(ctx context.Context, sessionID int64) ([]models.DroneImage, error)
	CountImages(ctx context.Context, sessionID int64) (int, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

type ChatStore interface {
	InsertChatRecord(ctx context.Context, r *models.ChatRecord) error
	ChatHistory(ctx context.Context, userID int64, limit int) ([]models.ChatRecord, error)
}

type Repository interface {
	SessionStore
	UserStore
	ChatStore
	Ping(ctx context.Context) error
	Close() error
}
