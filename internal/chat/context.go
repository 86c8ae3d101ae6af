package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
	"github.com/agrodrone/backend/internal/vegetation"
	"github.com/agrodrone/backend/pkg/logger"
)

const DefaultRole = string(models.RoleFarmer)

// ContextSource is the read side of the session store the assistant needs.
type ContextSource interface {
	LatestSession(ctx context.Context) (*models.AnalysisSession, error)
	CountImages(ctx context.Context, sessionID int64) (int, error)
}

// Context is what the assistant knows about the caller's field. Metric fields
// are meaningless when HasData is false.
type Context struct {
	HasData          bool
	SessionID        int64
	ImagesCount      int
	CanopyCover      float64
	StressPercentage float64
	YieldEstimate    float64
	VARI             float64
	GLI              float64
	EXG              float64
	UserRole         string
}

// BuildContext reads the latest session. Store failures degrade to a
// context without data.
func BuildContext(ctx context.Context, src ContextSource, role string) Context {
	if role == "" {
		role = DefaultRole
	}
	c := Context{UserRole: role}
	if src == nil {
		return c
	}

	sess, err := src.LatestSession(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("Failed to load latest session for chat", zap.Error(err))
		}
		return c
	}
	if sess.CanopyCover == nil {
		return c
	}

	n, err := src.CountImages(ctx, sess.ID)
	if err != nil {
		logger.Warn("Failed to count session images", zap.Int64("session_id", sess.ID), zap.Error(err))
		n = sess.NumImages
	}

	c.HasData = true
	c.SessionID = sess.ID
	c.ImagesCount = n
	c.CanopyCover = vegetation.Round(vegetation.Value(sess.CanopyCover), 2)
	c.StressPercentage = vegetation.Round(vegetation.Value(sess.StressPercentage), 2)
	c.YieldEstimate = vegetation.Round(vegetation.Value(sess.YieldEstimate), 2)
	c.VARI = vegetation.Round(vegetation.Value(sess.VARI), 3)
	c.GLI = vegetation.Round(vegetation.Value(sess.GLI), 3)
	c.EXG = vegetation.Round(vegetation.Value(sess.EXG), 3)
	return c
}

// Summary renders the metrics as one compact line for prompts.
func (c Context) Summary() string {
	if !c.HasData {
		return "No drone analysis is available yet."
	}
	return fmt.Sprintf(
		"Latest drone analysis (%d images): canopy cover %.2f%%, stress %.2f%%, yield estimate %.2f t/ha, VARI %.3f, GLI %.3f, EXG %.3f.",
		c.ImagesCount, c.CanopyCover, c.StressPercentage, c.YieldEstimate, c.VARI, c.GLI, c.EXG,
	)
}
