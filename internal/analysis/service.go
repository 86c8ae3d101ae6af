// Package analysis runs a batch of drone images through index extraction,
// yield estimation and aggregation, and persists the resulting session.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/metrics"
	"github.com/agrodrone/backend/internal/recommendation"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
	"github.com/agrodrone/backend/internal/vegetation"
	"github.com/agrodrone/backend/pkg/logger"
)

var ErrNoImages = errors.New("no images provided")

type ImageFile struct {
	Name string
	Data []byte
}

type BatchResult struct {
	SessionID          int64                 `json:"session_id"`
	NumImagesProcessed int                   `json:"num_images_processed"`
	CanopyCover        *float64              `json:"canopy_cover"`
	StressPercentage   *float64              `json:"stress_percentage"`
	YieldEstimate      *float64              `json:"yield_estimate"`
	VARI               *float64              `json:"vari"`
	GLI                *float64              `json:"gli"`
	EXG                *float64              `json:"exg"`
	Recommendations    []recommendation.Card `json:"recommendations"`
	FailedImages       []string              `json:"failed_images,omitempty"`
}

// FileStore persists the raw bytes of analyzed images.
type FileStore interface {
	Save(originalName string, data []byte) (string, error)
	Remove(rel string) error
}

// ReplyInvalidator is notified when a session closes so cached chat answers
// based on older data are dropped.
type ReplyInvalidator interface {
	InvalidateReplies(ctx context.Context) error
}

type Service struct {
	repo        storage.SessionStore
	decoder     vegetation.Decoder
	files       FileStore
	invalidator ReplyInvalidator
}

func NewService(repo storage.SessionStore, decoder vegetation.Decoder, files FileStore, invalidator ReplyInvalidator) *Service {
	if decoder == nil {
		decoder = vegetation.ImageDecoder{}
	}
	return &Service{
		repo:        repo,
		decoder:     decoder,
		files:       files,
		invalidator: invalidator,
	}
}

func (s *Service) AnalyzeBatch(ctx context.Context, images []ImageFile) (*BatchResult, error) {
	return s.AnalyzeBatchFor(ctx, 0, images)
}

// AnalyzeBatchFor opens a session owned by userID (0 for none), analyzes
// images sequentially and closes the session with the aggregate. Images that
// fail to decode are logged and skipped. Any other failure deletes the
// session and the files stored for it before returning.
func (s *Service) AnalyzeBatchFor(ctx context.Context, userID int64, images []ImageFile) (*BatchResult, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	start := time.Now()
	sess := &models.AnalysisSession{UserID: userID}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	metrics.SessionsCreated.Inc()

	logger.Info("Analyzing image batch",
		zap.Int64("session_id", sess.ID),
		zap.Int("images", len(images)),
	)

	results := make([]vegetation.Result, 0, len(images))
	var (
		failed []string
		saved  []string
	)
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			s.rollback(ctx, sess.ID, saved)
			return nil, err
		}

		res, path, err := s.analyzeImage(ctx, sess.ID, img)
		if path != "" {
			saved = append(saved, path)
		}
		if err != nil {
			if !errors.Is(err, vegetation.ErrImageDecode) {
				s.rollback(ctx, sess.ID, saved)
				return nil, err
			}
			logger.Warn("Skipping image",
				zap.Int64("session_id", sess.ID),
				zap.String("image", img.Name),
				zap.Error(err),
			)
			metrics.ImagesAnalyzed.WithLabelValues("failed").Inc()
			failed = append(failed, img.Name)
			continue
		}
		metrics.ImagesAnalyzed.WithLabelValues("success").Inc()
		results = append(results, res)
	}

	summary := vegetation.Aggregate(results)
	sess.NumImages = summary.Count
	sess.CanopyCover = summary.CanopyCover
	sess.StressPercentage = summary.StressPercentage
	sess.YieldEstimate = summary.YieldEstimate
	sess.VARI = summary.VARI
	sess.GLI = summary.GLI
	sess.EXG = summary.EXG
	if err := s.repo.UpdateSessionAggregate(ctx, sess); err != nil {
		s.rollback(ctx, sess.ID, saved)
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateReplies(ctx); err != nil {
			logger.Warn("Failed to invalidate reply cache", zap.Error(err))
		}
	}

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	if summary.HasData() {
		metrics.CanopyCover.Observe(*summary.CanopyCover)
	}

	logger.Info("Batch analyzed",
		zap.Int64("session_id", sess.ID),
		zap.Int("processed", summary.Count),
		zap.Int("failed", len(failed)),
		zap.Duration("took", time.Since(start)),
	)

	return &BatchResult{
		SessionID:          sess.ID,
		NumImagesProcessed: summary.Count,
		CanopyCover:        summary.CanopyCover,
		StressPercentage:   summary.StressPercentage,
		YieldEstimate:      summary.YieldEstimate,
		VARI:               summary.VARI,
		GLI:                summary.GLI,
		EXG:                summary.EXG,
		Recommendations:    recommendation.Evaluate(summary),
		FailedImages:       failed,
	}, nil
}

// analyzeImage returns the stored file path whenever the file was written,
// even if recording the image afterwards failed.
func (s *Service) analyzeImage(ctx context.Context, sessionID int64, img ImageFile) (vegetation.Result, string, error) {
	grid, err := s.decoder.Decode(img.Name, bytes.NewReader(img.Data))
	if err != nil {
		return vegetation.Result{}, "", err
	}
	idx, err := vegetation.Extract(grid)
	if err != nil {
		return vegetation.Result{}, "", err
	}
	yield := vegetation.EstimateYield(idx.CanopyPct, idx.StressPct)

	var path string
	if s.files != nil {
		path, err = s.files.Save(img.Name, img.Data)
		if err != nil {
			return vegetation.Result{}, "", err
		}
	}

	rec := &models.DroneImage{
		SessionID:     sessionID,
		ImagePath:     path,
		OriginalName:  img.Name,
		VARI:          idx.VARI,
		EXG:           idx.EXG,
		GLI:           idx.GLI,
		CanopyPct:     idx.CanopyPct,
		StressPct:     idx.StressPct,
		YieldEstimate: yield,
	}
	if err := s.repo.InsertImage(ctx, rec); err != nil {
		return vegetation.Result{}, path, fmt.Errorf("failed to record image: %w", err)
	}

	return vegetation.Result{Indices: idx, Yield: yield}, path, nil
}

// rollback removes a half-written session so it never becomes the latest one.
// It runs even when ctx is already cancelled.
func (s *Service) rollback(ctx context.Context, sessionID int64, paths []string) {
	ctx = context.WithoutCancel(ctx)

	if err := s.repo.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Error("Failed to roll back session", zap.Int64("session_id", sessionID), zap.Error(err))
	}
	if s.files != nil {
		for _, p := range paths {
			if err := s.files.Remove(p); err != nil {
				logger.Warn("Failed to remove stored image", zap.String("path", p), zap.Error(err))
			}
		}
	}
	logger.Warn("Session rolled back", zap.Int64("session_id", sessionID), zap.Int("files", len(paths)))
}

// Summary rebuilds the aggregate view of a stored session.
func Summary(sess *models.AnalysisSession) vegetation.Summary {
	return vegetation.Summary{
		Count:            sess.NumImages,
		CanopyCover:      sess.CanopyCover,
		StressPercentage: sess.StressPercentage,
		YieldEstimate:    sess.YieldEstimate,
		VARI:             sess.VARI,
		GLI:              sess.GLI,
		EXG:              sess.EXG,
	}
}
