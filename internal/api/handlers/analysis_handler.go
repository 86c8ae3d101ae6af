package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/analysis"
	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/recommendation"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/models"
	"github.com/agrodrone/backend/pkg/logger"
)

// FileRemover deletes stored uploads when their session is removed.
type FileRemover interface {
	Remove(rel string) error
}

type AnalysisHandler struct {
	service   *analysis.Service
	sessions  storage.SessionStore
	files     FileRemover
	maxImages int
}

func NewAnalysisHandler(service *analysis.Service, sessions storage.SessionStore, files FileRemover, maxImages int) *AnalysisHandler {
	return &AnalysisHandler{
		service:   service,
		sessions:  sessions,
		files:     files,
		maxImages: maxImages,
	}
}

func (h *AnalysisHandler) AnalyzeImages(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No images uploaded",
		})
	}

	headers := form.File["images"]
	if len(headers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No images uploaded",
		})
	}
	if h.maxImages > 0 && len(headers) > h.maxImages {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("At most %d images per batch", h.maxImages),
		})
	}

	images := make([]analysis.ImageFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			logger.Error("Failed to read upload", zap.String("image", fh.Filename), zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Failed to read uploaded image",
			})
		}
		images = append(images, analysis.ImageFile{Name: fh.Filename, Data: data})
	}

	result, err := h.service.AnalyzeBatchFor(c.UserContext(), auth.UserID(c), images)
	if err != nil {
		if errors.Is(err, analysis.ErrNoImages) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No images uploaded",
			})
		}
		logger.Error("Failed to analyze batch", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to analyze images",
		})
	}

	return c.JSON(result)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *AnalysisHandler) LatestSession(c *fiber.Ctx) error {
	sess, err := h.sessions.LatestSession(c.UserContext())
	if err != nil {
		return h.sessionError(c, err)
	}
	return h.respondSession(c, sess)
}

func (h *AnalysisHandler) GetSession(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid session id",
		})
	}

	sess, err := h.sessions.GetSession(c.UserContext(), id)
	if err != nil {
		return h.sessionError(c, err)
	}
	return h.respondSession(c, sess)
}

// DeleteSession removes a session, its image records and stored files. Only
// the owner or an admin may delete an owned session.
func (h *AnalysisHandler) DeleteSession(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid session id",
		})
	}

	ctx := c.UserContext()
	sess, err := h.sessions.GetSession(ctx, id)
	if err != nil {
		return h.sessionError(c, err)
	}
	if sess.UserID != 0 && sess.UserID != auth.UserID(c) && auth.Role(c) != string(models.RoleAdmin) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have permission to delete this session",
		})
	}

	images, err := h.sessions.ListImages(ctx, id)
	if err != nil {
		return h.sessionError(c, err)
	}
	if err := h.sessions.DeleteSession(ctx, id); err != nil {
		return h.sessionError(c, err)
	}

	if h.files != nil {
		for _, img := range images {
			if img.ImagePath == "" {
				continue
			}
			if err := h.files.Remove(img.ImagePath); err != nil {
				logger.Warn("Failed to remove stored image", zap.String("path", img.ImagePath), zap.Error(err))
			}
		}
	}

	logger.Info("Session deleted", zap.Int64("session_id", id), zap.Int("images", len(images)))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AnalysisHandler) respondSession(c *fiber.Ctx, sess *models.AnalysisSession) error {
	images, err := h.sessions.ListImages(c.UserContext(), sess.ID)
	if err != nil {
		return h.sessionError(c, err)
	}
	return c.JSON(fiber.Map{
		"session":         sess,
		"images":          images,
		"recommendations": recommendation.Evaluate(analysis.Summary(sess)),
	})
}

func (h *AnalysisHandler) sessionError(c *fiber.Ctx, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	}
	logger.Error("Session lookup failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to load session",
	})
}
