package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/recognizer"
)

// AdminService covers settings, stats, logs and index maintenance.
type AdminService interface {
	Settings() domain.Settings
	ApplySettings(ctx context.Context, s domain.Settings) (domain.Settings, error)
	ApplyProfile(ctx context.Context, name string) (domain.Settings, error)
	RebuildIndex(ctx context.Context) (index.RebuildStats, error)
	RecentLogs(ctx context.Context, limit int) ([]domain.RecognitionLog, error)
	Stats() recognizer.Stats
}

// IndexInspector exposes the index snapshot for the stats endpoint.
type IndexInspector interface {
	Stats() index.Stats
}

// AdminHandler handles operational endpoints
type AdminHandler struct {
	service AdminService
	index   IndexInspector
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler instance
func NewAdminHandler(service AdminService, index IndexInspector, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		index:   index,
		logger:  logger,
	}
}

// UpdateSettingsRequest body for the settings endpoint. Either a named
// profile or individual thresholds; thresholds left out keep their value.
type UpdateSettingsRequest struct {
	Profile             string   `json:"profile,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	MinFaceSize         *int     `json:"min_face_size,omitempty"`
	MaxFaceSize         *int     `json:"max_face_size,omitempty"`
	DetectionConfidence *float64 `json:"detection_confidence,omitempty"`
}

// RebuildIndex POST /recognition/index/rebuild - rebuild the index from the store
func (h *AdminHandler) RebuildIndex(c *fiber.Ctx) error {
	// The rebuild runs detached; progress is visible through logs and
	// GET /recognition/index/stats.
	go func() {
		stats, err := h.service.RebuildIndex(context.Background())
		if err != nil {
			h.logger.Error("index rebuild failed", slog.Any("error", err))
			return
		}
		h.logger.Info("index rebuild finished",
			slog.Int("indexed", stats.Indexed),
			slog.Int("skipped", stats.Skipped),
			slog.Duration("took", stats.Duration),
		)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "rebuilding",
	})
}

// IndexStats GET /recognition/index/stats - point-in-time index snapshot
func (h *AdminHandler) IndexStats(c *fiber.Ctx) error {
	return c.JSON(h.index.Stats())
}

// Stats GET /recognition/stats - rolling recognition counters
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.service.Stats())
}

// GetSettings GET /recognition/settings - active thresholds and presets
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"settings": h.service.Settings(),
		"profiles": domain.Profiles(),
	})
}

// UpdateSettings PUT /recognition/settings - hot-apply thresholds or a profile
func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	// 1. Parse body
	var req UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	// 2. A named profile wins over individual thresholds
	if req.Profile != "" {
		applied, err := h.service.ApplyProfile(c.Context(), req.Profile)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"settings": applied})
	}

	// 3. Overlay the provided thresholds on the current settings
	settings := h.service.Settings()
	if req.ConfidenceThreshold != nil {
		settings.ConfidenceThreshold = *req.ConfidenceThreshold
	}
	if req.MinFaceSize != nil {
		settings.MinFaceSize = *req.MinFaceSize
	}
	if req.MaxFaceSize != nil {
		settings.MaxFaceSize = *req.MaxFaceSize
	}
	if req.DetectionConfidence != nil {
		settings.DetectionConfidence = *req.DetectionConfidence
	}

	// 4. Apply, validating the combination
	applied, err := h.service.ApplySettings(c.Context(), settings)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"settings": applied})
}

// Logs GET /recognition/logs - recent recognition attempts
func (h *AdminHandler) Logs(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	logs, err := h.service.RecentLogs(c.Context(), limit)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []domain.RecognitionLog{}
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
