package handler

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/visage-id/visage/internal/batch"
	"github.com/visage-id/visage/internal/domain"
)

// BatchService is the job registry surface used by the HTTP layer.
type BatchService interface {
	CreateJob(items []batch.Item) (*batch.Job, error)
	GetJob(id uuid.UUID) (*batch.Job, error)
	ListJobs(limit int) []batch.Summary
}

// BatchHandler handles batch identification requests
type BatchHandler struct {
	service BatchService
	logger  *slog.Logger
}

// NewBatchHandler creates a new BatchHandler instance
func NewBatchHandler(service BatchService, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		service: service,
		logger:  logger,
	}
}

// BatchImageRequest is one item of a batch submission
type BatchImageRequest struct {
	ID    string `json:"id,omitempty"`
	Image string `json:"image"`
}

// BatchCreateRequest body for the batch endpoint
type BatchCreateRequest struct {
	Images []BatchImageRequest `json:"images"`
}

// Create POST /recognition/batch - submit a batch identification job
func (h *BatchHandler) Create(c *fiber.Ctx) error {
	// 1. Parse body
	var req BatchCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	// 2. Build items. Decode failures are not rejected here: the pipeline
	// validates every payload, so a junk item surfaces as a per-item error
	// instead of killing the whole submission.
	items := make([]batch.Item, 0, len(req.Images))
	for _, img := range req.Images {
		payload, err := decodeImage(img.Image)
		if err != nil {
			payload = []byte(img.Image)
		}
		items = append(items, batch.Item{ID: img.ID, Image: payload})
	}

	// 3. Create the job (validates 1..max size)
	job, err := h.service.CreateJob(items)
	if err != nil {
		return err
	}

	// 4. Return 202 with the pending snapshot
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// Get GET /recognition/batch/:jobId - job details with results so far
func (h *BatchHandler) Get(c *fiber.Ctx) error {
	// 1. Parse job id
	id, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("invalid job id %q", c.Params("jobId")))
	}

	// 2. Look up the job
	job, err := h.service.GetJob(id)
	if err != nil {
		return err
	}

	// 3. Return response
	return c.JSON(job)
}

// List GET /recognition/batch - job summaries, newest first
func (h *BatchHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)

	jobs := h.service.ListJobs(limit)

	return c.JSON(fiber.Map{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
