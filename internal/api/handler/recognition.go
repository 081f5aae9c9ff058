package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/recognizer"
)

const (
	// maxImageSize bounds the decoded payload, not the base64 text.
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

// RecognitionService is the slice of the recognizer the HTTP layer needs.
type RecognitionService interface {
	Enroll(ctx context.Context, image []byte, req recognizer.EnrollRequest) (*domain.EnrollResult, error)
	Identify(ctx context.Context, image []byte, opts recognizer.IdentifyOptions) (*domain.IdentifyResult, error)
	Update(ctx context.Context, image []byte, externalID string) (*domain.EnrollResult, error)
}

// RecognitionHandler handles enrollment and identification requests
type RecognitionHandler struct {
	service RecognitionService
	logger  *slog.Logger
}

// NewRecognitionHandler creates a new RecognitionHandler instance
func NewRecognitionHandler(service RecognitionService, logger *slog.Logger) *RecognitionHandler {
	return &RecognitionHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRequest body for the register endpoint
type RegisterRequest struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name,omitempty"`
	ClientRef   string `json:"client_ref,omitempty"`
	Image       string `json:"image"`
}

// RecognizeRequest body for the recognize endpoint
type RecognizeRequest struct {
	Image string `json:"image"`
}

// UpdateRequest body for the update endpoint
type UpdateRequest struct {
	ExternalID string `json:"external_id"`
	Image      string `json:"image"`
}

// Register POST /recognition/register - enroll a new user
func (h *RecognitionHandler) Register(c *fiber.Ctx) error {
	// 1. Parse body
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	// 2. Validate external_id
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("external_id is required"))
	}

	// 3. Decode and validate image
	image, err := decodeImage(req.Image)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	// 4. Call service to enroll
	result, err := h.service.Enroll(c.Context(), image, recognizer.EnrollRequest{
		ExternalID:  externalID,
		DisplayName: strings.TrimSpace(req.DisplayName),
		ClientRef:   strings.TrimSpace(req.ClientRef),
	})
	if err != nil {
		return err
	}

	// 5. Return response
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Recognize POST /recognition/recognize - identify a face against the population
func (h *RecognitionHandler) Recognize(c *fiber.Ctx) error {
	// 1. Parse body
	var req RecognizeRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	// 2. Decode and validate image
	image, err := decodeImage(req.Image)
	if err != nil {
		return fmt.Errorf("recognize: %w", err)
	}

	// 3. Call service to identify
	result, err := h.service.Identify(c.Context(), image, recognizer.IdentifyOptions{})
	if err != nil {
		return err
	}

	// 4. No candidate above threshold is a 404, not an empty 200
	if result.Match == nil {
		return domain.ErrNoMatch
	}

	// 5. Return response
	return c.JSON(result)
}

// Update PUT /recognition/update - replace a user's reference descriptor
func (h *RecognitionHandler) Update(c *fiber.Ctx) error {
	// 1. Parse body
	var req UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	// 2. Validate external_id
	externalID := strings.TrimSpace(req.ExternalID)
	if externalID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("external_id is required"))
	}

	// 3. Decode and validate image
	image, err := decodeImage(req.Image)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	// 4. Call service to update
	result, err := h.service.Update(c.Context(), image, externalID)
	if err != nil {
		return err
	}

	// 5. Return response
	return c.JSON(result)
}

// decodeImage decodes the base64 image field of a JSON body. A data URL
// prefix ("data:image/jpeg;base64,...") is tolerated and stripped.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}

	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, domain.ErrInvalidImage.WithError(errors.New("malformed data URL"))
		}
		s = s[idx+1:]
	}

	if base64.StdEncoding.DecodedLen(len(s)) > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image exceeds %d bytes", maxImageSize))
	}

	image, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	if len(image) == 0 {
		return nil, domain.ErrInvalidImage.WithError(errors.New("empty image payload"))
	}

	return image, nil
}
