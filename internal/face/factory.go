package face

import (
	"fmt"
	"log/slog"

	"github.com/visage-id/visage/internal/config"
	"github.com/visage-id/visage/internal/vision"
	"github.com/visage-id/visage/internal/vision/deepface"
	"github.com/visage-id/visage/internal/vision/mock"
)

// ProviderType defines supported vision provider types
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace HTTP backend
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeMock is the deterministic in-process backend for dev/test
	ProviderTypeMock ProviderType = "mock"
)

// NewProvider creates a vision.Provider instance based on configuration
//
// Environment variables:
//   - VISION_PROVIDER: "deepface" or "mock" (default: "deepface")
//   - VISION_URL: DeepFace API URL (default: "http://localhost:5000")
//   - VISION_TIMEOUT: per-request timeout for the DeepFace API
func NewProvider(cfg *config.Config, logger *slog.Logger) (vision.Provider, error) {
	providerType := ProviderType(cfg.VisionProvider)

	switch providerType {
	case ProviderTypeMock:
		return mock.New(), nil

	case ProviderTypeDeepFace, "":
		// Default to DeepFace
		return newDeepFaceProvider(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
			cfg.VisionProvider, ProviderTypeDeepFace, ProviderTypeMock)
	}
}

// newDeepFaceProvider creates a DeepFace provider instance
func newDeepFaceProvider(cfg *config.Config, logger *slog.Logger) vision.Provider {
	dfConfig := deepface.DefaultConfig()
	if cfg.VisionURL != "" {
		dfConfig.BaseURL = cfg.VisionURL
	}
	if cfg.VisionTimeout > 0 {
		dfConfig.Timeout = cfg.VisionTimeout
	}

	return deepface.NewProvider(dfConfig, logger)
}
