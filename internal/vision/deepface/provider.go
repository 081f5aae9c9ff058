package deepface

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/vision"
)

const (
	// minFaceArea is the minimum face area (in pixels²) for reliable detection
	minFaceArea = 2500 // 50x50 pixels
	// maxFaceArea is used for confidence scaling
	maxFaceArea = 250000 // 500x500 pixels

	// warmupPollInterval is how often Warmup polls the backend
	warmupPollInterval = 2 * time.Second
)

// Provider implements vision.Provider backed by a DeepFace API instance
type Provider struct {
	client *Client
	logger *slog.Logger
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config, logger *slog.Logger) *Provider {
	return &Provider{
		client: NewClient(config),
		logger: logger,
	}
}

// Name identifies the provider implementation
func (p *Provider) Name() string {
	return "deepface"
}

// DetectAndEmbed extracts the descriptor of the most prominent face.
// Registration modes use the accurate detector, recognition uses the fast
// one.
func (p *Provider) DetectAndEmbed(ctx context.Context, image []byte, mode vision.Mode) (*vision.Detection, error) {
	imageBase64 := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	detector := p.client.config.RecognizeDetector
	if mode == vision.ModeRegister || mode == vision.ModePrecise {
		detector = p.client.config.RegisterDetector
	}

	resp, err := p.client.Represent(ctx, imageBase64, detector)
	if err != nil {
		return nil, translateError(err)
	}

	if len(resp.Results) == 0 {
		return nil, vision.ErrNoFace
	}

	// Multiple faces: keep the one with the largest area
	result := resp.Results[0]
	for _, r := range resp.Results[1:] {
		if r.FacialArea.W*r.FacialArea.H > result.FacialArea.W*result.FacialArea.H {
			result = r
		}
	}

	if len(result.Embedding) != domain.DescriptorDim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, want %d",
			ErrInvalidResponse, len(result.Embedding), domain.DescriptorDim)
	}

	descriptor := make([]float32, domain.DescriptorDim)
	for i, v := range result.Embedding {
		descriptor[i] = float32(v)
	}

	score := result.FaceConfidence
	if score == 0 {
		// Older DeepFace builds omit face_confidence, estimate from area
		score = estimateConfidence(float64(result.FacialArea.W * result.FacialArea.H))
	}

	return &vision.Detection{
		Descriptor: descriptor,
		Box: domain.FaceBox{
			X: result.FacialArea.X,
			Y: result.FacialArea.Y,
			W: result.FacialArea.W,
			H: result.FacialArea.H,
		},
		DetectionScore: score,
		HasLandmarks:   len(result.FacialArea.LeftEye) == 2 && len(result.FacialArea.RightEye) == 2,
	}, nil
}

// Warmup polls the backend until its models are loaded or ctx expires.
// DeepFace loads models lazily on the first request, so a cold backend can
// take tens of seconds before it reports ready.
func (p *Provider) Warmup(ctx context.Context) error {
	ticker := time.NewTicker(warmupPollInterval)
	defer ticker.Stop()

	for {
		status, err := p.client.Status(ctx)
		if err == nil && status.Ready {
			return nil
		}
		if err != nil {
			p.logger.Debug("deepface backend not ready", "error", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrModelNotReady, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Status reports backend health. An unreachable backend is reported as not
// ready rather than as an error, so health endpoints can keep serving.
func (p *Provider) Status(ctx context.Context) (*vision.Status, error) {
	resp, err := p.client.Status(ctx)
	if err != nil {
		return &vision.Status{Backend: "deepface"}, nil
	}

	return &vision.Status{
		Backend:        "deepface",
		Ready:          resp.Ready,
		GPUActive:      resp.GPU.Active,
		GPUMemoryUsed:  resp.GPU.MemoryUsed,
		GPUMemoryTotal: resp.GPU.MemoryTotal,
	}, nil
}

// translateError maps API failures to vision sentinels. DeepFace answers
// with a 400 when enforce_detection finds no face.
func translateError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		if strings.Contains(apiErr.Body, "could not be detected") {
			return vision.ErrNoFace
		}
		return fmt.Errorf("%w: %v", vision.ErrInvalidImage, err)
	}

	return err
}

// estimateConfidence estimates detection confidence from face area.
// Larger faces are more likely to be accurately detected.
func estimateConfidence(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.5
	}
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.7 + normalized*0.29
}

// Ensure Provider implements vision.Provider
var _ vision.Provider = (*Provider)(nil)
