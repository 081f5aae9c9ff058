package mock

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/visage-id/visage/internal/domain"
	"github.com/visage-id/visage/internal/vision"
)

// minImageSize is the smallest payload accepted as an image
const minImageSize = 64

// Provider implements vision.Provider for tests and development. The
// descriptor is derived from a hash of the image bytes, so the same image
// always yields the same descriptor and distinct images yield descriptors
// far apart.
type Provider struct{}

// New creates a new mock provider
func New() *Provider {
	return &Provider{}
}

// Name identifies the provider implementation
func (p *Provider) Name() string {
	return "mock"
}

// DetectAndEmbed returns a deterministic detection for the image
func (p *Provider) DetectAndEmbed(ctx context.Context, image []byte, mode vision.Mode) (*vision.Detection, error) {
	if len(image) < minImageSize {
		return nil, vision.ErrInvalidImage
	}

	return &vision.Detection{
		Descriptor:     generateDescriptor(image),
		Box:            domain.FaceBox{X: 40, Y: 40, W: 120, H: 120},
		DetectionScore: 0.99,
		HasLandmarks:   true,
	}, nil
}

// Warmup is a no-op, the mock is always ready
func (p *Provider) Warmup(ctx context.Context) error {
	return nil
}

// Status reports the mock as ready with no GPU
func (p *Provider) Status(ctx context.Context) (*vision.Status, error) {
	return &vision.Status{Backend: "mock", Ready: true}, nil
}

// generateDescriptor derives a unit-length descriptor from the image hash
func generateDescriptor(image []byte) []float32 {
	hash := sha256.Sum256(image)
	descriptor := make([]float32, domain.DescriptorDim)

	for i := range descriptor {
		descriptor[i] = float32(hash[i%len(hash)])/255*2 - 1
	}

	var norm float64
	for _, v := range descriptor {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)

	for i := range descriptor {
		descriptor[i] = float32(float64(descriptor[i]) / norm)
	}

	return descriptor
}

var _ vision.Provider = (*Provider)(nil)
