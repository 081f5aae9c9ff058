package vision

import (
	"context"
	"errors"

	"github.com/visage-id/visage/internal/domain"
)

// Mode selects the detection profile for a request. Registration modes
// favor accuracy, recognition favors latency.
type Mode string

const (
	// ModeRegister is used when enrolling a new face
	ModeRegister Mode = "register"
	// ModeRecognize is used on the identification hot path
	ModeRecognize Mode = "recognize"
	// ModePrecise is used when replacing a stored descriptor
	ModePrecise Mode = "precise"
)

var (
	// ErrNoFace indicates the backend found no face in the image
	ErrNoFace = errors.New("no face detected in image")
	// ErrInvalidImage indicates the payload is not a usable image
	ErrInvalidImage = errors.New("invalid image")
)

// Detection is the outcome of running detection and embedding on an image.
// Descriptor always has domain.DescriptorDim elements.
type Detection struct {
	Descriptor     []float32
	Box            domain.FaceBox
	DetectionScore float64
	HasLandmarks   bool
}

// Status reports backend readiness and GPU usage.
type Status struct {
	Backend        string
	Ready          bool
	GPUActive      bool
	GPUMemoryUsed  uint64
	GPUMemoryTotal uint64
}

// Provider extracts face descriptors from images.
type Provider interface {
	// DetectAndEmbed locates the most prominent face in the image and
	// returns its descriptor. Returns ErrNoFace when no face is found.
	DetectAndEmbed(ctx context.Context, image []byte, mode Mode) (*Detection, error)

	// Warmup blocks until the backend has its models loaded or ctx expires
	Warmup(ctx context.Context) error

	// Status reports backend health
	Status(ctx context.Context) (*Status, error)

	// Name identifies the provider implementation
	Name() string
}
