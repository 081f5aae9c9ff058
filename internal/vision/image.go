package vision

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MinImageDimension is the smallest accepted edge length in pixels
	MinImageDimension = 200
	// MaxImageDimension is the largest accepted edge length in pixels
	MaxImageDimension = 4000
)

// ValidateImage checks that data decodes as a supported image format
// (JPEG, PNG, GIF, BMP, TIFF or WebP) and that its dimensions fall within
// the accepted range. Only the header is inspected, pixel data is never
// decoded.
func ValidateImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if cfg.Width < MinImageDimension || cfg.Height < MinImageDimension {
		return fmt.Errorf("%w: %s %dx%d is below the %dpx minimum",
			ErrInvalidImage, format, cfg.Width, cfg.Height, MinImageDimension)
	}
	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return fmt.Errorf("%w: %s %dx%d exceeds the %dpx maximum",
			ErrInvalidImage, format, cfg.Width, cfg.Height, MaxImageDimension)
	}

	return nil
}
