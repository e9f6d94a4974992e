package extract

import (
	"context"
	"fmt"
	"image"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"backdrop/internal/filesystem"
	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
)

// DecodeExtractor is the last-resort photo strategy: it asks the pure Go
// decoders for the image header and, failing that, decodes the full image.
type DecodeExtractor struct {
	retry filesystem.RetryConfig
}

// NewDecodeExtractor returns the pixel decoder photo strategy.
func NewDecodeExtractor(retry filesystem.RetryConfig) *DecodeExtractor {
	return &DecodeExtractor{retry: retry}
}

// Name implements Extractor.
func (*DecodeExtractor) Name() string { return "decode" }

// Accepts implements Extractor.
func (*DecodeExtractor) Accepts(t Target) bool {
	return t.Format.MediaKind.IsPhoto()
}

// Extract implements Extractor.
func (d *DecodeExtractor) Extract(_ context.Context, t Target) (*Partial, error) {
	width, height, err := d.decodeConfig(t.Path)
	if err != nil {
		logging.Debug("Header decode of %s failed, trying full decode: %v", t.Path, err)

		img, openErr := imaging.Open(t.Path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to decode image: %w", openErr)
		}
		bounds := img.Bounds()
		width, height = bounds.Dx(), bounds.Dy()
	}

	p := &Partial{}
	p.SetResolution(uint32(width), uint32(height))
	if p.Width == nil {
		return nil, fmt.Errorf("decoded empty resolution %dx%d", width, height)
	}
	p.SetSpecific(mediatypes.ImageMetadata())
	return p, nil
}

// decodeConfig returns image dimensions without decoding pixel data.
func (d *DecodeExtractor) decodeConfig(path string) (int, int, error) {
	file, err := filesystem.OpenWithRetry(path, d.retry)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}
