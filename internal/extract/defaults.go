package extract

import (
	"backdrop/internal/filesystem"
	"backdrop/internal/mediatypes"
	"backdrop/internal/workers"
)

// Chains holds one chain per media kind.
type Chains struct {
	Photo *Chain
	Video *Chain
}

// For returns the chain for kind.
func (c Chains) For(kind mediatypes.MediaKind) *Chain {
	if kind == mediatypes.KindVideo {
		return c.Video
	}
	return c.Photo
}

// Config selects the binaries and limits used by the default chains.
type Config struct {
	Retry         filesystem.RetryConfig
	FFprobeBinary string
	Limiter       *workers.Limiter
	Overwrite     bool
}

// DefaultChains returns the production strategy order.
//
// Photos: vips (AVIF/HEIF only), exif, decode.
// Videos: the container demuxer matching the file, then ffprobe for length.
func DefaultChains(cfg Config) Chains {
	var opts []Option
	if cfg.Limiter != nil {
		opts = append(opts, WithLimiter(cfg.Limiter))
	}
	if cfg.Overwrite {
		opts = append(opts, WithOverwrite())
	}

	photo := NewChain([]Extractor{
		NewVipsExtractor(),
		NewExifExtractor(cfg.Retry),
		NewDecodeExtractor(cfg.Retry),
	}, opts...)

	video := NewChain([]Extractor{
		NewMP4Extractor(cfg.Retry),
		NewQuickTimeExtractor(cfg.Retry),
		NewMatroskaExtractor(cfg.Retry),
		NewFFprobeExtractor(cfg.FFprobeBinary),
	}, opts...)

	return Chains{Photo: photo, Video: video}
}
