// Package extract reads media metadata through ordered fallback chains.
//
// A Chain is a slice of Extractor values tried in order. Each extractor that
// accepts a Target returns a Partial, which is merged fill-forward into the
// accumulator: a field already found is kept unless the chain was built with
// WithOverwrite. The chain stops once width, height and the kind-specific
// metadata are all known. Extractor failures are logged and skipped; only
// when nothing succeeded does Run return ErrAllStrategiesFailed.
//
// Photo strategies are libvips (AVIF/HEIF), EXIF (dsoprea go-exif with the
// JPEG, PNG, TIFF and HEIC structure parsers) and the Go image decoders.
// Video strategies are one container demuxer (MP4, QuickTime or Matroska)
// followed by ffprobe for the duration.
//
// Codec calls are bounded by a shared workers.Limiter.
package extract
