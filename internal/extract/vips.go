package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// errVipsUnavailable is returned by the vips extractor before InitVips.
var errVipsUnavailable = errors.New("libvips not initialized")

// InitVips starts libvips and routes its log output through the application
// logger. Call it once at startup; later calls are no-ops.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	level, handler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(handler, level)

	// Only headers are read, so a small cache is enough
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      16 * 1024 * 1024,
		MaxCacheSize:     50,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

func isVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// vipsLogging maps the application level to the libvips threshold and a
// handler forwarding messages at or above it.
func vipsLogging(appLevel logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	var threshold vips.LogLevel
	switch appLevel {
	case logging.LevelDebug:
		threshold = vips.LogLevelInfo
	case logging.LevelInfo:
		threshold = vips.LogLevelWarning
	case logging.LevelWarn:
		threshold = vips.LogLevelError
	default:
		threshold = vips.LogLevelCritical
	}

	handler := func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}
	return threshold, handler
}

// vipsMIMETypes are the formats the Go decoders cannot read.
var vipsMIMETypes = map[string]bool{
	"image/avif": true,
	"image/heic": true,
	"image/heif": true,
}

// VipsExtractor reads the resolution of AVIF and HEIF images with libvips.
type VipsExtractor struct{}

// NewVipsExtractor returns the libvips photo strategy.
func NewVipsExtractor() *VipsExtractor {
	return &VipsExtractor{}
}

// Name implements Extractor.
func (*VipsExtractor) Name() string { return "vips" }

// Accepts implements Extractor.
func (*VipsExtractor) Accepts(t Target) bool {
	return t.Format.MediaKind.IsPhoto() && vipsMIMETypes[t.Format.MimeType]
}

// Extract implements Extractor.
func (*VipsExtractor) Extract(_ context.Context, t Target) (*Partial, error) {
	if !isVipsAvailable() {
		return nil, errVipsUnavailable
	}

	ref, err := vips.LoadImageFromFile(t.Path, vips.NewImportParams())
	if err != nil {
		return nil, fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	p := &Partial{}
	p.SetResolution(uint32(ref.Width()), uint32(ref.Height()))
	if p.Width == nil {
		return nil, fmt.Errorf("vips reported empty resolution %dx%d", ref.Width(), ref.Height())
	}
	p.SetSpecific(mediatypes.ImageMetadata())
	return p, nil
}
