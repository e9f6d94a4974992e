package format

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"backdrop/internal/filesystem"
	"backdrop/internal/mediatypes"
)

// sniffLen is how many leading bytes are read for signature detection. It
// matches mimetype's default read limit.
const sniffLen = 3072

var (
	// ErrNoSignature means the file could not be read for sniffing.
	ErrNoSignature = errors.New("no readable byte signature")
	// ErrUnsupportedFormat means the signature is known but is not a photo or
	// video, or no known signature matched.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Resolver detects a file's format from its leading bytes.
type Resolver struct {
	retry filesystem.RetryConfig
}

// NewResolver returns a Resolver that opens files with the given retry
// configuration.
func NewResolver(retry filesystem.RetryConfig) *Resolver {
	return &Resolver{retry: retry}
}

// Resolve sniffs path and returns its format.
func (r *Resolver) Resolve(path string) (mediatypes.Format, error) {
	prefix, err := r.ReadPrefix(path)
	if err != nil {
		return mediatypes.Format{}, err
	}
	return FromBytes(prefix)
}

// ReadPrefix returns the first bytes of path used for sniffing. A read
// failure is reported as ErrNoSignature.
func (r *Resolver) ReadPrefix(path string) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(path, r.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoSignature, path, err)
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoSignature, path, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", ErrNoSignature, path)
	}
	return buf[:n], nil
}

// FromBytes detects the format of an in-memory prefix.
func FromBytes(prefix []byte) (mediatypes.Format, error) {
	if len(prefix) == 0 {
		return mediatypes.Format{}, ErrNoSignature
	}

	mtype := mimetype.Detect(prefix)
	mime := mtype.String()
	if mtype.Is("application/octet-stream") {
		return mediatypes.Format{}, fmt.Errorf("%w: unknown signature", ErrUnsupportedFormat)
	}

	if f, ok := mediatypes.FormatFromMIME(mime); ok {
		return f, nil
	}

	// Some containers are reported under a generic parent (e.g. an MP4 with
	// an unusual brand). Walk up the hierarchy before giving up.
	for p := mtype.Parent(); p != nil; p = p.Parent() {
		if f, ok := mediatypes.FormatFromMIME(p.String()); ok {
			return f, nil
		}
	}

	return mediatypes.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, strings.TrimSpace(mime))
}
