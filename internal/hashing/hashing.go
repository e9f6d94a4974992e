package hashing

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/zeebo/blake3"

	"backdrop/internal/filesystem"
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// ErrFileRead is returned when a file cannot be opened or read for hashing.
var ErrFileRead = errors.New("failed to read file for hashing")

// bufferSize is the copy buffer used while hashing.
const bufferSize = 256 * 1024

// Hasher computes content hashes of media files.
type Hasher struct {
	retry filesystem.RetryConfig
}

// New returns a Hasher that opens files with the given retry configuration.
func New(retry filesystem.RetryConfig) *Hasher {
	return &Hasher{retry: retry}
}

func newHash() hash.Hash { return blake3.New() }

// HashFile returns the blake3-256 digest of the full content of path.
// Identical bytes always produce identical hashes, regardless of path.
func (h *Hasher) HashFile(ctx context.Context, path string) (mediatypes.Hash, error) {
	start := time.Now()

	f, err := filesystem.OpenWithRetry(path, h.retry)
	if err != nil {
		return mediatypes.Hash{}, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}
	defer f.Close()

	sum, n, err := HashReader(ctx, f)
	if err != nil {
		return mediatypes.Hash{}, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	metrics.HashDuration.Observe(time.Since(start).Seconds())
	metrics.HashBytes.Add(float64(n))
	return sum, nil
}

// HashReader hashes everything read from r and returns the digest and the
// number of bytes consumed. Cancelling ctx aborts between buffer reads.
func HashReader(ctx context.Context, r io.Reader) (mediatypes.Hash, int64, error) {
	var out mediatypes.Hash

	hasher := newHash()
	buf := make([]byte, bufferSize)
	n, err := io.CopyBuffer(hasher, &ctxReader{ctx: ctx, r: r}, buf)
	if err != nil {
		return out, n, err
	}

	copy(out[:], hasher.Sum(nil))
	return out, n, nil
}

// HashBytes returns the digest of data.
func HashBytes(data []byte) mediatypes.Hash {
	return blake3.Sum256(data)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
