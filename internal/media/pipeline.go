package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"backdrop/internal/filesystem"
	"backdrop/internal/hashing"
	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// Store is the cache the pipeline reads from and writes to.
type Store interface {
	IdentityStore
	// GetHash returns nil when the record has no hash row.
	GetHash(ctx context.Context, mediaID uuid.UUID) (*mediatypes.Hash, error)
	UpsertHash(ctx context.Context, h mediatypes.MediaHash) error
	// SaveMedia upserts the record and its hash together.
	SaveMedia(ctx context.Context, m *mediatypes.Media, h mediatypes.Hash) error
}

const (
	opLoad   = "load"
	opUpdate = "update"
)

// Pipeline loads media through the cache, only extracting metadata when a
// file's content changed.
type Pipeline struct {
	store   Store
	hasher  ContentHasher
	builder *Builder
	retry   filesystem.RetryConfig
	flight  singleflight.Group
}

// NewPipeline returns a Pipeline.
func NewPipeline(store Store, hasher ContentHasher, builder *Builder, retry filesystem.RetryConfig) *Pipeline {
	return &Pipeline{
		store:   store,
		hasher:  hasher,
		builder: builder,
		retry:   retry,
	}
}

// Load returns the record for path, from the cache when the file content is
// unchanged and freshly extracted otherwise.
func (p *Pipeline) Load(ctx context.Context, path string) (m *mediatypes.Media, err error) {
	start := time.Now()
	result := "ingested"
	defer func() { p.record(opLoad, start, &result, err) }()

	canonical, err := p.prepare(path)
	if err != nil {
		return nil, err
	}

	o, err := p.coalesce(ctx, canonical, p.load)
	if err != nil {
		return nil, err
	}
	result = o.result
	return o.media, nil
}

// outcome is what one ingestion of a path produced. Coalesced callers all
// receive the same outcome.
type outcome struct {
	media  *mediatypes.Media
	result string
}

// coalesce runs work for path once among every concurrent Load and
// UpdateMetadata of that path. The shared work is not tied to any caller's
// cancellation; a caller whose ctx ends stops waiting and the others still
// get the result.
func (p *Pipeline) coalesce(ctx context.Context, path string, work func(context.Context, string) (outcome, error)) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	ch := p.flight.DoChan(path, func() (any, error) {
		return work(context.WithoutCancel(ctx), path)
	})

	select {
	case <-ctx.Done():
		logging.Debug("Stopped waiting for %s: %v", path, ctx.Err())
		return outcome{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			logging.Debug("Coalesced concurrent ingestion of %s", path)
		}
		if r.Err != nil {
			return outcome{}, r.Err
		}
		return r.Val.(outcome), nil
	}
}

func (p *Pipeline) load(ctx context.Context, path string) (outcome, error) {
	fresh, err := p.hasher.HashFile(ctx, path)
	if err != nil {
		return outcome{}, err
	}

	cached, err := p.store.GetByPath(ctx, path)
	if err != nil {
		return outcome{}, dbError("get_by_path", err)
	}

	if cached != nil {
		stored, err := p.storedHash(ctx, cached, path, fresh)
		if err != nil {
			return outcome{}, err
		}
		if !hashing.Compare(stored, fresh).NeedsRefresh() {
			logging.Debug("Cache hit for %s", path)
			return outcome{media: cached, result: "cache_hit"}, nil
		}
		logging.Debug("Content of %s changed, recomputing metadata", path)
	}

	return p.ingest(ctx, path, fresh)
}

// storedHash returns the cached hash of a record. A record without a hash
// row has the file at its stored path hashed instead, and the missing row
// is written back when that matches the fresh hash.
func (p *Pipeline) storedHash(ctx context.Context, cached *mediatypes.Media, path string, fresh mediatypes.Hash) (*mediatypes.Hash, error) {
	stored, err := p.store.GetHash(ctx, cached.ID)
	if err != nil {
		return nil, dbError("get_hash", err)
	}
	if stored != nil {
		return stored, nil
	}

	rehashed := fresh
	if cached.Path != path {
		if rehashed, err = p.hasher.HashFile(ctx, cached.Path); err != nil {
			return nil, err
		}
	}

	if rehashed == fresh {
		logging.Info("Repairing missing hash row of %s", cached.ID)
		if err := p.store.UpsertHash(ctx, mediatypes.MediaHash{MediaID: cached.ID, Hash: fresh}); err != nil {
			logging.Warn("Failed to repair hash row of %s: %v", cached.ID, err)
		}
	}
	return &rehashed, nil
}

// UpdateMetadata re-extracts path unless its cached hash is current.
func (p *Pipeline) UpdateMetadata(ctx context.Context, path string) (err error) {
	start := time.Now()
	result := "ingested"
	defer func() { p.record(opUpdate, start, &result, err) }()

	canonical, err := p.prepare(path)
	if err != nil {
		return err
	}

	o, err := p.coalesce(ctx, canonical, p.update)
	if err != nil {
		return err
	}
	result = o.result
	return nil
}

func (p *Pipeline) update(ctx context.Context, path string) (outcome, error) {
	fresh, err := p.hasher.HashFile(ctx, path)
	if err != nil {
		return outcome{}, err
	}

	cached, err := p.store.GetByPath(ctx, path)
	if err != nil {
		return outcome{}, dbError("get_by_path", err)
	}

	var stored *mediatypes.Hash
	if cached != nil {
		if stored, err = p.store.GetHash(ctx, cached.ID); err != nil {
			return outcome{}, dbError("get_hash", err)
		}
	}

	state := hashing.Compare(stored, fresh)
	if !state.NeedsRefresh() {
		logging.Debug("%s is up to date", path)
		return outcome{media: cached, result: "cache_hit"}, nil
	}
	logging.Debug("Updating %s (%s)", path, state)

	return p.ingest(ctx, path, fresh)
}

// ingest builds a fresh record and persists it with its hash.
func (p *Pipeline) ingest(ctx context.Context, path string, h mediatypes.Hash) (outcome, error) {
	m, err := p.builder.build(ctx, path, h)
	if err != nil {
		return outcome{}, err
	}

	if err := p.store.SaveMedia(ctx, m, h); err != nil {
		return outcome{}, dbError("save_media", err)
	}

	logging.Debug("Ingested %s as %s (%dx%d)", path, m.ID, m.WidthPx, m.HeightPx)
	return outcome{media: m, result: "ingested"}, nil
}

// prepare checks that path exists and returns its canonical form.
func (p *Pipeline) prepare(path string) (string, error) {
	if _, err := filesystem.StatWithRetry(path, p.retry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrMediaDoesntExist, path)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrFailedToOpenMediaFile, path, err)
	}
	return Canonicalize(path), nil
}

// Canonicalize returns the absolute, symlink-free form of path, or path
// itself when that cannot be determined.
func Canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		logging.Warn("Failed to make %s absolute: %v", path, err)
		return path
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		logging.Warn("Failed to resolve symlinks of %s: %v", abs, err)
		return abs
	}
	return resolved
}

func (p *Pipeline) record(op string, start time.Time, result *string, err error) {
	metrics.IngestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.IngestTotal.WithLabelValues(op, "error").Inc()
		metrics.IngestErrors.WithLabelValues(errorKind(err)).Inc()
		return
	}
	metrics.IngestTotal.WithLabelValues(op, *result).Inc()
}
