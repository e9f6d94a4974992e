package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backdrop/internal/extract"
	"backdrop/internal/filesystem"
	"backdrop/internal/format"
	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
)

// ContentHasher hashes file content.
type ContentHasher interface {
	HashFile(ctx context.Context, path string) (mediatypes.Hash, error)
}

// IdentityStore is the read side of the cache the builder consults to keep
// ids and first-seen dates stable.
type IdentityStore interface {
	// GetByPath returns nil when no record has path.
	GetByPath(ctx context.Context, path string) (*mediatypes.Media, error)
	// FirstSeenByHash returns nil when the hash is unknown.
	FirstSeenByHash(ctx context.Context, h mediatypes.Hash) (*time.Time, error)
}

// BuilderConfig wires a Builder. Nil Clock and IDs use the real ones.
type BuilderConfig struct {
	Resolver *format.Resolver
	Chains   extract.Chains
	Hasher   ContentHasher
	Store    IdentityStore
	Retry    filesystem.RetryConfig
	Clock    Clock
	IDs      IDGenerator
}

// Builder turns a path on disk into a complete Media record. It never
// writes to the store.
type Builder struct {
	resolver *format.Resolver
	chains   extract.Chains
	hasher   ContentHasher
	store    IdentityStore
	retry    filesystem.RetryConfig
	clock    Clock
	ids      IDGenerator
}

// NewBuilder returns a Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	b := &Builder{
		resolver: cfg.Resolver,
		chains:   cfg.Chains,
		hasher:   cfg.Hasher,
		store:    cfg.Store,
		retry:    cfg.Retry,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
	}
	if b.resolver == nil {
		b.resolver = format.NewResolver(cfg.Retry)
	}
	if b.clock == nil {
		b.clock = RealClock{}
	}
	if b.ids == nil {
		b.ids = UUIDGenerator{}
	}
	return b
}

// Build hashes path and builds its record. path should already be
// absolute and canonical.
func (b *Builder) Build(ctx context.Context, path string) (*mediatypes.Media, error) {
	h, err := b.hasher.HashFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return b.build(ctx, path, h)
}

func (b *Builder) build(ctx context.Context, path string, contentHash mediatypes.Hash) (*mediatypes.Media, error) {
	album, ok := mediatypes.AlbumOf(path)
	if !ok {
		logging.Warn("Media path %s has no parent directory", path)
		return nil, fmt.Errorf("%w: %s", ErrMediaFilePathNoParent, path)
	}

	prefix, err := b.resolver.ReadPrefix(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileNotSupportedMedia, path, err)
	}
	mediaFormat, err := format.FromBytes(prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileNotSupportedMedia, path, err)
	}
	logging.Debug("Resolved %s as %s", path, mediaFormat)

	acc, err := b.statAttributes(path)
	if err != nil {
		logging.Warn("Failed to stat %s, file attributes will be missing: %v", path, err)
		acc = &extract.Partial{}
	}

	target := extract.Target{Path: path, Format: mediaFormat}
	if mediaFormat.MediaKind == mediatypes.KindVideo {
		target.Container = format.DetectContainer(prefix)
		if target.Container == format.ContainerUnknown {
			target.Container = format.ContainerFromMIME(mediaFormat.MimeType)
		}
	}

	chain := b.chains.For(mediaFormat.MediaKind)
	if chain == nil {
		return nil, fmt.Errorf("%w: %s: no extraction chain for %s", ErrFileNotSupportedMedia, path, mediaFormat.MediaKind)
	}
	if err := chain.Run(ctx, target, acc); err != nil {
		if !errors.Is(err, extract.ErrAllStrategiesFailed) {
			return nil, err
		}
		logging.Warn("No metadata strategy succeeded for %s: %v", path, err)
	}

	id, firstSeen, err := b.resolveIdentity(ctx, path, contentHash)
	if err != nil {
		return nil, err
	}

	if field := missingField(acc); field != "" {
		return nil, &MissingMetadataError{Path: path, Field: field}
	}

	return &mediatypes.Media{
		ID:               id,
		Path:             path,
		Album:            album,
		Filesize:         *acc.Filesize,
		Format:           mediaFormat,
		CreationDate:     acc.CreationDate,
		ModificationDate: acc.ModificationDate,
		FirstSeenDate:    firstSeen,
		WidthPx:          *acc.Width,
		HeightPx:         *acc.Height,
		SpecificMetadata: *acc.Specific,
		OtherMetadata:    acc.Other,
		Tags:             []mediatypes.Tag{},
	}, nil
}

// statAttributes fills size and dates from the filesystem.
func (b *Builder) statAttributes(path string) (*extract.Partial, error) {
	info, err := filesystem.StatWithRetry(path, b.retry)
	if err != nil {
		return nil, err
	}

	p := &extract.Partial{}
	size := info.Size()
	p.Filesize = &size

	modified := info.ModTime().UTC()
	p.ModificationDate = &modified

	if born, ok := birthTime(path); ok {
		p.CreationDate = &born
	}
	return p, nil
}

// resolveIdentity keeps the id and first-seen date of a record already
// cached under path. Content seen before under another path keeps its
// first-seen date but gets a fresh id.
func (b *Builder) resolveIdentity(ctx context.Context, path string, h mediatypes.Hash) (uuid.UUID, time.Time, error) {
	if b.store != nil {
		cached, err := b.store.GetByPath(ctx, path)
		if err != nil {
			return uuid.Nil, time.Time{}, dbError("get_by_path", err)
		}
		if cached != nil {
			logging.Debug("Reusing id %s for %s", cached.ID, path)
			return cached.ID, cached.FirstSeenDate, nil
		}

		seen, err := b.store.FirstSeenByHash(ctx, h)
		if err != nil {
			return uuid.Nil, time.Time{}, dbError("first_seen_by_hash", err)
		}
		if seen != nil {
			logging.Debug("Content of %s was seen before at %s", path, seen.Format(time.RFC3339))
			return b.ids.NewID(), *seen, nil
		}
	}

	return b.ids.NewID(), b.clock.Now(), nil
}

// missingField names the first required field that is still unset.
func missingField(p *extract.Partial) string {
	switch {
	case p.Filesize == nil:
		return "filesize"
	case p.Width == nil:
		return "width"
	case p.Height == nil:
		return "height"
	case p.Specific == nil:
		return "specific metadata"
	default:
		return ""
	}
}
