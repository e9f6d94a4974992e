package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// GetByPath returns the cached record stored under path, or nil when there
// is none.
func (d *Database) GetByPath(ctx context.Context, path string) (*mediatypes.Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_by_path", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// Newest first if several records claim the path
	row := d.db.QueryRowContext(ctx,
		`SELECT `+infoColumns+` FROM info WHERE path = ? ORDER BY first_seen_date DESC LIMIT 1`, path)

	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get by path %s: %w", ErrConnection, path, err)
	}
	return m, nil
}

// GetByID returns the record with the given id, or nil when there is none.
func (d *Database) GetByID(ctx context.Context, id uuid.UUID) (*mediatypes.Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_by_id", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+infoColumns+` FROM info WHERE id = ?`, id.String())

	m, err := scanMedia(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get by id %s: %w", ErrConnection, id, err)
	}
	return m, nil
}

// FirstSeenByHash returns the earliest first_seen_date of any record whose
// content hashed to h, or nil when the hash is unknown.
func (d *Database) FirstSeenByHash(ctx context.Context, h mediatypes.Hash) (*time.Time, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("first_seen_by_hash", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var raw sql.NullString
	err = d.db.QueryRowContext(ctx, `
		SELECT MIN(i.first_seen_date)
		FROM hashes h
		JOIN info i ON i.id = h.media_id
		WHERE h.hash = ?
	`, h).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: first seen by hash %s: %w", ErrConnection, h.Hex(), err)
	}

	var seen *time.Time
	seen, err = parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: first seen by hash %s: %w", ErrConnection, h.Hex(), err)
	}
	return seen, nil
}

// GetHash returns the stored content hash of a record, or nil when the
// record has no hash row.
func (d *Database) GetHash(ctx context.Context, mediaID uuid.UUID) (*mediatypes.Hash, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_hash", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var h mediatypes.Hash
	err = d.db.QueryRowContext(ctx, `SELECT hash FROM hashes WHERE media_id = ?`, mediaID.String()).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get hash of %s: %w", ErrConnection, mediaID, err)
	}
	return &h, nil
}

// upsertInfoQuery never touches first_seen_date. A missing modification
// date keeps the stored one.
const upsertInfoQuery = `
	INSERT INTO info (` + infoColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		path = excluded.path,
		album = excluded.album,
		filesize = excluded.filesize,
		format = excluded.format,
		creation_date = excluded.creation_date,
		modification_date = COALESCE(excluded.modification_date, info.modification_date),
		width_px = excluded.width_px,
		height_px = excluded.height_px,
		specific_metadata = excluded.specific_metadata,
		other_metadata = excluded.other_metadata,
		tags = excluded.tags
`

const upsertHashQuery = `
	INSERT INTO hashes (media_id, hash) VALUES (?, ?)
	ON CONFLICT(media_id) DO UPDATE SET hash = excluded.hash
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertInfo(ctx context.Context, ex execer, m *mediatypes.Media) error {
	args, err := infoArgs(m)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, upsertInfoQuery, args...)
	return err
}

func upsertHash(ctx context.Context, ex execer, h mediatypes.MediaHash) error {
	_, err := ex.ExecContext(ctx, upsertHashQuery, h.MediaID.String(), h.Hash)
	return err
}

// UpsertInfo inserts or replaces the record keyed by m.ID.
func (d *Database) UpsertInfo(ctx context.Context, m *mediatypes.Media) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_info", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = upsertInfo(ctx, d.db, m); err != nil {
		return fmt.Errorf("%w: upsert info %s: %w", ErrInsertion, m.ID, err)
	}
	return nil
}

// UpsertHash inserts or replaces the hash row of a record.
func (d *Database) UpsertHash(ctx context.Context, h mediatypes.MediaHash) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_hash", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err = upsertHash(ctx, d.db, h); err != nil {
		return fmt.Errorf("%w: upsert hash %s: %w", ErrInsertion, h.MediaID, err)
	}
	return nil
}

// SaveMedia upserts the record and its hash row in one transaction.
func (d *Database) SaveMedia(ctx context.Context, m *mediatypes.Media, h mediatypes.Hash) (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	txStart := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	recordQuery("begin_transaction", txStart, err)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrConnection, err)
	}

	defer func() {
		if err == nil {
			return
		}
		rbStart := time.Now()
		rbErr := tx.Rollback()
		recordQuery("rollback", rbStart, rbErr)
		if rbErr != nil {
			err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
	}()

	start := time.Now()
	err = upsertInfo(ctx, tx, m)
	recordQuery("upsert_info", start, err)
	if err != nil {
		return fmt.Errorf("%w: upsert info %s: %w", ErrInsertion, m.ID, err)
	}

	start = time.Now()
	err = upsertHash(ctx, tx, mediatypes.MediaHash{MediaID: m.ID, Hash: h})
	recordQuery("upsert_hash", start, err)
	if err != nil {
		return fmt.Errorf("%w: upsert hash %s: %w", ErrInsertion, m.ID, err)
	}

	start = time.Now()
	err = tx.Commit()
	recordQuery("commit", start, err)
	if err != nil {
		return fmt.Errorf("%w: commit %s: %w", ErrInsertion, m.ID, err)
	}
	return nil
}

// ListAlbum returns every record stored in album, ordered by path.
func (d *Database) ListAlbum(ctx context.Context, album string) ([]*mediatypes.Media, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_album", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT `+infoColumns+` FROM info WHERE album = ? ORDER BY path`, album)
	if err != nil {
		return nil, fmt.Errorf("%w: list album %s: %w", ErrConnection, album, err)
	}
	defer rows.Close()

	var items []*mediatypes.Media
	for rows.Next() {
		var m *mediatypes.Media
		if m, err = scanMedia(rows); err != nil {
			return nil, fmt.Errorf("%w: list album %s: %w", ErrConnection, album, err)
		}
		items = append(items, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list album %s: %w", ErrConnection, album, err)
	}
	return items, nil
}

// CalculateStats counts records by kind and distinct albums.
func (d *Database) CalculateStats(ctx context.Context) (metrics.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, `
		SELECT json_extract(format, '$.media_kind') AS kind, COUNT(*)
		FROM info
		GROUP BY kind
	`)
	if err != nil {
		recordQuery("count_by_kind", start, err)
		return stats, fmt.Errorf("%w: count by kind: %w", ErrConnection, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind  sql.NullString
			count int
		)
		if err = rows.Scan(&kind, &count); err != nil {
			break
		}
		stats.TotalMedia += count
		switch mediatypes.MediaKind(kind.String) {
		case mediatypes.KindPhoto:
			stats.Photos = count
		case mediatypes.KindAnimatedPhoto:
			stats.AnimatedPhotos = count
		case mediatypes.KindVideo:
			stats.Videos = count
		}
	}
	if err == nil {
		err = rows.Err()
	}
	recordQuery("count_by_kind", start, err)
	if err != nil {
		return stats, fmt.Errorf("%w: count by kind: %w", ErrConnection, err)
	}

	start = time.Now()
	err = d.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT album) FROM info`).Scan(&stats.Albums)
	recordQuery("count_albums", start, err)
	if err != nil {
		return stats, fmt.Errorf("%w: count albums: %w", ErrConnection, err)
	}

	return stats, nil
}

// RefreshStats recomputes and caches the library totals.
func (d *Database) RefreshStats(ctx context.Context) (metrics.Stats, error) {
	stats, err := d.CalculateStats(ctx)
	if err != nil {
		return stats, err
	}
	d.statsMu.Lock()
	d.stats = stats
	d.statsMu.Unlock()
	return stats, nil
}

// GetStats returns the totals cached by the last RefreshStats. It
// implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}
