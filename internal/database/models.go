package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backdrop/internal/mediatypes"
)

// timeLayout is how dates are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

const infoColumns = `id, path, album, filesize, format, creation_date, modification_date,
	first_seen_date, width_px, height_px, specific_metadata, other_metadata, tags`

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// infoArgs returns the values for infoColumns, in order.
func infoArgs(m *mediatypes.Media) ([]any, error) {
	format, err := json.Marshal(m.Format)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	specific, err := json.Marshal(m.SpecificMetadata)
	if err != nil {
		return nil, fmt.Errorf("specific_metadata: %w", err)
	}

	var other sql.NullString
	if m.OtherMetadata != nil {
		raw, err := json.Marshal(m.OtherMetadata)
		if err != nil {
			return nil, fmt.Errorf("other_metadata: %w", err)
		}
		other = sql.NullString{String: string(raw), Valid: true}
	}

	tags := m.Tags
	if tags == nil {
		tags = []mediatypes.Tag{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("tags: %w", err)
	}

	firstSeen := m.FirstSeenDate
	return []any{
		m.ID.String(),
		m.Path,
		m.Album,
		m.Filesize,
		string(format),
		formatTime(m.CreationDate),
		formatTime(m.ModificationDate),
		formatTime(&firstSeen),
		m.WidthPx,
		m.HeightPx,
		string(specific),
		other,
		string(tagsJSON),
	}, nil
}

// scanMedia reads one row selected with infoColumns.
func scanMedia(row rowScanner) (*mediatypes.Media, error) {
	var (
		m                            mediatypes.Media
		id, format, specific, tags   string
		created, modified, firstSeen sql.NullString
		other                        sql.NullString
	)

	if err := row.Scan(
		&id, &m.Path, &m.Album, &m.Filesize, &format,
		&created, &modified, &firstSeen,
		&m.WidthPx, &m.HeightPx, &specific, &other, &tags,
	); err != nil {
		return nil, err
	}

	var err error
	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(format), &m.Format); err != nil {
		return nil, fmt.Errorf("invalid format of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(specific), &m.SpecificMetadata); err != nil {
		return nil, fmt.Errorf("invalid specific_metadata of %s: %w", id, err)
	}
	if other.Valid {
		if err := json.Unmarshal([]byte(other.String), &m.OtherMetadata); err != nil {
			return nil, fmt.Errorf("invalid other_metadata of %s: %w", id, err)
		}
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return nil, fmt.Errorf("invalid tags of %s: %w", id, err)
	}

	if m.CreationDate, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("invalid creation_date of %s: %w", id, err)
	}
	if m.ModificationDate, err = parseTime(modified); err != nil {
		return nil, fmt.Errorf("invalid modification_date of %s: %w", id, err)
	}
	seen, err := parseTime(firstSeen)
	if err != nil {
		return nil, fmt.Errorf("invalid first_seen_date of %s: %w", id, err)
	}
	if seen == nil {
		return nil, fmt.Errorf("missing first_seen_date of %s", id)
	}
	m.FirstSeenDate = *seen

	return &m, nil
}
