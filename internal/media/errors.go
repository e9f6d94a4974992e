package media

import (
	"errors"
	"fmt"

	"backdrop/internal/format"
	"backdrop/internal/hashing"
)

var (
	// ErrMediaDoesntExist is returned when the path is not on disk.
	ErrMediaDoesntExist = errors.New("media file does not exist")
	// ErrFailedToOpenMediaFile is returned when the path exists but cannot
	// be inspected.
	ErrFailedToOpenMediaFile = errors.New("failed to open media file")
	// ErrMediaFilePathNoParent is returned for paths without a parent
	// directory to use as the album.
	ErrMediaFilePathNoParent = errors.New("media file path has no parent directory")
	// ErrFileNotSupportedMedia is returned when the format cannot be
	// resolved to a photo or video.
	ErrFileNotSupportedMedia = errors.New("file is not a supported media file")
	// ErrFileMissingMetadata is matched by every *MissingMetadataError.
	ErrFileMissingMetadata = errors.New("media file is missing required metadata")
	// ErrDatabase is matched by every *DatabaseError.
	ErrDatabase = errors.New("database error")
)

// MissingMetadataError names the required field no strategy could provide.
type MissingMetadataError struct {
	Path  string
	Field string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("media file at %s was missing required metadata: %s", e.Path, e.Field)
}

// Unwrap lets errors.Is match ErrFileMissingMetadata.
func (e *MissingMetadataError) Unwrap() error {
	return ErrFileMissingMetadata
}

// DatabaseError wraps a cache failure with the operation that hit it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrDatabase and the store's own error.
func (e *DatabaseError) Unwrap() []error {
	return []error{ErrDatabase, e.Err}
}

func dbError(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

// errorKind maps a pipeline error to its metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrMediaDoesntExist):
		return "not_found"
	case errors.Is(err, ErrFailedToOpenMediaFile):
		return "open"
	case errors.Is(err, ErrMediaFilePathNoParent):
		return "no_parent"
	case errors.Is(err, ErrFileNotSupportedMedia),
		errors.Is(err, format.ErrUnsupportedFormat),
		errors.Is(err, format.ErrNoSignature):
		return "unsupported"
	case errors.Is(err, ErrFileMissingMetadata):
		return "missing_metadata"
	case errors.Is(err, hashing.ErrFileRead):
		return "hash"
	case errors.Is(err, ErrDatabase):
		return "database"
	default:
		return "other"
	}
}
