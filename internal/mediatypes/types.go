package mediatypes

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaKind is the coarse classification of a media file.
type MediaKind string

const (
	// KindPhoto represents a still image.
	KindPhoto MediaKind = "Photo"
	// KindAnimatedPhoto represents an animated image (GIF, animated WebP, ...).
	KindAnimatedPhoto MediaKind = "AnimatedPhoto"
	// KindVideo represents a video container.
	KindVideo MediaKind = "Video"
)

// IsPhoto reports whether the kind is a still or animated photo.
func (k MediaKind) IsPhoto() bool {
	return k == KindPhoto || k == KindAnimatedPhoto
}

// Format is the MIME type of a media file along with its kind.
type Format struct {
	MediaKind MediaKind `json:"media_kind"`
	MimeType  string    `json:"mime_type"`
}

// FormatFromMIME builds a Format from a MIME type string. Parameters such as
// "; charset=utf-8" are ignored.
//
// Only image/* and video/* are media. Animated images are not told apart
// from still ones yet, so every image resolves to KindPhoto.
func FormatFromMIME(mime string) (Format, bool) {
	mime = strings.TrimSpace(mime)
	if base, _, found := strings.Cut(mime, ";"); found {
		mime = strings.TrimSpace(base)
	}

	top, sub, ok := strings.Cut(mime, "/")
	if !ok || sub == "" {
		return Format{}, false
	}

	var kind MediaKind
	switch strings.ToLower(top) {
	case "image":
		kind = KindPhoto
	case "video":
		kind = KindVideo
	default:
		return Format{}, false
	}

	return Format{MediaKind: kind, MimeType: strings.ToLower(mime)}, true
}

// String renders the format as "photo/<mime>" or "video/<mime>".
func (f Format) String() string {
	kind := "photo"
	if f.MediaKind == KindVideo {
		kind = "video"
	}
	return kind + "/" + f.MimeType
}

// Media is the cached representation of one media file.
type Media struct {
	ID uuid.UUID `json:"id"`

	// Path is the last known absolute path of the file.
	Path string `json:"path"`
	// Album is the directory containing the file.
	Album string `json:"album"`

	Filesize         int64      `json:"filesize"`
	Format           Format     `json:"format"`
	CreationDate     *time.Time `json:"creation_date,omitempty"`
	ModificationDate *time.Time `json:"modification_date,omitempty"`

	// FirstSeenDate is when this content was first observed. It never changes
	// once set.
	FirstSeenDate time.Time `json:"first_seen_date"`

	WidthPx  uint32 `json:"width_px"`
	HeightPx uint32 `json:"height_px"`

	SpecificMetadata SpecificMetadata `json:"specific_metadata"`
	OtherMetadata    OtherMetadata    `json:"other_metadata,omitempty"`

	Tags []Tag `json:"tags"`
}

// Resolution returns the media's resolution.
func (m *Media) Resolution() Resolution {
	return NewResolution(m.WidthPx, m.HeightPx)
}

// AlbumOf returns the album (parent directory) of path, or false if the path
// has no parent.
func AlbumOf(path string) (string, bool) {
	clean := filepath.Clean(path)
	parent := filepath.Dir(clean)
	if parent == clean || clean == "." {
		return "", false
	}
	return parent, true
}

// SpecificKind names the variant held by SpecificMetadata.
type SpecificKind string

const (
	// SpecificImage carries no extra data.
	SpecificImage SpecificKind = "Image"
	// SpecificAnimatedImage carries a frame count and framerate.
	SpecificAnimatedImage SpecificKind = "AnimatedImage"
	// SpecificVideo carries a duration in seconds.
	SpecificVideo SpecificKind = "Video"
)

// Framerate is a video or animation framerate expressed as a fraction.
type Framerate struct {
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

// FPS returns the framerate as frames per second, or 0 for an empty fraction.
func (f Framerate) FPS() float64 {
	if f.Den == 0 {
		return 0
	}
	return float64(f.Num) / float64(f.Den)
}

// SpecificMetadata holds metadata that only makes sense for one kind of
// media. Exactly one variant is active, named by Kind.
type SpecificMetadata struct {
	Kind SpecificKind

	// AnimatedImage
	FrameCount uint32
	Framerate  Framerate

	// Video, in seconds
	Length float64
}

// ImageMetadata returns the Image variant.
func ImageMetadata() SpecificMetadata {
	return SpecificMetadata{Kind: SpecificImage}
}

// AnimatedImageMetadata returns the AnimatedImage variant.
func AnimatedImageMetadata(frameCount uint32, rate Framerate) SpecificMetadata {
	return SpecificMetadata{Kind: SpecificAnimatedImage, FrameCount: frameCount, Framerate: rate}
}

// VideoMetadata returns the Video variant with a length in seconds.
func VideoMetadata(length float64) SpecificMetadata {
	return SpecificMetadata{Kind: SpecificVideo, Length: length}
}

type animatedImageJSON struct {
	FrameCount uint32    `json:"frame_count"`
	Framerate  Framerate `json:"framerate"`
}

type videoJSON struct {
	Length float64 `json:"length"`
}

// MarshalJSON encodes the variant as an externally tagged object, e.g.
// {"Video":{"length":12.5}}.
func (s SpecificMetadata) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SpecificImage:
		return json.Marshal(map[string]struct{}{string(SpecificImage): {}})
	case SpecificAnimatedImage:
		return json.Marshal(map[string]animatedImageJSON{
			string(SpecificAnimatedImage): {FrameCount: s.FrameCount, Framerate: s.Framerate},
		})
	case SpecificVideo:
		return json.Marshal(map[string]videoJSON{string(SpecificVideo): {Length: s.Length}})
	default:
		return nil, fmt.Errorf("unknown specific metadata kind %q", s.Kind)
	}
}

// UnmarshalJSON decodes the externally tagged representation.
func (s *SpecificMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("specific metadata must have exactly one variant, got %d", len(raw))
	}

	for key, body := range raw {
		switch SpecificKind(key) {
		case SpecificImage:
			*s = ImageMetadata()
		case SpecificAnimatedImage:
			var v animatedImageJSON
			if err := json.Unmarshal(body, &v); err != nil {
				return fmt.Errorf("failed to decode animated image metadata: %w", err)
			}
			*s = AnimatedImageMetadata(v.FrameCount, v.Framerate)
		case SpecificVideo:
			var v videoJSON
			if err := json.Unmarshal(body, &v); err != nil {
				return fmt.Errorf("failed to decode video metadata: %w", err)
			}
			*s = VideoMetadata(v.Length)
		default:
			return fmt.Errorf("unknown specific metadata variant %q", key)
		}
	}
	return nil
}

// OtherMetadataValue is one long-tail metadata entry.
type OtherMetadataValue struct {
	UserFacingName *string `json:"user_facing_name"`
	Value          string  `json:"value"`
}

// NewOtherMetadataValue returns a value with a display name.
func NewOtherMetadataValue(name, value string) OtherMetadataValue {
	return OtherMetadataValue{UserFacingName: &name, Value: value}
}

// OtherMetadata maps a format-specific key (an EXIF tag name, a container
// tag) to its value.
type OtherMetadata map[string]OtherMetadataValue

// TagSection groups tags that should not be mixed with tags of other
// sections.
type TagSection struct {
	Name       string    `json:"name"`
	Identifier uuid.UUID `json:"identifier"`
}

// DefaultTagSection returns the section named "default" with the nil UUID.
func DefaultTagSection() TagSection {
	return TagSection{Name: "default", Identifier: uuid.Nil}
}

// Tag is a user or metadata supplied label. Tags are copied by value into
// each Media record.
type Tag struct {
	// Name is a display label. It can change and is not unique.
	Name string `json:"name"`
	// UUID is the tag's permanent identity.
	UUID       uuid.UUID   `json:"uuid"`
	TagSection *TagSection `json:"tag_section,omitempty"`
	// Implies lists tags whose presence this tag entails.
	Implies []uuid.UUID `json:"implies"`
}

// Section returns the tag's section, falling back to the default section.
func (t Tag) Section() TagSection {
	if t.TagSection == nil {
		return DefaultTagSection()
	}
	return *t.TagSection
}
