package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/remko/go-mkvparse"

	"backdrop/internal/filesystem"
	"backdrop/internal/format"
	"backdrop/internal/mediatypes"
)

// defaultTimecodeScale is the Matroska default: one tick per millisecond.
const defaultTimecodeScale = 1_000_000

// matroskaHandler collects the fields we need from the Info, Tracks and Tags
// sections.
type matroskaHandler struct {
	mkvparse.DefaultHandler

	width, height  int64
	duration       float64
	hasDuration    bool
	timecodeScale  int64
	title          string
	muxingApp      string
	writingApp     string
	dateUTC        time.Time
	pendingTagName string
	tags           map[string]string
}

func (h *matroskaHandler) HandleInteger(id mkvparse.ElementID, value int64, _ mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.PixelWidthElement:
		if h.width == 0 {
			h.width = value
		}
	case mkvparse.PixelHeightElement:
		if h.height == 0 {
			h.height = value
		}
	case mkvparse.TimecodeScaleElement:
		h.timecodeScale = value
	}
	return nil
}

func (h *matroskaHandler) HandleFloat(id mkvparse.ElementID, value float64, _ mkvparse.ElementInfo) error {
	if id == mkvparse.DurationElement {
		h.duration = value
		h.hasDuration = true
	}
	return nil
}

func (h *matroskaHandler) HandleString(id mkvparse.ElementID, value string, _ mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.TitleElement:
		h.title = value
	case mkvparse.MuxingAppElement:
		h.muxingApp = value
	case mkvparse.WritingAppElement:
		h.writingApp = value
	case mkvparse.TagNameElement:
		h.pendingTagName = value
	case mkvparse.TagStringElement:
		if h.pendingTagName != "" {
			if h.tags == nil {
				h.tags = make(map[string]string)
			}
			if _, exists := h.tags[h.pendingTagName]; !exists {
				h.tags[h.pendingTagName] = value
			}
			h.pendingTagName = ""
		}
	}
	return nil
}

func (h *matroskaHandler) HandleDate(id mkvparse.ElementID, value time.Time, _ mkvparse.ElementInfo) error {
	if id == mkvparse.DateUTCElement {
		h.dateUTC = value
	}
	return nil
}

// seconds converts the segment duration into seconds.
func (h *matroskaHandler) seconds() float64 {
	scale := h.timecodeScale
	if scale <= 0 {
		scale = defaultTimecodeScale
	}
	return h.duration * float64(scale) / float64(time.Second)
}

func (h *matroskaHandler) partial() *Partial {
	p := &Partial{}
	if h.width > 0 && h.height > 0 && h.width <= int64(^uint32(0)) && h.height <= int64(^uint32(0)) {
		p.SetResolution(uint32(h.width), uint32(h.height))
	}
	if h.hasDuration {
		p.SetSpecific(mediatypes.VideoMetadata(h.seconds()))
	}
	p.AddOther("Title", h.title)
	p.AddOther("MuxingApp", h.muxingApp)
	p.AddOther("WritingApp", h.writingApp)
	if !h.dateUTC.IsZero() {
		p.AddOther("DateUTC", h.dateUTC.UTC().Format(time.RFC3339))
	}
	for k, v := range h.tags {
		p.AddOther(k, v)
	}
	return p
}

// MatroskaExtractor reads resolution, duration and tags from MKV and WebM.
type MatroskaExtractor struct {
	retry filesystem.RetryConfig
}

// NewMatroskaExtractor returns the Matroska video strategy.
func NewMatroskaExtractor(retry filesystem.RetryConfig) *MatroskaExtractor {
	return &MatroskaExtractor{retry: retry}
}

// Name implements Extractor.
func (*MatroskaExtractor) Name() string { return "matroska" }

// Accepts implements Extractor.
func (*MatroskaExtractor) Accepts(t Target) bool {
	return t.Format.MediaKind == mediatypes.KindVideo && t.Container == format.ContainerMatroska
}

// Extract implements Extractor.
func (e *MatroskaExtractor) Extract(_ context.Context, t Target) (*Partial, error) {
	f, err := filesystem.OpenWithRetry(t.Path, e.retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := &matroskaHandler{}
	if err := mkvparse.ParseSections(f, h, mkvparse.InfoElement, mkvparse.TracksElement, mkvparse.TagsElement); err != nil {
		return nil, fmt.Errorf("failed to parse matroska: %w", err)
	}

	p := h.partial()
	if p.Width == nil && p.Specific == nil {
		return nil, errors.New("matroska file has no video track or duration")
	}
	return p, nil
}
