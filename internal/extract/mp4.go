package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abema/go-mp4"

	"backdrop/internal/filesystem"
	"backdrop/internal/format"
	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
)

// isoInfo is what the ISO base media boxes tell us about a file.
type isoInfo struct {
	width, height uint32
	timescale     uint32
	duration      uint64
	majorBrand    string
	tracks        int
}

// seconds returns the movie duration in seconds, or false when the header
// has no timescale.
func (i isoInfo) seconds() (float64, bool) {
	if i.timescale == 0 {
		return 0, false
	}
	return float64(i.duration) / float64(i.timescale), true
}

// readISOBoxes reads ftyp, mvhd and every tkhd box of an ISO base media file.
// The resolution comes from the first track with a visual size.
func readISOBoxes(path string, retry filesystem.RetryConfig) (isoInfo, error) {
	var info isoInfo

	f, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return info, err
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxesWithPayload(f, nil, []mp4.BoxPath{
		{mp4.BoxTypeFtyp()},
		{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()},
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()},
	})
	if err != nil {
		return info, fmt.Errorf("failed to read mp4 boxes: %w", err)
	}

	foundMovie := false
	for _, box := range boxes {
		switch payload := box.Payload.(type) {
		case *mp4.Ftyp:
			info.majorBrand = strings.TrimSpace(string(payload.MajorBrand[:]))
		case *mp4.Mvhd:
			foundMovie = true
			info.timescale = payload.Timescale
			if payload.GetVersion() == 0 {
				info.duration = uint64(payload.DurationV0)
			} else {
				info.duration = payload.DurationV1
			}
		case *mp4.Tkhd:
			info.tracks++
			// 16.16 fixed point
			w, h := payload.Width>>16, payload.Height>>16
			if info.width == 0 && w > 0 && h > 0 {
				info.width, info.height = w, h
			}
		}
	}

	if !foundMovie {
		return info, errors.New("no movie header")
	}
	return info, nil
}

func isoPartial(info isoInfo) *Partial {
	p := &Partial{}
	p.SetResolution(info.width, info.height)
	if secs, ok := info.seconds(); ok {
		p.SetSpecific(mediatypes.VideoMetadata(secs))
	}
	p.AddOther("MajorBrand", info.majorBrand)
	if info.tracks > 0 {
		p.AddOther("TrackCount", fmt.Sprint(info.tracks))
	}
	return p
}

// MP4Extractor reads resolution and duration from MP4 family containers.
type MP4Extractor struct {
	retry filesystem.RetryConfig
}

// NewMP4Extractor returns the MP4 video strategy.
func NewMP4Extractor(retry filesystem.RetryConfig) *MP4Extractor {
	return &MP4Extractor{retry: retry}
}

// Name implements Extractor.
func (*MP4Extractor) Name() string { return "mp4" }

// Accepts implements Extractor.
func (*MP4Extractor) Accepts(t Target) bool {
	return t.Format.MediaKind == mediatypes.KindVideo && t.Container == format.ContainerMP4
}

// Extract implements Extractor.
func (e *MP4Extractor) Extract(_ context.Context, t Target) (*Partial, error) {
	info, err := readISOBoxes(t.Path, e.retry)
	if err != nil {
		return nil, err
	}
	return isoPartial(info), nil
}

// QuickTimeExtractor handles QuickTime movies. They share the ISO box layout
// with MP4 and often carry an EXIF block written by cameras and phones.
type QuickTimeExtractor struct {
	retry filesystem.RetryConfig
}

// NewQuickTimeExtractor returns the QuickTime video strategy.
func NewQuickTimeExtractor(retry filesystem.RetryConfig) *QuickTimeExtractor {
	return &QuickTimeExtractor{retry: retry}
}

// Name implements Extractor.
func (*QuickTimeExtractor) Name() string { return "quicktime" }

// Accepts implements Extractor.
func (*QuickTimeExtractor) Accepts(t Target) bool {
	return t.Format.MediaKind == mediatypes.KindVideo && t.Container == format.ContainerQuickTime
}

// Extract implements Extractor.
func (e *QuickTimeExtractor) Extract(_ context.Context, t Target) (*Partial, error) {
	info, err := readISOBoxes(t.Path, e.retry)
	if err != nil {
		return nil, err
	}
	p := isoPartial(info)

	block, err := readExifBlock(t.Path, t.Format.MimeType, e.retry)
	switch {
	case err == nil:
		if entries, err := exifTags(block); err == nil {
			addExifOther(p, entries)
		} else {
			logging.Debug("Ignoring unreadable EXIF in %s: %v", t.Path, err)
		}
	case !errors.Is(err, errNoExif):
		logging.Debug("EXIF search in %s failed: %v", t.Path, err)
	}

	return p, nil
}
