package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dsoprea/go-exif/v3"
	heicexif "github.com/dsoprea/go-heic-exif-extractor"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure"
	pngstructure "github.com/dsoprea/go-png-image-structure"
	tiffstructure "github.com/dsoprea/go-tiff-image-structure"
	riimage "github.com/dsoprea/go-utility/image"

	"backdrop/internal/filesystem"
	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
)

type exifParser interface {
	Parse(rs io.ReadSeeker, size int) (ec riimage.MediaContext, err error)
}

func exifParserFor(mime string) exifParser {
	switch mime {
	case "image/jpeg":
		return jpegstructure.NewJpegMediaParser()
	case "image/png":
		return pngstructure.NewPngMediaParser()
	case "image/tiff":
		return tiffstructure.NewTiffMediaParser()
	case "image/heic", "image/heif", "image/avif":
		return heicexif.NewHeicExifMediaParser()
	default:
		// Everything else relies on the brute-force search
		return nil
	}
}

// errNoExif is returned when a file carries no EXIF block.
var errNoExif = errors.New("no exif data")

// readExifBlock returns the raw EXIF block of the file, trying the
// structured parser for mime first and a byte scan second.
func readExifBlock(path, mime string, retry filesystem.RetryConfig) ([]byte, error) {
	f, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var block []byte
	if parser := exifParserFor(mime); parser != nil {
		if res, pErr := parser.Parse(f, int(info.Size())); pErr == nil {
			_, block, _ = res.Exif()
		} else {
			logging.Debug("Structured EXIF parse of %s failed, falling back to search: %v", path, pErr)
		}
	}

	if len(block) == 0 {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		block, err = exif.SearchAndExtractExifWithReader(f)
		if err != nil {
			if errors.Is(err, exif.ErrNoExif) {
				return nil, errNoExif
			}
			return nil, err
		}
	}

	if len(block) == 0 {
		return nil, errNoExif
	}
	return block, nil
}

// exifTags flattens an EXIF block into tag entries.
func exifTags(block []byte) ([]exif.ExifTag, error) {
	entries, _, err := exif.GetFlatExifData(block, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exif entries: %w", err)
	}
	return entries, nil
}

// addExifOther copies every named tag into p.Other. When a tag appears in
// several IFDs the primary one wins.
func addExifOther(p *Partial, entries []exif.ExifTag) {
	for _, tag := range entries {
		if tag.TagName == "" {
			continue
		}
		p.AddOther(tag.TagName, cleanExifValue(tag.FormattedFirst))
	}
}

func cleanExifValue(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// exifDimension finds the first usable value among names, ignoring the
// thumbnail IFD.
func exifDimension(entries []exif.ExifTag, names ...string) (uint32, bool) {
	for _, name := range names {
		for _, tag := range entries {
			if tag.TagName != name || strings.HasPrefix(tag.IfdPath, "IFD1") {
				continue
			}
			v, err := strconv.ParseUint(cleanExifValue(tag.FormattedFirst), 10, 32)
			if err == nil && v > 0 {
				return uint32(v), true
			}
		}
	}
	return 0, false
}

// ExifExtractor reads resolution and every EXIF tag from photos.
type ExifExtractor struct {
	retry filesystem.RetryConfig
}

// NewExifExtractor returns the EXIF photo strategy.
func NewExifExtractor(retry filesystem.RetryConfig) *ExifExtractor {
	return &ExifExtractor{retry: retry}
}

// Name implements Extractor.
func (*ExifExtractor) Name() string { return "exif" }

// Accepts implements Extractor.
func (*ExifExtractor) Accepts(t Target) bool {
	return t.Format.MediaKind.IsPhoto()
}

// Extract implements Extractor. It fails when the block has no resolution,
// so the decoder further down the chain gets a chance.
func (e *ExifExtractor) Extract(_ context.Context, t Target) (*Partial, error) {
	block, err := readExifBlock(t.Path, t.Format.MimeType, e.retry)
	if err != nil {
		return nil, err
	}

	entries, err := exifTags(block)
	if err != nil {
		return nil, err
	}

	width, okW := exifDimension(entries, "ImageWidth", "PixelXDimension")
	height, okH := exifDimension(entries, "ImageLength", "PixelYDimension")
	if !okW {
		return nil, errors.New("exif has no width")
	}
	if !okH {
		return nil, errors.New("exif has no height")
	}

	p := &Partial{}
	p.SetResolution(width, height)
	p.SetSpecific(mediatypes.ImageMetadata())
	addExifOther(p, entries)
	return p, nil
}
