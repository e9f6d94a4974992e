package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure"

	"backdrop/internal/filesystem"
	"backdrop/internal/mediatypes"
)

func writeJPEG(t *testing.T, dir, name string, w, h int) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, buf.Bytes()
}

// jpegWithExif rewrites a JPEG with an EXIF block claiming the given size.
// The fixture is skipped if the EXIF writer rejects it.
func jpegWithExif(t *testing.T, data []byte, width, height uint32) (out []byte) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("could not build EXIF fixture: %v", r)
		}
	}()

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		t.Skipf("ifd mapping: %v", err)
	}
	ti := exif.NewTagIndex()
	ib := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)
	if err := ib.AddStandardWithName("ImageWidth", []uint32{width}); err != nil {
		t.Skipf("ImageWidth: %v", err)
	}
	if err := ib.AddStandardWithName("ImageLength", []uint32{height}); err != nil {
		t.Skipf("ImageLength: %v", err)
	}
	if err := ib.AddStandardWithName("Make", "Backdrop Camera Co"); err != nil {
		t.Skipf("Make: %v", err)
	}

	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		t.Skipf("parse jpeg: %v", err)
	}
	sl := mc.(*jpegstructure.SegmentList)
	if err := sl.SetExif(ib); err != nil {
		t.Skipf("set exif: %v", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		t.Skipf("write jpeg: %v", err)
	}
	return buf.Bytes()
}

func jpegTarget(path string) Target {
	return Target{Path: path, Format: mediatypes.Format{MediaKind: mediatypes.KindPhoto, MimeType: "image/jpeg"}}
}

func TestDecodeExtractor(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeJPEG(t, dir, "full-hd.jpg", 1920, 1080)

	p, err := NewDecodeExtractor(filesystem.DefaultRetryConfig()).Extract(context.Background(), jpegTarget(path))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if *p.Width != 1920 || *p.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", *p.Width, *p.Height)
	}
	if p.Specific == nil || p.Specific.Kind != mediatypes.SpecificImage {
		t.Errorf("specific = %+v, want Image", p.Specific)
	}
}

func TestDecodeExtractorPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 7))); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tall.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	target := Target{Path: path, Format: mediatypes.Format{MediaKind: mediatypes.KindPhoto, MimeType: "image/png"}}
	p, err := NewDecodeExtractor(filesystem.DefaultRetryConfig()).Extract(context.Background(), target)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if *p.Width != 3 || *p.Height != 7 {
		t.Errorf("resolution = %dx%d, want 3x7", *p.Width, *p.Height)
	}
}

func TestDecodeExtractorTruncated(t *testing.T) {
	dir := t.TempDir()
	_, data := writeJPEG(t, dir, "source.jpg", 64, 64)

	// Keep only the start-of-image marker and a few header bytes
	path := filepath.Join(dir, "truncated.jpg")
	if err := os.WriteFile(path, data[:16], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewDecodeExtractor(filesystem.DefaultRetryConfig()).Extract(context.Background(), jpegTarget(path)); err == nil {
		t.Error("Extract() on truncated image expected error")
	}
}

func TestExifExtractorWithoutExif(t *testing.T) {
	path, _ := writeJPEG(t, t.TempDir(), "plain.jpg", 4, 4)

	_, err := NewExifExtractor(filesystem.DefaultRetryConfig()).Extract(context.Background(), jpegTarget(path))
	if err == nil {
		t.Error("Extract() without EXIF expected error")
	}
}

func TestExifExtractorReadsTags(t *testing.T) {
	dir := t.TempDir()
	_, data := writeJPEG(t, dir, "source.jpg", 8, 6)
	withExif := jpegWithExif(t, data, 1920, 1080)

	path := filepath.Join(dir, "camera.jpg")
	if err := os.WriteFile(path, withExif, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewExifExtractor(filesystem.DefaultRetryConfig()).Extract(context.Background(), jpegTarget(path))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if *p.Width != 1920 || *p.Height != 1080 {
		t.Errorf("resolution = %dx%d, want EXIF 1920x1080", *p.Width, *p.Height)
	}
	if got := p.Other["Make"].Value; got != "Backdrop Camera Co" {
		t.Errorf("Make = %q", got)
	}
}

func TestPhotoChainFallsBackToDecoder(t *testing.T) {
	path, _ := writeJPEG(t, t.TempDir(), "plain.jpg", 20, 10)

	chains := DefaultChains(Config{Retry: filesystem.DefaultRetryConfig()})
	acc := &Partial{}
	if err := chains.Photo.Run(context.Background(), jpegTarget(path), acc); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if *acc.Width != 20 || *acc.Height != 10 {
		t.Errorf("resolution = %dx%d, want 20x10", *acc.Width, *acc.Height)
	}
}

func TestVipsExtractorAccepts(t *testing.T) {
	v := NewVipsExtractor()
	for mime, want := range map[string]bool{
		"image/avif": true,
		"image/heic": true,
		"image/jpeg": false,
	} {
		target := Target{Format: mediatypes.Format{MediaKind: mediatypes.KindPhoto, MimeType: mime}}
		if got := v.Accepts(target); got != want {
			t.Errorf("Accepts(%s) = %v, want %v", mime, got, want)
		}
	}
}

func TestVipsExtractorUnavailable(t *testing.T) {
	if isVipsAvailable() {
		t.Skip("libvips already started in this process")
	}
	_, err := NewVipsExtractor().Extract(context.Background(), Target{Path: "/x.avif"})
	if !errors.Is(err, errVipsUnavailable) {
		t.Errorf("Extract() error = %v, want errVipsUnavailable", err)
	}
}

func TestExifDimensionSkipsThumbnailIFD(t *testing.T) {
	entries := []exif.ExifTag{
		{IfdPath: "IFD1", TagName: "ImageWidth", FormattedFirst: "160"},
		{IfdPath: "IFD/Exif", TagName: "PixelXDimension", FormattedFirst: "4032"},
	}
	got, ok := exifDimension(entries, "ImageWidth", "PixelXDimension")
	if !ok || got != 4032 {
		t.Errorf("exifDimension() = %d, %v, want 4032", got, ok)
	}
}
