package format

import (
	"bytes"
	"encoding/binary"
)

// Container is the family of a video container.
type Container int

const (
	// ContainerUnknown is any container without a dedicated extractor.
	ContainerUnknown Container = iota
	// ContainerMP4 is ISO base media (mp4, m4v, 3gp).
	ContainerMP4
	// ContainerQuickTime is an ISO base media file with the "qt  " brand.
	ContainerQuickTime
	// ContainerMatroska is EBML (mkv, webm).
	ContainerMatroska
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// String returns a short name for the container.
func (c Container) String() string {
	switch c {
	case ContainerMP4:
		return "mp4"
	case ContainerQuickTime:
		return "quicktime"
	case ContainerMatroska:
		return "matroska"
	default:
		return "unknown"
	}
}

// DetectContainer classifies a video by its leading bytes.
func DetectContainer(prefix []byte) Container {
	if bytes.HasPrefix(prefix, ebmlMagic) {
		return ContainerMatroska
	}

	// ISO base media: [size:4]["ftyp"][major brand:4]...
	if len(prefix) >= 12 && string(prefix[4:8]) == "ftyp" {
		if string(prefix[8:12]) == "qt  " {
			return ContainerQuickTime
		}
		return ContainerMP4
	}

	// Old QuickTime files can start with moov, mdat, wide or free atoms.
	if len(prefix) >= 8 && binary.BigEndian.Uint32(prefix[0:4]) >= 8 {
		switch string(prefix[4:8]) {
		case "moov", "mdat", "wide", "free", "skip", "pnot":
			return ContainerQuickTime
		}
	}

	return ContainerUnknown
}

// ContainerFromMIME guesses the container from a detected MIME type. It is
// the fallback when no prefix is available.
func ContainerFromMIME(mime string) Container {
	switch mime {
	case "video/mp4", "video/x-m4v", "video/3gpp", "video/3gpp2":
		return ContainerMP4
	case "video/quicktime":
		return ContainerQuickTime
	case "video/x-matroska", "video/webm":
		return ContainerMatroska
	default:
		return ContainerUnknown
	}
}
