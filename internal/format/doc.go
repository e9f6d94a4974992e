// Package format identifies media files by their byte signature.
//
// Extensions are never trusted: a Resolver reads the first few kilobytes of
// a file and sniffs them with mimetype. image/* resolves to a photo and
// video/* to a video; anything else is ErrUnsupportedFormat.
//
// For videos, DetectContainer picks the container family so the extraction
// chain can choose the matching demuxer.
package format
