// Package mediatypes provides the shared domain types of the backdrop media
// cache.
//
// This package is the leaf of the import graph: format detection, hashing,
// extraction, storage and the watcher all speak in these types without
// depending on each other.
//
// # Media
//
// Media is one cached file. Its ID and FirstSeenDate are assigned on first
// ingestion and never change afterwards; everything else is rewritten when
// the file's content changes.
//
// # Formats
//
// FormatFromMIME is the only place that maps a MIME type to a MediaKind:
//
//	f, ok := mediatypes.FormatFromMIME("image/jpeg")
//	fmt.Println(f) // photo/image/jpeg
//
// # Specific metadata
//
// SpecificMetadata is a tagged variant. Its JSON form names the variant:
//
//	{"Image":{}}
//	{"AnimatedImage":{"frame_count":12,"framerate":{"num":25,"den":1}}}
//	{"Video":{"length":12.5}}
//
// # Hashes
//
// Hash is a 32-byte content digest and implements sql.Scanner and
// driver.Valuer so it can be stored in a BLOB column directly.
package mediatypes
