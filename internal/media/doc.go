// Package media builds media records from files on disk and keeps them in
// the cache.
//
// A Builder resolves a file's format, runs the extraction chain for its
// kind and decides its identity. A Pipeline wraps the builder with content
// hashing so unchanged files are served from the cache without running any
// extractor.
package media
