// Package hashing fingerprints media file content.
//
// HashFile streams a file through blake3 and returns a 32-byte digest. The
// digest, not the modification time, decides whether cached metadata is
// stale: Compare classifies a fresh digest against the stored one as
// UpToDate, Outdated or NotInDatabase, and only UpToDate skips extraction.
package hashing
