// Package database is the sqlite cache of ingested media.
//
// Records live in the info table keyed by media id, with their content
// hashes in the hashes side table. The schema is managed by the embedded
// migrations in the migrations subpackage and applied on open.
//
// The database uses WAL mode for concurrent reads. Reads return a nil
// record rather than an error when nothing matches.
package database
