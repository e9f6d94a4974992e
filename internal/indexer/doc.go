// Package indexer keeps the media cache in step with the watched directories.
//
// A Watcher moves through three states:
//   - idle: constructed, not started
//   - initial_scanning: every watched root is walked and each regular file
//     is loaded through the pipeline, five roots at a time
//   - live: filesystem notifications drive re-ingestion
//
// Live events are debounced into batches. A directory event re-walks the
// whole directory because move notifications do not name the files inside
// it; a file event refreshes that one file. Every dispatch runs in its own
// goroutine and failures are logged per path without affecting siblings.
//
// Hidden files and directories (prefixed with '.') are never scanned or
// watched. An optional cron schedule triggers periodic full scans.
package indexer
