// Package handlers serves the admin HTTP API.
//
// Routes:
//   - GET /healthz, /livez, /readyz: health probes; ready once the watcher
//     has finished its initial scan
//   - GET /metrics: Prometheus exposition
//   - GET /version: build information
//   - GET /api/media?path=, GET /api/media/{id}: cached records
//   - GET /api/albums?album=: cached records in one directory
//   - POST /api/load: ingest one path on demand; only paths under a watched
//     root are accepted
//   - POST /api/rescan: start a full scan
//   - GET /api/stats: media totals
package handlers
