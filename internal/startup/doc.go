// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Runtime configuration is loaded from environment variables via [LoadConfig]:
//
//   - DATA_DIR: Directory for the cache database and settings file (default: /data)
//   - CACHE_DIR: Scratch directory (default: /cache)
//   - WATCHED_PATHS: Comma or colon separated roots to watch. When set they
//     replace the roots stored in the settings file.
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: Serve /metrics (default: true)
//   - DEBOUNCE: Event coalescing window as Go duration (default: 1.5s)
//   - RESCAN_SCHEDULE: Cron expression for periodic full scans, "off" to
//     disable (default: 0 4 * * *)
//   - FFPROBE_PATH: ffprobe binary (default: ffprobe)
//   - DB_MAX_CONNS: Database connection pool size (default: 25)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_FILE: Also write logs to this rotating file
//   - LOG_FILE_MAX_MB, LOG_FILE_MAX_BACKUPS: Rotation limits
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - INGEST_WORKERS, CODEC_WORKERS: Worker pool overrides
//
// Watched roots, the data and cache directories and build details are also
// persisted in <DATA_DIR>/shared_prefs/config.toml so later starts do not
// need WATCHED_PATHS.
//
// # Directory Setup
//
// The data directory is required and must be writable. The cache directory
// is optional. Watched roots are checked but never created.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X backdrop/internal/startup.Version=1.2.0 -X backdrop/internal/startup.Commit=$(git rev-parse HEAD)"
//
// # Lifecycle Logging
//
// [LogDatabaseInit], [LogExtractorInit], [LogWatcherInit], [LogHTTPRoutes],
// [LogServerStarted] and the shutdown helpers print a consistent startup and
// shutdown report.
package startup
