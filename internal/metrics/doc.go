// Package metrics provides Prometheus instrumentation for backdrop.
//
// All metrics are registered with promauto at package init and prefixed with
// "backdrop_" to avoid naming collisions with other applications.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
//   - DBQueryTotal / DBQueryDuration: queries by operation
//   - DBConnectionsOpen: open connections in the pool
//   - DBSizeBytes / DBStorageErrors: sqlite main, WAL and SHM files
//   - DBMigrationVersion: schema version after startup migration
//
// ## Ingestion Metrics
//
//   - IngestTotal / IngestDuration: Load and UpdateMetadata invocations
//   - IngestErrors: failures by error kind
//   - ExtractorAttempts / ExtractorDuration: each extraction strategy
//   - CodecSlotsInUse: codec semaphore occupancy
//   - HashDuration / HashBytes / HashStates: content hashing
//
// ## Watcher Metrics
//
//   - WatcherEventsTotal / WatcherErrors: raw fsnotify traffic
//   - WatchedDirectories: directories registered with fsnotify
//   - WatcherDispatchesInFlight / WatcherDispatchesTotal: event dispatches
//   - WatcherState: Idle, InitialScanning or Live
//   - ScanRunsTotal, ScanLastRunTimestamp, ScanLastRunDuration,
//     ScanFilesProcessed, ScanRootsCompleted: full scans
//
// ## Memory Metrics
//
//   - MemoryUsageRatio, MemoryPaused, MemoryPauses: ingestion backpressure
//
// ## Filesystem Metrics
//
// Recorded through the filesystem.Observer returned by NewFilesystemObserver,
// so the filesystem package never imports this one. Volume labels are limited
// to VolumeData, VolumeCache and VolumeMedia; anything else is VolumeUnknown.
//
// # Collector
//
// Collector refreshes library totals and database file sizes on an interval:
//
//	collector := metrics.NewCollector(db, dbPath, time.Minute)
//	collector.SetStorageHealthChecker(db)
//	collector.Start()
//	defer collector.Stop()
package metrics
