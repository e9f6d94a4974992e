package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"backdrop/internal/filesystem"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backdrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backdrop_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backdrop_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)

	DBStorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_db_storage_errors_total",
			Help: "Errors reading SQLite database file sizes",
		},
		[]string{"file"},
	)

	DBMigrationVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_db_migration_version",
			Help: "Schema version applied by the last migration run",
		},
	)
)

// Ingestion metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_ingest_total",
			Help: "Total number of pipeline invocations by entry point and result",
		},
		[]string{"operation", "result"}, // operation: "load", "update"; result: "cached", "ingested", "skipped", "error"
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backdrop_ingest_duration_seconds",
			Help:    "Duration of one pipeline invocation",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_ingest_errors_total",
			Help: "Pipeline failures by error kind",
		},
		[]string{"kind"},
	)

	ExtractorAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_extractor_attempts_total",
			Help: "Metadata extractor invocations by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: "success", "error"
	)

	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backdrop_extractor_duration_seconds",
			Help:    "Metadata extractor duration by strategy",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"strategy"},
	)

	CodecSlotsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_codec_slots_in_use",
			Help: "Number of codec calls currently holding a slot",
		},
	)

	HashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backdrop_hash_duration_seconds",
			Help:    "Time spent hashing file content",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	HashBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backdrop_hash_bytes_total",
			Help: "Total number of bytes hashed",
		},
	)

	HashStates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_hash_states_total",
			Help: "Hash comparisons by resulting state",
		},
		[]string{"state"},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backdrop_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)

	WatcherDispatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_watcher_dispatches_in_flight",
			Help: "Number of per-event dispatches currently running",
		},
	)

	WatcherDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_watcher_dispatches_total",
			Help: "Dispatches started by the watcher by target kind",
		},
		[]string{"kind"}, // "file", "directory"
	)

	WatcherState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backdrop_watcher_state",
			Help: "Current watcher state (1 for the active state)",
		},
		[]string{"state"},
	)

	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_scan_runs_total",
			Help: "Total number of full scans by trigger",
		},
		[]string{"trigger"}, // "initial", "scheduled", "manual"
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_scan_last_run_timestamp",
			Help: "Timestamp of the last completed scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_scan_last_run_duration_seconds",
			Help: "Duration of the last completed scan in seconds",
		},
	)

	ScanFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backdrop_scan_files_processed_total",
			Help: "Total number of files dispatched by scans",
		},
	)

	ScanRootsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backdrop_scan_roots_completed_total",
			Help: "Total number of watched roots whose walk completed",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backdrop_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_filesystem_retry_attempts_total",
			Help: "Retries caused by stale NFS file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backdrop_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backdrop_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// Volume labels used for filesystem metrics. Any other label a resolver
// produces is recorded as VolumeUnknown.
const (
	VolumeData    = "data"
	VolumeCache   = "cache"
	VolumeMedia   = "media"
	VolumeUnknown = "unknown"
)

func volumeLabel(volume string) string {
	switch volume {
	case VolumeData, VolumeCache, VolumeMedia:
		return volume
	default:
		return VolumeUnknown
	}
}

// fsObserver feeds filesystem.Observer callbacks into the Filesystem*
// metrics.
type fsObserver struct{}

// NewFilesystemObserver returns the filesystem.Observer main installs with
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return fsObserver{}
}

func (fsObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	volume = volumeLabel(volume)
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (fsObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (fsObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (fsObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volumeLabel(volume)).Inc()
}

func (fsObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volumeLabel(volume)).Observe(durationSeconds)
}

func (fsObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volumeLabel(volume)).Inc()
}

// Media library metrics
var (
	MediaFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backdrop_media_files_total",
			Help: "Total number of cached media files by kind",
		},
		[]string{"kind"},
	)

	MediaAlbumsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_media_albums_total",
			Help: "Total number of distinct albums",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_memory_usage_ratio",
			Help: "Heap in use as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backdrop_memory_paused",
			Help: "1 while ingestion is paused for memory pressure",
		},
	)

	MemoryPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backdrop_memory_pauses_total",
			Help: "Number of times ingestion paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "backdrop_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// SetWatcherState marks state as the active watcher state.
func SetWatcherState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		WatcherState.WithLabelValues(s).Set(v)
	}
}
