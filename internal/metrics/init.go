package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBStorageErrors.WithLabelValues(file)
		DBSizeBytes.WithLabelValues(file)
	}

	volumes := []string{"media", "data", "cache", "unknown"}
	fsOps := []string{"read", "stat", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
	}

	retryOps := []string{"stat", "open", "readdir"}

	for _, op := range retryOps {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"load", "update"} {
		for _, result := range []string{"cache_hit", "ingested", "error"} {
			IngestTotal.WithLabelValues(op, result)
		}
		IngestDuration.WithLabelValues(op)
	}

	for _, kind := range []string{"not_found", "open", "no_parent", "unsupported", "missing_metadata", "hash", "database", "other"} {
		IngestErrors.WithLabelValues(kind)
	}

	for _, strategy := range []string{"vips", "exif", "decode", "mp4", "quicktime", "matroska", "ffprobe"} {
		ExtractorAttempts.WithLabelValues(strategy, "success")
		ExtractorAttempts.WithLabelValues(strategy, "error")
		ExtractorDuration.WithLabelValues(strategy)
	}

	for _, state := range []string{"up_to_date", "outdated", "not_in_database"} {
		HashStates.WithLabelValues(state)
	}

	for _, kind := range []string{"file", "directory"} {
		WatcherDispatchesTotal.WithLabelValues(kind)
	}

	for _, trigger := range []string{"initial", "scheduled", "manual"} {
		ScanRunsTotal.WithLabelValues(trigger)
	}

	for _, kind := range []string{"Photo", "AnimatedPhoto", "Video"} {
		MediaFilesTotal.WithLabelValues(kind)
	}

	for _, op := range []string{"migrate", "get_by_path", "get_by_id", "first_seen_by_hash",
		"upsert_info", "upsert_hash", "get_hash", "count_by_kind", "count_albums", "list_album", "vacuum", "begin_transaction", "commit", "rollback"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
