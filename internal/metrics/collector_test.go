package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// =============================================================================
// Mocks
// =============================================================================

type mockStatsProvider struct {
	stats Stats
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

type mockStorageHealthChecker struct {
	mu                    sync.Mutex
	checkStorageHealthCnt int
	updateDBMetricsCnt    int
}

func (m *mockStorageHealthChecker) CheckStorageHealth() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkStorageHealthCnt++
}

func (m *mockStorageHealthChecker) UpdateDBMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateDBMetricsCnt++
}

func (m *mockStorageHealthChecker) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkStorageHealthCnt, m.updateDBMetricsCnt
}

// =============================================================================
// Collector Tests
// =============================================================================

func TestCollectUpdatesMediaTotals(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{
		TotalMedia: 15,
		Photos:     10,
		Videos:     5,
		Albums:     3,
	}}

	collector := NewCollector(provider, "", time.Second)
	collector.collect()

	if got := testutil.ToFloat64(MediaFilesTotal.WithLabelValues("Photo")); got != 10 {
		t.Errorf("Photo total = %v, want 10", got)
	}
	if got := testutil.ToFloat64(MediaFilesTotal.WithLabelValues("Video")); got != 5 {
		t.Errorf("Video total = %v, want 5", got)
	}
	if got := testutil.ToFloat64(MediaAlbumsTotal); got != 3 {
		t.Errorf("albums = %v, want 3", got)
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	collector := NewCollector(nil, "", time.Second)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() panicked: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectDBSizeWithWALAndSHM(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "media.db")

	files := map[string]string{
		dbPath:          "main db",
		dbPath + "-wal": "wal file!",
		dbPath + "-shm": "shm",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
	}

	collector := NewCollector(nil, dbPath, time.Second)
	collector.collectDBSize()

	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 7 {
		t.Errorf("main size = %v, want 7", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("wal")); got != 9 {
		t.Errorf("wal size = %v, want 9", got)
	}
}

func TestCollectDBSizeWithMissingDatabase(t *testing.T) {
	collector := NewCollector(nil, "/nonexistent/path/media.db", time.Second)
	collector.collectDBSize()

	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 0 {
		t.Errorf("main size = %v, want 0", got)
	}
}

func TestCollectCallsStorageHealthChecker(t *testing.T) {
	checker := &mockStorageHealthChecker{}
	collector := NewCollector(nil, "", time.Second)
	collector.SetStorageHealthChecker(checker)

	collector.collect()
	collector.collect()

	health, db := checker.counts()
	if health != 2 || db != 2 {
		t.Errorf("checker calls = (%d, %d), want (2, 2)", health, db)
	}

	collector.SetStorageHealthChecker(nil)
	collector.collect()
	if health, _ := checker.counts(); health != 2 {
		t.Errorf("checker called after being cleared: %d", health)
	}
}

func TestCollectorStartStop(t *testing.T) {
	checker := &mockStorageHealthChecker{}
	collector := NewCollector(&mockStatsProvider{}, "", 10*time.Millisecond)
	collector.SetStorageHealthChecker(checker)

	collector.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if health, _ := checker.counts(); health >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	collector.Stop()
	collector.Stop()

	if health, _ := checker.counts(); health < 2 {
		t.Errorf("expected at least two collections, got %d", health)
	}
}

// =============================================================================
// Filesystem Observer Tests
// =============================================================================

func TestObserveOperation(t *testing.T) {
	observer := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "read"))
	observer.ObserveOperation("media", "read", 0.005, nil)
	observer.ObserveOperation("media", "read", 0.1, errors.New("boom"))
	after := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues("media", "read"))

	if after-before != 1 {
		t.Errorf("error counter delta = %v, want 1", after-before)
	}
}

func TestObserveOperationVolumeLabels(t *testing.T) {
	observer := NewFilesystemObserver()

	tests := []struct {
		volume string
		want   string
	}{
		{VolumeData, VolumeData},
		{VolumeCache, VolumeCache},
		{VolumeMedia, VolumeMedia},
		{"/mnt/somewhere", VolumeUnknown},
		{"", VolumeUnknown},
	}

	for _, tt := range tests {
		before := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues(tt.want, "stat"))
		observer.ObserveOperation(tt.volume, "stat", 0.001, errors.New("boom"))
		after := testutil.ToFloat64(FilesystemOperationErrors.WithLabelValues(tt.want, "stat"))
		if after-before != 1 {
			t.Errorf("volume %q: error counter under %q delta = %v, want 1", tt.volume, tt.want, after-before)
		}
	}
}

func TestObserveRetry(t *testing.T) {
	observer := NewFilesystemObserver()

	before := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("open", "media"))
	observer.ObserveRetryAttempt("open", "media")
	observer.ObserveRetryAttempt("open", "media")
	observer.ObserveRetrySuccess("open", "media")
	observer.ObserveRetryFailure("stat", "data")
	observer.ObserveRetryDuration("stat", "data", 0.2)
	observer.ObserveStaleError("stat", "data")

	if got := testutil.ToFloat64(FilesystemRetryAttempts.WithLabelValues("open", "media")) - before; got != 2 {
		t.Errorf("retry attempts delta = %v, want 2", got)
	}
}
