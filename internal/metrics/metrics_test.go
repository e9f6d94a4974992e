package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIngestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"IngestTotal", IngestTotal},
		{"IngestDuration", IngestDuration},
		{"IngestErrors", IngestErrors},
		{"ExtractorAttempts", ExtractorAttempts},
		{"ExtractorDuration", ExtractorDuration},
		{"CodecSlotsInUse", CodecSlotsInUse},
		{"HashDuration", HashDuration},
		{"HashBytes", HashBytes},
		{"HashStates", HashStates},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestWatcherMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"WatcherEventsTotal", WatcherEventsTotal},
		{"WatcherErrors", WatcherErrors},
		{"WatchedDirectories", WatchedDirectories},
		{"WatcherDispatchesInFlight", WatcherDispatchesInFlight},
		{"WatcherDispatchesTotal", WatcherDispatchesTotal},
		{"WatcherState", WatcherState},
		{"ScanRunsTotal", ScanRunsTotal},
		{"ScanRootsCompleted", ScanRootsCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestSetWatcherState(t *testing.T) {
	states := []string{"Idle", "InitialScanning", "Live"}

	SetWatcherState("InitialScanning", states)
	if got := testutil.ToFloat64(WatcherState.WithLabelValues("InitialScanning")); got != 1 {
		t.Errorf("InitialScanning = %v, want 1", got)
	}
	if got := testutil.ToFloat64(WatcherState.WithLabelValues("Idle")); got != 0 {
		t.Errorf("Idle = %v, want 0", got)
	}

	SetWatcherState("Live", states)
	if got := testutil.ToFloat64(WatcherState.WithLabelValues("InitialScanning")); got != 0 {
		t.Errorf("InitialScanning after Live = %v, want 0", got)
	}
	if got := testutil.ToFloat64(WatcherState.WithLabelValues("Live")); got != 1 {
		t.Errorf("Live = %v, want 1", got)
	}
}

func TestSetAppInfo(t *testing.T) {
	SetAppInfo("1.2.3", "abc123", "go1.25")
	if got := testutil.ToFloat64(AppInfo.WithLabelValues("1.2.3", "abc123", "go1.25")); got != 1 {
		t.Errorf("AppInfo = %v, want 1", got)
	}
}

func TestInitializeMetrics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics panicked: %v", r)
		}
	}()

	InitializeMetrics()

	if n := testutil.CollectAndCount(ExtractorAttempts); n < 14 {
		t.Errorf("ExtractorAttempts series = %d, want at least 14", n)
	}
}
