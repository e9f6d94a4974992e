package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"backdrop/internal/media"
)

// TestScanLoadsEveryFile tests a full scan over several roots
func TestScanLoadsEveryFile(t *testing.T) {
	t.Parallel()

	var roots staticRoots
	var want []string
	for _, name := range []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		root := filepath.Join(t.TempDir(), name)
		want = append(want, touch(t, filepath.Join(root, "a.jpg")), touch(t, filepath.Join(root, "sub", "b.mp4")))
		touch(t, filepath.Join(root, ".cache", "c.jpg"))
		roots = append(roots, root)
	}

	pipeline := newFakePipeline()
	recorder := &fakeRecorder{}
	w := NewWatcher(pipeline, roots, recorder, testConfig())

	result, err := w.Scan(context.Background(), "manual")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := pipeline.loaded(); len(got) != len(want) {
		t.Errorf("Expected %d files loaded, got %d: %v", len(want), len(got), got)
	}
	if result.Files != int64(len(want)) || result.Roots != len(roots) || result.FailedRoots != 0 {
		t.Errorf("Unexpected scan result: %+v", result)
	}
	if recorder.refresh != 1 || !recorder.lastScan.Equal(result.StartedAt) {
		t.Errorf("Recorder not updated: %+v", recorder)
	}
	if w.Status().LastScan != result {
		t.Error("Expected Status to expose the last scan")
	}
}

// TestScanContinuesPastFailures tests that one bad file or root does not stop the rest
func TestScanContinuesPastFailures(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	bad := touch(t, filepath.Join(root, "bad.jpg"))
	gone := touch(t, filepath.Join(root, "gone.jpg"))
	good := touch(t, filepath.Join(root, "good.jpg"))

	pipeline := newFakePipeline()
	pipeline.fail[bad] = media.ErrFileNotSupportedMedia
	pipeline.fail[gone] = media.ErrMediaDoesntExist

	roots := staticRoots{root, filepath.Join(root, "does-not-exist")}
	w := NewWatcher(pipeline, roots, nil, testConfig())

	result, err := w.Scan(context.Background(), "manual")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := pipeline.loaded(); !reflect.DeepEqual(got, []string{bad, gone, good}) {
		t.Errorf("Expected every sibling loaded, got %v", got)
	}
	if result.Errors != 2 {
		t.Errorf("Expected Errors=2, got %d", result.Errors)
	}
	if result.FailedRoots != 1 {
		t.Errorf("Expected FailedRoots=1, got %d", result.FailedRoots)
	}
	if w.Status().LastScanError == "" {
		t.Error("Expected LastScanError to be set")
	}
}

// TestScanInProgress tests that overlapping scans are refused
func TestScanInProgress(t *testing.T) {
	t.Parallel()

	w := NewWatcher(newFakePipeline(), staticRoots{t.TempDir()}, nil, testConfig())
	w.scanMu.Lock()
	defer w.scanMu.Unlock()

	if _, err := w.Scan(context.Background(), "manual"); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("Expected ErrScanInProgress, got %v", err)
	}
}

// TestHandleBatchDirectoryMove tests that a moved directory is re-walked in full
func TestHandleBatchDirectoryMove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	src := filepath.Join(outside, "trip")
	touch(t, filepath.Join(src, "1.jpg"))
	touch(t, filepath.Join(src, "2.jpg"))
	touch(t, filepath.Join(src, "day2", "3.mp4"))

	dst := filepath.Join(root, "trip")
	if err := os.Rename(src, dst); err != nil {
		t.Fatalf("Failed to move directory: %v", err)
	}

	pipeline := newFakePipeline()
	w := NewWatcher(pipeline, staticRoots{root}, nil, testConfig())

	w.handleBatch(context.Background(), nil, []fsnotify.Event{{Name: dst, Op: fsnotify.Create}})
	w.Wait()

	want := []string{
		filepath.Join(dst, "1.jpg"),
		filepath.Join(dst, "2.jpg"),
		filepath.Join(dst, "day2", "3.mp4"),
	}
	if got := pipeline.updated(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected updates for %v, got %v", want, got)
	}
	if pipeline.updateCount() != 3 {
		t.Errorf("Expected 3 dispatches, got %d", pipeline.updateCount())
	}
	if len(pipeline.loaded()) != 0 {
		t.Error("Live events must not use Load")
	}
}

// TestHandleBatchFileEvents tests per-file dispatch and the ignored cases
func TestHandleBatchFileEvents(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	changed := touch(t, filepath.Join(root, "a.jpg"))
	failing := touch(t, filepath.Join(root, "b.jpg"))

	pipeline := newFakePipeline()
	pipeline.fail[failing] = errors.New("decoder exploded")
	w := NewWatcher(pipeline, staticRoots{root}, nil, testConfig())

	w.handleBatch(context.Background(), nil, []fsnotify.Event{
		{Name: changed, Op: fsnotify.Write},
		{Name: failing, Op: fsnotify.Create},
		{Name: filepath.Join(root, "removed.jpg"), Op: fsnotify.Remove},
		{Name: filepath.Join(root, "renamed.jpg"), Op: fsnotify.Rename},
	})
	w.Wait()

	if got := pipeline.updated(); !reflect.DeepEqual(got, []string{changed, failing}) {
		t.Errorf("Expected updates for the two existing files, got %v", got)
	}
	if w.Status().InFlight != 0 {
		t.Errorf("Expected no dispatches in flight, got %d", w.Status().InFlight)
	}
}

// TestStartGoesLiveAndFollowsMoves tests the full lifecycle with real notifications
func TestStartGoesLiveAndFollowsMoves(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping filesystem notification test in short mode")
	}

	root := t.TempDir()
	existing := touch(t, filepath.Join(root, "existing.jpg"))

	pipeline := newFakePipeline()
	w := NewWatcher(pipeline, staticRoots{root}, &fakeRecorder{}, testConfig())
	if w.State() != StateIdle {
		t.Fatalf("Expected idle state, got %s", w.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	if !waitFor(t, 5*time.Second, w.IsReady) {
		t.Fatalf("Watcher never went live, state %s", w.State())
	}
	if got := pipeline.loaded(); !reflect.DeepEqual(got, []string{existing}) {
		t.Errorf("Expected initial scan to load %s, got %v", existing, got)
	}

	src := filepath.Join(t.TempDir(), "album")
	touch(t, filepath.Join(src, "1.jpg"))
	touch(t, filepath.Join(src, "2.jpg"))
	touch(t, filepath.Join(src, "3.jpg"))
	if err := os.Rename(src, filepath.Join(root, "album")); err != nil {
		t.Fatalf("Failed to move directory: %v", err)
	}

	if !waitFor(t, 5*time.Second, func() bool { return len(pipeline.updated()) >= 3 }) {
		t.Fatalf("Expected 3 files refreshed after move, got %v", pipeline.updated())
	}

	w.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	w.Wait()
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateIdle:            "idle",
		StateInitialScanning: "initial_scanning",
		StateLive:            "live",
		State(42):            "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %s, want %s", state, got, want)
		}
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"", "0 3 * * *", "@every 6h", "@daily"} {
		if err := ValidateSchedule(expr); err != nil {
			t.Errorf("ValidateSchedule(%q) error = %v", expr, err)
		}
	}
	if err := ValidateSchedule("not a schedule"); err == nil {
		t.Error("Expected error for invalid schedule")
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RescanSchedule = "every tuesday"
	w := NewWatcher(newFakePipeline(), staticRoots{t.TempDir()}, nil, cfg)

	if err := w.Start(context.Background()); err == nil {
		t.Error("Expected error for invalid rescan schedule")
	}
}
