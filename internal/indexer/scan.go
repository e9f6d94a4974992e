package indexer

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/metrics"
)

// ErrScanInProgress is returned when a full scan is requested while another
// one is running.
var ErrScanInProgress = errors.New("scan already in progress")

// ScanResult summarizes a full scan of every watched root.
type ScanResult struct {
	Trigger     string        `json:"trigger"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	Roots       int           `json:"roots"`
	FailedRoots int           `json:"failedRoots"`
	Files       int64         `json:"files"`
	Folders     int64         `json:"folders"`
	Errors      int64         `json:"errors"`
}

type rootResult struct {
	stats WalkStats
	err   error
}

// Scan walks every watched root and loads each regular file. Roots are walked
// with a fan-out of five; a failing root is logged and does not stop the
// others. Only one scan runs at a time.
func (w *Watcher) Scan(ctx context.Context, trigger string) (*ScanResult, error) {
	if !w.scanMu.TryLock() {
		logging.Info("Scan already in progress, skipping %s scan", trigger)
		return nil, ErrScanInProgress
	}
	defer w.scanMu.Unlock()

	w.scanning.Store(true)
	defer w.scanning.Store(false)

	metrics.ScanRunsTotal.WithLabelValues(trigger).Inc()

	roots := w.roots.WatchedPaths()
	result := &ScanResult{Trigger: trigger, StartedAt: time.Now(), Roots: len(roots)}
	logging.Info("Starting %s scan of %d roots", trigger, len(roots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rootFanOut)

	done := make(chan rootResult)
	go func() {
		for _, root := range roots {
			g.Go(func() error {
				stats, err := w.walk(gctx, root, w.loadFile)
				done <- rootResult{stats: stats, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(done)
	}()

	w.collectRoots(done, result)
	result.Duration = time.Since(result.StartedAt)

	if err := ctx.Err(); err != nil {
		logging.Warn("%s scan cancelled after %v", trigger, result.Duration)
		return result, err
	}

	w.finishScan(ctx, result)
	return result, nil
}

// collectRoots gathers completed root walks and reports them in groups so a
// single huge root does not hide the progress of the others.
func (w *Watcher) collectRoots(done <-chan rootResult, result *ScanResult) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var pending []rootResult
	completed := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		completed += len(pending)
		for _, r := range pending {
			result.Files += r.stats.Files
			result.Folders += r.stats.Folders
			result.Errors += r.stats.Errors
			if r.err != nil && !errors.Is(r.err, context.Canceled) {
				result.FailedRoots++
				logging.Error("Scan of %s failed: %v", r.stats.Root, r.err)
			}
		}
		metrics.ScanRootsCompleted.Add(float64(len(pending)))
		logging.Info("Scan progress: %d/%d roots complete, %d files", completed, result.Roots, result.Files)
		pending = pending[:0]
	}

	for {
		select {
		case r, ok := <-done:
			if !ok {
				flush()
				return
			}
			pending = append(pending, r)
			if len(pending) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// finishScan records the scan outcome.
func (w *Watcher) finishScan(ctx context.Context, result *ScanResult) {
	w.lastScan.Store(result)
	if result.FailedRoots > 0 {
		msg := "one or more roots could not be scanned"
		w.lastScanError.Store(&msg)
	} else {
		w.lastScanError.Store(nil)
	}

	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(result.Duration.Seconds())

	logging.Info("%s scan complete: %d files, %d folders in %v (errors: %d, failed roots: %d)",
		result.Trigger, result.Files, result.Folders, result.Duration.Round(time.Millisecond),
		result.Errors, result.FailedRoots)

	if w.recorder == nil {
		return
	}
	if err := w.recorder.SetLastScanRun(ctx, result.StartedAt); err != nil {
		logging.Warn("Failed to record last scan time: %v", err)
	}
	if _, err := w.recorder.RefreshStats(ctx); err != nil {
		logging.Warn("Failed to refresh media stats: %v", err)
	}
}

// TriggerScan starts a full scan in the background unless one is running.
func (w *Watcher) TriggerScan(trigger string) bool {
	if w.scanning.Load() {
		return false
	}
	ctx := w.scanContext()
	go func() {
		if _, err := w.Scan(ctx, trigger); err != nil && !errors.Is(err, ErrScanInProgress) {
			logging.Error("%s scan error: %v", trigger, err)
		}
	}()
	return true
}

// walk runs handle over every regular file under root.
func (w *Watcher) walk(ctx context.Context, root string, handle FileFunc) (WalkStats, error) {
	walker := NewParallelWalker(root, w.config.Walker, handle)
	return walker.Walk(ctx)
}

// loadFile is the per-file step of a full scan.
func (w *Watcher) loadFile(ctx context.Context, path string) error {
	w.filesSeen.Add(1)
	metrics.ScanFilesProcessed.Inc()
	_, err := w.pipeline.Load(ctx, path)
	logFileResult("load", path, err)
	return err
}

// updateFile is the per-file step of a live event.
func (w *Watcher) updateFile(ctx context.Context, path string) error {
	w.filesSeen.Add(1)
	err := w.pipeline.UpdateMetadata(ctx, path)
	logFileResult("update", path, err)
	return err
}

// logFileResult logs a per-file failure at a level matching how expected it
// is. Non-media files are the common case in a photo library.
func logFileResult(op, path string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, media.ErrFileNotSupportedMedia):
		logging.Debug("Skipping %s: %v", path, err)
	case errors.Is(err, media.ErrMediaDoesntExist), errors.Is(err, os.ErrNotExist):
		logging.Debug("%s %s: file is gone", op, path)
	case errors.Is(err, context.Canceled):
		logging.Debug("%s %s cancelled", op, path)
	default:
		logging.Warn("Failed to %s %s: %v", op, path, err)
	}
}
