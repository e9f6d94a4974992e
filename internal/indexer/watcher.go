package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"backdrop/internal/logging"
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

const (
	// DefaultDebounce is the window used to coalesce bursts of events.
	DefaultDebounce = 1500 * time.Millisecond

	// Number of concurrent root walks during a full scan
	rootFanOut = 5

	// Completed root walks are reported in groups of this size...
	flushBatch = 3
	// ...or at least this often while a scan is running.
	flushInterval = 10 * time.Minute
)

// State is the lifecycle state of a Watcher.
type State int32

const (
	StateIdle State = iota
	StateInitialScanning
	StateLive
)

var stateNames = []string{"idle", "initial_scanning", "live"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Pipeline is the ingestion entry point the watcher drives.
type Pipeline interface {
	Load(ctx context.Context, path string) (*mediatypes.Media, error)
	UpdateMetadata(ctx context.Context, path string) error
}

// RootSource supplies the directories to watch. config.Store implements it.
type RootSource interface {
	WatchedPaths() []string
}

// ScanRecorder persists bookkeeping after a full scan.
type ScanRecorder interface {
	SetLastScanRun(ctx context.Context, t time.Time) error
	RefreshStats(ctx context.Context) (metrics.Stats, error)
}

// Config holds the watcher's tunables.
type Config struct {
	// Debounce is the coalescing window for live events.
	Debounce time.Duration
	// RescanSchedule is a cron expression for periodic full scans. Empty
	// disables them.
	RescanSchedule string
	// Walker configures the per-root worker pool.
	Walker ParallelWalkerConfig
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Debounce: DefaultDebounce,
		Walker:   DefaultParallelWalkerConfig(),
	}
}

// Watcher scans the watched roots once, then keeps the cache current from
// filesystem notifications.
type Watcher struct {
	pipeline Pipeline
	roots    RootSource
	recorder ScanRecorder
	config   Config

	state     atomic.Int32
	startTime time.Time

	// Dispatch tracking for the per-event Dispatching state
	inFlight   atomic.Int64
	dispatches sync.WaitGroup

	scanMu        sync.Mutex
	scanning      atomic.Bool
	lastScan      atomic.Pointer[ScanResult]
	filesSeen     atomic.Int64
	watchedDirs   atomic.Int64
	lastScanError atomic.Pointer[string]

	stopOnce sync.Once
	stopChan chan struct{}

	// runCtx is the context dispatches inherit once Start is running.
	// loopCtx ends with Start and bounds manual scans.
	runMu   sync.RWMutex
	runCtx  context.Context
	loopCtx context.Context
}

// NewWatcher creates a watcher. recorder may be nil.
func NewWatcher(pipeline Pipeline, roots RootSource, recorder ScanRecorder, config Config) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	config.Walker = config.Walker.withDefaults()

	w := &Watcher{
		pipeline:  pipeline,
		roots:     roots,
		recorder:  recorder,
		config:    config,
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
		runCtx:    context.Background(),
		loopCtx:   context.Background(),
	}
	w.setState(StateIdle)
	return w
}

// Start subscribes to every watched directory, runs the initial scan and then
// handles live events until Stop is called or ctx is cancelled. Dispatches
// still running at that point are not interrupted; use Wait to drain them.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.runMu.Lock()
	w.runCtx = context.WithoutCancel(ctx)
	w.loopCtx = ctx
	w.runMu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := fsw.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	w.setState(StateInitialScanning)

	roots := w.roots.WatchedPaths()
	for _, root := range roots {
		w.addDirectoriesToWatcher(fsw, root)
	}
	logging.Info("Watcher subscribed to %d directories under %d roots", w.watchedDirs.Load(), len(roots))

	scheduler, err := w.startScheduler(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() {
			<-scheduler.Stop().Done()
		}()
	}

	// Events are consumed while the initial scan runs so the notification
	// queue cannot overflow on a large library.
	batches := debounce(ctx, w.filterEvents(ctx, fsw), w.config.Debounce)

	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		if _, err := w.Scan(ctx, "initial"); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Initial scan error: %v", err)
		}
		if ctx.Err() == nil {
			w.setState(StateLive)
			logging.Info("Watcher is live")
		}
	}()

	for batch := range batches {
		w.handleBatch(ctx, fsw, batch)
	}

	<-scanDone
	logging.Info("Watcher stopped")
	return nil
}

// Stop ends Start. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
}

// Wait blocks until every dispatched task has finished.
func (w *Watcher) Wait() {
	w.dispatches.Wait()
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// IsReady reports whether the initial scan has finished.
func (w *Watcher) IsReady() bool {
	return w.State() == StateLive
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
	metrics.SetWatcherState(s.String(), stateNames)
}

// dispatchContext returns the context for work that must outlive the event
// loop iteration that started it.
func (w *Watcher) dispatchContext() context.Context {
	w.runMu.RLock()
	defer w.runMu.RUnlock()
	return w.runCtx
}

func (w *Watcher) scanContext() context.Context {
	w.runMu.RLock()
	defer w.runMu.RUnlock()
	return w.loopCtx
}

// dispatch runs fn in its own goroutine and tracks it as in flight.
func (w *Watcher) dispatch(kind string, fn func(ctx context.Context)) {
	ctx := w.dispatchContext()
	w.dispatches.Add(1)
	w.inFlight.Add(1)
	metrics.WatcherDispatchesInFlight.Inc()
	metrics.WatcherDispatchesTotal.WithLabelValues(kind).Inc()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("Dispatched %s task panicked: %v", kind, r)
			}
			metrics.WatcherDispatchesInFlight.Dec()
			w.inFlight.Add(-1)
			w.dispatches.Done()
		}()
		fn(ctx)
	}()
}

// Status is a point-in-time view of the watcher for health endpoints.
type Status struct {
	State              string      `json:"state"`
	Ready              bool        `json:"ready"`
	Scanning           bool        `json:"scanning"`
	StartTime          time.Time   `json:"startTime"`
	Uptime             string      `json:"uptime"`
	WatchedDirectories int64       `json:"watchedDirectories"`
	InFlight           int64       `json:"inFlight"`
	FilesSeen          int64       `json:"filesSeen"`
	LastScan           *ScanResult `json:"lastScan,omitempty"`
	LastScanError      string      `json:"lastScanError,omitempty"`
}

// Status returns the watcher status.
func (w *Watcher) Status() Status {
	s := Status{
		State:              w.State().String(),
		Ready:              w.IsReady(),
		Scanning:           w.scanning.Load(),
		StartTime:          w.startTime,
		Uptime:             time.Since(w.startTime).Round(time.Second).String(),
		WatchedDirectories: w.watchedDirs.Load(),
		InFlight:           w.inFlight.Load(),
		FilesSeen:          w.filesSeen.Load(),
		LastScan:           w.lastScan.Load(),
	}
	if msg := w.lastScanError.Load(); msg != nil {
		s.LastScanError = *msg
	}
	return s
}
