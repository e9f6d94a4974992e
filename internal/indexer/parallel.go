package indexer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"backdrop/internal/logging"
	"backdrop/internal/workers"
)

// ParallelWalkerConfig configures the parallel directory walker
type ParallelWalkerConfig struct {
	// NumWorkers is the number of files handled concurrently (0 = auto based on CPU)
	NumWorkers int
	// ChannelBuffer is the size of the work channel buffer
	ChannelBuffer int
	// SkipHidden skips files and directories starting with "."
	SkipHidden bool
	// Gate, if set, is waited on before each file is handled.
	Gate Gate
}

// Gate holds workers back while the process is under memory pressure.
// memory.Monitor implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// DefaultParallelWalkerConfig returns defaults sized from GOMAXPROCS. The
// INGEST_WORKERS environment variable overrides the worker count.
func DefaultParallelWalkerConfig() ParallelWalkerConfig {
	return ParallelWalkerConfig{
		NumWorkers:    workers.ForIO(8),
		ChannelBuffer: 256,
		SkipHidden:    true,
	}
}

func (c ParallelWalkerConfig) withDefaults() ParallelWalkerConfig {
	if c.NumWorkers < 1 {
		c.NumWorkers = workers.ForIO(8)
	}
	if c.ChannelBuffer < 0 {
		c.ChannelBuffer = 0
	}
	return c
}

// FileFunc handles one regular file found by a walk.
type FileFunc func(ctx context.Context, path string) error

// WalkStats summarizes one walk.
type WalkStats struct {
	Root    string
	Files   int64
	Folders int64
	Errors  int64
	Elapsed time.Duration
}

// ParallelWalker walks one directory tree and hands every regular file to a
// pool of workers.
type ParallelWalker struct {
	config ParallelWalkerConfig
	root   string
	handle FileFunc

	jobs chan string
	wg   sync.WaitGroup

	filesProcessed   atomic.Int64
	foldersProcessed atomic.Int64
	errorsCount      atomic.Int64
}

// NewParallelWalker creates a walker for root.
func NewParallelWalker(root string, config ParallelWalkerConfig, handle FileFunc) *ParallelWalker {
	config = config.withDefaults()
	return &ParallelWalker{
		config: config,
		root:   root,
		handle: handle,
		jobs:   make(chan string, config.ChannelBuffer),
	}
}

// Walk walks the tree and blocks until every dispatched file has been
// handled. Per-file failures are counted, not returned. The returned error is
// non-nil only when the root itself cannot be read or ctx is cancelled.
func (pw *ParallelWalker) Walk(ctx context.Context) (WalkStats, error) {
	startTime := time.Now()

	for i := 0; i < pw.config.NumWorkers; i++ {
		pw.wg.Add(1)
		go pw.worker(ctx)
	}

	err := pw.walkAndEnqueue(ctx)
	close(pw.jobs)
	pw.wg.Wait()

	stats := pw.Stats()
	stats.Elapsed = time.Since(startTime)

	logging.Debug("Walk of %s complete: %d files, %d folders in %v (errors: %d)",
		pw.root, stats.Files, stats.Folders, stats.Elapsed, stats.Errors)

	if err != nil && !errors.Is(err, fs.SkipAll) {
		return stats, err
	}
	return stats, ctx.Err()
}

// walkAndEnqueue walks the directory tree and sends file paths to workers
func (pw *ParallelWalker) walkAndEnqueue(ctx context.Context) error {
	return filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return fs.SkipAll
		default:
		}

		if err != nil {
			if path == pw.root {
				return err
			}
			pw.errorsCount.Add(1)
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}

		if path != pw.root && pw.config.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			pw.foldersProcessed.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		select {
		case pw.jobs <- path:
		case <-ctx.Done():
			return fs.SkipAll
		}
		return nil
	})
}

// worker handles files from the jobs channel
func (pw *ParallelWalker) worker(ctx context.Context) {
	defer pw.wg.Done()

	for path := range pw.jobs {
		if ctx.Err() != nil {
			continue
		}
		if pw.config.Gate != nil {
			if err := pw.config.Gate.Wait(ctx); err != nil {
				continue
			}
		}
		pw.filesProcessed.Add(1)
		if err := pw.handle(ctx, path); err != nil {
			pw.errorsCount.Add(1)
		}
	}
}

// Stats returns the walk counters so far.
func (pw *ParallelWalker) Stats() WalkStats {
	return WalkStats{
		Root:    pw.root,
		Files:   pw.filesProcessed.Load(),
		Folders: pw.foldersProcessed.Load(),
		Errors:  pw.errorsCount.Load(),
	}
}
