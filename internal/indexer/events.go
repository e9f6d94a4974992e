package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"backdrop/internal/logging"
	"backdrop/internal/metrics"
)

// addDirectoriesToWatcher adds root and every non-hidden directory below it.
// fsnotify is not recursive, so each directory needs its own watch.
func (w *Watcher) addDirectoriesToWatcher(fsw *fsnotify.Watcher, root string) int {
	watchCount := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Error accessing path %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if addErr := fsw.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		watchCount++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk %s for watcher: %v", root, err)
		metrics.WatcherErrors.Inc()
	}

	w.watchedDirs.Add(int64(watchCount))
	metrics.WatchedDirectories.Add(float64(watchCount))
	return watchCount
}

// filterEvents forwards meaningful events from fsw and handles watcher
// errors. New directories are subscribed immediately so files created inside
// them right after are not missed.
func (w *Watcher) filterEvents(ctx context.Context, fsw *fsnotify.Watcher) <-chan fsnotify.Event {
	out := make(chan fsnotify.Event)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if isNoise(event) {
					continue
				}
				metrics.WatcherEventsTotal.WithLabelValues(getEventType(event.Op)).Inc()

				if event.Has(fsnotify.Create) {
					w.handleCreateEvent(fsw, event)
				}

				select {
				case out <- event:
				case <-ctx.Done():
					return
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logging.Error("Watcher error: %v", err)
				metrics.WatcherErrors.Inc()
			}
		}
	}()

	return out
}

// isNoise reports whether an event never needs a dispatch: permission-only
// changes, hidden paths and malformed events.
func isNoise(event fsnotify.Event) bool {
	if event.Name == "" || event.Op == 0 {
		return true
	}
	if event.Op == fsnotify.Chmod {
		return true
	}
	// Hidden directories are never subscribed, so only the base name can be
	// hidden here.
	return isHidden(filepath.Base(event.Name))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// getEventType returns a string representation of the fsnotify operation
func getEventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}

// handleCreateEvent subscribes a newly created or moved-in directory tree.
func (w *Watcher) handleCreateEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if n := w.addDirectoriesToWatcher(fsw, event.Name); n > 0 {
		logging.Debug("Added %d new directories to watcher under %s", n, event.Name)
	}
}

// handleBatch dispatches one task per event in a debounced batch. A directory
// is always re-walked in full because rename and move notifications do not
// list the files inside it. A file gets a single metadata refresh. The loop
// never waits for a dispatched task.
func (w *Watcher) handleBatch(ctx context.Context, fsw *fsnotify.Watcher, batch []fsnotify.Event) {
	for _, event := range batch {
		if ctx.Err() != nil {
			return
		}
		path := event.Name

		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			w.dispatch("directory", func(ctx context.Context) {
				logging.Debug("Re-walking %s after %s", path, getEventType(event.Op))
				if _, err := w.walk(ctx, path, w.updateFile); err != nil {
					logging.Warn("Re-walk of %s failed: %v", path, err)
				}
			})
		case err == nil && !info.Mode().IsRegular():
			continue
		case err != nil && event.Has(fsnotify.Remove|fsnotify.Rename):
			// The old name of a removed or renamed entry. A rename shows up
			// again as a Create for the new name.
			logging.Debug("Ignoring %s of %s", getEventType(event.Op), path)
			if fsw != nil && fsw.Remove(path) == nil {
				w.watchedDirs.Add(-1)
				metrics.WatchedDirectories.Dec()
			}
		default:
			w.dispatch("file", func(ctx context.Context) {
				_ = w.updateFile(ctx, path)
			})
		}
	}
}
