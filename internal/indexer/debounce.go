package indexer

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce groups events from in into batches. A batch opens with the first
// event after the previous flush and is emitted window later, so a steady
// stream of events still flushes regularly. Events for the same path within
// one batch are merged into a single event carrying every operation seen, in
// order of first appearance. The returned channel is closed once in is closed
// (after a final flush) or ctx is done.
func debounce(ctx context.Context, in <-chan fsnotify.Event, window time.Duration) <-chan []fsnotify.Event {
	out := make(chan []fsnotify.Event)

	go func() {
		defer close(out)

		var (
			batch  []fsnotify.Event
			index  = make(map[string]int)
			timer  *time.Timer
			timerC <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		// flush reports false if ctx ended before the batch was taken.
		flush := func() bool {
			timerC = nil
			if len(batch) == 0 {
				return true
			}
			select {
			case out <- batch:
			case <-ctx.Done():
				return false
			}
			batch = nil
			index = make(map[string]int)
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-in:
				if !ok {
					flush()
					return
				}
				if i, seen := index[event.Name]; seen {
					batch[i].Op |= event.Op
					continue
				}
				index[event.Name] = len(batch)
				batch = append(batch, event)
				if timerC == nil {
					if timer == nil {
						timer = time.NewTimer(window)
					} else {
						timer.Reset(window)
					}
					timerC = timer.C
				}

			case <-timerC:
				if !flush() {
					return
				}
			}
		}
	}()

	return out
}
