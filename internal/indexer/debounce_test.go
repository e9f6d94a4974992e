package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestDebounceMergesEventsForSamePath(t *testing.T) {
	t.Parallel()

	in := make(chan fsnotify.Event)
	out := debounce(context.Background(), in, 30*time.Millisecond)

	go func() {
		in <- fsnotify.Event{Name: "/a.jpg", Op: fsnotify.Create}
		in <- fsnotify.Event{Name: "/b.jpg", Op: fsnotify.Write}
		in <- fsnotify.Event{Name: "/a.jpg", Op: fsnotify.Write}
	}()

	select {
	case batch := <-out:
		if len(batch) != 2 {
			t.Fatalf("Expected 2 events in batch, got %d: %v", len(batch), batch)
		}
		if batch[0].Name != "/a.jpg" || batch[1].Name != "/b.jpg" {
			t.Errorf("Expected first-seen order, got %v", batch)
		}
		if !batch[0].Has(fsnotify.Create) || !batch[0].Has(fsnotify.Write) {
			t.Errorf("Expected merged Create|Write, got %v", batch[0].Op)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for batch")
	}
}

func TestDebounceSeparatesBatchesAcrossWindows(t *testing.T) {
	t.Parallel()

	in := make(chan fsnotify.Event)
	out := debounce(context.Background(), in, 20*time.Millisecond)

	in <- fsnotify.Event{Name: "/a.jpg", Op: fsnotify.Write}
	first := <-out

	in <- fsnotify.Event{Name: "/a.jpg", Op: fsnotify.Write}
	second := <-out

	if len(first) != 1 || len(second) != 1 {
		t.Errorf("Expected two single-event batches, got %v and %v", first, second)
	}
}

func TestDebounceFlushesWhenInputCloses(t *testing.T) {
	t.Parallel()

	in := make(chan fsnotify.Event, 1)
	out := debounce(context.Background(), in, time.Hour)

	in <- fsnotify.Event{Name: "/a.jpg", Op: fsnotify.Create}
	close(in)

	batch, ok := <-out
	if !ok || len(batch) != 1 {
		t.Fatalf("Expected final batch with 1 event, got %v (open=%v)", batch, ok)
	}
	if _, ok := <-out; ok {
		t.Error("Expected output to be closed")
	}
}

func TestDebounceStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan fsnotify.Event)
	out := debounce(ctx, in, time.Hour)
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("Expected no batch after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Output not closed after cancel")
	}
}
