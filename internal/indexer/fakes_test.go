package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// fakePipeline records every path it is asked to load or update.
type fakePipeline struct {
	mu      sync.Mutex
	loads   map[string]int
	updates map[string]int
	fail    map[string]error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{
		loads:   make(map[string]int),
		updates: make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (p *fakePipeline) Load(_ context.Context, path string) (*mediatypes.Media, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads[path]++
	if err := p.fail[path]; err != nil {
		return nil, err
	}
	return &mediatypes.Media{Path: path}, nil
}

func (p *fakePipeline) UpdateMetadata(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates[path]++
	return p.fail[path]
}

func (p *fakePipeline) loaded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.loads)
}

func (p *fakePipeline) updated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.updates)
}

func (p *fakePipeline) updateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.updates {
		n += c
	}
	return n
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type staticRoots []string

func (r staticRoots) WatchedPaths() []string { return r }

type fakeRecorder struct {
	mu       sync.Mutex
	lastScan time.Time
	refresh  int
}

func (r *fakeRecorder) SetLastScanRun(_ context.Context, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastScan = t
	return nil
}

func (r *fakeRecorder) RefreshStats(context.Context) (metrics.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh++
	return metrics.Stats{}, nil
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func testConfig() Config {
	return Config{
		Debounce: 50 * time.Millisecond,
		Walker:   ParallelWalkerConfig{NumWorkers: 2, ChannelBuffer: 4, SkipHidden: true},
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}
