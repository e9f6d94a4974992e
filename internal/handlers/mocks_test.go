package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"backdrop/internal/indexer"
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// =============================================================================
// Mock Store
// =============================================================================

type mockStore struct {
	mu      sync.Mutex
	byPath  map[string]*mediatypes.Media
	byID    map[uuid.UUID]*mediatypes.Media
	albums  map[string][]*mediatypes.Media
	stats   metrics.Stats
	healthy bool
	err     error
}

func newMockStore() *mockStore {
	return &mockStore{
		byPath:  make(map[string]*mediatypes.Media),
		byID:    make(map[uuid.UUID]*mediatypes.Media),
		albums:  make(map[string][]*mediatypes.Media),
		healthy: true,
	}
}

func (m *mockStore) add(rec *mediatypes.Media) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPath[rec.Path] = rec
	m.byID[rec.ID] = rec
	m.albums[rec.Album] = append(m.albums[rec.Album], rec)
}

func (m *mockStore) GetByPath(_ context.Context, path string) (*mediatypes.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.byPath[path], nil
}

func (m *mockStore) GetByID(_ context.Context, id uuid.UUID) (*mediatypes.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.byID[id], nil
}

func (m *mockStore) ListAlbum(_ context.Context, album string) ([]*mediatypes.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.albums[album], nil
}

func (m *mockStore) GetStats() metrics.Stats { return m.stats }
func (m *mockStore) Healthy() bool           { return m.healthy }

// =============================================================================
// Mock Loader
// =============================================================================

type mockLoader struct {
	mu    sync.Mutex
	calls []string
	rec   *mediatypes.Media
	err   error
}

func (m *mockLoader) Load(_ context.Context, path string) (*mediatypes.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, path)
	if m.err != nil {
		return nil, m.err
	}
	return m.rec, nil
}

// staticRoots is a fixed set of watched directories.
type staticRoots []string

func (r staticRoots) WatchedPaths() []string { return r }

// =============================================================================
// Mock Watcher
// =============================================================================

type mockWatcher struct {
	status     indexer.Status
	acceptScan bool
	triggers   []string
}

func newMockWatcher(ready bool) *mockWatcher {
	state := indexer.StateInitialScanning
	if ready {
		state = indexer.StateLive
	}
	return &mockWatcher{
		status: indexer.Status{
			State:     state.String(),
			Ready:     ready,
			StartTime: time.Now(),
			Uptime:    "0s",
		},
		acceptScan: true,
	}
}

func (m *mockWatcher) IsReady() bool          { return m.status.Ready }
func (m *mockWatcher) Status() indexer.Status { return m.status }

func (m *mockWatcher) TriggerScan(trigger string) bool {
	m.triggers = append(m.triggers, trigger)
	return m.acceptScan
}

var errStoreDown = errors.New("store down")

func sampleMedia(path string) *mediatypes.Media {
	return &mediatypes.Media{
		ID:               uuid.New(),
		Path:             path,
		Album:            "/photos",
		Filesize:         2048,
		Format:           mediatypes.Format{MediaKind: mediatypes.KindPhoto, MimeType: "image/jpeg"},
		FirstSeenDate:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		WidthPx:          1920,
		HeightPx:         1080,
		SpecificMetadata: mediatypes.ImageMetadata(),
		Tags:             []mediatypes.Tag{},
	}
}
