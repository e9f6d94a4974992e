package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"backdrop/internal/extract"
	"backdrop/internal/filesystem"
	"backdrop/internal/hashing"
	"backdrop/internal/mediatypes"
)

// memStore is an in-memory Store.
type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*mediatypes.Media
	hashes  map[uuid.UUID]mediatypes.Hash
	saves   int
	failGet error
	failPut error
}

func newMemStore() *memStore {
	return &memStore{
		records: make(map[uuid.UUID]*mediatypes.Media),
		hashes:  make(map[uuid.UUID]mediatypes.Hash),
	}
}

func (s *memStore) GetByPath(_ context.Context, path string) (*mediatypes.Media, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	var found *mediatypes.Media
	for _, m := range s.records {
		if m.Path == path && (found == nil || m.FirstSeenDate.After(found.FirstSeenDate)) {
			found = m
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (s *memStore) FirstSeenByHash(_ context.Context, h mediatypes.Hash) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest *time.Time
	for id, stored := range s.hashes {
		if stored != h {
			continue
		}
		if m, ok := s.records[id]; ok && (earliest == nil || m.FirstSeenDate.Before(*earliest)) {
			seen := m.FirstSeenDate
			earliest = &seen
		}
	}
	return earliest, nil
}

func (s *memStore) GetHash(_ context.Context, id uuid.UUID) (*mediatypes.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *memStore) UpsertHash(_ context.Context, h mediatypes.MediaHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	s.hashes[h.MediaID] = h.Hash
	return nil
}

func (s *memStore) SaveMedia(_ context.Context, m *mediatypes.Media, h mediatypes.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut != nil {
		return s.failPut
	}
	cp := *m
	if existing, ok := s.records[m.ID]; ok {
		cp.FirstSeenDate = existing.FirstSeenDate
	}
	s.records[m.ID] = &cp
	s.hashes[m.ID] = h
	s.saves++
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memStore) deleteHash(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, id)
}

// countingExtractor reports a fixed resolution and counts its calls. With a
// gate set, each call announces itself on entered and blocks until the gate
// is closed.
type countingExtractor struct {
	width, height uint32
	calls         atomic.Int32

	gate    chan struct{}
	entered chan struct{}
}

func newGatedExtractor(width, height uint32) *countingExtractor {
	return &countingExtractor{
		width:   width,
		height:  height,
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
}

func (*countingExtractor) Name() string                { return "counting" }
func (*countingExtractor) Accepts(extract.Target) bool { return true }

func (e *countingExtractor) Extract(_ context.Context, t extract.Target) (*extract.Partial, error) {
	e.calls.Add(1)
	if e.gate != nil {
		e.entered <- struct{}{}
		<-e.gate
	}
	p := &extract.Partial{}
	p.SetResolution(e.width, e.height)
	if t.Format.MediaKind == mediatypes.KindVideo {
		p.SetSpecific(mediatypes.VideoMetadata(1))
	} else {
		p.SetSpecific(mediatypes.ImageMetadata())
	}
	return p, nil
}

// recordingExtractor remembers the last target it saw.
type recordingExtractor struct {
	mu   sync.Mutex
	last extract.Target
}

func (*recordingExtractor) Name() string                { return "recording" }
func (*recordingExtractor) Accepts(extract.Target) bool { return true }

func (e *recordingExtractor) Extract(_ context.Context, t extract.Target) (*extract.Partial, error) {
	e.mu.Lock()
	e.last = t
	e.mu.Unlock()
	p := &extract.Partial{}
	p.SetResolution(640, 360)
	p.SetSpecific(mediatypes.VideoMetadata(2.5))
	return p, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type sequentialIDs struct {
	n atomic.Uint32
}

func (g *sequentialIDs) NewID() uuid.UUID {
	var id uuid.UUID
	n := g.n.Add(1)
	id[12], id[13], id[14], id[15] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
	return id
}

type harness struct {
	pipeline *Pipeline
	builder  *Builder
	store    *memStore
	clock    *fixedClock
}

func newHarness(t *testing.T, chains extract.Chains) *harness {
	t.Helper()

	retry := filesystem.DefaultRetryConfig()
	store := newMemStore()
	hasher := hashing.New(retry)
	clock := &fixedClock{now: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}

	builder := NewBuilder(BuilderConfig{
		Chains: chains,
		Hasher: hasher,
		Store:  store,
		Retry:  retry,
		Clock:  clock,
		IDs:    &sequentialIDs{},
	})
	return &harness{
		pipeline: NewPipeline(store, hasher, builder, retry),
		builder:  builder,
		store:    store,
		clock:    clock,
	}
}

func singleChain(e extract.Extractor) extract.Chains {
	chain := extract.NewChain([]extract.Extractor{e})
	return extract.Chains{Photo: chain, Video: chain}
}

func jpegBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// tempDir returns a symlink-free temporary directory so paths match their
// canonical form.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

var errStoreDown = errors.New("store is down")
