package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	success  int
	failures int
	stale    int
	opErrors int
}

func (r *recordingObserver) ObserveOperation(_, _ string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.opErrors++
	}
}

func (r *recordingObserver) ObserveRetryAttempt(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *recordingObserver) ObserveRetrySuccess(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success++
}

func (r *recordingObserver) ObserveRetryFailure(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingObserver) ObserveRetryDuration(_, _ string, _ float64) {}

func (r *recordingObserver) ObserveStaleError(_, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func withObserver(t *testing.T) *recordingObserver {
	t.Helper()
	rec := &recordingObserver{}
	SetObserver(rec)
	t.Cleanup(func() { SetObserver(nil) })
	return rec
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
	if config.VolumeResolver != nil {
		t.Error("VolumeResolver should be nil by default")
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE error", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT error", syscall.ENOENT, false},
		{"generic error", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// VolumeResolver Tests
// =============================================================================

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolverFromMounts([][2]string{
		{"media", "/photos"},
		{"media", "/videos"},
		{"data", "/var/lib/backdrop"},
		{"cache", "/var/lib/backdrop/cache"},
	})

	tests := []struct {
		path string
		want string
	}{
		{"/photos/2024/a.jpg", "media"},
		{"/photos", "media"},
		{"/videos/clip.mp4", "media"},
		{"/var/lib/backdrop/media.db", "data"},
		{"/var/lib/backdrop/cache/x", "cache"},
		{"/photosets/a.jpg", "unknown"},
		{"/tmp/other", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/anything"); got != "unknown" {
		t.Errorf("Resolve() on nil resolver = %q, want unknown", got)
	}
}

func TestNewVolumeResolver_Map(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{"data": "/data", "cache": "/data/cache"})
	if got := vr.Resolve("/data/cache/thing"); got != "cache" {
		t.Errorf("Resolve() = %q, want longest prefix cache", got)
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	SetDefaultVolumeResolver(NewVolumeResolver(map[string]string{"default": "/srv"}))
	t.Cleanup(func() { SetDefaultVolumeResolver(nil) })

	config := DefaultRetryConfig()
	if got := config.resolveVolume("/srv/a"); got != "default" {
		t.Errorf("resolveVolume() = %q, want default", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"override": "/srv"})
	if got := config.resolveVolume("/srv/a"); got != "override" {
		t.Errorf("resolveVolume() = %q, want override", got)
	}
}

// =============================================================================
// Retry Tests
// =============================================================================

func TestStatWithRetry_Success(t *testing.T) {
	rec := withObserver(t)

	testFile := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	info, err := StatWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("FileInfo.Size() = %d, want 4", info.Size())
	}
	if rec.attempts != 0 || rec.opErrors != 0 {
		t.Errorf("unexpected retries recorded: %+v", rec)
	}
}

func TestStatWithRetry_NotExist(t *testing.T) {
	rec := withObserver(t)

	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Errorf("StatWithRetry() error = %v, want os.IsNotExist", err)
	}
	if rec.attempts != 0 {
		t.Errorf("non-stale errors should not retry, got %d attempts", rec.attempts)
	}
	if rec.opErrors != 1 {
		t.Errorf("opErrors = %d, want 1", rec.opErrors)
	}
}

func TestOpenWithRetry_Success(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(testFile, []byte("content"), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	f, err := OpenWithRetry(testFile, fastConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	defer f.Close()

	buf := make([]byte, 7)
	if _, err := f.Read(buf); err != nil || string(buf) != "content" {
		t.Errorf("Read() = %q, %v", buf, err)
	}
}

func TestWithRetry_RecoversFromStaleHandle(t *testing.T) {
	rec := withObserver(t)

	calls := 0
	got, err := withRetry("stat", "/x", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})

	if err != nil || got != 42 {
		t.Fatalf("withRetry() = %d, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if rec.stale != 2 || rec.attempts != 2 || rec.success != 1 {
		t.Errorf("observer = %+v, want 2 stale, 2 attempts, 1 success", rec)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	rec := withObserver(t)

	calls := 0
	_, err := withRetry("open", "/x", fastConfig(), func() (*os.File, error) {
		calls++
		return nil, syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want MaxRetries+1 = 4", calls)
	}
	if rec.failures != 1 || rec.attempts != 3 {
		t.Errorf("observer = %+v, want 1 failure and 3 attempts", rec)
	}
}

func TestOperationLabel(t *testing.T) {
	if operationLabel("open") != "read" || operationLabel("stat") != "stat" {
		t.Error("operationLabel mapping changed")
	}
}

func BenchmarkStatWithRetry_Success(b *testing.B) {
	testFile := filepath.Join(b.TempDir(), "bench.txt")
	if err := os.WriteFile(testFile, []byte("x"), 0o644); err != nil {
		b.Fatal(err)
	}
	config := DefaultRetryConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = StatWithRetry(testFile, config)
	}
}
