package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"backdrop/internal/logging"
	"backdrop/internal/metrics"
)

// Config holds the monitor's thresholds.
type Config struct {
	// LimitBytes is the reference limit. Zero uses GOMEMLIMIT; with neither
	// set the monitor never pauses.
	LimitBytes int64
	// CriticalWaterMark is the usage ratio at which ingestion pauses.
	CriticalWaterMark float64
	// ResumeWaterMark is the usage ratio below which ingestion resumes.
	ResumeWaterMark float64
	// CheckInterval is how often heap usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		CriticalWaterMark: 0.85,
		ResumeWaterMark:   0.70,
		CheckInterval:     5 * time.Second,
	}
}

// Monitor samples heap usage and pauses scan workers while it is critical.
type Monitor struct {
	config Config
	limit  int64

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMonitor creates a monitor. Call Start to begin sampling.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
		}
	}

	return &Monitor{
		config:   config,
		limit:    limit,
		resume:   make(chan struct{}),
		stopChan: make(chan struct{}),
	}
}

// Limit returns the limit usage is measured against, or 0.
func (m *Monitor) Limit() int64 {
	return m.limit
}

// Start begins sampling. It does nothing without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		logging.Info("Memory monitor: no memory limit configured, backpressure disabled")
		return
	}
	logging.Info("Memory monitor: pausing ingestion above %.0f%% of %s",
		m.config.CriticalWaterMark*100, FormatBytes(m.limit))
	go m.loop()
}

// Stop ends sampling and releases any waiters. It is safe to call more
// than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			m.sample(stats.Alloc)
		case <-m.stopChan:
			return
		}
	}
}

// sample records a heap size and moves between paused and running.
func (m *Monitor) sample(alloc uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case !m.paused && usage >= m.config.CriticalWaterMark:
		logging.Warn("Memory critical (%.1f%% of limit), pausing ingestion", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPauses.Inc()
		go runtime.GC()
	case m.paused && usage < m.config.ResumeWaterMark:
		logging.Info("Memory recovered (%.1f%% of limit), resuming ingestion", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while ingestion is paused. It returns ctx.Err() if ctx ends
// first and nil once work may proceed or the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-m.stopChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether ingestion is currently held back.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled heap size as a fraction of the limit.
func (m *Monitor) Usage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}
