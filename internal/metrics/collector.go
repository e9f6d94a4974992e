package metrics

import (
	"os"
	"sync"
	"time"

	"backdrop/internal/logging"
)

// StatsProvider supplies library totals for the periodic collector.
type StatsProvider interface {
	GetStats() Stats
}

// StorageHealthChecker is implemented by the database to refresh its own
// gauges during collection.
type StorageHealthChecker interface {
	CheckStorageHealth()
	UpdateDBMetrics()
}

// Stats holds the current library totals.
type Stats struct {
	TotalMedia     int `json:"totalMedia"`
	Photos         int `json:"photos"`
	AnimatedPhotos int `json:"animatedPhotos"`
	Videos         int `json:"videos"`
	Albums         int `json:"albums"`
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once

	mu            sync.RWMutex
	healthChecker StorageHealthChecker
}

// NewCollector creates a new metrics collector. dbPath may be empty to skip
// database size collection.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// SetStorageHealthChecker registers a checker invoked on every collection.
func (c *Collector) SetStorageHealthChecker(checker StorageHealthChecker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthChecker = checker
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectDBSize()

	c.mu.RLock()
	checker := c.healthChecker
	c.mu.RUnlock()
	if checker != nil {
		checker.CheckStorageHealth()
		checker.UpdateDBMetrics()
	}

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	MediaFilesTotal.WithLabelValues("Photo").Set(float64(stats.Photos))
	MediaFilesTotal.WithLabelValues("AnimatedPhoto").Set(float64(stats.AnimatedPhotos))
	MediaFilesTotal.WithLabelValues("Video").Set(float64(stats.Videos))
	MediaAlbumsTotal.Set(float64(stats.Albums))

	logging.Debug("Metrics collected: media=%d, photos=%d, videos=%d, albums=%d",
		stats.TotalMedia, stats.Photos, stats.Videos, stats.Albums)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				DBStorageErrors.WithLabelValues(label).Inc()
				logging.Debug("Failed to stat database file %s: %v", path, err)
			}
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
