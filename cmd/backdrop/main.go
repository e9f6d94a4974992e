package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"backdrop/internal/database"
	"backdrop/internal/extract"
	"backdrop/internal/filesystem"
	"backdrop/internal/handlers"
	"backdrop/internal/hashing"
	"backdrop/internal/indexer"
	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/memory"
	"backdrop/internal/metrics"
	"backdrop/internal/middleware"
	"backdrop/internal/startup"
	"backdrop/internal/workers"
)

const (
	metricsInterval = time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	startTime := time.Now()
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.LogFile != "" {
		if err := logging.EnableFile(logging.FileOptions{
			Path:       config.LogFile,
			MaxSizeMB:  config.LogFileMaxMB,
			MaxBackups: config.LogFileMaxBackups,
			Compress:   true,
		}); err != nil {
			startup.LogFatal("Log file error: %v", err)
		}
		defer logging.Close()
	}

	roots := config.Settings.WatchedPaths()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(volumeResolver(config, roots))
	metrics.InitializeMetrics()
	build := startup.GetBuildInfo()
	metrics.SetAppInfo(build.Version, build.Commit, build.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath, &database.Options{MaxOpenConns: config.DBMaxConns})
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), db.SchemaVersion())
	if _, err := db.RefreshStats(ctx); err != nil {
		logging.Warn("Failed to load initial media stats: %v", err)
	}

	// Extraction
	vipsErr := extract.InitVips()
	startup.LogExtractorInit(vipsErr, config.FFprobeBinary)

	retry := filesystem.DefaultRetryConfig()
	chains := extract.DefaultChains(extract.Config{
		Retry:         retry,
		FFprobeBinary: config.FFprobeBinary,
		Limiter:       workers.NewLimiter(workers.ForCodec(0)),
	})
	hasher := hashing.New(retry)
	builder := media.NewBuilder(media.BuilderConfig{
		Chains: chains,
		Hasher: hasher,
		Store:  db,
		Retry:  retry,
	})
	pipeline := media.NewPipeline(db, hasher, builder, retry)

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Watcher
	startup.LogWatcherInit(roots, config.Debounce, config.RescanSchedule)
	watcherConfig := indexer.DefaultConfig()
	watcherConfig.Debounce = config.Debounce
	watcherConfig.RescanSchedule = config.RescanSchedule
	watcherConfig.Walker.Gate = monitor
	watcher := indexer.NewWatcher(pipeline, config.Settings, db, watcherConfig)

	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		if err := watcher.Start(ctx); err != nil {
			logging.Error("Watcher failed: %v", err)
		}
	}()
	startup.LogWatcherStarted()

	collector := metrics.NewCollector(db, config.DatabasePath, metricsInterval)
	collector.SetStorageHealthChecker(db)
	collector.Start()

	// HTTP
	h := handlers.New(db, pipeline, watcher, config.Settings)
	router := h.Router(config.MetricsEnabled)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           wrapRouter(router, config),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	select {
	case <-ctx.Done():
		startup.LogShutdownInitiated("signal")
	case err := <-serverErr:
		logging.Error("Server error: %v", err)
		startup.LogShutdownInitiated("server error")
	}

	// Release workers held by memory backpressure so dispatches can drain
	monitor.Stop()
	shutdown(srv, watcher, watcherDone, collector, db)
}

// wrapRouter applies the middleware stack. Metrics run inside the router so
// they can read the matched route template.
func wrapRouter(router *mux.Router, config *startup.Config) http.Handler {
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	var handler http.Handler = router
	handler = middleware.Logger(loggingConfig)(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)
	return handler
}

// volumeResolver labels filesystem metrics by the volume a path lives on.
func volumeResolver(config *startup.Config, roots []string) *filesystem.VolumeResolver {
	mounts := [][2]string{
		{metrics.VolumeData, config.DataDir},
		{metrics.VolumeCache, config.CacheDir},
	}
	for _, root := range roots {
		mounts = append(mounts, [2]string{metrics.VolumeMedia, root})
	}
	return filesystem.NewVolumeResolverFromMounts(mounts)
}

func shutdown(srv *http.Server, watcher *indexer.Watcher, watcherDone <-chan struct{}, collector *metrics.Collector, db *database.Database) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping watcher")
	watcher.Stop()
	select {
	case <-watcherDone:
	case <-ctx.Done():
		logging.Warn("Watcher did not stop within %v", shutdownTimeout)
	}

	drained := make(chan struct{})
	go func() {
		watcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		startup.LogShutdownStepComplete("Watcher stopped")
	case <-ctx.Done():
		logging.Warn("Abandoning in-flight dispatches after %v", shutdownTimeout)
	}

	collector.Stop()

	startup.LogShutdownStep("Closing database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	extract.ShutdownVips()
	startup.LogShutdownComplete()
}
