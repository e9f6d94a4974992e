package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"backdrop/internal/config"
	"backdrop/internal/database"
	"backdrop/internal/indexer"
	"backdrop/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	Repo      = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// BugReportInfo returns the build details persisted with the settings file.
func BugReportInfo() config.BugReportInfo {
	hostname, _ := os.Hostname()
	return config.BugReportInfo{
		AppName:      "backdrop",
		AppVersion:   Version,
		TargetTriple: runtime.GOARCH + "-" + runtime.GOOS,
		BuildTime:    BuildTime,
		Device:       hostname,
		Display:      "headless",
		Commit:       Commit,
		Repo:         Repo,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DataDir         string
	CacheDir        string
	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool

	Debounce       time.Duration
	RescanSchedule string
	FFprobeBinary  string
	DBMaxConns     int

	LogFile           string
	LogFileMaxMB      int
	LogFileMaxBackups int

	// Derived paths
	DatabasePath string

	// Settings holds the persisted settings file, including the watched
	// roots.
	Settings *config.Store
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	watched := splitList(os.Getenv("WATCHED_PATHS"))
	port := getEnv("PORT", "8080")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)
	debounce := getEnvDuration("DEBOUNCE", indexer.DefaultDebounce)
	rescanSchedule := getEnv("RESCAN_SCHEDULE", "0 4 * * *")
	if strings.EqualFold(rescanSchedule, "off") {
		rescanSchedule = ""
	}
	ffprobe := getEnv("FFPROBE_PATH", "ffprobe")
	dbMaxConns := getEnvInt("DB_MAX_CONNS", 25)
	logFile := os.Getenv("LOG_FILE")

	logging.Info("  DATA_DIR:            %s", dataDir)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  WATCHED_PATHS:       %s", strings.Join(watched, ", "))
	logging.Info("  PORT:                %s", port)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  DEBOUNCE:            %v", debounce)
	logging.Info("  RESCAN_SCHEDULE:     %s", rescanSchedule)
	logging.Info("  FFPROBE_PATH:        %s", ffprobe)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if err := indexer.ValidateSchedule(rescanSchedule); err != nil {
		return nil, fmt.Errorf("invalid RESCAN_SCHEDULE %q: %w", rescanSchedule, err)
	}

	cfg := &Config{
		Port:              port,
		MetricsEnabled:    metricsEnabled,
		LogHealthChecks:   logHealthChecks,
		Debounce:          debounce,
		RescanSchedule:    rescanSchedule,
		FFprobeBinary:     ffprobe,
		DBMaxConns:        dbMaxConns,
		LogFile:           logFile,
		LogFileMaxMB:      getEnvInt("LOG_FILE_MAX_MB", 50),
		LogFileMaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 3),
	}

	if err := cfg.setupDirectories(dataDir, cacheDir); err != nil {
		return nil, err
	}
	if err := cfg.loadSettings(watched); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupDirectories resolves and validates the data and cache directories.
func (c *Config) setupDirectories(dataDir, cacheDir string) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	c.DataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute): %s", c.DataDir)

	c.CacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", c.CacheDir)

	if err := ensureDirectory(c.DataDir, "data"); err != nil {
		return fmt.Errorf("data directory error: %w", err)
	}
	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(c.DataDir); err != nil {
		return fmt.Errorf("data directory is not writable (required for the cache database): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	if !setupOptionalDir(c.CacheDir, "cache") {
		logging.Warn("  Cache directory unavailable; continuing without it")
	}

	c.DatabasePath = filepath.Join(c.DataDir, database.FileName)
	return nil
}

// loadSettings opens the settings file. Roots given in the environment
// replace the stored ones and are written back.
func (c *Config) loadSettings(envRoots []string) error {
	roots := make([]string, 0, len(envRoots))
	for _, root := range envRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("failed to resolve watched path %s: %w", root, err)
		}
		roots = append(roots, abs)
	}

	store, err := config.LoadOrInit(c.DataDir, config.NewConfig(roots, c.DataDir, c.CacheDir, BugReportInfo()))
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if len(roots) > 0 {
		store.Update(func(cfg *config.Config) {
			cfg.WatchedPaths = roots
			cfg.CacheDir = c.CacheDir
			cfg.BugReportInfo = BugReportInfo()
		})
		if err := store.Save(); err != nil {
			logging.Warn("  Failed to save settings: %v", err)
		}
	}
	c.Settings = store

	logging.Info("  Settings file: %s", config.Path(c.DataDir))
	watched := store.WatchedPaths()
	if len(watched) == 0 {
		logging.Warn("  No watched paths configured (set WATCHED_PATHS)")
	}
	for _, root := range watched {
		if err := checkRoot(root); err != nil {
			logging.Warn("  Watched path %s: %v", root, err)
		} else {
			logging.Info("  [OK] Watching %s", root)
		}
	}
	return nil
}

func checkRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, schemaVersion uint) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v (schema version %d)", duration, schemaVersion)
}

// LogExtractorInit logs which metadata extractors are usable.
func LogExtractorInit(vipsErr error, ffprobeBinary string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("METADATA EXTRACTORS")
	logging.Info("------------------------------------------------------------")

	if vipsErr != nil {
		logging.Warn("  libvips unavailable: %v", vipsErr)
		logging.Warn("  Photos fall back to EXIF and the built-in decoders")
	} else {
		logging.Info("  [OK] libvips is available")
	}

	if err := checkFFprobe(ffprobeBinary); err != nil {
		logging.Warn("  FFprobe check failed: %v", err)
		logging.Warn("  Videos in containers without a native parser will be skipped")
	} else {
		logging.Info("  [OK] FFprobe is available")
	}
}

// LogWatcherInit logs watcher configuration
func LogWatcherInit(roots []string, debounce time.Duration, schedule string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("WATCHER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Watched roots:   %d", len(roots))
	logging.Info("  Debounce window: %v", debounce)
	if schedule == "" {
		logging.Info("  Periodic rescan: %s", enabledString(false))
	} else {
		logging.Info("  Periodic rescan: %s", schedule)
	}
	logging.Info("  Starting watcher...")
}

// LogWatcherStarted logs successful watcher start
func LogWatcherStarted() {
	logging.Info("  [OK] Watcher started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __               __
   / /_  ____ ______/ /______/ /________  ____
  / __ \/ __ '/ ___/ //_/ __  / ___/ __ \/ __ \
 / /_/ / /_/ / /__/ ,< / /_/ / /  / /_/ / /_/ /
/_.___/\__,_/\___/_/|_|\__,_/_/   \____/ .___/
                                      /_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFprobe(binary string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", binary)
	}
	logging.Debug("  FFprobe path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffprobe version: %w", err)
	}

	if line, _, _ := strings.Cut(string(output), "\n"); line != "" {
		logging.Debug("  FFprobe version: %s", strings.TrimSpace(line))
	}
	return nil
}

// splitList splits a path list on commas and the OS list separator.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == os.PathListSeparator
	}) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
