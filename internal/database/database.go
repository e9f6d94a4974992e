package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"backdrop/internal/database/migrations"
	"backdrop/internal/logging"
	"backdrop/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// FileName is the cache database's name inside the data directory.
const FileName = "backdrop.db"

var (
	// ErrConnection covers opening, migrating and reading the database.
	ErrConnection = errors.New("database connection error")
	// ErrInsertion covers failed writes.
	ErrInsertion = errors.New("database insertion error")
)

// Options tunes the SQLite connection. A nil *Options uses the defaults.
type Options struct {
	// MaxOpenConns caps the connection pool. Zero means 25.
	MaxOpenConns int
}

func (o *Options) maxOpenConns() int {
	if o == nil || o.MaxOpenConns <= 0 {
		return 25
	}
	return o.MaxOpenConns
}

// Database is the sqlite backed media cache.
type Database struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	stats   metrics.Stats
	statsMu sync.RWMutex
	healthy atomic.Bool
	version uint
}

// New opens (creating if needed) the cache database at dbPath and migrates
// it to the latest schema. The parent directory must already exist and be
// writable.
func New(ctx context.Context, dbPath string, opts *Options) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("%w: failed to connect to database: %w", ErrConnection, err)
	}

	db.SetMaxOpenConns(opts.maxOpenConns())
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, fmt.Errorf("%w: failed to initialize database schema: %w", ErrConnection, err)
	}
	d.healthy.Store(true)

	logging.Info("Database initialized successfully at %s (schema v%d)", dbPath, d.version)
	return d, nil
}

func (d *Database) migrate() error {
	start := time.Now()
	version, err := migrations.Up(d.db)
	recordQuery("migrate", start, err)
	if err != nil {
		return err
	}
	d.version = version
	metrics.DBMigrationVersion.Set(float64(version))
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// SchemaVersion returns the migration version applied at open.
func (d *Database) SchemaVersion() uint {
	return d.version
}

// Healthy reports whether the last storage health check succeeded.
func (d *Database) Healthy() bool {
	return d.healthy.Load()
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// CheckStorageHealth recounts the library and records whether the database
// answered. It implements metrics.StorageHealthChecker.
func (d *Database) CheckStorageHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if _, err := d.RefreshStats(ctx); err != nil {
		if d.healthy.Swap(false) {
			logging.Error("Database health check failed: %v", err)
		}
		return
	}
	if !d.healthy.Swap(true) {
		logging.Info("Database health check recovered")
	}
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	logging.Debug("Database directory is writable")

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		if path == dbPath {
			continue
		}
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions of %s: %v", path, chmodErr)
		} else {
			logging.Info("Fixed permissions of %s", path)
		}
	}

	return nil
}
