// Package config persists the watched roots and application directories
// as a toml file under the data directory.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// RelativePath is where the config file lives below the data directory.
const RelativePath = "shared_prefs/config.toml"

var (
	// ErrReadFailed is returned when the config file cannot be read.
	ErrReadFailed = errors.New("failed to read config file")
	// ErrParseFailed is returned when the config file is not valid toml.
	ErrParseFailed = errors.New("failed to parse config file")
	// ErrPathMismatch is returned when a stored config names a different
	// data directory than the one it was loaded from.
	ErrPathMismatch = errors.New("config file paths do not match the current data directory")
)

// Config is the persisted application configuration.
type Config struct {
	// WatchedPaths are the roots scanned and watched for media.
	WatchedPaths []string `toml:"watched_paths"`
	// DataDir holds the database and this file.
	DataDir string `toml:"data_dir"`
	// CacheDir holds regenerable data.
	CacheDir      string        `toml:"cache_dir"`
	BugReportInfo BugReportInfo `toml:"bug_report_info"`
}

// BugReportInfo identifies the build so bug reports can be routed.
type BugReportInfo struct {
	AppName      string `toml:"app_name"`
	AppVersion   string `toml:"app_version"`
	TargetTriple string `toml:"target_triple"`
	BuildTime    string `toml:"build_time"`
	Device       string `toml:"device"`
	Display      string `toml:"display"`
	Commit       string `toml:"commit"`
	Repo         string `toml:"repo"`
}

// BugMessage is appended to log lines describing conditions that should
// never happen.
func (b BugReportInfo) BugMessage() string {
	if b.Repo == "" {
		return "this is a bug, so please report it!"
	}
	return "this is a bug, so please report it! you can do so by heading to this git repo: " + b.Repo
}

// NewConfig returns a config rooted at dataDir and cacheDir.
func NewConfig(watched []string, dataDir, cacheDir string, info BugReportInfo) *Config {
	return &Config{
		WatchedPaths:  slices.Clone(watched),
		DataDir:       dataDir,
		CacheDir:      cacheDir,
		BugReportInfo: info,
	}
}

// Path returns the config file location for dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, RelativePath)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.WatchedPaths = slices.Clone(c.WatchedPaths)
	return &cp
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// FromDisk loads the config stored under dataDir. A config written for a
// different data directory is rejected with ErrPathMismatch.
func FromDisk(dataDir string) (*Config, error) {
	cfg, err := ReadFromFile(Path(dataDir))
	if err != nil {
		return nil, err
	}
	if filepath.Clean(cfg.DataDir) != filepath.Clean(dataDir) {
		return nil, fmt.Errorf("%w: stored %q, expected %q", ErrPathMismatch, cfg.DataDir, dataDir)
	}
	return cfg, nil
}

// writeToFile replaces the file at path atomically.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	m := &Manager{}
	if err := m.Write(tmp, cfg); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// Init writes a new config file at path. It fails if one already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Store shares one Config between goroutines. Readers get copies, so
// holding a result never blocks writers.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore wraps cfg.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg.Clone()}
}

// Get returns a copy of the current config.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// WatchedPaths returns a copy of the watched roots.
func (s *Store) WatchedPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cfg.WatchedPaths)
}

// Update applies fn to the config under the write lock.
func (s *Store) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cfg)
}

// Save writes the current config to its data directory.
func (s *Store) Save() error {
	cfg := s.Get()
	return writeToFile(Path(cfg.DataDir), cfg)
}

// LoadOrInit returns the config stored under dataDir, creating it from
// fallback when no file exists yet.
func LoadOrInit(dataDir string, fallback *Config) (*Store, error) {
	cfg, err := FromDisk(dataDir)
	if err == nil {
		return NewStore(cfg), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := Init(Path(dataDir), fallback); err != nil {
		return nil, err
	}
	return NewStore(fallback), nil
}
