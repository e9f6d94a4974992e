package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"backdrop/internal/config"
	"backdrop/internal/database"
	"backdrop/internal/extract"
	"backdrop/internal/filesystem"
	"backdrop/internal/hashing"
	"backdrop/internal/indexer"
	"backdrop/internal/logging"
	"backdrop/internal/media"
	"backdrop/internal/startup"
	"backdrop/internal/workers"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	dataDir    string
	jsonOutput bool
	ffprobe    string
)

// session holds what a cache-touching command needs. The caller must defer
// Close.
type session struct {
	db       *database.Database
	pipeline *media.Pipeline
}

// openSession opens the cache under dataDir and builds a load pipeline
// without the watcher.
func openSession(ctx context.Context) (*session, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := database.New(ctx, filepath.Join(dataDir, database.FileName), nil)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	if err := extract.InitVips(); err != nil {
		logging.Debug("libvips unavailable: %v", err)
	}

	retry := filesystem.DefaultRetryConfig()
	hasher := hashing.New(retry)
	builder := media.NewBuilder(media.BuilderConfig{
		Chains: extract.DefaultChains(extract.Config{
			Retry:         retry,
			FFprobeBinary: ffprobe,
			Limiter:       workers.NewLimiter(workers.ForCodec(0)),
		}),
		Hasher: hasher,
		Store:  db,
		Retry:  retry,
	})

	return &session{db: db, pipeline: media.NewPipeline(db, hasher, builder, retry)}, nil
}

func (s *session) Close() error {
	extract.ShutdownVips()
	return s.db.Close()
}

var rootCmd = &cobra.Command{
	Use:           "backdropctl",
	Short:         "Inspect and populate the backdrop media cache",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var loadCmd = &cobra.Command{
	Use:   "load <path>...",
	Short: "Load files through the cache, extracting metadata when needed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		var results []loadResult
		var failed error
		for _, arg := range args {
			m, err := s.pipeline.Load(ctx, arg)
			results = append(results, newLoadResult(arg, m, err))
			if err != nil {
				failed = errors.Join(failed, fmt.Errorf("%s: %w", arg, err))
			}
		}

		if err := printLoadResults(cmd.OutOrStdout(), results, useJSON(cmd)); err != nil {
			return err
		}
		return failed
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash <path>...",
	Short: "Print the content hash of files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hasher := hashing.New(filesystem.DefaultRetryConfig())

		var results []hashResult
		var failed error
		for _, arg := range args {
			h, err := hasher.HashFile(cmd.Context(), arg)
			r := hashResult{Path: arg}
			if err != nil {
				r.Error = err.Error()
				failed = errors.Join(failed, fmt.Errorf("%s: %w", arg, err))
			} else {
				r.Hash = h.Hex()
			}
			results = append(results, r)
		}

		if err := printHashResults(cmd.OutOrStdout(), results, useJSON(cmd)); err != nil {
			return err
		}
		return failed
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Load every file under a directory once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		root, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		skipHidden, _ := cmd.Flags().GetBool("skip-hidden")
		walkerConfig := indexer.DefaultParallelWalkerConfig()
		walkerConfig.SkipHidden = skipHidden

		walker := indexer.NewParallelWalker(root, walkerConfig, func(ctx context.Context, path string) error {
			_, err := s.pipeline.Load(ctx, path)
			if err != nil && !errors.Is(err, media.ErrFileNotSupportedMedia) {
				logging.Warn("Failed to load %s: %v", path, err)
			}
			return err
		})

		stats, err := walker.Walk(ctx)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", root, err)
		}
		if err := s.db.SetLastScanRun(ctx, time.Now()); err != nil {
			logging.Warn("Failed to record scan time: %v", err)
		}
		return printWalkStats(cmd.OutOrStdout(), stats, useJSON(cmd))
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the settings file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetStringSlice("watch")
		cacheDir, _ := cmd.Flags().GetString("cache-dir")

		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return fmt.Errorf("resolving data directory: %w", err)
		}
		roots := make([]string, 0, len(watch))
		for _, w := range watch {
			root, err := filepath.Abs(w)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", w, err)
			}
			roots = append(roots, root)
		}

		cfg := config.NewConfig(roots, abs, cacheDir, startup.BugReportInfo())
		path := config.Path(abs)
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "View the settings file",
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(dataDir)
		if err != nil {
			return fmt.Errorf("resolving data directory: %w", err)
		}
		cfg, err := config.FromDisk(abs)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return printConfig(cmd.OutOrStdout(), config.Path(abs), cfg, useJSON(cmd))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", envOr("DATA_DIR", "/data"), "Directory holding the cache database and settings")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Always print JSON")
	rootCmd.PersistentFlags().StringVar(&ffprobe, "ffprobe", envOr("FFPROBE_PATH", "ffprobe"), "ffprobe binary")

	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(hashCmd)

	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("skip-hidden", true, "Skip files and directories starting with '.'")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().StringSliceP("watch", "w", nil, "Root to watch (repeatable)")
	configInitCmd.Flags().String("cache-dir", envOr("CACHE_DIR", "/cache"), "Cache directory")
	configCmd.AddCommand(configShowCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
