package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"backdrop/internal/config"
	"backdrop/internal/indexer"
	"backdrop/internal/mediatypes"
)

// useJSON reports whether output should be JSON: when asked for, or when
// stdout is not a terminal.
func useJSON(cmd *cobra.Command) bool {
	if jsonOutput {
		return true
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type loadResult struct {
	Path  string            `json:"path"`
	Media *mediatypes.Media `json:"media,omitempty"`
	Error string            `json:"error,omitempty"`
}

func newLoadResult(path string, m *mediatypes.Media, err error) loadResult {
	r := loadResult{Path: path, Media: m}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func printLoadResults(w io.Writer, results []loadResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, results)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tSIZE\tRESOLUTION\tID\tERROR")
	for _, r := range results {
		if r.Media == nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\n", r.Path, r.Error)
			continue
		}
		m := r.Media
		fmt.Fprintf(tw, "%s\t%s\t%d\t%dx%d\t%s\t-\n",
			m.Path, m.Format.MediaKind, m.Filesize, m.WidthPx, m.HeightPx, m.ID)
	}
	return tw.Flush()
}

type hashResult struct {
	Path  string `json:"path"`
	Hash  string `json:"hash,omitempty"`
	Error string `json:"error,omitempty"`
}

func printHashResults(w io.Writer, results []hashResult, asJSON bool) error {
	if asJSON {
		return writeJSON(w, results)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\terror: %s\n", r.Path, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Hash, r.Path)
	}
	return tw.Flush()
}

func printWalkStats(w io.Writer, stats indexer.WalkStats, asJSON bool) error {
	if asJSON {
		return writeJSON(w, struct {
			Root     string `json:"root"`
			Files    int64  `json:"files"`
			Folders  int64  `json:"folders"`
			Errors   int64  `json:"errors"`
			Duration string `json:"duration"`
		}{stats.Root, stats.Files, stats.Folders, stats.Errors, stats.Elapsed.String()})
	}

	fmt.Fprintf(w, "Scanned %s\n", stats.Root)
	fmt.Fprintf(w, "  Files:   %d\n", stats.Files)
	fmt.Fprintf(w, "  Folders: %d\n", stats.Folders)
	fmt.Fprintf(w, "  Errors:  %d\n", stats.Errors)
	fmt.Fprintf(w, "  Took:    %v\n", stats.Elapsed)
	return nil
}

func printConfig(w io.Writer, path string, cfg *config.Config, asJSON bool) error {
	if asJSON {
		return writeJSON(w, struct {
			Path         string   `json:"path"`
			WatchedPaths []string `json:"watchedPaths"`
			DataDir      string   `json:"dataDir"`
			CacheDir     string   `json:"cacheDir"`
			AppVersion   string   `json:"appVersion"`
		}{path, cfg.WatchedPaths, cfg.DataDir, cfg.CacheDir, cfg.BugReportInfo.AppVersion})
	}

	fmt.Fprintf(w, "Configuration from %s:\n\n", path)
	fmt.Fprintf(w, "Watched:   %s\n", strings.Join(cfg.WatchedPaths, ", "))
	fmt.Fprintf(w, "Data Dir:  %s\n", cfg.DataDir)
	fmt.Fprintf(w, "Cache Dir: %s\n", cfg.CacheDir)
	fmt.Fprintf(w, "Version:   %s\n", cfg.BugReportInfo.AppVersion)
	return nil
}
