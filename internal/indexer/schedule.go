package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"backdrop/internal/logging"
)

// cronLogger routes scheduler output through the application logger.
type cronLogger struct{}

func (cronLogger) Printf(format string, args ...interface{}) {
	logging.Debug("cron: "+format, args...)
}

// startScheduler starts periodic full scans when a schedule is configured.
// A full scan recovers changes lost when the notification queue overflows.
// It returns nil when no schedule is set.
func (w *Watcher) startScheduler(ctx context.Context) (*cron.Cron, error) {
	if w.config.RescanSchedule == "" {
		return nil, nil
	}

	logger := cron.PrintfLogger(cronLogger{})
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)

	_, err := c.AddFunc(w.config.RescanSchedule, func() {
		if _, err := w.Scan(ctx, "scheduled"); err != nil && !errors.Is(err, ErrScanInProgress) {
			logging.Error("Scheduled scan error: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid rescan schedule %q: %w", w.config.RescanSchedule, err)
	}

	c.Start()
	logging.Info("Periodic rescan scheduled: %s", w.config.RescanSchedule)
	return c, nil
}

// ValidateSchedule reports whether expr is a valid rescan schedule. An empty
// expr is valid and disables rescans.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := cron.ParseStandard(expr)
	return err
}
