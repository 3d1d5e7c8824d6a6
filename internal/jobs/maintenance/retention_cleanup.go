package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"honeypress/internal/config"
	"honeypress/internal/support"
)

const retentionCleanupLockKey = "honeypress:leader:retention_cleanup"

type eventCleaner interface {
	Cleanup(ctx context.Context, maxAgeDays int) (int64, error)
}

// StartRetentionRoutine deletes events older than retention.days on the
// retention.cleanup_timer interval.
func StartRetentionRoutine(ctx context.Context, cleaner eventCleaner) {
	updates := config.CleanupIntervalUpdates()
	err := support.RunExclusive(ctx, retentionCleanupLockKey, func(leaderCtx context.Context) {
		runRetentionLoop(leaderCtx, cleaner, config.GetCleanupInterval(), updates, retentionDays)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Retention cleanup routine stopped", "error", err)
	}
}

func retentionDays() int {
	return config.GetConfig().Retention.Days
}

func runRetentionLoop(ctx context.Context, cleaner eventCleaner, interval time.Duration, updates <-chan time.Duration, days func() int) {
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	RunRetentionCleanup(ctx, cleaner, days())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RunRetentionCleanup(ctx, cleaner, days())
		case next := <-updates:
			if next <= 0 || next == interval {
				continue
			}
			interval = next
			ticker.Reset(interval)
		}
	}
}

// RunRetentionCleanup performs one cleanup and logs the outcome.
func RunRetentionCleanup(ctx context.Context, cleaner eventCleaner, days int) (int64, error) {
	start := time.Now()

	removed, err := cleaner.Cleanup(ctx, days)
	if err != nil {
		log.Error("Failed to clean up old events", "retention_days", days, "error", err)
		return 0, err
	}

	if removed > 0 {
		log.Info("Retention cleanup completed",
			"events_removed", removed,
			"retention_days", days,
			"duration", time.Since(start),
		)
	}
	return removed, nil
}
