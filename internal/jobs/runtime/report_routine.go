package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"honeypress/internal/config"
	"honeypress/internal/jobs/queue"
	"honeypress/internal/support"
)

const reportQueueLockKey = "honeypress:leader:report_queue"

type queueProcessor interface {
	Process(ctx context.Context, batchSize int) queue.Result
}

// StartReportRoutine drains the report queue on the configured queue_timer.
// With Redis configured only the lock holder across all instances runs passes.
func StartReportRoutine(ctx context.Context, q queueProcessor) {
	updates := config.QueueIntervalUpdates()
	err := support.RunExclusive(ctx, reportQueueLockKey, func(leaderCtx context.Context) {
		runReportLoop(leaderCtx, q, config.GetQueueInterval(), updates, batchSize)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Report routine stopped", "error", err)
	}
}

func batchSize() int {
	return config.GetConfig().Reporting.BatchSize
}

func runReportLoop(ctx context.Context, q queueProcessor, interval time.Duration, updates <-chan time.Duration, size func() int) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	q.Process(ctx, size())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Process(ctx, size())
		case next := <-updates:
			if next <= 0 || next == interval {
				continue
			}
			interval = next
			ticker.Reset(interval)
			log.Debug("Report routine interval changed", "interval", interval)
		}
	}
}
