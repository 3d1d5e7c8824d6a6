package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"honeypress/internal/database"
	"honeypress/internal/domain"
	"honeypress/internal/metrics"
	"honeypress/internal/reporting"
)

const (
	DefaultBatchSize   = 10
	DefaultPassTimeout = 2 * time.Minute

	maxResultErrors = 10
)

// Reporter delivers one event to the reporting API.
type Reporter interface {
	Configured() bool
	Report(ctx context.Context, ip string, categories domain.CategoryList, comment string) reporting.Outcome
}

// Result summarises one queue pass.
type Result struct {
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *Result) addError(format string, args ...any) {
	if len(r.Errors) >= maxResultErrors {
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// ReportQueue moves Unsent events to the reporting API oldest first. Only
// one pass runs at a time per process; overlapping calls return immediately.
type ReportQueue struct {
	reporter    Reporter
	passTimeout time.Duration
	running     sync.Mutex
}

type Option func(*ReportQueue)

func WithPassTimeout(d time.Duration) Option {
	return func(q *ReportQueue) {
		q.passTimeout = d
	}
}

func NewReportQueue(reporter Reporter, opts ...Option) *ReportQueue {
	q := &ReportQueue{reporter: reporter, passTimeout: DefaultPassTimeout}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Process runs one pass over at most batchSize Unsent events.
func (q *ReportQueue) Process(ctx context.Context, batchSize int) Result {
	var res Result

	if q.reporter == nil || !q.reporter.Configured() {
		log.Debug("Report queue skipped: reporting not configured")
		return res
	}
	if !q.running.TryLock() {
		log.Debug("Report queue pass already running")
		return res
	}
	defer q.running.Unlock()

	if q.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.passTimeout)
		defer cancel()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	start := time.Now()
	events, err := database.ListUnsentEvents(ctx, batchSize)
	if err != nil {
		log.Error("Failed to load unsent events", "error", err)
		res.addError("load unsent events: %v", err)
		return res
	}

	for i := range events {
		event := &events[i]

		if ctx.Err() != nil {
			res.Skipped += len(events) - i
			break
		}

		if len(event.Categories) == 0 {
			if _, err := database.MarkEventExempt(ctx, event.ID); err != nil {
				res.addError("event %d: mark exempt: %v", event.ID, err)
			}
			res.Skipped++
			continue
		}

		outcome := q.reporter.Report(ctx, event.IP, event.Categories, event.Comment)
		if outcome.Refused() {
			res.Skipped += len(events) - i
			log.Info("Report queue paused", "reason", outcome.Err, "remaining", len(events)-i)
			break
		}

		if !outcome.Success {
			res.Failed++
			res.addError("event %d (%s): %v", event.ID, event.IP, outcome.Err)
			continue
		}

		res.Sent++
		marked, err := database.MarkEventSent(ctx, event.ID)
		switch {
		case err != nil:
			log.Error("Reported event could not be marked sent", "event_id", event.ID, "error", err)
			res.addError("event %d: mark sent: %v", event.ID, err)
		case !marked:
			log.Debug("Event already left the unsent state", "event_id", event.ID)
		}
	}

	if _, err := q.QueueSize(ctx); err != nil {
		log.Debug("Queue size refresh failed", "error", err)
	}

	if len(events) > 0 {
		log.Info("Report queue pass finished",
			"sent", res.Sent,
			"failed", res.Failed,
			"skipped", res.Skipped,
			"duration", time.Since(start),
		)
	}
	return res
}

// Trigger starts a pass in the background unless one is already running.
func (q *ReportQueue) Trigger(batchSize int) {
	if q.reporter == nil || !q.reporter.Configured() {
		return
	}
	go q.Process(context.Background(), batchSize)
}

// QueueSize counts Unsent events and publishes the gauge.
func (q *ReportQueue) QueueSize(ctx context.Context) (int64, error) {
	size, err := database.CountUnsentEvents(ctx)
	if err != nil {
		return 0, err
	}
	metrics.SetQueueSize(size)
	return size, nil
}
