package eventlog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"honeypress/internal/database"
	"honeypress/internal/detection"
	"honeypress/internal/domain"
	"honeypress/internal/metrics"
	"honeypress/internal/ratelimit"
	"honeypress/internal/support"

	"github.com/charmbracelet/log"
)

const (
	DefaultRatePerMinute   = 10
	DefaultPostDataMaxSize = 2048

	commentSeparator = " | "
	lockStripes      = 64
	rateSpan         = time.Minute
)

var ErrInvalidRetention = errors.New("eventlog: retention days must be positive")

// Logger persists merged detections, at most a fixed number per IP per minute.
type Logger struct {
	window      *ratelimit.RateWindow
	limit       atomic.Int64
	postDataMax atomic.Int64
	now         func() time.Time
	stripes     [lockStripes]sync.Mutex
}

type Option func(*Logger)

func WithRateLimit(perMinute int) Option {
	return func(l *Logger) {
		if perMinute > 0 {
			l.limit.Store(int64(perMinute))
		}
	}
}

func WithPostDataLimit(bytes int) Option {
	return func(l *Logger) {
		if bytes > 0 {
			l.postDataMax.Store(int64(bytes))
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// New builds a Logger. A nil window gets a private one.
func New(window *ratelimit.RateWindow, opts ...Option) *Logger {
	l := &Logger{
		window: window,
		now:    time.Now,
	}
	l.limit.Store(DefaultRatePerMinute)
	l.postDataMax.Store(DefaultPostDataMaxSize)
	for _, opt := range opts {
		opt(l)
	}
	if l.window == nil {
		l.window = ratelimit.New(ratelimit.WithClock(l.now))
	}
	return l
}

// SetLimits changes the per-IP allowance and the POST snapshot size for
// events logged from now on. Non-positive values leave a limit unchanged.
func (l *Logger) SetLimits(ratePerMinute, postDataMax int) {
	WithRateLimit(ratePerMinute)(l)
	WithPostDataLimit(postDataMax)(l)
}

// Log merges results into one event and stores it for ip. It returns nil, nil
// when there is nothing to store or the IP is over its per-minute allowance.
func (l *Logger) Log(ctx context.Context, ip string, req *detection.Request, results []domain.DetectionResult) (*domain.Event, error) {
	categories, comment := Merge(results)
	if len(categories) == 0 {
		return nil, nil
	}

	mu := &l.stripes[support.HashString(ip)%lockStripes]
	mu.Lock()
	defer mu.Unlock()

	limit := l.limit.Load()
	if int64(l.window.Count(ip)) >= limit {
		log.Debug("Event dropped by rate window", "ip", ip)
		metrics.RecordEventDropped(metrics.DropRateLimit)
		return nil, nil
	}

	now := l.now().UTC()
	recent, err := database.CountEventsByIPSince(ctx, ip, now.Add(-rateSpan))
	if err != nil {
		metrics.RecordEventDropped(metrics.DropStorage)
		return nil, fmt.Errorf("eventlog: count recent events: %w", err)
	}
	if recent >= limit {
		log.Debug("Event dropped by durable rate check", "ip", ip, "recent", recent)
		metrics.RecordEventDropped(metrics.DropRateLimit)
		return nil, nil
	}

	event := &domain.Event{
		IP:         ip,
		Categories: categories,
		Comment:    support.CleanText(comment),
		Timestamp:  now,
		SendState:  domain.SendStateUnsent,
	}
	if req != nil {
		event.UserAgent = support.CleanText(req.UserAgent())
		event.RequestURI = support.CleanText(req.URI)
		event.RequestMethod = support.CleanText(req.Method)
		event.PostData = l.snapshot(req.Body)
	}

	if err := database.InsertEvent(ctx, event); err != nil {
		metrics.RecordEventDropped(metrics.DropStorage)
		return nil, fmt.Errorf("eventlog: insert event: %w", err)
	}
	l.window.Record(ip)
	metrics.RecordEventLogged()

	return event, nil
}

// Merge unions the categories of results and joins their comments, tagged with
// the analyzer name, in pipeline order.
func Merge(results []domain.DetectionResult) (domain.CategoryList, string) {
	var (
		all      []domain.Category
		comments = make([]string, 0, len(results))
	)
	for _, res := range results {
		cats := res.Categories()
		if len(cats) == 0 {
			continue
		}
		all = append(all, cats...)
		comments = append(comments, "["+res.Analyzer()+"] "+res.Comment())
	}
	return domain.NewCategoryList(all...), strings.Join(comments, commentSeparator)
}

func (l *Logger) snapshot(body string) *string {
	if body == "" {
		return nil
	}
	body = support.TruncateUTF8(support.CleanText(body), int(l.postDataMax.Load()))
	return &body
}

// Cleanup removes events older than maxAgeDays and returns how many were deleted.
func (l *Logger) Cleanup(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := l.now().UTC().AddDate(0, 0, -maxAgeDays)
	deleted, err := database.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("eventlog: cleanup: %w", err)
	}
	return deleted, nil
}
