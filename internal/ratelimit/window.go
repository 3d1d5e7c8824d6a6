package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultWindow is the span over which per-IP event counts are kept.
const DefaultWindow = time.Minute

// RateWindow keeps recent event timestamps per IP in memory. It is a fast path
// in front of the durable per-IP count and is lost on restart.
type RateWindow struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

type Option func(*RateWindow)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *RateWindow) {
		if now != nil {
			w.now = now
		}
	}
}

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(w *RateWindow) {
		if d > 0 {
			w.window = d
		}
	}
}

func New(opts ...Option) *RateWindow {
	w := &RateWindow{
		window: DefaultWindow,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Count returns how many timestamps for ip fall inside the window.
func (w *RateWindow) Count(ip string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.trimLocked(ip, w.now().Add(-w.window))
	return len(kept)
}

// Record adds a timestamp for ip at the current clock time.
func (w *RateWindow) Record(ip string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	kept := w.trimLocked(ip, now.Add(-w.window))
	w.hits[ip] = append(kept, now)
}

// Prune drops expired timestamps and forgets IPs with none left. It returns the
// number of IPs still tracked.
func (w *RateWindow) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	for ip := range w.hits {
		w.trimLocked(ip, cutoff)
	}
	return len(w.hits)
}

// Len returns the number of IPs currently tracked.
func (w *RateWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

// StartJanitor prunes the window every interval until ctx is cancelled.
func (w *RateWindow) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = w.window
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tracked := w.Prune()
				log.Debug("Rate window pruned", "tracked_ips", tracked)
			}
		}
	}()
}

// trimLocked removes timestamps older than cutoff for ip. Callers hold w.mu.
func (w *RateWindow) trimLocked(ip string, cutoff time.Time) []time.Time {
	stamps := w.hits[ip]
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == len(stamps) {
		delete(w.hits, ip)
		return nil
	}
	if idx > 0 {
		stamps = append(stamps[:0], stamps[idx:]...)
		w.hits[ip] = stamps
	}
	return stamps
}
