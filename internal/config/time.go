package config

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultQueueInterval            = time.Minute
	defaultCleanupInterval          = 6 * time.Hour
	defaultWhitelistRefreshInterval = time.Minute
)

// intervalSetting is a duration derived from a Timer whose changes are pushed
// to every registered listener. Slow listeners miss intermediate values.
type intervalSetting struct {
	value     atomic.Value
	fallback  time.Duration
	mu        sync.Mutex
	listeners []chan time.Duration
}

func newIntervalSetting(fallback time.Duration) *intervalSetting {
	s := &intervalSetting{fallback: fallback}
	s.value.Store(fallback)
	return s
}

func (s *intervalSetting) get() time.Duration {
	return s.value.Load().(time.Duration)
}

func (s *intervalSetting) set(interval time.Duration) {
	if interval <= 0 {
		interval = s.fallback
	}
	if s.get() == interval {
		return
	}
	s.value.Store(interval)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- interval:
		default:
		}
	}
}

func (s *intervalSetting) updates() <-chan time.Duration {
	ch := make(chan time.Duration, 1)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()

	ch <- s.get()
	return ch
}

func (s *intervalSetting) fromTimer(timer Timer) {
	if timer.IsZero() {
		s.set(s.fallback)
		return
	}
	s.set(CalculateBetweenTime(timer))
}

var (
	queueInterval            = newIntervalSetting(defaultQueueInterval)
	cleanupInterval          = newIntervalSetting(defaultCleanupInterval)
	whitelistRefreshInterval = newIntervalSetting(defaultWhitelistRefreshInterval)
)

func SetBetweenTime() {
	cfg := GetConfig()
	queueInterval.fromTimer(cfg.Reporting.QueueTimer)
	cleanupInterval.fromTimer(cfg.Retention.CleanupTimer)
	whitelistRefreshInterval.fromTimer(cfg.Whitelist.RefreshTimer)
}

// CalculateBetweenTime converts a Timer to a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := calculateMilliseconds(timer)

	minInterval := uint64(1000)
	if intervalMs < minInterval {
		intervalMs = minInterval
	}

	return time.Duration(intervalMs) * time.Millisecond
}

func calculateMilliseconds(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

func GetQueueInterval() time.Duration {
	return queueInterval.get()
}

// QueueIntervalUpdates yields the current report queue interval and every later change.
func QueueIntervalUpdates() <-chan time.Duration {
	return queueInterval.updates()
}

func GetCleanupInterval() time.Duration {
	return cleanupInterval.get()
}

func CleanupIntervalUpdates() <-chan time.Duration {
	return cleanupInterval.updates()
}

func GetWhitelistRefreshInterval() time.Duration {
	return whitelistRefreshInterval.get()
}
