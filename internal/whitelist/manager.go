package whitelist

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"honeypress/internal/database"
	"honeypress/internal/domain"
	"honeypress/internal/network"
)

const (
	reloadKey              = "whitelist"
	DefaultRefreshInterval = time.Minute
)

// Manager answers whitelist lookups from an in-memory snapshot of the active
// entries and keeps that snapshot in step with the database.
type Manager struct {
	ranges atomic.Value // []string
	reload singleflight.Group
}

func NewManager() *Manager {
	m := &Manager{}
	m.ranges.Store([]string{})
	return m
}

func (m *Manager) snapshot() []string {
	ranges, _ := m.ranges.Load().([]string)
	return ranges
}

// Load replaces the snapshot with the active entries. Concurrent calls share one query.
func (m *Manager) Load(ctx context.Context) error {
	_, err, _ := m.reload.Do(reloadKey, func() (any, error) {
		entries, err := database.ListActiveWhitelistEntries(ctx)
		if err != nil {
			return nil, err
		}
		ranges := make([]string, 0, len(entries))
		for _, entry := range entries {
			ranges = append(ranges, entry.IPOrCIDR)
		}
		m.ranges.Store(ranges)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("whitelist: load: %w", err)
	}
	return nil
}

// IsWhitelisted reports whether ip is covered by an active entry.
func (m *Manager) IsWhitelisted(ip string) bool {
	return network.MatchesAny(ip, m.snapshot())
}

// Len returns the number of active entries in the snapshot.
func (m *Manager) Len() int {
	return len(m.snapshot())
}

// Add validates and stores ipOrCIDR, reactivating it if it was removed before.
func (m *Manager) Add(ctx context.Context, ipOrCIDR, description string) (domain.WhitelistEntry, error) {
	normalized, err := network.NormalizeRange(ipOrCIDR)
	if err != nil {
		return domain.WhitelistEntry{}, err
	}

	entry, err := database.UpsertWhitelistEntry(ctx, normalized, description)
	if err != nil {
		return domain.WhitelistEntry{}, fmt.Errorf("whitelist: add %s: %w", normalized, err)
	}
	log.Info("Whitelist entry added", "entry", normalized)

	return entry, m.Load(ctx)
}

// Remove deactivates ipOrCIDR. It reports false when no active entry matched.
func (m *Manager) Remove(ctx context.Context, ipOrCIDR string) (bool, error) {
	normalized, err := network.NormalizeRange(ipOrCIDR)
	if err != nil {
		return false, err
	}

	removed, err := database.DeactivateWhitelistEntry(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("whitelist: remove %s: %w", normalized, err)
	}
	if removed {
		log.Info("Whitelist entry removed", "entry", normalized)
	}

	return removed, m.Load(ctx)
}

// List returns the active entries straight from the database.
func (m *Manager) List(ctx context.Context) ([]domain.WhitelistEntry, error) {
	return database.ListActiveWhitelistEntries(ctx)
}

// StartRefreshRoutine reloads the snapshot every interval so changes made by
// other instances are picked up.
func (m *Manager) StartRefreshRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Load(ctx); err != nil {
					log.Error("Whitelist refresh failed", "error", err)
				}
			}
		}
	}()
}
