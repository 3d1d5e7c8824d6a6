package eventlog

import (
	"context"
	"fmt"
	"time"

	"honeypress/internal/database"
)

const statsTopN = 10

type Stats struct {
	Total         int64                         `json:"total"`
	Today         int64                         `json:"today"`
	UniqueIPs     int64                         `json:"unique_ips"`
	Pending       int64                         `json:"pending"`
	TopIPs        []database.IPEventCount       `json:"top_ips"`
	TopCategories []database.CategoryComboCount `json:"top_categories"`
}

// Stats aggregates the event log. "Today" starts at midnight UTC.
func (l *Logger) Stats(ctx context.Context) (Stats, error) {
	var (
		stats Stats
		err   error
	)

	now := l.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if stats.Total, err = database.CountEvents(ctx, time.Time{}); err != nil {
		return Stats{}, fmt.Errorf("eventlog: count events: %w", err)
	}
	if stats.Today, err = database.CountEvents(ctx, midnight); err != nil {
		return Stats{}, fmt.Errorf("eventlog: count today's events: %w", err)
	}
	if stats.UniqueIPs, err = database.CountDistinctEventIPs(ctx); err != nil {
		return Stats{}, fmt.Errorf("eventlog: count unique ips: %w", err)
	}
	if stats.Pending, err = database.CountUnsentEvents(ctx); err != nil {
		return Stats{}, fmt.Errorf("eventlog: count pending events: %w", err)
	}
	if stats.TopIPs, err = database.TopEventIPs(ctx, statsTopN); err != nil {
		return Stats{}, fmt.Errorf("eventlog: rank ips: %w", err)
	}
	if stats.TopCategories, err = database.TopCategoryCombos(ctx, statsTopN); err != nil {
		return Stats{}, fmt.Errorf("eventlog: rank categories: %w", err)
	}

	return stats, nil
}
