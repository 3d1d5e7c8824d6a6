package database

import (
	"context"
	"time"

	"honeypress/internal/domain"

	"gorm.io/gorm"
)

// IPEventCount is one row of the most-active-addresses ranking.
type IPEventCount struct {
	IP    string `json:"ip"`
	Count int64  `json:"count"`
}

// CategoryComboCount is one row of the category-combination ranking.
type CategoryComboCount struct {
	Categories domain.CategoryList `json:"categories"`
	Count      int64               `json:"count"`
}

func session(ctx context.Context) (*gorm.DB, error) {
	if DB == nil {
		return nil, ErrNotInitialised
	}
	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}
	return db, nil
}

// InsertEvent persists a new event; ID is filled in on success.
func InsertEvent(ctx context.Context, event *domain.Event) error {
	db, err := session(ctx)
	if err != nil {
		return err
	}
	return db.Create(event).Error
}

// CountEventsByIPSince counts rows for ip whose timestamp is at or after since.
func CountEventsByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	db, err := session(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.Event{}).
		Where("ip = ? AND timestamp >= ?", ip, since.UTC()).
		Count(&count).Error
	return count, err
}

// ListUnsentEvents returns up to limit unsent events, oldest first.
func ListUnsentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	db, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var events []domain.Event
	err = db.Where("send_state = ?", domain.SendStateUnsent).
		Order("timestamp ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// MarkEventSent moves an unsent event to Sent. It reports false when the event
// was not in the Unsent state.
func MarkEventSent(ctx context.Context, id uint64) (bool, error) {
	return transitionEvent(ctx, id, domain.SendStateSent)
}

// MarkEventExempt moves an unsent event to ExemptFromSending.
func MarkEventExempt(ctx context.Context, id uint64) (bool, error) {
	return transitionEvent(ctx, id, domain.SendStateExempt)
}

func transitionEvent(ctx context.Context, id uint64, to domain.SendState) (bool, error) {
	db, err := session(ctx)
	if err != nil {
		return false, err
	}

	res := db.Model(&domain.Event{}).
		Where("id = ? AND send_state = ?", id, domain.SendStateUnsent).
		Update("send_state", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CountUnsentEvents returns the report queue size.
func CountUnsentEvents(ctx context.Context) (int64, error) {
	db, err := session(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.Event{}).Where("send_state = ?", domain.SendStateUnsent).Count(&count).Error
	return count, err
}

// DeleteEventsBefore removes events older than cutoff regardless of send state.
func DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db, err := session(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Where("timestamp < ?", cutoff.UTC()).Delete(&domain.Event{})
	return res.RowsAffected, res.Error
}

// CountEvents returns the number of events at or after since; a zero since counts all rows.
func CountEvents(ctx context.Context, since time.Time) (int64, error) {
	db, err := session(ctx)
	if err != nil {
		return 0, err
	}

	query := db.Model(&domain.Event{})
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since.UTC())
	}

	var count int64
	err = query.Count(&count).Error
	return count, err
}

func CountDistinctEventIPs(ctx context.Context) (int64, error) {
	db, err := session(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	err = db.Model(&domain.Event{}).Distinct("ip").Count(&count).Error
	return count, err
}

// TopEventIPs ranks addresses by event count, ties broken by address.
func TopEventIPs(ctx context.Context, limit int) ([]IPEventCount, error) {
	db, err := session(ctx)
	if err != nil {
		return nil, err
	}

	var rows []IPEventCount
	err = db.Model(&domain.Event{}).
		Select("ip, COUNT(*) AS count").
		Group("ip").
		Order("count DESC").
		Order("ip ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// TopCategoryCombos ranks the stored category sets by event count.
func TopCategoryCombos(ctx context.Context, limit int) ([]CategoryComboCount, error) {
	db, err := session(ctx)
	if err != nil {
		return nil, err
	}

	var rows []CategoryComboCount
	err = db.Model(&domain.Event{}).
		Select("categories, COUNT(*) AS count").
		Group("categories").
		Order("count DESC").
		Order("categories ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
