package database

import (
	"context"
	"time"

	"honeypress/internal/domain"

	"gorm.io/gorm/clause"
)

// UpsertWhitelistEntry stores ipOrCIDR as active. An existing entry, active or
// not, is reactivated and its description replaced.
func UpsertWhitelistEntry(ctx context.Context, ipOrCIDR, description string) (domain.WhitelistEntry, error) {
	db, err := session(ctx)
	if err != nil {
		return domain.WhitelistEntry{}, err
	}

	entry := domain.WhitelistEntry{
		IPOrCIDR:    ipOrCIDR,
		Description: description,
		AddedAt:     time.Now().UTC(),
		IsActive:    true,
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip_or_cidr"}},
		DoUpdates: clause.Assignments(map[string]any{
			"description": description,
			"is_active":   true,
		}),
	}).Create(&entry).Error
	if err != nil {
		return domain.WhitelistEntry{}, err
	}

	var stored domain.WhitelistEntry
	if err := db.Where("ip_or_cidr = ?", ipOrCIDR).First(&stored).Error; err != nil {
		return domain.WhitelistEntry{}, err
	}
	return stored, nil
}

// DeactivateWhitelistEntry flags an entry inactive. It reports false when no
// active entry matched.
func DeactivateWhitelistEntry(ctx context.Context, ipOrCIDR string) (bool, error) {
	db, err := session(ctx)
	if err != nil {
		return false, err
	}

	res := db.Model(&domain.WhitelistEntry{}).
		Where("ip_or_cidr = ? AND is_active = ?", ipOrCIDR, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListActiveWhitelistEntries returns active entries ordered by insertion.
func ListActiveWhitelistEntries(ctx context.Context) ([]domain.WhitelistEntry, error) {
	db, err := session(ctx)
	if err != nil {
		return nil, err
	}

	var entries []domain.WhitelistEntry
	err = db.Where("is_active = ?", true).Order("id ASC").Find(&entries).Error
	return entries, err
}
