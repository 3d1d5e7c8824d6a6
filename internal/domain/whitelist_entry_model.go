package domain

import "time"

// WhitelistEntry exempts an address or range from detection and reporting.
// Entries are deactivated rather than deleted, so IPOrCIDR stays unique.
type WhitelistEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// IPOrCIDR holds a normalized address (192.0.2.1) or network (192.0.2.0/24).
	IPOrCIDR    string    `gorm:"column:ip_or_cidr;size:64;uniqueIndex;not null" json:"ip_or_cidr"`
	Description string    `gorm:"size:512;not null;default:''" json:"description"`
	AddedAt     time.Time `gorm:"not null" json:"added_at"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
}

func (WhitelistEntry) TableName() string {
	return "whitelist"
}
