package domain

import "time"

// SendState tracks delivery of an event to the reporting API.
// Transitions are one-way: Unsent -> Sent or Unsent -> ExemptFromSending.
type SendState int

const (
	SendStateUnsent SendState = iota
	SendStateSent
	SendStateExempt
)

func (s SendState) String() string {
	switch s {
	case SendStateUnsent:
		return "unsent"
	case SendStateSent:
		return "sent"
	case SendStateExempt:
		return "exempt"
	default:
		return "unknown"
	}
}

// Event is a persisted, merged detection for one request.
type Event struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IP            string       `gorm:"size:45;not null;index:idx_events_ip"`
	Categories    CategoryList `gorm:"type:text;not null"`
	Comment       string       `gorm:"type:text;not null;default:''"`
	UserAgent     string       `gorm:"type:text;not null;default:''"`
	RequestURI    string       `gorm:"type:text;not null;default:''"`
	RequestMethod string       `gorm:"size:16;not null;default:''"`

	// PostData holds a truncated snapshot of the request body, nil when there was none.
	PostData *string `gorm:"type:text"`

	Timestamp time.Time `gorm:"not null;index:idx_events_timestamp"`
	SendState SendState `gorm:"not null;default:0;index:idx_events_send_state"`
}

func (Event) TableName() string {
	return "events"
}
