package models

import "time"

// BroadcastMessage is a scheduled (or immediate) outbound message.
// The delivery engine owns the Sent and ErrorMessage transitions; every
// other field is written by the authoring surfaces.
type BroadcastMessage struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	Title string `gorm:"size:256"`
	Body  string `gorm:"type:text;not null"`

	// ScheduledFor is the UTC delivery instant. nil means the message
	// is due immediately.
	ScheduledFor *time.Time `gorm:"index"`

	Sent bool `gorm:"default:false;index"`

	// ErrorMessage holds the classified description of the last failed
	// delivery attempt. nil means no attempt has failed.
	ErrorMessage *string `gorm:"size:512"`

	SenderID uint     `gorm:"not null;index"`
	Sender   *Account `gorm:"foreignKey:SenderID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Failed reports whether the last delivery attempt failed.
func (m *BroadcastMessage) Failed() bool {
	return !m.Sent && m.ErrorMessage != nil
}

// Due reports whether the message is eligible for delivery at now.
// Never-attempted and previously-failed messages are due under the same
// predicate; the poll loop does not distinguish them.
func (m *BroadcastMessage) Due(now time.Time) bool {
	if m.Sent {
		return false
	}
	return m.ScheduledFor == nil || !m.ScheduledFor.After(now)
}
