package models

import "time"

// Account is a bot user, either self-registered through Telegram or
// pre-created by an administrator with a one-time passcode.
type Account struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	// ChannelID is the Telegram chat identity as a decimal string.
	// nil means the account is not yet bound to a chat. NULLs are
	// distinct under the unique index, so any number of pending
	// accounts can coexist.
	ChannelID *string `gorm:"size:32;uniqueIndex"`

	// Phone is set for admin-created accounts and used for pending
	// lookup. nil for self-registered accounts; once set it is
	// globally unique.
	Phone *string `gorm:"size:32;uniqueIndex"`

	FirstName string `gorm:"size:128;not null"`
	LastName  string `gorm:"size:128"`
	Username  string `gorm:"size:128"`

	IsAdmin  bool `gorm:"default:false"`
	IsActive bool `gorm:"default:false;index"`

	// Passcode is the single-use activation code for admin-created
	// accounts. It may remain set after redemption; redeemability is
	// gated on IsActive, not on clearing the code.
	Passcode *string `gorm:"size:8"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Channel returns the bound chat identity, or "" for unbound accounts.
func (a *Account) Channel() string {
	if a.ChannelID == nil {
		return ""
	}
	return *a.ChannelID
}

// PhoneNumber returns the phone number, or "" when none is set.
func (a *Account) PhoneNumber() string {
	if a.Phone == nil {
		return ""
	}
	return *a.Phone
}

// Pending reports whether the account was admin-created and is still
// waiting for passcode redemption.
func (a *Account) Pending() bool {
	return !a.IsActive && a.ChannelID == nil && a.Passcode != nil
}

// DisplayName returns the best human-readable name for the account.
func (a *Account) DisplayName() string {
	if a.LastName != "" {
		return a.FirstName + " " + a.LastName
	}
	return a.FirstName
}
