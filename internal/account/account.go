// Package account implements the onboarding state machine: self
// registration on first contact, admin-created pending accounts with a
// one-time passcode, and passcode redemption that binds a chat identity.
package account

import (
	"errors"
	"strings"

	"github.com/hexfoundry/herald/internal/fault"
	"github.com/hexfoundry/herald/internal/models"
	"gorm.io/gorm"
)

// ErrCodeInvalid is returned by Redeem for any code that does not match
// a redeemable pending account. The message is deliberately uniform: it
// must not reveal whether the code ever existed or was already used.
var ErrCodeInvalid = errors.New("account: passcode invalid or already used")

// Profile carries the mutable fields a chat platform reports about a
// user. Empty fields never overwrite stored values.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
}

// RegisterSelf creates or refreshes the account bound to channelID and
// forces it active. Idempotent: repeated calls for the same identity
// update profile fields in place and never create a second row.
func RegisterSelf(gdb *gorm.DB, channelID string, p Profile) (*models.Account, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fault.Validationf("channel identity is required")
	}

	var acct models.Account
	err := gdb.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("channel_id = ?", channelID).
			Limit(1).
			Find(&acct)
		if res.Error != nil {
			return fault.Database("look up account", res.Error)
		}

		if res.RowsAffected == 0 {
			acct = models.Account{
				ChannelID: &channelID,
				FirstName: p.FirstName,
				LastName:  p.LastName,
				Username:  p.Username,
				IsActive:  true,
			}
			err := tx.Create(&acct).Error
			if err == nil {
				return nil
			}
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				return fault.Database("create account", err)
			}
			// Lost a race with a concurrent first contact for the same
			// chat. Load the winner's row and fall through to the
			// refresh path to stay idempotent.
			res = tx.Where("channel_id = ?", channelID).Limit(1).Find(&acct)
			if res.Error != nil {
				return fault.Database("look up account", res.Error)
			}
			if res.RowsAffected == 0 {
				return fault.Database("create account", err)
			}
		}

		updates := map[string]interface{}{"is_active": true}
		applyProfile(updates, p)
		if err := tx.Model(&models.Account{}).Where("id = ?", acct.ID).
			Updates(updates).Error; err != nil {
			return fault.Database("update account", err)
		}
		mergeProfile(&acct, p)
		acct.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// CreatePendingOpts holds parameters for an admin-created account.
type CreatePendingOpts struct {
	FirstName string
	LastName  string
	Phone     string
	IsAdmin   bool
}

// CreatePending creates an inactive account with a freshly generated
// passcode and no chat binding. The plaintext code is returned exactly
// once; handing it to the intended user is the caller's job.
func CreatePending(gdb *gorm.DB, opts CreatePendingOpts) (*models.Account, string, error) {
	firstName := strings.TrimSpace(opts.FirstName)
	phone := strings.TrimSpace(opts.Phone)
	if firstName == "" {
		return nil, "", fault.Validationf("first name is required")
	}
	if phone == "" {
		return nil, "", fault.Validationf("phone number is required")
	}

	var n int64
	if err := gdb.Model(&models.Account{}).Where("phone = ?", phone).
		Count(&n).Error; err != nil {
		return nil, "", fault.Database("check phone", err)
	}
	if n > 0 {
		return nil, "", fault.Conflictf("phone number %s already belongs to an account", phone)
	}

	code, err := GeneratePasscode()
	if err != nil {
		return nil, "", err
	}

	acct := models.Account{
		Phone:     &phone,
		FirstName: firstName,
		LastName:  strings.TrimSpace(opts.LastName),
		IsAdmin:   opts.IsAdmin,
		IsActive:  false,
		Passcode:  &code,
	}
	if err := gdb.Create(&acct).Error; err != nil {
		// Lost a race with a concurrent create on the same phone.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", fault.Conflictf("phone number %s already belongs to an account", phone)
		}
		return nil, "", fault.Database("create pending account", err)
	}
	return &acct, code, nil
}

// Redeem binds channelID to the pending account whose passcode matches
// code and activates it. The match predicate includes is_active = false,
// so a code can never be redeemed twice even though it is not cleared.
// The find-plus-update runs in one transaction and the update re-checks
// the full predicate, so of two concurrent redemptions exactly one sees
// RowsAffected = 1; the other gets ErrCodeInvalid. No SELECT FOR UPDATE
// is used because the SQLite backend has no row locks; the conditional
// update alone carries the guarantee.
func Redeem(gdb *gorm.DB, channelID, code string, p Profile) (*models.Account, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, fault.Validationf("channel identity is required")
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCodeInvalid
	}

	var acct models.Account
	err := gdb.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("passcode = ? AND channel_id IS NULL AND is_active = ?", code, false).
			Order("id ASC").
			Limit(1).
			Find(&acct)
		if res.Error != nil {
			return fault.Database("look up passcode", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCodeInvalid
		}

		updates := map[string]interface{}{
			"channel_id": channelID,
			"is_active":  true,
		}
		applyProfile(updates, p)

		// Re-assert the redeemable predicate so only one concurrent
		// redemption can win.
		upd := tx.Model(&models.Account{}).
			Where("id = ? AND channel_id IS NULL AND is_active = ?", acct.ID, false).
			Updates(updates)
		if upd.Error != nil {
			if errors.Is(upd.Error, gorm.ErrDuplicatedKey) {
				return fault.Conflictf("this chat is already linked to another account")
			}
			return fault.Database("redeem passcode", upd.Error)
		}
		if upd.RowsAffected == 0 {
			return ErrCodeInvalid
		}

		acct.ChannelID = &channelID
		acct.IsActive = true
		mergeProfile(&acct, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// Promote grants admin rights to the account bound to channelID.
func Promote(gdb *gorm.DB, channelID string) error {
	return setAdmin(gdb, channelID, true)
}

// Demote revokes admin rights from the account bound to channelID.
func Demote(gdb *gorm.DB, channelID string) error {
	return setAdmin(gdb, channelID, false)
}

func setAdmin(gdb *gorm.DB, channelID string, isAdmin bool) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fault.Validationf("channel identity is required")
	}
	res := gdb.Model(&models.Account{}).Where("channel_id = ?", channelID).
		Update("is_admin", isAdmin)
	if res.Error != nil {
		return fault.Database("update admin flag", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.NotFoundf("no account is bound to chat %s", channelID)
	}
	return nil
}

// ListPending returns admin-created accounts still waiting for
// redemption, newest first.
func ListPending(gdb *gorm.DB) ([]models.Account, error) {
	var accts []models.Account
	if err := gdb.Where("channel_id IS NULL AND is_active = ? AND passcode IS NOT NULL", false).
		Order("created_at DESC, id DESC").
		Find(&accts).Error; err != nil {
		return nil, fault.Database("list pending accounts", err)
	}
	return accts, nil
}

// DeletePending removes a pending account. Active accounts have no
// deletion path and are reported as not found.
func DeletePending(gdb *gorm.DB, id uint) error {
	res := gdb.Where("id = ? AND channel_id IS NULL AND is_active = ?", id, false).
		Delete(&models.Account{})
	if res.Error != nil {
		return fault.Database("delete pending account", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.NotFoundf("no pending account with id %d", id)
	}
	return nil
}

// ByChannel returns the account bound to channelID.
func ByChannel(gdb *gorm.DB, channelID string) (*models.Account, error) {
	var acct models.Account
	res := gdb.Where("channel_id = ?", channelID).Limit(1).Find(&acct)
	if res.Error != nil {
		return nil, fault.Database("look up account", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fault.NotFoundf("no account is bound to chat %s", channelID)
	}
	return &acct, nil
}

// ByPhone returns the account with the given phone number.
func ByPhone(gdb *gorm.DB, phone string) (*models.Account, error) {
	var acct models.Account
	res := gdb.Where("phone = ?", strings.TrimSpace(phone)).Limit(1).Find(&acct)
	if res.Error != nil {
		return nil, fault.Database("look up account", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fault.NotFoundf("no account with phone %s", phone)
	}
	return &acct, nil
}

// applyProfile adds non-empty profile fields to a column update map.
func applyProfile(updates map[string]interface{}, p Profile) {
	if v := strings.TrimSpace(p.FirstName); v != "" {
		updates["first_name"] = v
	}
	if v := strings.TrimSpace(p.LastName); v != "" {
		updates["last_name"] = v
	}
	if v := strings.TrimSpace(p.Username); v != "" {
		updates["username"] = v
	}
}

// mergeProfile mirrors applyProfile onto an in-memory struct.
func mergeProfile(acct *models.Account, p Profile) {
	if v := strings.TrimSpace(p.FirstName); v != "" {
		acct.FirstName = v
	}
	if v := strings.TrimSpace(p.LastName); v != "" {
		acct.LastName = v
	}
	if v := strings.TrimSpace(p.Username); v != "" {
		acct.Username = v
	}
}
