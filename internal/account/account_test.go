package account

import (
	"errors"
	"testing"

	"github.com/hexfoundry/herald/internal/fault"
	"github.com/hexfoundry/herald/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.Account{}, &models.BroadcastMessage{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

// --- RegisterSelf tests ---

func TestRegisterSelf_CreatesActiveAccount(t *testing.T) {
	gdb := openTestDB(t)

	acct, err := RegisterSelf(gdb, "12345", Profile{FirstName: "Jane", Username: "jane"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Channel() != "12345" {
		t.Errorf("channel = %q, want %q", acct.Channel(), "12345")
	}
	if !acct.IsActive {
		t.Error("self-registered account should be active")
	}
	if acct.IsAdmin {
		t.Error("self-registered account should not be admin")
	}
	if acct.Passcode != nil {
		t.Error("self-registered account should have no passcode")
	}
}

func TestRegisterSelf_Idempotent(t *testing.T) {
	gdb := openTestDB(t)

	first, err := RegisterSelf(gdb, "12345", Profile{FirstName: "Jane"})
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := RegisterSelf(gdb, "12345", Profile{FirstName: "Janet", Username: "janet"})
	if err != nil {
		t.Fatalf("second register: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("second register created a new row: ids %d and %d", first.ID, second.ID)
	}
	if second.FirstName != "Janet" {
		t.Errorf("first name = %q, want overwritten %q", second.FirstName, "Janet")
	}
	if second.Username != "janet" {
		t.Errorf("username = %q, want %q", second.Username, "janet")
	}
	if !second.IsActive {
		t.Error("account should remain active")
	}

	var n int64
	if err := gdb.Model(&models.Account{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("account rows = %d, want 1", n)
	}
}

func TestRegisterSelf_EmptyFieldsPreserved(t *testing.T) {
	gdb := openTestDB(t)

	if _, err := RegisterSelf(gdb, "5", Profile{FirstName: "Jane", LastName: "Doe"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	acct, err := RegisterSelf(gdb, "5", Profile{})
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if acct.FirstName != "Jane" || acct.LastName != "Doe" {
		t.Errorf("profile = %q %q, want preserved %q %q", acct.FirstName, acct.LastName, "Jane", "Doe")
	}
}

func TestRegisterSelf_BlankChannel(t *testing.T) {
	gdb := openTestDB(t)
	_, err := RegisterSelf(gdb, "  ", Profile{})
	if !fault.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestRegisterSelf_LostCreateRace(t *testing.T) {
	gdb := openTestDB(t)

	// Sneak a row for the same chat in just before the insert runs,
	// reproducing two first contacts racing past the lookup together.
	seeded := false
	err := gdb.Callback().Create().Before("gorm:create").Register("test:race", func(tx *gorm.DB) {
		if seeded {
			return
		}
		seeded = true
		channel := "9001"
		winner := models.Account{ChannelID: &channel, FirstName: "Winner", IsActive: true}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(&winner).Error; err != nil {
			t.Fatalf("seed winner row: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	acct, err := RegisterSelf(gdb, "9001", Profile{FirstName: "Loser", Username: "second"})
	if err != nil {
		t.Fatalf("register after lost race: %v", err)
	}
	if acct.FirstName != "Loser" || acct.Username != "second" {
		t.Errorf("profile = %q %q, want refreshed %q %q", acct.FirstName, acct.Username, "Loser", "second")
	}
	if !acct.IsActive {
		t.Error("account should be active after lost race")
	}

	var n int64
	if err := gdb.Model(&models.Account{}).Where("channel_id = ?", "9001").Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("account rows for chat = %d, want 1", n)
	}
}

// --- CreatePending tests ---

func TestCreatePending_Success(t *testing.T) {
	gdb := openTestDB(t)

	acct, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.IsActive {
		t.Error("pending account must not be active")
	}
	if acct.ChannelID != nil {
		t.Error("pending account must not be bound to a chat")
	}
	if !acct.Pending() {
		t.Error("account should report pending")
	}
	if len(code) != PasscodeLength {
		t.Errorf("passcode length = %d, want %d", len(code), PasscodeLength)
	}
	if acct.Passcode == nil || *acct.Passcode != code {
		t.Error("stored passcode should match the returned code")
	}
}

func TestCreatePending_Validation(t *testing.T) {
	gdb := openTestDB(t)

	_, _, err := CreatePending(gdb, CreatePendingOpts{Phone: "+15550001"})
	if !fault.IsValidation(err) {
		t.Errorf("blank first name: got %v, want validation error", err)
	}
	_, _, err = CreatePending(gdb, CreatePendingOpts{FirstName: "Jane"})
	if !fault.IsValidation(err) {
		t.Errorf("blank phone: got %v, want validation error", err)
	}
}

func TestCreatePending_PhoneConflict(t *testing.T) {
	gdb := openTestDB(t)

	if _, _, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, _, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Janet", Phone: "+15550001"})
	if !fault.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}

	var n int64
	if err := gdb.Model(&models.Account{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("account rows = %d, want 1 (no row created on conflict)", n)
	}
}

func TestCreatePending_PhoneConflictWithActiveAccount(t *testing.T) {
	gdb := openTestDB(t)

	// An active account holds the phone; pending creation must refuse.
	acct, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Redeem(gdb, "77", code, Profile{}); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	_, _, err = CreatePending(gdb, CreatePendingOpts{FirstName: "Other", Phone: *acct.Phone})
	if !fault.IsConflict(err) {
		t.Errorf("expected conflict error, got %v", err)
	}
}

// --- Redeem tests ---

func TestRedeem_BindsAndActivates(t *testing.T) {
	gdb := openTestDB(t)

	_, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	acct, err := Redeem(gdb, "98765", code, Profile{Username: "jane"})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if acct.Channel() != "98765" {
		t.Errorf("channel = %q, want %q", acct.Channel(), "98765")
	}
	if !acct.IsActive {
		t.Error("redeemed account should be active")
	}
	if acct.Username != "jane" {
		t.Errorf("username = %q, want merged %q", acct.Username, "jane")
	}
	if acct.FirstName != "Jane" {
		t.Errorf("first name = %q, want preserved %q", acct.FirstName, "Jane")
	}
}

func TestRedeem_CaseInsensitiveInput(t *testing.T) {
	gdb := openTestDB(t)

	_, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	lower := " " + toLower(code) + " "
	if _, err := Redeem(gdb, "98765", lower, Profile{}); err != nil {
		t.Fatalf("redeem with lowercase input: %v", err)
	}
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestRedeem_SingleUse(t *testing.T) {
	gdb := openTestDB(t)

	_, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := Redeem(gdb, "98765", code, Profile{})
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}

	// Second redemption fails even though the passcode column still
	// holds the code: the predicate requires is_active = false.
	_, err = Redeem(gdb, "11111", code, Profile{})
	if !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("second redeem: got %v, want ErrCodeInvalid", err)
	}

	var stored models.Account
	if err := gdb.First(&stored, first.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Channel() != "98765" {
		t.Errorf("channel after failed second redeem = %q, want %q", stored.Channel(), "98765")
	}
}

func TestRedeem_UnknownCode(t *testing.T) {
	gdb := openTestDB(t)
	_, err := Redeem(gdb, "98765", "NEVEREXI", Profile{})
	if !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("got %v, want ErrCodeInvalid", err)
	}
	_, err = Redeem(gdb, "98765", "", Profile{})
	if !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("empty code: got %v, want ErrCodeInvalid", err)
	}
}

func TestRedeem_EndToEnd(t *testing.T) {
	gdb := openTestDB(t)

	acct, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "Jane", Phone: "+15550001"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.IsActive {
		t.Fatal("account should start inactive")
	}

	redeemed, err := Redeem(gdb, "98765", code, Profile{})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if redeemed.Channel() != "98765" || !redeemed.IsActive {
		t.Errorf("redeemed = channel %q active %v, want bound and active", redeemed.Channel(), redeemed.IsActive)
	}

	if _, err := Redeem(gdb, "11111", code, Profile{}); !errors.Is(err, ErrCodeInvalid) {
		t.Errorf("reuse from another chat: got %v, want ErrCodeInvalid", err)
	}
}

// --- Promote / Demote tests ---

func TestPromoteDemote(t *testing.T) {
	gdb := openTestDB(t)

	if _, err := RegisterSelf(gdb, "12345", Profile{FirstName: "Jane"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := Promote(gdb, "12345"); err != nil {
		t.Fatalf("promote: %v", err)
	}
	acct, err := ByChannel(gdb, "12345")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !acct.IsAdmin {
		t.Error("account should be admin after promote")
	}

	if err := Demote(gdb, "12345"); err != nil {
		t.Fatalf("demote: %v", err)
	}
	acct, err = ByChannel(gdb, "12345")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if acct.IsAdmin {
		t.Error("account should not be admin after demote")
	}
}

func TestPromote_MissingAccount(t *testing.T) {
	gdb := openTestDB(t)
	err := Promote(gdb, "404")
	if !fault.IsNotFound(err) {
		t.Errorf("got %v, want not-found error", err)
	}
}

// --- ListPending / DeletePending tests ---

func TestListPending_NewestFirst(t *testing.T) {
	gdb := openTestDB(t)

	a, _, err := CreatePending(gdb, CreatePendingOpts{FirstName: "A", Phone: "+1"})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, _, err := CreatePending(gdb, CreatePendingOpts{FirstName: "B", Phone: "+2"})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	pending, err := ListPending(gdb)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ID != b.ID || pending[1].ID != a.ID {
		t.Errorf("order = [%d %d], want newest first [%d %d]",
			pending[0].ID, pending[1].ID, b.ID, a.ID)
	}
}

func TestListPending_ExcludesRedeemed(t *testing.T) {
	gdb := openTestDB(t)

	_, code, err := CreatePending(gdb, CreatePendingOpts{FirstName: "A", Phone: "+1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Redeem(gdb, "9", code, Profile{}); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	pending, err := ListPending(gdb)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0 after redemption", len(pending))
	}
}

func TestDeletePending(t *testing.T) {
	gdb := openTestDB(t)

	a, _, err := CreatePending(gdb, CreatePendingOpts{FirstName: "A", Phone: "+1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := DeletePending(gdb, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := DeletePending(gdb, a.ID); !fault.IsNotFound(err) {
		t.Errorf("second delete: got %v, want not-found", err)
	}
}

func TestDeletePending_RefusesActiveAccount(t *testing.T) {
	gdb := openTestDB(t)

	acct, err := RegisterSelf(gdb, "12345", Profile{FirstName: "Jane"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := DeletePending(gdb, acct.ID); !fault.IsNotFound(err) {
		t.Errorf("got %v, want not-found for active account", err)
	}
}
