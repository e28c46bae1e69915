// Package message owns BroadcastMessage authoring, the due-message
// query, retry, and operator statistics. All state lives in the store;
// nothing here caches rows across calls.
package message

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hexfoundry/herald/internal/fault"
	"github.com/hexfoundry/herald/internal/models"
	"gorm.io/gorm"
)

// DefaultBatchLimit caps how many due messages one poll examines.
const DefaultBatchLimit = 100

// errorMessageMax bounds what we persist from a transport failure.
const errorMessageMax = 500

// CreateOpts holds parameters for authoring a message.
type CreateOpts struct {
	Title        string
	Body         string
	SenderID     uint
	ScheduledFor *time.Time // UTC; nil means immediately due
	MaxLength    int        // body length cap; 0 means no client-side cap
}

// Create stores a new broadcast message.
func Create(gdb *gorm.DB, opts CreateOpts) (*models.BroadcastMessage, error) {
	body := strings.TrimSpace(opts.Body)
	if body == "" {
		return nil, fault.Validationf("message body is required")
	}
	if opts.MaxLength > 0 && utf8.RuneCountInString(body) > opts.MaxLength {
		return nil, fault.Validationf("message body exceeds %d characters", opts.MaxLength)
	}
	if opts.SenderID == 0 {
		return nil, fault.Validationf("sender is required")
	}

	var scheduled *time.Time
	if opts.ScheduledFor != nil {
		utc := opts.ScheduledFor.UTC()
		scheduled = &utc
	}

	msg := models.BroadcastMessage{
		Title:        strings.TrimSpace(opts.Title),
		Body:         body,
		SenderID:     opts.SenderID,
		ScheduledFor: scheduled,
	}
	if err := gdb.Create(&msg).Error; err != nil {
		return nil, fault.Database("create message", err)
	}
	return &msg, nil
}

// Due returns unsent messages whose scheduled instant has passed (or was
// never set), oldest schedule first. Failed messages stay due: the poll
// loop does not distinguish "never attempted" from "failed last time".
func Due(gdb *gorm.DB, now time.Time, limit int) ([]models.BroadcastMessage, error) {
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	var msgs []models.BroadcastMessage
	if err := gdb.Where("sent = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)", false, now.UTC()).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fault.Database("query due messages", err)
	}
	return msgs, nil
}

// MarkSent records a successful delivery: sent flips true and any prior
// failure description is cleared. Idempotent.
func MarkSent(gdb *gorm.DB, id uint) error {
	res := gdb.Model(&models.BroadcastMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{"sent": true, "error_message": nil})
	if res.Error != nil {
		return fault.Database("mark sent", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.NotFoundf("no message with id %d", id)
	}
	return nil
}

// MarkFailed records a failed delivery attempt. The message stays unsent
// and therefore due; reason is persisted (truncated) for the operator.
func MarkFailed(gdb *gorm.DB, id uint, reason string) error {
	reason = truncate(strings.TrimSpace(reason), errorMessageMax)
	if reason == "" {
		reason = "delivery failed"
	}
	res := gdb.Model(&models.BroadcastMessage{}).Where("id = ?", id).
		Updates(map[string]interface{}{"sent": false, "error_message": reason})
	if res.Error != nil {
		return fault.Database("mark failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.NotFoundf("no message with id %d", id)
	}
	return nil
}

// Retry makes an unsent message due again: the failure description is
// cleared and scheduled_for resets to now. Delivery itself happens on
// the next poll tick, bounding retry latency to one poll interval.
func Retry(gdb *gorm.DB, id uint, now time.Time) error {
	res := gdb.Model(&models.BroadcastMessage{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]interface{}{"error_message": nil, "scheduled_for": now.UTC()})
	if res.Error != nil {
		return fault.Database("retry message", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.NotFoundf("no unsent message with id %d", id)
	}
	return nil
}

// RetryAll retries every failed message and returns how many were reset.
func RetryAll(gdb *gorm.DB, now time.Time) (int, error) {
	res := gdb.Model(&models.BroadcastMessage{}).
		Where("sent = ? AND error_message IS NOT NULL", false).
		Updates(map[string]interface{}{"error_message": nil, "scheduled_for": now.UTC()})
	if res.Error != nil {
		return 0, fault.Database("retry all", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ListFilters narrows List output.
type ListFilters struct {
	// Status is "", "sent", "failed", or "pending" (unsent, no error).
	Status string
	Limit  int
}

// List returns messages newest first.
func List(gdb *gorm.DB, f ListFilters) ([]models.BroadcastMessage, error) {
	q := gdb.Model(&models.BroadcastMessage{})
	switch f.Status {
	case "", "all":
	case "sent":
		q = q.Where("sent = ?", true)
	case "failed":
		q = q.Where("sent = ? AND error_message IS NOT NULL", false)
	case "pending":
		q = q.Where("sent = ? AND error_message IS NULL", false)
	default:
		return nil, fault.Validationf("unknown status filter %q", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var msgs []models.BroadcastMessage
	if err := q.Order("created_at DESC, id DESC").Find(&msgs).Error; err != nil {
		return nil, fault.Database("list messages", err)
	}
	return msgs, nil
}

// Get returns one message by id.
func Get(gdb *gorm.DB, id uint) (*models.BroadcastMessage, error) {
	var msg models.BroadcastMessage
	res := gdb.Where("id = ?", id).Limit(1).Find(&msg)
	if res.Error != nil {
		return nil, fault.Database("get message", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fault.NotFoundf("no message with id %d", id)
	}
	return &msg, nil
}

// Delete removes a message.
func Delete(gdb *gorm.DB, id uint) error {
	res := gdb.Delete(&models.BroadcastMessage{}, id)
	if res.Error != nil {
		return fault.Database("delete message", res.Error)
	}
	if res.RowsAffected == 0 {
		return fault.NotFoundf("no message with id %d", id)
	}
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
