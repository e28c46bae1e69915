package message

import (
	"fmt"
	"time"

	"github.com/hexfoundry/herald/internal/fault"
	"github.com/hexfoundry/herald/internal/models"
	"gorm.io/gorm"
)

// Stats summarizes the message table for operators. Every field is
// computed by query at call time; nothing is cached.
type Stats struct {
	Total           int64 `json:"total"`
	Sent            int64 `json:"sent"`
	Pending         int64 `json:"pending"` // unsent, no recorded failure
	Failed          int64 `json:"failed"`
	CreatedToday    int64 `json:"created_today"`
	CreatedThisWeek int64 `json:"created_this_week"`
}

// ComputeStats gathers Stats. The "today" and "this week" boundaries are
// midnight and the preceding Monday midnight in loc, so the numbers line
// up with what operators see on their own clock.
func ComputeStats(gdb *gorm.DB, now time.Time, loc *time.Location) (Stats, error) {
	if loc == nil {
		loc = time.Local
	}
	var s Stats

	count := func(dst *int64, query string, args ...interface{}) error {
		q := gdb.Model(&models.BroadcastMessage{})
		if query != "" {
			q = q.Where(query, args...)
		}
		return q.Count(dst).Error
	}

	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday counts as the end of the week, not the start
	}
	weekStart := dayStart.AddDate(0, 0, -(weekday - 1))

	steps := []struct {
		dst   *int64
		query string
		args  []interface{}
	}{
		{&s.Total, "", nil},
		{&s.Sent, "sent = ?", []interface{}{true}},
		{&s.Pending, "sent = ? AND error_message IS NULL", []interface{}{false}},
		{&s.Failed, "sent = ? AND error_message IS NOT NULL", []interface{}{false}},
		{&s.CreatedToday, "created_at >= ?", []interface{}{dayStart.UTC()}},
		{&s.CreatedThisWeek, "created_at >= ?", []interface{}{weekStart.UTC()}},
	}
	for _, st := range steps {
		if err := count(st.dst, st.query, st.args...); err != nil {
			return Stats{}, fault.Database("compute stats", err)
		}
	}
	return s, nil
}

// Summary renders Stats as a short operator-facing block.
func (s Stats) Summary() string {
	return fmt.Sprintf(
		"Messages: %d total, %d sent, %d pending, %d failed\nCreated: %d today, %d this week",
		s.Total, s.Sent, s.Pending, s.Failed, s.CreatedToday, s.CreatedThisWeek,
	)
}
