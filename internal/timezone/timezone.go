// Package timezone converts between the operator-facing display timezone
// and the canonical UTC storage instant, and validates scheduling input.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

// Info describes "now" in both display and canonical form.
type Info struct {
	Local  string // wall clock in the display timezone
	UTC    string // wall clock in UTC
	ISO    string // RFC 3339 instant
	Zone   string // resolved timezone name
	Offset string // signed UTC offset, e.g. "UTC+02:00"
}

const wallClockFormat = "2006-01-02 15:04:05"

// NowInfo renders the given instant in the display timezone loc.
func NowInfo(loc *time.Location, now time.Time) Info {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	_, offsetSec := local.Zone()

	sign := "+"
	if offsetSec < 0 {
		sign = "-"
		offsetSec = -offsetSec
	}
	return Info{
		Local:  local.Format(wallClockFormat),
		UTC:    now.UTC().Format(wallClockFormat),
		ISO:    now.UTC().Format(time.RFC3339),
		Zone:   loc.String(),
		Offset: fmt.Sprintf("UTC%s%02d:%02d", sign, offsetSec/3600, (offsetSec%3600)/60),
	}
}

// localInputFormats covers what datetime-local pickers and operators type.
var localInputFormats = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseLocal parses a local wall-clock string in loc and returns the
// canonical UTC instant. The second return is false on unparseable input.
func ParseLocal(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localInputFormats {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Scheduling policy thresholds. These are operator-facing business rules;
// changing them changes what the dashboard and bot accept.
const (
	minLead     = 2 * time.Minute
	soonWarning = 5 * time.Minute
	farWarning  = 30 * 24 * time.Hour
	maxLead     = 365 * 24 * time.Hour
)

// Validation is the outcome of checking a scheduling request.
type Validation struct {
	OK        bool
	Immediate bool   // empty input: send on the next poll
	Reason    string // set when OK is false
	Warning   string // soft advisory, OK stays true
	Until     string // humanized time until delivery, valid non-immediate only
	At        time.Time
}

// ValidateScheduledTime applies the scheduling business rules to a local
// wall-clock input string. Empty input is valid and means "send now".
func ValidateScheduledTime(s string, loc *time.Location, now time.Time) Validation {
	if strings.TrimSpace(s) == "" {
		return Validation{OK: true, Immediate: true}
	}

	t, ok := ParseLocal(s, loc)
	if !ok {
		return Validation{Reason: "unrecognized date/time format"}
	}

	lead := t.Sub(now)
	switch {
	case lead <= 0:
		return Validation{Reason: "scheduled time must be in the future", At: t}
	case lead < minLead:
		return Validation{Reason: "scheduled time must be at least 2 minutes out", At: t}
	case lead > maxLead:
		return Validation{Reason: "scheduled time is too far in the future", At: t}
	}

	v := Validation{OK: true, At: t, Until: FormatDuration(lead)}
	switch {
	case lead < soonWarning:
		v.Warning = "scheduled very soon"
	case lead > farWarning:
		v.Warning = "scheduled far out"
	}
	return v
}

// FormatDuration renders a duration the way operators read it:
// "2 hours, 15 minutes". Seconds are dropped; sub-minute durations
// become "less than a minute".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "less than a minute"
	}

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 && days == 0 {
		// Minutes are noise once the horizon is measured in days.
		parts = append(parts, plural(minutes, "minute"))
	}
	if len(parts) == 0 {
		return "less than a minute"
	}
	return strings.Join(parts, ", ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
