// Package schedule turns departure descriptions into absolute instants and
// derives expiration deadlines from them.
//
// Nothing in this package returns an error for bad input. A departure that
// cannot be resolved is reported with ok == false and callers treat it as
// unscheduled: ranked last and never expired.
package schedule

import (
	"strings"
	"time"

	// Embeds the IANA database so LoadLocation works in minimal images.
	_ "time/tzdata"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// DateLayout is the zone-naive calendar day format used by DepartureSpec.Date.
const DateLayout = "2006-01-02"

// timeLayouts are tried in order when parsing a wall-clock value.
var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"}

// Resolve combines spec's date and reference time in timeZone.
// Fixed departures use FixedTime; flexible departures use RangeStart.
// ok is false when the date, the time, or the zone is missing or unparsable.
func Resolve(spec domain.DepartureSpec, timeZone string) (at time.Time, ok bool) {
	loc, ok := LoadZone(timeZone)
	if !ok {
		return time.Time{}, false
	}
	day, ok := ParseDate(spec.Date)
	if !ok {
		return time.Time{}, false
	}
	hour, min, sec, ok := parseClock(spec.ReferenceTime())
	if !ok {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, sec, 0, loc), true
}

// LoadZone loads an IANA zone. Empty ids are rejected rather than mapped to UTC.
func LoadZone(timeZone string) (*time.Location, bool) {
	timeZone = strings.TrimSpace(timeZone)
	if timeZone == "" {
		return nil, false
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// ParseDate parses a "2006-01-02" calendar day. The result is midnight UTC and
// carries no zone meaning; only its year, month and day are significant.
func ParseDate(s string) (time.Time, bool) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Today returns the calendar day that now falls on in timeZone, in the same
// zone-free representation ParseDate produces.
func Today(timeZone string, now time.Time) (time.Time, bool) {
	loc, ok := LoadZone(timeZone)
	if !ok {
		return time.Time{}, false
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func parseClock(s string) (hour, min, sec int, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, 0, false
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Hour(), t.Minute(), t.Second(), true
		}
	}
	return 0, 0, 0, false
}
