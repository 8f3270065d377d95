package ranking

import (
	"fmt"
	"time"
)

// Dated pairs a candidate id with its zone-naive departure day.
// HasDate is false when the day could not be determined.
type Dated struct {
	ID      string
	Day     time.Time
	HasDate bool
}

// Upcoming returns the ids of entries whose day is today or later.
// Entries without a determinable day are kept.
func Upcoming(today time.Time, entries []Dated) map[string]bool {
	keep := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.HasDate && e.Day.Before(today) {
			continue
		}
		keep[e.ID] = true
	}
	return keep
}

// DescribeDelta renders the distance between a registration and the viewer's
// own departure, e.g. "1 hr 30 mins after your departure time".
// delta is registration minus reference.
func DescribeDelta(delta time.Duration) string {
	totalMinutes := int(abs(delta) / time.Minute)
	hours, minutes := totalMinutes/60, totalMinutes%60

	var text string
	switch {
	case hours > 0 && minutes > 0:
		text = fmt.Sprintf("%d hr %d mins", hours, minutes)
	case hours > 1:
		text = fmt.Sprintf("%d hrs", hours)
	case hours == 1:
		text = "1 hr"
	default:
		text = fmt.Sprintf("%d mins", minutes)
	}

	switch {
	case delta == 0:
		return text + " (same as your departure time)"
	case delta > 0:
		return text + " after your departure time"
	}
	return text + " before your departure time"
}
