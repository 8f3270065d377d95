// Package tzcatalog supplies display strings for IANA time zones. It is
// presentation only: nothing here feeds departure resolution or ranking.
package tzcatalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"time"
	// Embeds the IANA database so the catalog works in minimal images.
	_ "time/tzdata"
)

//go:embed zones.txt
var zoneList string

// Popular zones are offered when a search has no query.
var Popular = []string{
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Toronto",
	"America/Vancouver",
	"Europe/London",
	"Europe/Paris",
	"Europe/Berlin",
	"Asia/Tokyo",
	"Australia/Sydney",
}

// DefaultLimit caps search results when the caller passes no limit.
const DefaultLimit = 50

// Option is one catalog entry as shown to a participant.
type Option struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	UTCOffset   string `json:"utc_offset"`
}

// IDs returns the embedded zone ids in file order.
func IDs() []string {
	return strings.Fields(zoneList)
}

// Describe renders id as "City, Region (UTC±hh:mm) ABBR" at instant at.
func Describe(id string, at time.Time) (Option, error) {
	loc, err := time.LoadLocation(id)
	if err != nil || id == "" {
		return Option{}, fmt.Errorf("tzcatalog.Describe: unknown zone %q", id)
	}
	local := at.In(loc)
	offset := local.Format("-07:00")

	region, city := id, id
	if i := strings.IndexByte(id, '/'); i >= 0 {
		region = id[:i]
		city = id[strings.LastIndexByte(id, '/')+1:]
	}
	city = strings.ReplaceAll(city, "_", " ")

	return Option{
		ID:          id,
		DisplayName: fmt.Sprintf("%s, %s (UTC%s) %s", city, region, offset, local.Format("MST")),
		UTCOffset:   offset,
	}, nil
}

// Abbreviation returns the zone's short name at instant at, or "-" when id
// is not a loadable zone.
func Abbreviation(id string, at time.Time) string {
	if id == "" {
		return "-"
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return "-"
	}
	return at.In(loc).Format("MST")
}

// Search returns catalog entries whose id or display name contains q,
// case-insensitively, sorted by display name. An empty q returns the
// popular zones in their listed order.
func Search(q string, at time.Time, limit int) []Option {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return describeAll(Popular, at, limit)
	}

	all := describeAll(IDs(), at, 0)
	sort.Slice(all, func(i, j int) bool { return all[i].DisplayName < all[j].DisplayName })

	out := make([]Option, 0, limit)
	for _, o := range all {
		if strings.Contains(strings.ToLower(o.ID), q) || strings.Contains(strings.ToLower(o.DisplayName), q) {
			out = append(out, o)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func describeAll(ids []string, at time.Time, limit int) []Option {
	out := make([]Option, 0, len(ids))
	for _, id := range ids {
		o, err := Describe(id, at)
		if err != nil {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
