package schedule

import "time"

// DefaultHorizon is how long after its departure a registration stays listed.
const DefaultHorizon = 6 * time.Hour

// ExpiresAt returns reference+horizon, or nil when the departure was not
// resolved. A nil deadline means the record never expires on its own.
// A non-positive horizon falls back to DefaultHorizon.
func ExpiresAt(reference time.Time, resolved bool, horizon time.Duration) *time.Time {
	if !resolved {
		return nil
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	at := reference.Add(horizon)
	return &at
}
