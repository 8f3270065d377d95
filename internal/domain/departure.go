package domain

import (
	"fmt"
	"strings"
)

// DepartureSpec describes when a registration intends to leave.
// Date is a zone-naive calendar day ("2006-01-02"); times are wall-clock
// values ("15:04") interpreted in the carpool's time zone.
//
// Exactly one shape is populated: FixedTime when IsFlexible is false,
// RangeStart and RangeEnd when it is true. Values are kept as text so that
// an unparsable entry can be stored and treated as unscheduled instead of
// being rejected.
type DepartureSpec struct {
	Date       string `json:"date"`
	IsFlexible bool   `json:"is_flexible"`
	FixedTime  string `json:"fixed_time,omitempty"`
	RangeStart string `json:"range_start,omitempty"`
	RangeEnd   string `json:"range_end,omitempty"`
}

// ReferenceTime returns the wall-clock value the departure is measured by:
// RangeStart for flexible specs, FixedTime otherwise.
func (d DepartureSpec) ReferenceTime() string {
	if d.IsFlexible {
		return d.RangeStart
	}
	return d.FixedTime
}

// Validate enforces the shape invariant. It does not parse the values.
func (d DepartureSpec) Validate() error {
	fixed := strings.TrimSpace(d.FixedTime) != ""
	start := strings.TrimSpace(d.RangeStart) != ""
	end := strings.TrimSpace(d.RangeEnd) != ""

	if d.IsFlexible {
		if fixed {
			return fmt.Errorf("%w: fixed_time must be empty for a flexible departure", ErrValidation)
		}
		if !start || !end {
			return fmt.Errorf("%w: range_start and range_end are required for a flexible departure", ErrValidation)
		}
		return nil
	}
	if start || end {
		return fmt.Errorf("%w: range_start and range_end must be empty for a fixed departure", ErrValidation)
	}
	if !fixed {
		return fmt.Errorf("%w: fixed_time is required", ErrValidation)
	}
	return nil
}
