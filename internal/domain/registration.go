package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegistrationKind names the collection a registration lives in.
type RegistrationKind string

const (
	KindRide     RegistrationKind = "ride"
	KindWaitlist RegistrationKind = "waitlist"
)

// ParseRegistrationKind accepts "ride"/"driver" and "waitlist"/"passenger".
func ParseRegistrationKind(s string) (RegistrationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ride", "driver":
		return KindRide, nil
	case "waitlist", "passenger":
		return KindWaitlist, nil
	}
	return "", fmt.Errorf("%w: kind must be ride or waitlist", ErrValidation)
}

// Registration is either a ride offer or a waitlist entry, tagged by Kind.
// Exactly one of Ride and Waitlist is non-nil and matches Kind.
type Registration struct {
	Kind     RegistrationKind `json:"kind"`
	Ride     *RideOffer       `json:"ride,omitempty"`
	Waitlist *WaitlistEntry   `json:"waitlist,omitempty"`
}

// RideRegistration wraps r as a Registration.
func RideRegistration(r RideOffer) Registration {
	return Registration{Kind: KindRide, Ride: &r}
}

// WaitlistRegistration wraps w as a Registration.
func WaitlistRegistration(w WaitlistEntry) Registration {
	return Registration{Kind: KindWaitlist, Waitlist: &w}
}

// ID returns the id of the wrapped record, or uuid.Nil if none is set.
func (r Registration) ID() uuid.UUID {
	switch {
	case r.Kind == KindRide && r.Ride != nil:
		return r.Ride.ID
	case r.Kind == KindWaitlist && r.Waitlist != nil:
		return r.Waitlist.ID
	}
	return uuid.Nil
}

// Departure returns the wrapped record's departure spec.
func (r Registration) Departure() DepartureSpec {
	switch {
	case r.Kind == KindRide && r.Ride != nil:
		return r.Ride.Departure
	case r.Kind == KindWaitlist && r.Waitlist != nil:
		return r.Waitlist.Departure
	}
	return DepartureSpec{}
}

// Validate checks that Kind and payload agree, then validates the payload.
func (r Registration) Validate() error {
	switch r.Kind {
	case KindRide:
		if r.Ride == nil || r.Waitlist != nil {
			return fmt.Errorf("%w: a ride registration must carry only ride details", ErrValidation)
		}
		return r.Ride.Validate()
	case KindWaitlist:
		if r.Waitlist == nil || r.Ride != nil {
			return fmt.Errorf("%w: a waitlist registration must carry only waitlist details", ErrValidation)
		}
		return r.Waitlist.Validate()
	}
	return fmt.Errorf("%w: kind must be ride or waitlist", ErrValidation)
}

// RegistrationPointer is the cached answer to "which record is mine in this
// carpool". It is never authoritative: the store is, and the pointer is
// reconciled against it whenever a participant enters a carpool.
type RegistrationPointer struct {
	CarpoolID      uuid.UUID        `json:"carpool_id"`
	Kind           RegistrationKind `json:"kind"`
	RegistrationID uuid.UUID        `json:"registration_id"`
	SavedAt        time.Time        `json:"saved_at"`
}
