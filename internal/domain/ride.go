package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LuggageSpace is the amount of luggage a ride can take.
type LuggageSpace string

const (
	LuggageSmall  LuggageSpace = "small"
	LuggageMedium LuggageSpace = "medium"
	LuggageLarge  LuggageSpace = "large"
)

// ParseLuggageSpace normalizes s to a LuggageSpace. Empty input yields the
// default, LuggageMedium.
func ParseLuggageSpace(s string) (LuggageSpace, error) {
	switch LuggageSpace(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return LuggageMedium, nil
	case LuggageSmall:
		return LuggageSmall, nil
	case LuggageMedium:
		return LuggageMedium, nil
	case LuggageLarge:
		return LuggageLarge, nil
	}
	return "", fmt.Errorf("%w: luggage_space must be one of small, medium, large", ErrValidation)
}

// Contact holds the ways a participant can be reached.
// At least one of Email or Phone must be present.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Validate reports an ErrValidation when neither email nor phone is set.
func (c Contact) Validate() error {
	if strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: email or phone is required", ErrValidation)
	}
	return nil
}

// Passenger is a participant who booked a seat on a ride.
// A passenger belongs to exactly one ride and never moves.
type Passenger struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Contact  Contact   `json:"contact"`
	JoinedAt time.Time `json:"joined_at"`
}

// Validate enforces the fields a booking request must carry.
func (p Passenger) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	return p.Contact.Validate()
}

// RideOffer is a driver's published trip with seat capacity.
// Passengers only ever grows, and len(Passengers) never exceeds SeatsTotal.
// ExpiresAt is nil when the departure could not be resolved.
type RideOffer struct {
	ID            uuid.UUID     `json:"id"`
	CarpoolID     uuid.UUID     `json:"carpool_id"`
	DriverName    string        `json:"driver_name"`
	Contact       Contact       `json:"contact"`
	Departure     DepartureSpec `json:"departure"`
	SeatsTotal    int           `json:"seats_total"`
	LuggageSpace  LuggageSpace  `json:"luggage_space"`
	PreferToDrive bool          `json:"prefer_to_drive"`
	CanDrive      bool          `json:"can_drive"`
	Notes         string        `json:"notes,omitempty"`
	Passengers    []Passenger   `json:"passengers,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SeatsAvailable is the number of seats not yet booked. It is never negative.
func (r RideOffer) SeatsAvailable() int {
	n := r.SeatsTotal - len(r.Passengers)
	if n < 0 {
		return 0
	}
	return n
}

// Validate enforces the business rules for publishing a ride.
func (r RideOffer) Validate() error {
	if strings.TrimSpace(r.DriverName) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := r.Contact.Validate(); err != nil {
		return err
	}
	if r.SeatsTotal < 1 {
		return fmt.Errorf("%w: seats_total must be at least 1", ErrValidation)
	}
	if _, err := ParseLuggageSpace(string(r.LuggageSpace)); err != nil {
		return err
	}
	return r.Departure.Validate()
}
