package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WaitlistEntry is a passenger's request to be matched to a ride.
type WaitlistEntry struct {
	ID        uuid.UUID     `json:"id"`
	CarpoolID uuid.UUID     `json:"carpool_id"`
	Name      string        `json:"name"`
	Contact   Contact       `json:"contact"`
	Departure DepartureSpec `json:"departure"`
	CanDrive  bool          `json:"can_drive"`
	Notes     string        `json:"notes,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Validate enforces the business rules for joining the waitlist.
func (w WaitlistEntry) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := w.Contact.Validate(); err != nil {
		return err
	}
	return w.Departure.Validate()
}
