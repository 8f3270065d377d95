// Package domain contains the core data types for the carpool service.
// This package has no dependencies beyond uuid and is imported by every other
// internal package (schedule, ranking, repo, service, handler).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Carpool is the top-level trip or event container.
// Ride offers and waitlist entries belong to a carpool, and the carpool's
// TimeZone is the zone every departure inside it is resolved in.
type Carpool struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	OwnerContact string    `json:"owner_contact"`
	TimeZone     string    `json:"time_zone"` // IANA id, e.g. "America/Chicago"
	CreatedAt    time.Time `json:"created_at"`
}
