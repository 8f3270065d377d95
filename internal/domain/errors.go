package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the store.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing name, both departure shapes populated).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrNoSeatsAvailable is returned by the seat ledger when a ride is already
// full. No mutation has been performed when this is returned.
// Handlers should map this to HTTP 409 Conflict.
var ErrNoSeatsAvailable = errors.New("no seats available")

// ErrAlreadyRegistered is returned when a participant tries to create a
// second registration in a carpool where a live one already exists.
// Editing is the only way to replace an active registration.
var ErrAlreadyRegistered = errors.New("already registered")
