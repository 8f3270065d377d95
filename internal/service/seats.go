package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/metrics"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// Booking is the outcome of a successful seat request.
type Booking struct {
	PassengerID uuid.UUID        `json:"passenger_id"`
	Ride        domain.RideOffer `json:"ride"`
}

// SeatLedger admits passengers onto rides without ever overbooking.
// There is no release operation: seats come back only when the ride is deleted.
type SeatLedger struct {
	rides repo.RideRepo
	rt    Runtime
}

// NewSeatLedger constructs a SeatLedger backed by the provided RideRepo.
func NewSeatLedger(rides repo.RideRepo, rt Runtime) *SeatLedger {
	return &SeatLedger{rides: rides, rt: rt}
}

// BookSeat appends passenger to the ride if a seat is free.
// The passenger id and join time are assigned here. Returns
// domain.ErrNoSeatsAvailable when the ride is full, in which case nothing
// was written, and domain.ErrNotFound when the ride no longer exists.
func (l *SeatLedger) BookSeat(ctx context.Context, carpoolID, rideID uuid.UUID, passenger domain.Passenger) (Booking, error) {
	passenger.Name = strings.TrimSpace(passenger.Name)
	if err := passenger.Validate(); err != nil {
		return Booking{}, fmt.Errorf("service.SeatLedger.BookSeat: %w", err)
	}

	// Fixed before the first attempt so a retry after a lost commit
	// acknowledgement is recognised rather than booked twice.
	passenger.ID = uuid.New()
	passenger.JoinedAt = l.rt.now()

	ride, err := storecall.Get(ctx, l.rt.Calls, "rides.book_seat", func(ctx context.Context) (domain.RideOffer, error) {
		return l.rides.BookSeat(ctx, carpoolID, rideID, passenger, admitSeat)
	})
	switch {
	case errors.Is(err, domain.ErrNoSeatsAvailable):
		l.rt.Metrics.SeatBooking(metrics.BookingRejected)
		l.rt.log().InfoContext(ctx, "seat request rejected, ride full", "ride_id", rideID)
		return Booking{}, fmt.Errorf("service.SeatLedger.BookSeat: %w", err)
	case err != nil:
		l.rt.Metrics.SeatBooking(metrics.BookingFailed)
		if !errors.Is(err, domain.ErrNotFound) {
			l.rt.log().ErrorContext(ctx, "seat booking failed", "ride_id", rideID, "error", err)
		}
		return Booking{}, fmt.Errorf("service.SeatLedger.BookSeat: %w", err)
	}

	l.rt.Metrics.SeatBooking(metrics.BookingAccepted)
	l.rt.log().InfoContext(ctx, "seat booked",
		"ride_id", rideID, "passenger_id", passenger.ID, "seats_available", ride.SeatsAvailable())
	return Booking{PassengerID: passenger.ID, Ride: ride}, nil
}

// admitSeat is the admission rule evaluated against the locked ride row.
func admitSeat(ride domain.RideOffer) error {
	if ride.SeatsTotal-len(ride.Passengers) <= 0 {
		return domain.ErrNoSeatsAvailable
	}
	return nil
}
