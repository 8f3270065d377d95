package service

import (
	"context"
	"fmt"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/repo"
)

// SweepResult counts what one Sweep removed.
type SweepResult struct {
	Rides    int64
	Waitlist int64
}

// Sweeper deletes registrations whose expiry has passed. Registrations
// without an expiry are never touched.
type Sweeper struct {
	rides    repo.RideRepo
	waitlist repo.WaitlistRepo
	rt       Runtime
}

// NewSweeper constructs a Sweeper over the ride and waitlist repos.
func NewSweeper(rides repo.RideRepo, waitlist repo.WaitlistRepo, rt Runtime) *Sweeper {
	return &Sweeper{rides: rides, waitlist: waitlist, rt: rt}
}

// Sweep removes every ride and waitlist entry that expired before now.
// The waitlist is swept even if the ride sweep fails.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.rt.now()
	var res SweepResult

	rideErr := s.rt.Calls.Do(ctx, "rides.delete_expired", func(ctx context.Context) (err error) {
		res.Rides, err = s.rides.DeleteExpired(ctx, now)
		return err
	})
	waitErr := s.rt.Calls.Do(ctx, "waitlist.delete_expired", func(ctx context.Context) (err error) {
		res.Waitlist, err = s.waitlist.DeleteExpired(ctx, now)
		return err
	})

	s.rt.Metrics.Swept(string(domain.KindRide), res.Rides)
	s.rt.Metrics.Swept(string(domain.KindWaitlist), res.Waitlist)
	s.rt.log().InfoContext(ctx, "expired registrations swept",
		"rides", res.Rides, "waitlist", res.Waitlist, "cutoff", now)

	if rideErr != nil {
		return res, fmt.Errorf("service.Sweeper.Sweep: rides: %w", rideErr)
	}
	if waitErr != nil {
		return res, fmt.Errorf("service.Sweeper.Sweep: waitlist: %w", waitErr)
	}
	return res, nil
}
