package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// ListingService serves a carpool's rides and waitlist unranked, in the
// order they were registered.
type ListingService struct {
	carpools repo.CarpoolRepo
	rides    repo.RideRepo
	waitlist repo.WaitlistRepo
	rt       Runtime
}

// NewListingService constructs a ListingService over the given repos.
func NewListingService(carpools repo.CarpoolRepo, rides repo.RideRepo, waitlist repo.WaitlistRepo, rt Runtime) *ListingService {
	return &ListingService{carpools: carpools, rides: rides, waitlist: waitlist, rt: rt}
}

// Rides returns every ride of the carpool with its passengers.
// An unknown carpool is domain.ErrNotFound rather than an empty list.
func (s *ListingService) Rides(ctx context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error) {
	if err := s.exists(ctx, carpoolID); err != nil {
		return nil, fmt.Errorf("service.ListingService.Rides: %w", err)
	}
	rides, err := storecall.Get(ctx, s.rt.Calls, "rides.list", func(ctx context.Context) ([]domain.RideOffer, error) {
		return s.rides.ListByCarpool(ctx, carpoolID)
	})
	if err != nil {
		return nil, fmt.Errorf("service.ListingService.Rides: %w", err)
	}
	return rides, nil
}

// Ride returns one ride with its passengers.
func (s *ListingService) Ride(ctx context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error) {
	ride, err := storecall.Get(ctx, s.rt.Calls, "rides.get", func(ctx context.Context) (domain.RideOffer, error) {
		return s.rides.GetByID(ctx, carpoolID, rideID)
	})
	if err != nil {
		return domain.RideOffer{}, fmt.Errorf("service.ListingService.Ride: %w", err)
	}
	return ride, nil
}

// Waitlist returns every waitlist entry of the carpool.
func (s *ListingService) Waitlist(ctx context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error) {
	if err := s.exists(ctx, carpoolID); err != nil {
		return nil, fmt.Errorf("service.ListingService.Waitlist: %w", err)
	}
	entries, err := storecall.Get(ctx, s.rt.Calls, "waitlist.list", func(ctx context.Context) ([]domain.WaitlistEntry, error) {
		return s.waitlist.ListByCarpool(ctx, carpoolID)
	})
	if err != nil {
		return nil, fmt.Errorf("service.ListingService.Waitlist: %w", err)
	}
	return entries, nil
}

func (s *ListingService) exists(ctx context.Context, carpoolID uuid.UUID) error {
	_, err := storecall.Get(ctx, s.rt.Calls, "carpools.get", func(ctx context.Context) (domain.Carpool, error) {
		return s.carpools.GetByID(ctx, carpoolID)
	})
	return err
}
