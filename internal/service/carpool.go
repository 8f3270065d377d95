package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/schedule"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// CarpoolService implements business logic for Carpool operations.
type CarpoolService struct {
	repo repo.CarpoolRepo
	rt   Runtime
}

// NewCarpoolService constructs a CarpoolService backed by the provided CarpoolRepo.
func NewCarpoolService(r repo.CarpoolRepo, rt Runtime) *CarpoolService {
	return &CarpoolService{repo: r, rt: rt}
}

// Create validates and persists a new carpool.
func (s *CarpoolService) Create(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	c = normalizeCarpool(c)
	if err := validateCarpool(c); err != nil {
		return domain.Carpool{}, fmt.Errorf("service.CarpoolService.Create: %w", err)
	}

	created, err := storecall.Get(ctx, s.rt.Calls, "carpools.create", func(ctx context.Context) (domain.Carpool, error) {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return domain.Carpool{}, fmt.Errorf("service.CarpoolService.Create: %w", err)
	}
	s.rt.log().InfoContext(ctx, "carpool created", "carpool_id", created.ID, "time_zone", created.TimeZone)
	return created, nil
}

// GetByID returns a single carpool by ID.
func (s *CarpoolService) GetByID(ctx context.Context, id uuid.UUID) (domain.Carpool, error) {
	c, err := storecall.Get(ctx, s.rt.Calls, "carpools.get", func(ctx context.Context) (domain.Carpool, error) {
		return s.repo.GetByID(ctx, id)
	})
	if err != nil {
		return domain.Carpool{}, fmt.Errorf("service.CarpoolService.GetByID: %w", err)
	}
	return c, nil
}

// Update validates and overwrites an existing carpool.
// Registrations already stored keep the expiry computed under the old zone.
func (s *CarpoolService) Update(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	c = normalizeCarpool(c)
	if err := validateCarpool(c); err != nil {
		return domain.Carpool{}, fmt.Errorf("service.CarpoolService.Update: %w", err)
	}

	updated, err := storecall.Get(ctx, s.rt.Calls, "carpools.update", func(ctx context.Context) (domain.Carpool, error) {
		return s.repo.Update(ctx, c)
	})
	if err != nil {
		return domain.Carpool{}, fmt.Errorf("service.CarpoolService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a carpool and everything registered in it.
func (s *CarpoolService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.rt.Calls.Do(ctx, "carpools.delete", func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("service.CarpoolService.Delete: %w", err)
	}
	s.rt.log().InfoContext(ctx, "carpool deleted", "carpool_id", id)
	return nil
}

func normalizeCarpool(c domain.Carpool) domain.Carpool {
	c.Name = strings.TrimSpace(c.Name)
	c.OwnerContact = strings.TrimSpace(c.OwnerContact)
	c.TimeZone = strings.TrimSpace(c.TimeZone)
	return c
}

func validateCarpool(c domain.Carpool) error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if c.OwnerContact == "" {
		return fmt.Errorf("%w: owner_contact is required", domain.ErrValidation)
	}
	if _, ok := schedule.LoadZone(c.TimeZone); !ok {
		return fmt.Errorf("%w: time_zone %q is not a known IANA zone", domain.ErrValidation, c.TimeZone)
	}
	return nil
}
