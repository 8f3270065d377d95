package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/schedule"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// PointerCache remembers which registration belongs to the current
// participant in each carpool. It is a cache: the store is authoritative and
// the coordinator reconciles the two on every Enter.
//
// Implementations discard entries they cannot decode and report them as absent.
type PointerCache interface {
	Load(ctx context.Context, carpoolID uuid.UUID) (domain.RegistrationPointer, bool, error)
	// Save stores ptr together with the registration it points at. Caches
	// that keep no snapshot may ignore snapshot.
	Save(ctx context.Context, ptr domain.RegistrationPointer, snapshot domain.Registration) error
	// Claim stores ptr only if the carpool has no pointer yet and reports
	// whether it did. Concurrent claims for one carpool have one winner.
	Claim(ctx context.Context, ptr domain.RegistrationPointer, snapshot domain.Registration) (bool, error)
	Clear(ctx context.Context, carpoolID uuid.UUID) error
}

// Status is the participant's standing in a carpool.
type Status string

const (
	StatusUnregistered Status = "unregistered"
	StatusRegistered   Status = "registered"
)

// State is what Enter reports: the status and, when registered, the live record.
type State struct {
	Status       Status               `json:"status"`
	Registration *domain.Registration `json:"registration,omitempty"`
}

// Viewer is the participant's own position in a carpool as the match view sees it.
type Viewer struct {
	Registration *domain.Registration
	At           time.Time
	Resolved     bool
}

// RegistrationStores groups the repos the coordinator reads and writes.
type RegistrationStores struct {
	Carpools repo.CarpoolRepo
	Rides    repo.RideRepo
	Waitlist repo.WaitlistRepo
}

// RegistrationCoordinator keeps one participant's registration in each carpool
// consistent with the store. A participant holds at most one registration per
// carpool; editing deletes the old record and writes a new one with a new id.
type RegistrationCoordinator struct {
	stores  RegistrationStores
	cache   PointerCache
	horizon time.Duration
	rt      Runtime
}

// NewRegistrationCoordinator scopes a coordinator to the participant whose
// pointers cache holds. A non-positive horizon uses schedule.DefaultHorizon.
func NewRegistrationCoordinator(stores RegistrationStores, cache PointerCache, horizon time.Duration, rt Runtime) *RegistrationCoordinator {
	if horizon <= 0 {
		horizon = schedule.DefaultHorizon
	}
	return &RegistrationCoordinator{stores: stores, cache: cache, horizon: horizon, rt: rt}
}

// Enter reconciles the cached pointer for carpoolID with the store.
// A pointer whose record is gone is cleared and reported as Unregistered.
func (c *RegistrationCoordinator) Enter(ctx context.Context, carpoolID uuid.UUID) (State, error) {
	ptr, ok, err := c.cache.Load(ctx, carpoolID)
	if err != nil {
		return State{}, fmt.Errorf("service.RegistrationCoordinator.Enter: load pointer: %w", err)
	}
	if !ok {
		return State{Status: StatusUnregistered}, nil
	}
	if ptr.CarpoolID != carpoolID || ptr.RegistrationID == uuid.Nil ||
		(ptr.Kind != domain.KindRide && ptr.Kind != domain.KindWaitlist) {
		c.rt.log().WarnContext(ctx, "discarding malformed registration pointer", "carpool_id", carpoolID)
		c.forget(ctx, carpoolID)
		return State{Status: StatusUnregistered}, nil
	}

	reg, err := c.fetch(ctx, carpoolID, ptr)
	if errors.Is(err, domain.ErrNotFound) {
		c.rt.log().InfoContext(ctx, "registration no longer exists, clearing pointer",
			"carpool_id", carpoolID, "kind", ptr.Kind, "registration_id", ptr.RegistrationID)
		c.forget(ctx, carpoolID)
		return State{Status: StatusUnregistered}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("service.RegistrationCoordinator.Enter: %w", err)
	}

	ptr.SavedAt = c.rt.now()
	if err := c.cache.Save(ctx, ptr, reg); err != nil {
		c.rt.log().WarnContext(ctx, "refreshing registration pointer failed", "carpool_id", carpoolID, "error", err)
	}
	return State{Status: StatusRegistered, Registration: &reg}, nil
}

// Create writes a first registration for the participant. It returns
// domain.ErrAlreadyRegistered while a live registration exists in the carpool,
// including one written by a concurrent Create that claimed the pointer first.
func (c *RegistrationCoordinator) Create(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error) {
	if err := reg.Validate(); err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Create: %w", err)
	}
	carpool, err := c.carpool(ctx, carpoolID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Create: %w", err)
	}

	state, err := c.Enter(ctx, carpoolID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Create: %w", err)
	}
	if state.Status == StatusRegistered {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Create: %w", domain.ErrAlreadyRegistered)
	}

	out, err := c.write(ctx, carpool, reg, "create", true)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Create: %w", err)
	}
	return out, nil
}

// Edit replaces the participant's registration with reg. The old record is
// removed first on a best-effort basis and the new one always gets a fresh
// id, so the kind may change. With nothing to replace, Edit behaves like Create.
func (c *RegistrationCoordinator) Edit(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error) {
	if err := reg.Validate(); err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Edit: %w", err)
	}
	carpool, err := c.carpool(ctx, carpoolID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Edit: %w", err)
	}

	ptr, ok, err := c.cache.Load(ctx, carpoolID)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Edit: load pointer: %w", err)
	}
	replacing := ok && ptr.RegistrationID != uuid.Nil
	if replacing {
		if err := c.remove(ctx, carpoolID, ptr); err != nil && !errors.Is(err, domain.ErrNotFound) {
			c.rt.log().WarnContext(ctx, "edit could not remove the previous registration",
				"carpool_id", carpoolID, "kind", ptr.Kind, "registration_id", ptr.RegistrationID, "error", err)
		}
	}

	out, err := c.write(ctx, carpool, reg, "edit", !replacing)
	if err != nil {
		return domain.Registration{}, fmt.Errorf("service.RegistrationCoordinator.Edit: %w", err)
	}
	return out, nil
}

// Delete removes the participant's registration and forgets the pointer.
// Returns domain.ErrNotFound when the participant holds no pointer. A store
// failure leaves the pointer in place so the delete can be retried.
func (c *RegistrationCoordinator) Delete(ctx context.Context, carpoolID uuid.UUID) error {
	ptr, ok, err := c.cache.Load(ctx, carpoolID)
	if err != nil {
		return fmt.Errorf("service.RegistrationCoordinator.Delete: load pointer: %w", err)
	}
	if !ok {
		return fmt.Errorf("service.RegistrationCoordinator.Delete: %w", domain.ErrNotFound)
	}

	if err := c.remove(ctx, carpoolID, ptr); err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.rt.log().ErrorContext(ctx, "deleting registration failed",
			"carpool_id", carpoolID, "kind", ptr.Kind, "registration_id", ptr.RegistrationID, "error", err)
		return fmt.Errorf("service.RegistrationCoordinator.Delete: %w", err)
	}
	if err := c.cache.Clear(ctx, carpoolID); err != nil {
		return fmt.Errorf("service.RegistrationCoordinator.Delete: clear pointer: %w", err)
	}

	c.rt.Metrics.RegistrationWritten(string(ptr.Kind), "delete")
	c.rt.log().InfoContext(ctx, "registration deleted",
		"carpool_id", carpoolID, "kind", ptr.Kind, "registration_id", ptr.RegistrationID)
	return nil
}

// Reference reports the participant's own registration in carpoolID and its
// resolved departure, for ranking everyone else against it.
func (c *RegistrationCoordinator) Reference(ctx context.Context, carpoolID uuid.UUID) (Viewer, error) {
	carpool, err := c.carpool(ctx, carpoolID)
	if err != nil {
		return Viewer{}, fmt.Errorf("service.RegistrationCoordinator.Reference: %w", err)
	}
	state, err := c.Enter(ctx, carpoolID)
	if err != nil {
		return Viewer{}, fmt.Errorf("service.RegistrationCoordinator.Reference: %w", err)
	}
	if state.Registration == nil {
		return Viewer{}, nil
	}

	at, ok := schedule.Resolve(state.Registration.Departure(), carpool.TimeZone)
	return Viewer{Registration: state.Registration, At: at, Resolved: ok}, nil
}

// write stores reg as a brand-new record in the carpool and points the cache
// at it. The departure is resolved in the carpool's zone to fix expiry.
// The record id is chosen before the first attempt so a retried insert
// cannot store the record twice. With claim set the pointer is only taken
// if the carpool slot is still free; losing the claim removes the record
// again and reports domain.ErrAlreadyRegistered.
func (c *RegistrationCoordinator) write(ctx context.Context, carpool domain.Carpool, reg domain.Registration, op string, claim bool) (domain.Registration, error) {
	at, resolved := schedule.Resolve(reg.Departure(), carpool.TimeZone)
	expires := schedule.ExpiresAt(at, resolved, c.horizon)
	id := uuid.New()

	var out domain.Registration
	switch reg.Kind {
	case domain.KindRide:
		ride := *reg.Ride
		ride.ID = id
		ride.CarpoolID = carpool.ID
		ride.Passengers = nil
		ride.ExpiresAt = expires
		if ride.LuggageSpace == "" {
			ride.LuggageSpace = domain.LuggageMedium
		}
		created, err := storecall.Get(ctx, c.rt.Calls, "rides.create", func(ctx context.Context) (domain.RideOffer, error) {
			return c.stores.Rides.Create(ctx, ride)
		})
		if err != nil {
			c.rt.log().ErrorContext(ctx, "writing ride failed", "carpool_id", carpool.ID, "op", op, "error", err)
			return domain.Registration{}, err
		}
		out = domain.RideRegistration(created)

	case domain.KindWaitlist:
		entry := *reg.Waitlist
		entry.ID = id
		entry.CarpoolID = carpool.ID
		entry.ExpiresAt = expires
		created, err := storecall.Get(ctx, c.rt.Calls, "waitlist.create", func(ctx context.Context) (domain.WaitlistEntry, error) {
			return c.stores.Waitlist.Create(ctx, entry)
		})
		if err != nil {
			c.rt.log().ErrorContext(ctx, "writing waitlist entry failed", "carpool_id", carpool.ID, "op", op, "error", err)
			return domain.Registration{}, err
		}
		out = domain.WaitlistRegistration(created)
	}

	ptr := domain.RegistrationPointer{
		CarpoolID:      carpool.ID,
		Kind:           out.Kind,
		RegistrationID: out.ID(),
		SavedAt:        c.rt.now(),
	}
	saved := true
	var err error
	if claim {
		saved, err = c.cache.Claim(ctx, ptr, out)
	} else {
		err = c.cache.Save(ctx, ptr, out)
	}
	if err != nil || !saved {
		// Without a pointer the participant could never edit or delete the
		// record, so take it back out.
		if rmErr := c.remove(ctx, carpool.ID, ptr); rmErr != nil {
			c.rt.log().ErrorContext(ctx, "orphaned registration without a pointer",
				"carpool_id", carpool.ID, "registration_id", ptr.RegistrationID, "error", rmErr)
		}
		if err != nil {
			return domain.Registration{}, fmt.Errorf("save pointer: %w", err)
		}
		c.rt.log().InfoContext(ctx, "concurrent registration won the pointer, discarding this one",
			"carpool_id", carpool.ID, "registration_id", ptr.RegistrationID)
		return domain.Registration{}, domain.ErrAlreadyRegistered
	}

	c.rt.Metrics.RegistrationWritten(string(out.Kind), op)
	c.rt.log().InfoContext(ctx, "registration saved",
		"carpool_id", carpool.ID, "kind", out.Kind, "registration_id", ptr.RegistrationID,
		"op", op, "scheduled", resolved)
	return out, nil
}

// fetch loads the record ptr refers to.
func (c *RegistrationCoordinator) fetch(ctx context.Context, carpoolID uuid.UUID, ptr domain.RegistrationPointer) (domain.Registration, error) {
	if ptr.Kind == domain.KindRide {
		ride, err := storecall.Get(ctx, c.rt.Calls, "rides.get", func(ctx context.Context) (domain.RideOffer, error) {
			return c.stores.Rides.GetByID(ctx, carpoolID, ptr.RegistrationID)
		})
		if err != nil {
			return domain.Registration{}, err
		}
		return domain.RideRegistration(ride), nil
	}
	entry, err := storecall.Get(ctx, c.rt.Calls, "waitlist.get", func(ctx context.Context) (domain.WaitlistEntry, error) {
		return c.stores.Waitlist.GetByID(ctx, carpoolID, ptr.RegistrationID)
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return domain.WaitlistRegistration(entry), nil
}

// remove deletes the record ptr refers to.
func (c *RegistrationCoordinator) remove(ctx context.Context, carpoolID uuid.UUID, ptr domain.RegistrationPointer) error {
	if ptr.Kind == domain.KindRide {
		return c.rt.Calls.Do(ctx, "rides.delete", func(ctx context.Context) error {
			return c.stores.Rides.Delete(ctx, carpoolID, ptr.RegistrationID)
		})
	}
	return c.rt.Calls.Do(ctx, "waitlist.delete", func(ctx context.Context) error {
		return c.stores.Waitlist.Delete(ctx, carpoolID, ptr.RegistrationID)
	})
}

func (c *RegistrationCoordinator) carpool(ctx context.Context, id uuid.UUID) (domain.Carpool, error) {
	return storecall.Get(ctx, c.rt.Calls, "carpools.get", func(ctx context.Context) (domain.Carpool, error) {
		return c.stores.Carpools.GetByID(ctx, id)
	})
}

// forget clears a pointer that no longer leads anywhere. Failure only costs
// another lookup on the next Enter, so it is logged and otherwise ignored.
func (c *RegistrationCoordinator) forget(ctx context.Context, carpoolID uuid.UUID) {
	if err := c.cache.Clear(ctx, carpoolID); err != nil {
		c.rt.log().WarnContext(ctx, "clearing stale registration pointer failed", "carpool_id", carpoolID, "error", err)
	}
}
