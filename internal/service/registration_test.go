package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/service"
)

// coordinatorFixture wires a coordinator for one participant over in-memory stores.
type coordinatorFixture struct {
	carpool  domain.Carpool
	rides    *memRides
	waitlist *memWaitlist
	pointers *memPointers
	coord    *service.RegistrationCoordinator
}

func newCoordinator(t *testing.T) *coordinatorFixture {
	t.Helper()
	f := &coordinatorFixture{
		carpool:  chicagoCarpool(),
		rides:    newMemRides(),
		waitlist: newMemWaitlist(),
		pointers: newMemPointers(),
	}
	stores := service.RegistrationStores{
		Carpools: carpoolIn(f.carpool),
		Rides:    f.rides,
		Waitlist: f.waitlist,
	}
	f.coord = service.NewRegistrationCoordinator(stores, f.pointers, 0, fixedClock(bookedAt))
	return f
}

func rideReg(date, at string) domain.Registration {
	return domain.RideRegistration(domain.RideOffer{
		DriverName: "Dana",
		Contact:    domain.Contact{Email: "dana@example.com"},
		Departure:  domain.DepartureSpec{Date: date, FixedTime: at},
		SeatsTotal: 3,
	})
}

func waitReg(date, start, end string) domain.Registration {
	return domain.WaitlistRegistration(domain.WaitlistEntry{
		Name:      "Robin",
		Contact:   domain.Contact{Phone: "555-0199"},
		Departure: domain.DepartureSpec{Date: date, IsFlexible: true, RangeStart: start, RangeEnd: end},
	})
}

func TestCoordinator_Enter_NoPointer(t *testing.T) {
	f := newCoordinator(t)

	state, err := f.coord.Enter(context.Background(), f.carpool.ID)

	require.NoError(t, err)
	assert.Equal(t, service.StatusUnregistered, state.Status)
	assert.Nil(t, state.Registration)
}

func TestCoordinator_Create_WritesRideWithExpiry(t *testing.T) {
	f := newCoordinator(t)

	got, err := f.coord.Create(context.Background(), f.carpool.ID, rideReg("2025-06-01", "09:00"))

	require.NoError(t, err)
	require.Equal(t, domain.KindRide, got.Kind)
	assert.Equal(t, f.carpool.ID, got.Ride.CarpoolID)
	assert.Equal(t, domain.LuggageMedium, got.Ride.LuggageSpace)

	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	want := time.Date(2025, 6, 1, 15, 0, 0, 0, chicago)
	require.NotNil(t, got.Ride.ExpiresAt)
	assert.True(t, got.Ride.ExpiresAt.Equal(want), "expiry is departure plus six hours")

	ptr, ok := f.pointers.get(f.carpool.ID)
	require.True(t, ok)
	assert.Equal(t, got.ID(), ptr.RegistrationID)
	assert.Equal(t, domain.KindRide, ptr.Kind)
}

func TestCoordinator_Create_UnresolvableDepartureNeverExpires(t *testing.T) {
	f := newCoordinator(t)

	got, err := f.coord.Create(context.Background(), f.carpool.ID, rideReg("next friday", "09:00"))

	require.NoError(t, err, "unparsable values are stored, not rejected")
	assert.Nil(t, got.Ride.ExpiresAt)
}

func TestCoordinator_Create_FlexibleUsesRangeStartForExpiry(t *testing.T) {
	f := newCoordinator(t)

	got, err := f.coord.Create(context.Background(), f.carpool.ID, waitReg("2025-06-01", "08:00", "10:00"))

	require.NoError(t, err)
	require.Equal(t, domain.KindWaitlist, got.Kind)
	chicago, _ := time.LoadLocation("America/Chicago")
	require.NotNil(t, got.Waitlist.ExpiresAt)
	assert.True(t, got.Waitlist.ExpiresAt.Equal(time.Date(2025, 6, 1, 14, 0, 0, 0, chicago)))
}

func TestCoordinator_Create_RejectsShapeViolation(t *testing.T) {
	f := newCoordinator(t)
	reg := rideReg("2025-06-01", "09:00")
	reg.Ride.Departure.RangeStart = "08:00"

	_, err := f.coord.Create(context.Background(), f.carpool.ID, reg)

	assert.ErrorIs(t, err, domain.ErrValidation)
	_, ok := f.pointers.get(f.carpool.ID)
	assert.False(t, ok)
}

func TestCoordinator_Create_UnknownCarpool(t *testing.T) {
	f := newCoordinator(t)

	_, err := f.coord.Create(context.Background(), uuid.New(), rideReg("2025-06-01", "09:00"))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordinator_Create_WhileRegistered(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	_, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)

	_, err = f.coord.Create(ctx, f.carpool.ID, waitReg("2025-06-01", "08:00", "09:00"))

	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	assert.Empty(t, f.waitlist.entries, "no waitlist entry is written alongside a ride")
}

func TestCoordinator_Create_AfterRemoteDeletion(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	first, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)
	require.NoError(t, f.rides.Delete(ctx, f.carpool.ID, first.ID()))

	second, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "10:00"))

	require.NoError(t, err, "a pointer to a swept record does not block a new registration")
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestCoordinator_Create_PointerSaveFailureRemovesRecord(t *testing.T) {
	f := newCoordinator(t)
	f.pointers.failSave = errors.New("disk full")

	_, err := f.coord.Create(context.Background(), f.carpool.ID, rideReg("2025-06-01", "09:00"))

	require.Error(t, err)
	rides, _ := f.rides.ListByCarpool(context.Background(), f.carpool.ID)
	assert.Empty(t, rides, "the record is taken back out when it cannot be tracked")
}

// TestCoordinator_Create_ConcurrentSubmits races several creates for one
// participant, as a double-submit would. Exactly one registration survives
// and it is the one the pointer leads to.
func TestCoordinator_Create_ConcurrentSubmits(t *testing.T) {
	f := newCoordinator(t)

	const submits = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		refused int
	)
	for range submits {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Create(context.Background(), f.carpool.ID, rideReg("2025-06-01", "09:00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAlreadyRegistered):
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, submits-1, refused)
	rides, err := f.rides.ListByCarpool(context.Background(), f.carpool.ID)
	require.NoError(t, err)
	require.Len(t, rides, 1, "losing submits take their record back out")
	ptr, found := f.pointers.get(f.carpool.ID)
	require.True(t, found)
	assert.Equal(t, rides[0].ID, ptr.RegistrationID)
}

// TestCoordinator_Create_RetriedInsertStoresOnce loses the reply of a
// committed insert. The retry must not leave a second record behind.
func TestCoordinator_Create_RetriedInsertStoresOnce(t *testing.T) {
	f := newCoordinator(t)
	rt := fixedClock(bookedAt)
	rt.Calls.MaxAttempts = 2
	rt.Calls.BaseDelay = 1
	coord := service.NewRegistrationCoordinator(service.RegistrationStores{
		Carpools: carpoolIn(f.carpool),
		Rides:    f.rides,
		Waitlist: f.waitlist,
	}, f.pointers, 0, rt)
	f.rides.lostCommits = 1

	got, err := coord.Create(context.Background(), f.carpool.ID, rideReg("2025-06-01", "09:00"))

	require.NoError(t, err)
	assert.Equal(t, 2, f.rides.creates)
	rides, err := f.rides.ListByCarpool(context.Background(), f.carpool.ID)
	require.NoError(t, err)
	require.Len(t, rides, 1)
	assert.Equal(t, rides[0].ID, got.ID())
}

func TestCoordinator_Create_StoreFailureLeavesPointerUntouched(t *testing.T) {
	f := newCoordinator(t)
	f.rides.failCreate = errors.New("connection refused")

	_, err := f.coord.Create(context.Background(), f.carpool.ID, rideReg("2025-06-01", "09:00"))

	require.Error(t, err)
	_, ok := f.pointers.get(f.carpool.ID)
	assert.False(t, ok)
}

func TestCoordinator_Enter_Registered(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	created, err := f.coord.Create(ctx, f.carpool.ID, waitReg("2025-06-01", "08:00", "10:00"))
	require.NoError(t, err)

	state, err := f.coord.Enter(ctx, f.carpool.ID)

	require.NoError(t, err)
	assert.Equal(t, service.StatusRegistered, state.Status)
	require.NotNil(t, state.Registration)
	assert.Equal(t, created.ID(), state.Registration.ID())
}

func TestCoordinator_Enter_StalePointerSelfHeals(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	created, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)
	require.NoError(t, f.rides.Delete(ctx, f.carpool.ID, created.ID()))

	state, err := f.coord.Enter(ctx, f.carpool.ID)

	require.NoError(t, err, "a vanished record is not an error")
	assert.Equal(t, service.StatusUnregistered, state.Status)
	_, ok := f.pointers.get(f.carpool.ID)
	assert.False(t, ok, "the stale pointer is cleared")
}

func TestCoordinator_Enter_MalformedPointerDiscarded(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	require.NoError(t, f.pointers.Save(ctx, domain.RegistrationPointer{
		CarpoolID: f.carpool.ID,
		Kind:      "carriage",
	}, domain.Registration{}))

	state, err := f.coord.Enter(ctx, f.carpool.ID)

	require.NoError(t, err)
	assert.Equal(t, service.StatusUnregistered, state.Status)
	_, ok := f.pointers.get(f.carpool.ID)
	assert.False(t, ok)
}

// TestCoordinator_Edit_ReplacesIdentity checks that an edit never reuses the
// old id: the old record is gone, the new one exists, and the pointer follows.
func TestCoordinator_Edit_ReplacesIdentity(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	old, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)

	edited, err := f.coord.Edit(ctx, f.carpool.ID, rideReg("2025-06-01", "11:30"))

	require.NoError(t, err)
	assert.NotEqual(t, old.ID(), edited.ID())
	assert.False(t, f.rides.has(old.ID()), "old record removed")
	assert.True(t, f.rides.has(edited.ID()), "new record present")
	ptr, ok := f.pointers.get(f.carpool.ID)
	require.True(t, ok)
	assert.Equal(t, edited.ID(), ptr.RegistrationID)
}

func TestCoordinator_Edit_ChangesKind(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	old, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)

	edited, err := f.coord.Edit(ctx, f.carpool.ID, waitReg("2025-06-01", "08:00", "09:30"))

	require.NoError(t, err)
	assert.Equal(t, domain.KindWaitlist, edited.Kind)
	assert.False(t, f.rides.has(old.ID()))
	assert.True(t, f.waitlist.has(edited.ID()))
	ptr, _ := f.pointers.get(f.carpool.ID)
	assert.Equal(t, domain.KindWaitlist, ptr.Kind)
}

func TestCoordinator_Edit_OldDeleteFailureIsBestEffort(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	_, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)
	f.rides.failDelete = errors.New("timeout")

	edited, err := f.coord.Edit(ctx, f.carpool.ID, rideReg("2025-06-01", "10:00"))

	require.NoError(t, err)
	ptr, _ := f.pointers.get(f.carpool.ID)
	assert.Equal(t, edited.ID(), ptr.RegistrationID)
}

func TestCoordinator_Edit_ValidationFailsBeforeDeleting(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	old, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)

	bad := rideReg("2025-06-01", "09:00")
	bad.Ride.SeatsTotal = 0
	_, err = f.coord.Edit(ctx, f.carpool.ID, bad)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, f.rides.has(old.ID()), "the original survives a rejected edit")
}

func TestCoordinator_Edit_WithoutPointerCreates(t *testing.T) {
	f := newCoordinator(t)

	got, err := f.coord.Edit(context.Background(), f.carpool.ID, rideReg("2025-06-01", "09:00"))

	require.NoError(t, err)
	assert.True(t, f.rides.has(got.ID()))
}

func TestCoordinator_Delete(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	created, err := f.coord.Create(ctx, f.carpool.ID, waitReg("2025-06-01", "08:00", "10:00"))
	require.NoError(t, err)

	require.NoError(t, f.coord.Delete(ctx, f.carpool.ID))

	assert.False(t, f.waitlist.has(created.ID()))
	_, ok := f.pointers.get(f.carpool.ID)
	assert.False(t, ok)
}

func TestCoordinator_Delete_NothingRegistered(t *testing.T) {
	f := newCoordinator(t)

	err := f.coord.Delete(context.Background(), f.carpool.ID)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordinator_Delete_AlreadyGoneIsBenign(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	created, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)
	require.NoError(t, f.rides.Delete(ctx, f.carpool.ID, created.ID()))

	require.NoError(t, f.coord.Delete(ctx, f.carpool.ID))

	_, ok := f.pointers.get(f.carpool.ID)
	assert.False(t, ok)
}

func TestCoordinator_Delete_StoreFailureKeepsPointer(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	created, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)
	f.rides.failDelete = errors.New("connection reset")

	err = f.coord.Delete(ctx, f.carpool.ID)

	require.Error(t, err)
	ptr, ok := f.pointers.get(f.carpool.ID)
	require.True(t, ok)
	assert.Equal(t, created.ID(), ptr.RegistrationID)
}

func TestCoordinator_Reference(t *testing.T) {
	f := newCoordinator(t)
	ctx := context.Background()
	_, err := f.coord.Create(ctx, f.carpool.ID, rideReg("2025-06-01", "09:00"))
	require.NoError(t, err)

	viewer, err := f.coord.Reference(ctx, f.carpool.ID)

	require.NoError(t, err)
	require.True(t, viewer.Resolved)
	assert.Equal(t, "2025-06-01T09:00:00-05:00", viewer.At.Format(time.RFC3339))
	require.NotNil(t, viewer.Registration)
}

func TestCoordinator_Reference_Unregistered(t *testing.T) {
	f := newCoordinator(t)

	viewer, err := f.coord.Reference(context.Background(), f.carpool.ID)

	require.NoError(t, err)
	assert.False(t, viewer.Resolved)
	assert.Nil(t, viewer.Registration)
}
