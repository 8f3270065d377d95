package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/repo"
	"github.com/pkordes/easy-carpool/internal/service"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// singleShot runs every store call exactly once so failure tests stay fast.
var singleShot = service.Runtime{Calls: storecall.Policy{MaxAttempts: 1}}

// fixedClock returns a Runtime whose clock is frozen at now.
func fixedClock(now time.Time) service.Runtime {
	rt := singleShot
	rt.Clock = func() time.Time { return now }
	return rt
}

// ---- carpools --------------------------------------------------------------

// mockCarpoolRepo is a hand-written test double for repo.CarpoolRepo.
// Each method is a function field; set only the ones a test needs.
type mockCarpoolRepo struct {
	create  func(ctx context.Context, c domain.Carpool) (domain.Carpool, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.Carpool, error)
	update  func(ctx context.Context, c domain.Carpool) (domain.Carpool, error)
	delete  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCarpoolRepo) Create(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	return m.create(ctx, c)
}
func (m *mockCarpoolRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Carpool, error) {
	return m.getByID(ctx, id)
}
func (m *mockCarpoolRepo) Update(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	return m.update(ctx, c)
}
func (m *mockCarpoolRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ repo.CarpoolRepo = (*mockCarpoolRepo)(nil)

// carpoolIn returns a repo that knows exactly one carpool.
func carpoolIn(c domain.Carpool) *mockCarpoolRepo {
	return &mockCarpoolRepo{
		getByID: func(_ context.Context, id uuid.UUID) (domain.Carpool, error) {
			if id != c.ID {
				return domain.Carpool{}, domain.ErrNotFound
			}
			return c, nil
		},
	}
}

func chicagoCarpool() domain.Carpool {
	return domain.Carpool{
		ID:           uuid.New(),
		Name:         "Lake Weekend",
		OwnerContact: "owner@example.com",
		TimeZone:     "America/Chicago",
	}
}

// ---- rides and waitlist ----------------------------------------------------

// memRides is an in-memory repo.RideRepo. BookSeat holds a mutex for the
// whole read-admit-write sequence, standing in for the row lock.
type memRides struct {
	mu    sync.Mutex
	rides map[uuid.UUID]domain.RideOffer
	order []uuid.UUID

	// failCreate and failDelete, when set, are returned instead of writing.
	failCreate error
	failDelete error
	// lostCommits makes that many Create calls store the ride and then
	// report a transport error, as a commit whose reply was lost would.
	lostCommits int
	creates     int
}

func newMemRides() *memRides {
	return &memRides{rides: map[uuid.UUID]domain.RideOffer{}}
}

func (m *memRides) Create(_ context.Context, r domain.RideOffer) (domain.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return domain.RideOffer{}, m.failCreate
	}
	m.creates++
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if existing, ok := m.rides[r.ID]; ok {
		return existing, nil
	}
	r.CreatedAt = time.Now()
	m.rides[r.ID] = r
	m.order = append(m.order, r.ID)
	if m.lostCommits > 0 {
		m.lostCommits--
		return domain.RideOffer{}, errors.New("connection reset")
	}
	return r, nil
}

func (m *memRides) GetByID(_ context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.CarpoolID != carpoolID {
		return domain.RideOffer{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memRides) ListByCarpool(_ context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RideOffer
	for _, id := range m.order {
		if r, ok := m.rides[id]; ok && r.CarpoolID == carpoolID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRides) Delete(_ context.Context, carpoolID, rideID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	r, ok := m.rides[rideID]
	if !ok || r.CarpoolID != carpoolID {
		return domain.ErrNotFound
	}
	delete(m.rides, rideID)
	return nil
}

func (m *memRides) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.rides {
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			delete(m.rides, id)
			n++
		}
	}
	return n, nil
}

func (m *memRides) BookSeat(_ context.Context, carpoolID, rideID uuid.UUID, p domain.Passenger, admit func(domain.RideOffer) error) (domain.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rides[rideID]
	if !ok || r.CarpoolID != carpoolID {
		return domain.RideOffer{}, domain.ErrNotFound
	}
	if err := admit(r); err != nil {
		return domain.RideOffer{}, err
	}
	r.Passengers = append(append([]domain.Passenger(nil), r.Passengers...), p)
	m.rides[rideID] = r
	return r, nil
}

func (m *memRides) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rides[id]
	return ok
}

var _ repo.RideRepo = (*memRides)(nil)

// memWaitlist is an in-memory repo.WaitlistRepo.
type memWaitlist struct {
	mu      sync.Mutex
	entries map[uuid.UUID]domain.WaitlistEntry
	order   []uuid.UUID

	failDelete error
}

func newMemWaitlist() *memWaitlist {
	return &memWaitlist{entries: map[uuid.UUID]domain.WaitlistEntry{}}
}

func (m *memWaitlist) Create(_ context.Context, e domain.WaitlistEntry) (domain.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if existing, ok := m.entries[e.ID]; ok {
		return existing, nil
	}
	e.CreatedAt = time.Now()
	m.entries[e.ID] = e
	m.order = append(m.order, e.ID)
	return e, nil
}

func (m *memWaitlist) GetByID(_ context.Context, carpoolID, id uuid.UUID) (domain.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.CarpoolID != carpoolID {
		return domain.WaitlistEntry{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memWaitlist) ListByCarpool(_ context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WaitlistEntry
	for _, id := range m.order {
		if e, ok := m.entries[id]; ok && e.CarpoolID == carpoolID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memWaitlist) Delete(_ context.Context, carpoolID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	e, ok := m.entries[id]
	if !ok || e.CarpoolID != carpoolID {
		return domain.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *memWaitlist) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, e := range m.entries {
		if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memWaitlist) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

var _ repo.WaitlistRepo = (*memWaitlist)(nil)

// ---- pointer cache ---------------------------------------------------------

// memPointers is an in-memory service.PointerCache.
type memPointers struct {
	mu       sync.Mutex
	pointers map[uuid.UUID]domain.RegistrationPointer

	failSave error
}

func newMemPointers() *memPointers {
	return &memPointers{pointers: map[uuid.UUID]domain.RegistrationPointer{}}
}

func (m *memPointers) Load(_ context.Context, carpoolID uuid.UUID) (domain.RegistrationPointer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pointers[carpoolID]
	return p, ok, nil
}

func (m *memPointers) Save(_ context.Context, p domain.RegistrationPointer, _ domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.pointers[p.CarpoolID] = p
	return nil
}

func (m *memPointers) Claim(_ context.Context, p domain.RegistrationPointer, _ domain.Registration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return false, m.failSave
	}
	if _, ok := m.pointers[p.CarpoolID]; ok {
		return false, nil
	}
	m.pointers[p.CarpoolID] = p
	return true, nil
}

func (m *memPointers) Clear(_ context.Context, carpoolID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pointers, carpoolID)
	return nil
}

func (m *memPointers) get(carpoolID uuid.UUID) (domain.RegistrationPointer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pointers[carpoolID]
	return p, ok
}

var _ service.PointerCache = (*memPointers)(nil)
