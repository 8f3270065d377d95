package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/handler"
	"github.com/pkordes/easy-carpool/internal/service"
)

// Each mock is a hand-written test double with one function field per
// method. Set only the fields a test needs.

type mockCarpools struct {
	create  func(ctx context.Context, c domain.Carpool) (domain.Carpool, error)
	getByID func(ctx context.Context, id uuid.UUID) (domain.Carpool, error)
	update  func(ctx context.Context, c domain.Carpool) (domain.Carpool, error)
	delete  func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCarpools) Create(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	return m.create(ctx, c)
}
func (m *mockCarpools) GetByID(ctx context.Context, id uuid.UUID) (domain.Carpool, error) {
	return m.getByID(ctx, id)
}
func (m *mockCarpools) Update(ctx context.Context, c domain.Carpool) (domain.Carpool, error) {
	return m.update(ctx, c)
}
func (m *mockCarpools) Delete(ctx context.Context, id uuid.UUID) error {
	return m.delete(ctx, id)
}

var _ handler.CarpoolServicer = (*mockCarpools)(nil)

type mockListings struct {
	rides    func(ctx context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error)
	ride     func(ctx context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error)
	waitlist func(ctx context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error)
}

func (m *mockListings) Rides(ctx context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error) {
	return m.rides(ctx, carpoolID)
}
func (m *mockListings) Ride(ctx context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error) {
	return m.ride(ctx, carpoolID, rideID)
}
func (m *mockListings) Waitlist(ctx context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error) {
	return m.waitlist(ctx, carpoolID)
}

var _ handler.ListingServicer = (*mockListings)(nil)

type mockSeats struct {
	bookSeat func(ctx context.Context, carpoolID, rideID uuid.UUID, p domain.Passenger) (service.Booking, error)
}

func (m *mockSeats) BookSeat(ctx context.Context, carpoolID, rideID uuid.UUID, p domain.Passenger) (service.Booking, error) {
	return m.bookSeat(ctx, carpoolID, rideID, p)
}

var _ handler.SeatBooker = (*mockSeats)(nil)

type mockRegistrar struct {
	enter     func(ctx context.Context, carpoolID uuid.UUID) (service.State, error)
	create    func(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error)
	edit      func(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error)
	delete    func(ctx context.Context, carpoolID uuid.UUID) error
	reference func(ctx context.Context, carpoolID uuid.UUID) (service.Viewer, error)
}

func (m *mockRegistrar) Enter(ctx context.Context, carpoolID uuid.UUID) (service.State, error) {
	return m.enter(ctx, carpoolID)
}
func (m *mockRegistrar) Create(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error) {
	return m.create(ctx, carpoolID, reg)
}
func (m *mockRegistrar) Edit(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error) {
	return m.edit(ctx, carpoolID, reg)
}
func (m *mockRegistrar) Delete(ctx context.Context, carpoolID uuid.UUID) error {
	return m.delete(ctx, carpoolID)
}
func (m *mockRegistrar) Reference(ctx context.Context, carpoolID uuid.UUID) (service.Viewer, error) {
	return m.reference(ctx, carpoolID)
}

var _ handler.Registrar = (*mockRegistrar)(nil)

type mockMatches struct {
	view func(ctx context.Context, q service.MatchQuery) (service.MatchView, error)
}

func (m *mockMatches) View(ctx context.Context, q service.MatchQuery) (service.MatchView, error) {
	return m.view(ctx, q)
}

var _ handler.MatchServicer = (*mockMatches)(nil)

// ---- helpers ---------------------------------------------------------------

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

// newHTTPHandler builds the router exactly as main.go does, minus middleware.
func newHTTPHandler(d handler.Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = func() time.Time { return testNow }
	}
	return handler.NewServer(d).Routes()
}

// registrarFor returns a RegistrarFor that always hands out reg and records
// which participant asked.
func registrarFor(reg handler.Registrar, seen *string) handler.RegistrarFor {
	return func(participantID string) handler.Registrar {
		if seen != nil {
			*seen = participantID
		}
		return reg
	}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec).Error.Code
}

func chicago() domain.Carpool {
	return domain.Carpool{
		ID:           uuid.New(),
		Name:         "Lake Weekend",
		OwnerContact: "owner@example.com",
		TimeZone:     "America/Chicago",
		CreatedAt:    testNow,
	}
}
