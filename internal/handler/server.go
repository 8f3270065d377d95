// Package handler implements the HTTP handlers for the carpool API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, carpool.go, registration.go, ...) but share the same
// Server struct so they can reach its dependencies.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/realtime"
	"github.com/pkordes/easy-carpool/internal/service"
)

// CarpoolServicer defines the carpool operations the handlers depend on.
// Defining the interface here, in the consumer package, lets handler tests
// inject a mock without touching the database or service layer.
type CarpoolServicer interface {
	Create(ctx context.Context, c domain.Carpool) (domain.Carpool, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Carpool, error)
	Update(ctx context.Context, c domain.Carpool) (domain.Carpool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListingServicer serves unranked ride and waitlist listings.
type ListingServicer interface {
	Rides(ctx context.Context, carpoolID uuid.UUID) ([]domain.RideOffer, error)
	Ride(ctx context.Context, carpoolID, rideID uuid.UUID) (domain.RideOffer, error)
	Waitlist(ctx context.Context, carpoolID uuid.UUID) ([]domain.WaitlistEntry, error)
}

// SeatBooker admits passengers onto rides.
type SeatBooker interface {
	BookSeat(ctx context.Context, carpoolID, rideID uuid.UUID, p domain.Passenger) (service.Booking, error)
}

// Registrar manages one participant's registration in each carpool.
type Registrar interface {
	Enter(ctx context.Context, carpoolID uuid.UUID) (service.State, error)
	Create(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error)
	Edit(ctx context.Context, carpoolID uuid.UUID, reg domain.Registration) (domain.Registration, error)
	Delete(ctx context.Context, carpoolID uuid.UUID) error
	Reference(ctx context.Context, carpoolID uuid.UUID) (service.Viewer, error)
}

// RegistrarFor scopes a Registrar to one anonymous participant.
type RegistrarFor func(participantID string) Registrar

// MatchServicer builds ranked match views.
type MatchServicer interface {
	View(ctx context.Context, q service.MatchQuery) (service.MatchView, error)
}

// Subscriber hands out change subscriptions for the watch endpoint.
type Subscriber interface {
	Subscribe(carpoolID uuid.UUID) *realtime.Subscription
}

// Deps are the collaborators a Server is built from. Nil optional fields
// disable the routes that need them.
type Deps struct {
	Carpools      CarpoolServicer
	Listings      ListingServicer
	Seats         SeatBooker
	Registrations RegistrarFor
	Matches       MatchServicer

	// Changes feeds GET /carpools/{carpoolID}/watch. Optional.
	Changes Subscriber
	// Metrics serves GET /metrics. Optional.
	Metrics http.Handler
	// OpenAPI is served verbatim at GET /openapi.yaml. Optional.
	OpenAPI []byte

	// WatchOrigins are the browser origins allowed to open a watch socket.
	WatchOrigins []string
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Server holds every HTTP handler of the API.
type Server struct {
	carpools      CarpoolServicer
	listings      ListingServicer
	seats         SeatBooker
	registrations RegistrarFor
	matches       MatchServicer
	changes       Subscriber
	metrics       http.Handler
	openAPI       []byte
	watchOrigins  []string
	logger        *slog.Logger
	clock         func() time.Time
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	s := &Server{
		carpools:      d.Carpools,
		listings:      d.Listings,
		seats:         d.Seats,
		registrations: d.Registrations,
		matches:       d.Matches,
		changes:       d.Changes,
		metrics:       d.Metrics,
		openAPI:       d.OpenAPI,
		watchOrigins:  d.WatchOrigins,
		logger:        d.Logger,
		clock:         d.Clock,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Routes returns a chi router with every API route registered. Cross-cutting
// middleware (request id, logging, CORS, body limits) is applied by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/timezones", s.SearchTimezones)
	if s.openAPI != nil {
		r.Get("/openapi.yaml", s.GetOpenAPI)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/carpools", func(r chi.Router) {
		r.Post("/", s.CreateCarpool)
		r.Route("/{carpoolID}", func(r chi.Router) {
			r.Get("/", s.GetCarpool)
			r.Put("/", s.UpdateCarpool)
			r.Delete("/", s.DeleteCarpool)

			r.Get("/rides", s.ListRides)
			r.Get("/rides/{rideID}", s.GetRide)
			r.Post("/rides/{rideID}/passengers", s.BookSeat)
			r.Get("/waitlist", s.ListWaitlist)

			r.Get("/registration", s.GetRegistration)
			r.Post("/registration", s.CreateRegistration)
			r.Put("/registration", s.EditRegistration)
			r.Delete("/registration", s.DeleteRegistration)

			r.Get("/matches", s.GetMatches)
			if s.changes != nil {
				r.Get("/watch", s.WatchMatches)
			}
		})
	})
	return r
}
