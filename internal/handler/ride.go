package handler

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// ContactRequest is how a request names a way to reach someone. Email is
// syntax-checked while decoding; at least one field must be present.
type ContactRequest struct {
	Email *openapi_types.Email `json:"email,omitempty"`
	Phone string               `json:"phone,omitempty"`
}

func (c ContactRequest) toDomain() domain.Contact {
	out := domain.Contact{Phone: c.Phone}
	if c.Email != nil {
		out.Email = string(*c.Email)
	}
	return out
}

// PassengerRequest is the body of POST /carpools/{carpoolID}/rides/{rideID}/passengers.
type PassengerRequest struct {
	Name    string         `json:"name"`
	Contact ContactRequest `json:"contact"`
}

// ListRides handles GET /carpools/{carpoolID}/rides.
func (s *Server) ListRides(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	rides, err := s.listings.Rides(r.Context(), carpoolID)
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	if rides == nil {
		rides = []domain.RideOffer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rides})
}

// GetRide handles GET /carpools/{carpoolID}/rides/{rideID}.
func (s *Server) GetRide(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	rideID, ok := pathID(w, r, "rideID", "ride")
	if !ok {
		return
	}
	ride, err := s.listings.Ride(r.Context(), carpoolID, rideID)
	if err != nil {
		s.writeError(w, r, err, "ride not found")
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

// BookSeat handles POST /carpools/{carpoolID}/rides/{rideID}/passengers.
// A full ride is 409 no_seats_available and nothing is written.
func (s *Server) BookSeat(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	rideID, ok := pathID(w, r, "rideID", "ride")
	if !ok {
		return
	}
	var body PassengerRequest
	if !decodeBody(w, r, &body) {
		return
	}

	booking, err := s.seats.BookSeat(r.Context(), carpoolID, rideID, domain.Passenger{
		Name:    body.Name,
		Contact: body.Contact.toDomain(),
	})
	if err != nil {
		s.writeError(w, r, err, "ride not found")
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// ListWaitlist handles GET /carpools/{carpoolID}/waitlist.
func (s *Server) ListWaitlist(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	entries, err := s.listings.Waitlist(r.Context(), carpoolID)
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	if entries == nil {
		entries = []domain.WaitlistEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}
