package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/middleware"
)

// maxParticipantIDLen bounds the opaque participant key.
const maxParticipantIDLen = 128

// RideRequest describes a ride offer in a registration request.
type RideRequest struct {
	DriverName    string               `json:"driver_name"`
	Contact       ContactRequest       `json:"contact"`
	Departure     domain.DepartureSpec `json:"departure"`
	SeatsTotal    int                  `json:"seats_total"`
	LuggageSpace  string               `json:"luggage_space,omitempty"`
	PreferToDrive bool                 `json:"prefer_to_drive"`
	CanDrive      bool                 `json:"can_drive"`
	Notes         string               `json:"notes,omitempty"`
}

// WaitlistRequest describes a waitlist entry in a registration request.
type WaitlistRequest struct {
	Name      string               `json:"name"`
	Contact   ContactRequest       `json:"contact"`
	Departure domain.DepartureSpec `json:"departure"`
	CanDrive  bool                 `json:"can_drive"`
	Notes     string               `json:"notes,omitempty"`
}

// RegistrationRequest is the body of POST and PUT
// /carpools/{carpoolID}/registration. Exactly the section named by kind
// must be present.
type RegistrationRequest struct {
	Kind     string           `json:"kind"`
	Ride     *RideRequest     `json:"ride,omitempty"`
	Waitlist *WaitlistRequest `json:"waitlist,omitempty"`
}

func (req RegistrationRequest) toDomain() (domain.Registration, error) {
	kind, err := domain.ParseRegistrationKind(req.Kind)
	if err != nil {
		return domain.Registration{}, err
	}
	reg := domain.Registration{Kind: kind}
	if req.Ride != nil {
		luggage, err := domain.ParseLuggageSpace(req.Ride.LuggageSpace)
		if err != nil {
			return domain.Registration{}, err
		}
		reg.Ride = &domain.RideOffer{
			DriverName:    strings.TrimSpace(req.Ride.DriverName),
			Contact:       req.Ride.Contact.toDomain(),
			Departure:     req.Ride.Departure,
			SeatsTotal:    req.Ride.SeatsTotal,
			LuggageSpace:  luggage,
			PreferToDrive: req.Ride.PreferToDrive,
			CanDrive:      req.Ride.CanDrive,
			Notes:         req.Ride.Notes,
		}
	}
	if req.Waitlist != nil {
		reg.Waitlist = &domain.WaitlistEntry{
			Name:      strings.TrimSpace(req.Waitlist.Name),
			Contact:   req.Waitlist.Contact.toDomain(),
			Departure: req.Waitlist.Departure,
			CanDrive:  req.Waitlist.CanDrive,
			Notes:     req.Waitlist.Notes,
		}
	}
	if err := reg.Validate(); err != nil {
		return domain.Registration{}, err
	}
	return reg, nil
}

// participant returns the Registrar of the participant named in the
// X-Participant-ID header, or writes 400 missing_participant.
func (s *Server) participant(w http.ResponseWriter, r *http.Request) (Registrar, bool) {
	id := strings.TrimSpace(r.Header.Get(middleware.ParticipantHeader))
	if id == "" {
		writeErrorBody(w, http.StatusBadRequest, codeMissingParticipant,
			fmt.Sprintf("the %s header is required", middleware.ParticipantHeader))
		return nil, false
	}
	if len(id) > maxParticipantIDLen {
		writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation,
			fmt.Sprintf("%s must be at most %d characters", middleware.ParticipantHeader, maxParticipantIDLen))
		return nil, false
	}
	return s.registrations(id), true
}

// GetRegistration handles GET /carpools/{carpoolID}/registration.
// It reconciles the participant's pointer with the store and reports
// whether they are registered.
func (s *Server) GetRegistration(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	reg, ok := s.participant(w, r)
	if !ok {
		return
	}
	state, err := reg.Enter(r.Context(), carpoolID)
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CreateRegistration handles POST /carpools/{carpoolID}/registration.
func (s *Server) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	s.writeRegistration(w, r, http.StatusCreated, Registrar.Create)
}

// EditRegistration handles PUT /carpools/{carpoolID}/registration.
// The old record is replaced by a new one with a new id.
func (s *Server) EditRegistration(w http.ResponseWriter, r *http.Request) {
	s.writeRegistration(w, r, http.StatusOK, Registrar.Edit)
}

func (s *Server) writeRegistration(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	op func(Registrar, context.Context, uuid.UUID, domain.Registration) (domain.Registration, error),
) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	registrar, ok := s.participant(w, r)
	if !ok {
		return
	}
	var body RegistrationRequest
	if !decodeBody(w, r, &body) {
		return
	}
	reg, err := body.toDomain()
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}

	saved, err := op(registrar, r.Context(), carpoolID, reg)
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	writeJSON(w, status, saved)
}

// DeleteRegistration handles DELETE /carpools/{carpoolID}/registration.
func (s *Server) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	reg, ok := s.participant(w, r)
	if !ok {
		return
	}
	if err := reg.Delete(r.Context(), carpoolID); err != nil {
		s.writeError(w, r, err, "no registration in this carpool")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
