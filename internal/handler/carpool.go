package handler

import (
	"net/http"

	"github.com/pkordes/easy-carpool/internal/domain"
	"github.com/pkordes/easy-carpool/internal/tzcatalog"
)

// CarpoolRequest is the body of POST /carpools and PUT /carpools/{carpoolID}.
type CarpoolRequest struct {
	Name         string `json:"name"`
	OwnerContact string `json:"owner_contact"`
	TimeZone     string `json:"time_zone"`
}

// CarpoolResponse is a carpool plus display strings for its zone.
type CarpoolResponse struct {
	domain.Carpool
	TimeZoneName string `json:"time_zone_name"`
	TimeZoneAbbr string `json:"time_zone_abbr"`
}

// CreateCarpool handles POST /carpools.
func (s *Server) CreateCarpool(w http.ResponseWriter, r *http.Request) {
	var body CarpoolRequest
	if !decodeBody(w, r, &body) {
		return
	}

	created, err := s.carpools.Create(r.Context(), domain.Carpool{
		Name:         body.Name,
		OwnerContact: body.OwnerContact,
		TimeZone:     body.TimeZone,
	})
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	writeJSON(w, http.StatusCreated, s.carpoolResponse(created))
}

// GetCarpool handles GET /carpools/{carpoolID}.
func (s *Server) GetCarpool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	c, err := s.carpools.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	writeJSON(w, http.StatusOK, s.carpoolResponse(c))
}

// UpdateCarpool handles PUT /carpools/{carpoolID}. The carpool is replaced as a whole.
func (s *Server) UpdateCarpool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	var body CarpoolRequest
	if !decodeBody(w, r, &body) {
		return
	}

	updated, err := s.carpools.Update(r.Context(), domain.Carpool{
		ID:           id,
		Name:         body.Name,
		OwnerContact: body.OwnerContact,
		TimeZone:     body.TimeZone,
	})
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	writeJSON(w, http.StatusOK, s.carpoolResponse(updated))
}

// DeleteCarpool handles DELETE /carpools/{carpoolID}.
// Rides, passengers, waitlist entries and pointers go with it.
func (s *Server) DeleteCarpool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	if err := s.carpools.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) carpoolResponse(c domain.Carpool) CarpoolResponse {
	now := s.clock()
	resp := CarpoolResponse{Carpool: c, TimeZoneName: c.TimeZone, TimeZoneAbbr: tzcatalog.Abbreviation(c.TimeZone, now)}
	if opt, err := tzcatalog.Describe(c.TimeZone, now); err == nil {
		resp.TimeZoneName = opt.DisplayName
	}
	return resp
}
