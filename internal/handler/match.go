package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/middleware"
	"github.com/pkordes/easy-carpool/internal/realtime"
	"github.com/pkordes/easy-carpool/internal/service"
)

// matchQuery parses the at and window query parameters shared by the match
// routes. at is RFC 3339; window is a Go duration such as "90m".
func matchQuery(w http.ResponseWriter, r *http.Request, carpoolID uuid.UUID) (service.MatchQuery, bool) {
	q := service.MatchQuery{CarpoolID: carpoolID}
	values := r.URL.Query()

	if raw := values.Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation, "at must be an RFC 3339 timestamp")
			return q, false
		}
		q.At = &at
	}
	if raw := values.Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation, "window must be a non-negative duration such as 90m")
			return q, false
		}
		q.Window = d
	}
	return q, true
}

// viewer resolves the participant's own registration when one is named.
// An anonymous caller gets the chronological view.
func (s *Server) viewer(ctx context.Context, participantID string, carpoolID uuid.UUID) (service.Viewer, error) {
	if participantID == "" || len(participantID) > maxParticipantIDLen {
		return service.Viewer{}, nil
	}
	return s.registrations(participantID).Reference(ctx, carpoolID)
}

func (s *Server) view(ctx context.Context, participantID string, q service.MatchQuery) (service.MatchView, error) {
	v, err := s.viewer(ctx, participantID, q.CarpoolID)
	if err != nil {
		return service.MatchView{}, err
	}
	q.Viewer = v
	return s.matches.View(ctx, q)
}

// GetMatches handles GET /carpools/{carpoolID}/matches.
// With an X-Participant-ID header, everyone is ranked by how close their
// departure is to the participant's own; otherwise by departure time.
func (s *Server) GetMatches(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	q, ok := matchQuery(w, r, carpoolID)
	if !ok {
		return
	}
	participantID := strings.TrimSpace(r.Header.Get(middleware.ParticipantHeader))

	v, err := s.view(r.Context(), participantID, q)
	if err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// WatchMatches handles GET /carpools/{carpoolID}/watch. It upgrades to a
// websocket and pushes a freshly ranked match view on connect and after
// every change to the carpool's rides or waitlist. Browsers cannot set
// headers on a websocket, so the participant comes from ?participant=.
func (s *Server) WatchMatches(w http.ResponseWriter, r *http.Request) {
	carpoolID, ok := pathID(w, r, "carpoolID", "carpool")
	if !ok {
		return
	}
	q, ok := matchQuery(w, r, carpoolID)
	if !ok {
		return
	}
	if _, err := s.carpools.GetByID(r.Context(), carpoolID); err != nil {
		s.writeError(w, r, err, "carpool not found")
		return
	}
	participantID := strings.TrimSpace(r.URL.Query().Get("participant"))

	conn, err := realtime.Upgrader(s.watchOrigins).Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		s.logger.DebugContext(r.Context(), "watch upgrade failed", "carpool_id", carpoolID, "error", err)
		return
	}
	s.logger.InfoContext(r.Context(), "watch opened", "carpool_id", carpoolID)

	sub := s.changes.Subscribe(carpoolID)
	realtime.Stream(r.Context(), conn, sub, func(ctx context.Context) (any, error) {
		return s.view(ctx, participantID, q)
	}, s.logger)

	s.logger.InfoContext(r.Context(), "watch closed", "carpool_id", carpoolID)
}
