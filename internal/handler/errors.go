package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// Error codes carried in ErrorResponse.
const (
	codeNotFound           = "not_found"
	codeValidation         = "validation_error"
	codeNoSeatsAvailable   = "no_seats_available"
	codeAlreadyRegistered  = "already_registered"
	codeMissingParticipant = "missing_participant"
	codeInternal           = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names what went wrong.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// writeError maps a service error onto a status and code. notFound is the
// message used when err is domain.ErrNotFound, since the handler is the
// layer that knows what was being looked up.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, codeNotFound, notFound)
	case errors.Is(err, domain.ErrValidation):
		writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation, unwrapMessage(err))
	case errors.Is(err, domain.ErrNoSeatsAvailable):
		writeErrorBody(w, http.StatusConflict, codeNoSeatsAvailable, "the ride has no free seats")
	case errors.Is(err, domain.ErrAlreadyRegistered):
		writeErrorBody(w, http.StatusConflict, codeAlreadyRegistered, "already registered in this carpool; edit or delete the existing registration")
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"error", err,
		)
		writeErrorBody(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}

// unwrapMessage extracts the human-readable part of a wrapped validation error.
// e.g. "service.CarpoolService.Create: validation error: name is required" → "name is required"
func unwrapMessage(err error) string {
	msg := err.Error()
	marker := domain.ErrValidation.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}

// decodeBody reads a JSON request body into v. It writes the error response
// itself and reports whether the handler should continue.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation, "request body is required")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorBody(w, http.StatusRequestEntityTooLarge, codeValidation,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation, "malformed request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses the named chi URL parameter as a UUID. A malformed id
// cannot name anything, so it is answered with 404.
func pathID(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorBody(w, http.StatusNotFound, codeNotFound, what+" not found")
		return uuid.Nil, false
	}
	return id, true
}
