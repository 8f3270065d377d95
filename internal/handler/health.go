package handler

import (
	"net/http"
	"strconv"

	"github.com/pkordes/easy-carpool/internal/tzcatalog"
)

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetOpenAPI handles GET /openapi.yaml.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(s.openAPI)
}

// SearchTimezones handles GET /timezones?q=&limit=.
// With no q it returns the popular zones.
func (s *Server) SearchTimezones(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeErrorBody(w, http.StatusUnprocessableEntity, codeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": tzcatalog.Search(r.URL.Query().Get("q"), s.clock(), limit),
	})
}
