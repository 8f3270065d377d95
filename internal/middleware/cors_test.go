package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/easy-carpool/internal/middleware"
)

var trivialHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORSHandler_GET_AllowedOrigin(t *testing.T) {
	h := middleware.NewCORSHandler([]string{"http://localhost:8081"})(trivialHandler)

	req := httptest.NewRequest(http.MethodGet, "/carpools/x/matches", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:8081", rec.Header().Get("Access-Control-Allow-Origin"))
}

// TestCORSHandler_Preflight_ParticipantHeader checks that browsers may send
// the participant key on registration calls.
func TestCORSHandler_Preflight_ParticipantHeader(t *testing.T) {
	h := middleware.NewCORSHandler([]string{"http://localhost:8081"})(trivialHandler)

	req := httptest.NewRequest(http.MethodOptions, "/carpools/x/registration", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	// Browsers send requested header names in lowercase.
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-participant-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.True(t, rec.Code == http.StatusNoContent || rec.Code == http.StatusOK,
		"expected 2xx for preflight, got %d", rec.Code)
	assert.Equal(t, "http://localhost:8081", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "x-participant-id")
}

func TestCORSHandler_GET_DisallowedOrigin(t *testing.T) {
	h := middleware.NewCORSHandler([]string{"http://localhost:8081"})(trivialHandler)

	req := httptest.NewRequest(http.MethodGet, "/carpools", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
