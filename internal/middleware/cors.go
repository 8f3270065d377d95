package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// ParticipantHeader carries the anonymous participant key.
const ParticipantHeader = "X-Participant-ID"

// NewCORSHandler returns a middleware that applies CORS headers based on allowedOrigins.
// Each entry in allowedOrigins must be a full origin (scheme + host, no trailing slash).
func NewCORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", ParticipantHeader},
	})
	return c.Handler
}
