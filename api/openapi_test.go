package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"

	"github.com/pkordes/easy-carpool/api"
)

func TestOpenAPI_documentsEveryRoute(t *testing.T) {
	var doc struct {
		OpenAPI string         `yaml:"openapi"`
		Paths   map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(api.OpenAPI, &doc); err != nil {
		t.Fatalf("openapi.yaml does not parse: %v", err)
	}

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	for _, path := range []string{
		"/healthz",
		"/timezones",
		"/carpools",
		"/carpools/{carpoolID}",
		"/carpools/{carpoolID}/rides",
		"/carpools/{carpoolID}/rides/{rideID}",
		"/carpools/{carpoolID}/rides/{rideID}/passengers",
		"/carpools/{carpoolID}/waitlist",
		"/carpools/{carpoolID}/registration",
		"/carpools/{carpoolID}/matches",
		"/carpools/{carpoolID}/watch",
	} {
		assert.Contains(t, doc.Paths, path)
	}
}
