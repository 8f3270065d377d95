package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/easy-carpool/internal/logging"
)

func TestNew_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "info", "")

	log.Info("seat booked", "ride_id", "r1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "seat booked", entry["msg"])
	assert.Equal(t, "r1", entry["ride_id"])
}

func TestNew_TextUsesTint(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "debug", "text")

	log.Debug("resolving departure", "zone", "America/Chicago")

	out := buf.String()
	assert.Contains(t, out, "resolving departure")
	assert.Contains(t, out, "America/Chicago")
	assert.NotContains(t, out, `"msg"`)
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(&buf, "warn", "json")

	log.Info("hidden")

	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("chatty"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel(""))
}
