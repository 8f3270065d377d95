// Package service contains the business logic for the carpool API.
// Services validate inputs, enforce business rules, and orchestrate repo calls.
// No SQL lives here: services depend on repo interfaces, not implementations.
package service

import (
	"io"
	"log/slog"
	"time"

	"github.com/pkordes/easy-carpool/internal/metrics"
	"github.com/pkordes/easy-carpool/internal/storecall"
)

// Runtime carries the collaborators every service shares. The zero value is
// usable: logs are discarded, metrics are off, and the clock is time.Now.
type Runtime struct {
	Calls   storecall.Policy
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time
}

func (rt Runtime) log() *slog.Logger {
	if rt.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rt.Logger
}

func (rt Runtime) now() time.Time {
	if rt.Clock == nil {
		return time.Now()
	}
	return rt.Clock()
}
