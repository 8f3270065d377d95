// Package metrics holds the Prometheus instruments for the carpool service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded by SeatBookings.
const (
	BookingAccepted = "accepted"
	BookingRejected = "no_seats"
	BookingFailed   = "error"
)

// Metrics holds all prometheus metrics.
// A nil *Metrics is valid and records nothing, which keeps tests and the
// CLI free of registry plumbing.
type Metrics struct {
	registry *prometheus.Registry

	RegistrationsWritten *prometheus.CounterVec
	SeatBookings         *prometheus.CounterVec
	StoreRetries         *prometheus.CounterVec
	ExpiredSwept         *prometheus.CounterVec
	RankDuration         prometheus.Histogram
	WatchSubscribers     prometheus.Gauge
}

// New creates the metrics on a fresh registry under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RegistrationsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_written_total",
			Help:      "Registrations written, by kind and operation.",
		}, []string{"kind", "op"}),
		SeatBookings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seat_bookings_total",
			Help:      "Seat booking attempts, by outcome.",
		}, []string{"outcome"}),
		StoreRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_retries_total",
			Help:      "Store calls retried after a transient failure.",
		}, []string{"op"}),
		ExpiredSwept: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_registrations_swept_total",
			Help:      "Registrations deleted by the sweeper after expiring.",
		}, []string{"kind"}),
		RankDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_view_seconds",
			Help:      "Time taken to build a ranked match view.",
			Buckets:   prometheus.DefBuckets,
		}),
		WatchSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_subscribers",
			Help:      "Open websocket match-view subscriptions.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RegistrationWritten(kind, op string) {
	if m == nil {
		return
	}
	m.RegistrationsWritten.WithLabelValues(kind, op).Inc()
}

func (m *Metrics) SeatBooking(outcome string) {
	if m == nil {
		return
	}
	m.SeatBookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StoreRetry(op string, _ error) {
	if m == nil {
		return
	}
	m.StoreRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) Swept(kind string, n int64) {
	if m == nil {
		return
	}
	m.ExpiredSwept.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) ObserveRank(seconds float64) {
	if m == nil {
		return
	}
	m.RankDuration.Observe(seconds)
}

func (m *Metrics) WatchOpened() {
	if m == nil {
		return
	}
	m.WatchSubscribers.Inc()
}

func (m *Metrics) WatchClosed() {
	if m == nil {
		return
	}
	m.WatchSubscribers.Dec()
}
