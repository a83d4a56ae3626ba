// Package metrics exposes Prometheus collectors for the notebook server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prn-tf/notebook-server/internal/auth"
)

const namespace = "notebook"

// Metrics holds every collector the server records.
type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequests counts requests by method, route and status.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes request latency by method and route.
	HTTPDuration *prometheus.HistogramVec

	// AuthAdmitted counts requests admitted by credential kind.
	AuthAdmitted *prometheus.CounterVec

	// AuthRejected counts requests rejected by reason.
	AuthRejected *prometheus.CounterVec

	// LoginAttempts counts logins by outcome ("success", "failure").
	LoginAttempts *prometheus.CounterVec

	// Registrations counts successful registrations.
	Registrations prometheus.Counter

	// AccessDenied counts ownership denials by resource kind.
	AccessDenied *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry that also
// carries the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "admitted_total",
			Help:      "Requests admitted by the auth middleware, by credential kind.",
		}, []string{"credential"}),
		AuthRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "rejected_total",
			Help:      "Requests rejected by the auth middleware, by reason.",
		}, []string{"reason"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Successful identity registrations.",
		}),
		AccessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ownership",
			Name:      "access_denied_total",
			Help:      "Writes refused because the resource belongs to another identity.",
		}, []string{"resource"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.AuthAdmitted,
		m.AuthRejected,
		m.LoginAttempts,
		m.Registrations,
		m.AccessDenied,
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Admitted implements auth.Observer.
func (m *Metrics) Admitted(kind auth.CredentialKind) {
	m.AuthAdmitted.WithLabelValues(kind.String()).Inc()
}

// Rejected implements auth.Observer.
func (m *Metrics) Rejected(reason auth.RejectReason) {
	m.AuthRejected.WithLabelValues(string(reason)).Inc()
}

// RecordLogin counts one login attempt.
func (m *Metrics) RecordLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// RecordRegistration counts one successful registration.
func (m *Metrics) RecordRegistration() {
	m.Registrations.Inc()
}

// RecordAccessDenied counts one ownership denial.
func (m *Metrics) RecordAccessDenied(resource string) {
	m.AccessDenied.WithLabelValues(resource).Inc()
}

// Middleware records request counts and latency, labelled with the chi
// route pattern rather than the raw path.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

var _ auth.Observer = (*Metrics)(nil)
