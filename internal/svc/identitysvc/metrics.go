package identitysvc

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkrupp/teamify/internal/domain"
)

// Operation results recorded by Metrics.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Metrics holds the service's Prometheus collectors on a dedicated registry.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	users      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teamify",
			Subsystem: "identity",
			Name:      "operations_total",
			Help:      "Identity store operations by operation and result.",
		}, []string{"operation", "result"}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "teamify",
			Subsystem: "identity",
			Name:      "users",
			Help:      "Number of registered users as of the last list or registration.",
		}),
	}

	m.registry.MustRegister(
		m.operations,
		m.users,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe counts one operation with the result derived from err.
func (m *Metrics) Observe(operation string, err error) {
	m.operations.WithLabelValues(operation, resultOf(err)).Inc()
}

// SetUsers records the current number of users.
func (m *Metrics) SetUsers(n int) {
	m.users.Set(float64(n))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case isRejection(err):
		return ResultRejected
	default:
		return ResultError
	}
}

// isRejection reports whether err is an expected, caller-caused failure.
func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrDuplicateEmail,
		domain.ErrUserNotFound,
		domain.ErrInvalidCredentials,
		domain.ErrNameRequired,
		domain.ErrInvalidEmail,
		domain.ErrPasswordTooShort,
		domain.ErrNotAuthenticated,
		domain.ErrCompanyNameRequired,
		domain.ErrCompanySizeRequired,
		domain.ErrUnknownPlan,
		domain.ErrInvalidAuthToken,
		domain.ErrNoAuthToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
