// Package metrics provides Prometheus metrics for the session pool and
// procedure invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hostcall"

// Collector holds all Prometheus metrics for hostcall.
type Collector struct {
	registry *prometheus.Registry

	// Pool metrics
	SessionsCreated    prometheus.Counter
	SessionsClosed     *prometheus.CounterVec
	EnvironmentApplied *prometheus.CounterVec
	SessionsIdle       prometheus.Gauge
	SessionsInUse      prometheus.Gauge
	AcquireDuration    *prometheus.HistogramVec

	// Invocation metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
}

// New creates a collector registered on a fresh registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Host sessions established by the pool",
		}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Host sessions closed by the pool",
		}, []string{"reason"}),
		EnvironmentApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "environment_apply_total",
			Help:      "Environment apply attempts on new sessions by result",
		}, []string{"result"}),
		SessionsIdle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_idle",
			Help:      "Sessions waiting in the pool",
		}),
		SessionsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_in_use",
			Help:      "Sessions checked out by callers",
		}),
		AcquireDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquire_duration_seconds",
			Help:      "Time spent acquiring a session",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
		}, []string{"result"}),
		InvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Procedure invocations by procedure and result",
		}, []string{"procedure", "result"}),
		InvocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Procedure invocation duration",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"procedure"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SessionCreated records a new session.
func (c *Collector) SessionCreated() { c.SessionsCreated.Inc() }

// SessionClosed records a closed session.
func (c *Collector) SessionClosed(reason string) { c.SessionsClosed.WithLabelValues(reason).Inc() }

// EnvironmentResult records the outcome of an environment apply.
func (c *Collector) EnvironmentResult(result string) {
	c.EnvironmentApplied.WithLabelValues(result).Inc()
}

// SetSessions records the idle and checked-out session counts.
func (c *Collector) SetSessions(idle, inUse int) {
	c.SessionsIdle.Set(float64(idle))
	c.SessionsInUse.Set(float64(inUse))
}

// AcquireObserved records one Acquire call.
func (c *Collector) AcquireObserved(d time.Duration, result string) {
	c.AcquireDuration.WithLabelValues(result).Observe(d.Seconds())
}

// InvocationObserved records one procedure invocation.
func (c *Collector) InvocationObserved(procedure, result string, d time.Duration) {
	c.InvocationsTotal.WithLabelValues(procedure, result).Inc()
	c.InvocationDuration.WithLabelValues(procedure).Observe(d.Seconds())
}
