package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds the Prometheus instruments of the portal
type Metrics struct {
	// Workflow
	TransitionsTotal     *prometheus.CounterVec
	ConflictsTotal       prometheus.Counter
	RoutingFailuresTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// InitMetrics creates and registers all instruments with reg
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_workflow_transitions_total",
			Help: "Workflow engine operations by action and outcome.",
		}, []string{"action", "outcome"}),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_workflow_conflicts_total",
			Help: "Optimistic concurrency conflicts seen by the workflow engine.",
		}),
		RoutingFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_routing_failures_total",
			Help: "Assignee resolution failures by reason.",
		}, []string{"reason"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.TransitionsTotal,
		m.ConflictsTotal,
		m.RoutingFailuresTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// RecordTransition counts one engine operation
func (m *Metrics) RecordTransition(action, outcome string) {
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordConflict counts one stale-version write
func (m *Metrics) RecordConflict() {
	m.ConflictsTotal.Inc()
}

// RecordRoutingFailure counts one failed assignee resolution
func (m *Metrics) RecordRoutingFailure(reason string) {
	m.RoutingFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GinMiddleware records every request under its route template, so path
// parameters do not become label values
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
