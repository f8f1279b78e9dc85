// File: internal/observability/metrics.go
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the automation pipeline. They register on the
// default registry; the privileged service daemon exposes them on
// /metrics. Everything else just increments.
var (
	// TasksTotal counts finished task executions by terminal state.
	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marionette",
		Name:      "tasks_total",
		Help:      "Completed task executions, labeled by terminal state.",
	}, []string{"state"})

	// StepsTotal counts executed loop steps by action kind.
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marionette",
		Name:      "steps_total",
		Help:      "Executed loop steps, labeled by action kind.",
	}, []string{"action"})

	// CaptureFailures counts screenshot backend failures by backend name.
	CaptureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marionette",
		Name:      "capture_failures_total",
		Help:      "Screenshot backend failures, labeled by backend.",
	}, []string{"backend"})

	// ServiceRequests counts privileged-service requests by endpoint and outcome.
	ServiceRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marionette",
		Name:      "service_requests_total",
		Help:      "Requests handled by the privileged GUI service.",
	}, []string{"endpoint", "outcome"})

	// PlanningDuration observes the latency of vision-model planning calls.
	PlanningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "marionette",
		Name:      "planning_duration_seconds",
		Help:      "Latency of planning calls to the vision model.",
		Buckets:   prometheus.DefBuckets,
	})
)

// MetricsHandler returns the Prometheus exposition handler for the
// default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
