package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_backend_requests_total",
		Help: "Outbound backend calls by connector, HTTP method and response status.",
	}, []string{"connector", "method", "status"})

	backendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connector_backend_request_duration_seconds",
		Help:    "Latency of outbound backend calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector", "method"})

	objectsProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_objects_total",
		Help: "Card and bot objects returned to the hub.",
	}, []string{"connector", "kind"})

	actionsPerformed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connector_actions_total",
		Help: "Card actions executed, by outcome.",
	}, []string{"connector", "action", "outcome"})
)

// ObserveBackendCall records one outbound call. status is 0 when the call
// failed before a response arrived.
func ObserveBackendCall(connector, method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	backendRequests.WithLabelValues(connector, method, label).Inc()
	backendDuration.WithLabelValues(connector, method).Observe(elapsed.Seconds())
}

// ObserveObjects counts objects handed to the hub.
func ObserveObjects(connector, kind string, n int) {
	objectsProduced.WithLabelValues(connector, kind).Add(float64(n))
}

// ObserveAction counts one action execution.
func ObserveAction(connector, action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	actionsPerformed.WithLabelValues(connector, action, outcome).Inc()
}
