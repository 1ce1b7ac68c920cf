package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_person_registrations_total",
		Help: "Person registrations by result (created, failed, timeout, creationfailed).",
	}, []string{"result"})

	syncRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registry_remote_sync_requests_total",
		Help: "Peer registry exchanges by operation and outcome.",
	}, []string{"operation", "outcome"})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "registry_remote_sync_duration_seconds",
		Help:    "Duration of peer registry exchanges.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
)

func ObserveRegistration(result string) {
	registrations.WithLabelValues(result).Inc()
}

// ObserveSync records one peer exchange started at start.
func ObserveSync(operation, outcome string, start time.Time) {
	syncRequests.WithLabelValues(operation, outcome).Inc()
	syncDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
