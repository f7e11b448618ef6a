package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the relay service.
var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Number of relay requests received, by operation kind and endpoint.",
		},
		[]string{"kind", "endpoint"},
	)
	GuardFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_guard_failures_total",
			Help: "Number of requests rejected before signing, by failure code.",
		},
		[]string{"code"},
	)
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_submissions_total",
			Help: "Number of relay broadcasts, by terminal state.",
		},
		[]string{"state"},
	)
)

// Register registers the relay metrics with the default registry.
func Register() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(GuardFailuresTotal)
	prometheus.MustRegister(SubmissionsTotal)
}
