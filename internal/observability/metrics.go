// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the API server.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhive_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskhive_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// AuthFailuresTotal counts rejected requests at the gatekeeper,
	// labeled by guard variant (api, page).
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskhive_auth_failures_total",
			Help: "Requests rejected by the auth guard",
		},
		[]string{"guard"},
	)

	// RemindersPublishedTotal counts reminder events published to the
	// broker.
	RemindersPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskhive_reminders_published_total",
			Help: "Reminder events published",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthFailuresTotal,
		RemindersPublishedTotal,
	)
}
