package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	upstreamRequestsTotal  *prometheus.CounterVec
	upstreamLatencySeconds *prometheus.HistogramVec

	attemptsScoredTotal   *prometheus.CounterVec
	attemptsRejectedTotal *prometheus.CounterVec
	activeAttemptTimers   prometheus.Gauge
	staleResultsTotal     *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
	sessionTransitions    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the gateway.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_gateway_requests_total",
			Help: "Total number of gateway API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_gateway_latency_seconds",
			Help:    "Latency distribution for gateway API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_gateway_errors_total",
			Help: "Total number of error responses returned by the gateway.",
		}, []string{"method", "route", "status"})

		upstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_upstream_requests_total",
			Help: "Requests issued to the LMS server, by endpoint template and outcome.",
		}, []string{"method", "endpoint", "status"})

		upstreamLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lms_upstream_latency_seconds",
			Help:    "Latency of requests issued to the LMS server.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "endpoint"})

		attemptsScoredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_attempts_scored_total",
			Help: "Assessment attempts scored by the gateway.",
		}, []string{"result", "trigger"})

		attemptsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_attempts_rejected_total",
			Help: "Assessment attempts refused before or by the LMS server.",
		}, []string{"reason"})

		activeAttemptTimers = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lms_attempt_timers_active",
			Help: "Countdown timers currently armed for in-progress attempts.",
		})

		staleResultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_fetch_stale_results_total",
			Help: "Fetch results discarded because a newer request superseded them.",
		}, []string{"resource"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_notifications_total",
			Help: "Notifications emitted to learners and administrators.",
		}, []string{"level"})

		sessionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lms_session_transitions_total",
			Help: "Session login, restore and logout transitions.",
		}, []string{"transition", "result"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			upstreamRequestsTotal, upstreamLatencySeconds,
			attemptsScoredTotal, attemptsRejectedTotal, activeAttemptTimers,
			staleResultsTotal, notificationsTotal, sessionTransitions,
		)
	})
}

// HTTPRequests exposes the counter for gateway requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for gateway requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for gateway error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// UpstreamRequests exposes the counter for LMS server calls.
func UpstreamRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return upstreamRequestsTotal
}

// UpstreamLatency exposes the latency histogram for LMS server calls.
func UpstreamLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return upstreamLatencySeconds
}

// AttemptsScored counts scored attempts by result (passed/failed) and trigger (manual/timer).
func AttemptsScored() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsScoredTotal
}

// AttemptsRejected counts refused attempts by reason.
func AttemptsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return attemptsRejectedTotal
}

// ActiveAttemptTimers tracks armed countdown timers.
func ActiveAttemptTimers() prometheus.Gauge {
	RegisterMetrics()
	return activeAttemptTimers
}

// StaleResults counts superseded fetch results.
func StaleResults() *prometheus.CounterVec {
	RegisterMetrics()
	return staleResultsTotal
}

// Notifications counts emitted notifications by level.
func Notifications() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SessionTransitions counts session store transitions.
func SessionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return sessionTransitions
}
