package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ctf_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	RateLimiterRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ctf_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by the auth rate limiter",
		},
	)

	// FlagSubmissions counts submissions by outcome (correct, incorrect, already_solved, invalid)
	FlagSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_flag_submissions_total",
			Help: "Flag submissions by outcome",
		},
		[]string{"outcome"},
	)

	LeaderboardRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_leaderboard_refreshes_total",
			Help: "Leaderboard refreshes by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	ScoreboardSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ctf_scoreboard_subscribers",
			Help: "Connected scoreboard websocket clients",
		},
	)

	SolveEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ctf_solve_events_total",
			Help: "Solve events seen by the realtime layer",
		},
		[]string{"source"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ctf_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)
)

// RecordDBOperation records the duration of a database operation
func RecordDBOperation(operation string, table string, startTime time.Time) {
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(time.Since(startTime).Seconds())
}
