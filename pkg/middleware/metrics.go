package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	friendRequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "friend_request_transitions_total",
			Help: "Friend request resolutions by decision and outcome",
		},
		[]string{"decision", "outcome"},
	)
)

// PrometheusMiddleware records request counts and latencies by route template.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := wrap(w)

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// RecordFriendTransition counts one resolve attempt. outcome is "ok" or an error kind.
func RecordFriendTransition(decision, outcome string) {
	friendRequestTransitions.WithLabelValues(decision, outcome).Inc()
}
