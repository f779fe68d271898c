package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/genea-app/genea/internal/build"
	"github.com/genea-app/genea/pkg/middleware"
)

const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "http_requests_total",
		Help:      "The total number of HTTP requests served, by route and status code.",
	}, []string{"route", "status"})

	httpRequestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:                       build.ProjectName,
		Name:                            "http_request_duration_ms",
		Help:                            "The latency (in ms) of HTTP requests, by route and status code.",
		Buckets:                         []float64{1, 5, 10, 25, 50, 100, 200, 300, 500, 1000, 2000, 5000, 10000},
		NativeHistogramBucketFactor:     1.1,
		NativeHistogramMaxBucketNumber:  100,
		NativeHistogramMinResetDuration: time.Hour,
	}, []string{"route", "status"})
)

// MetricsHandler records the count and latency of every request against the
// route pattern it matched.
func MetricsHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, info := middleware.EnsureRequestInfo(r)

		m := httpsnoop.CaptureMetrics(next, w, r)

		route := info.Route
		if route == "" {
			route = unmatchedRoute
		}
		status := strconv.Itoa(m.Code)

		httpRequestsTotal.WithLabelValues(route, status).Inc()
		httpRequestDurationHistogram.WithLabelValues(route, status).Observe(float64(m.Duration.Milliseconds()))
	})
}
