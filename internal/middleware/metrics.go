package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "todo",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	requestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "todo",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	// rejectedTotal counts requests turned away before reaching a handler.
	// reason is "unauthenticated" or "rate_limited".
	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected by the session gate or rate limiter.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, requestsInFlight, rejectedTotal)
}

// MetricsMiddleware records request counts, latency and in-flight requests.
// Routes are labelled by their chi pattern, so it must run inside the router.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		route := routeLabel(r)
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.code())).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
