package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the daybook collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the auth server.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "daybook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests handled by the auth server.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	rateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Requests rejected with 429 per guarded route.",
		},
		[]string{"route"},
	)

	refreshOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Access credential refresh attempts by outcome.",
		},
		[]string{"side", "result"},
	)

	gatewayOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway requests by terminal state.",
		},
		[]string{"state"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		rateLimitRejections,
		refreshOutcomes,
		gatewayOutcomes,
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRateLimitRejection counts a 429 on the named route.
func RecordRateLimitRejection(route string) {
	rateLimitRejections.WithLabelValues(route).Inc()
}

// RecordRefresh counts a refresh attempt. side is "client" or "server".
func RecordRefresh(side string, success bool) {
	refreshOutcomes.WithLabelValues(side, strconv.FormatBool(success)).Inc()
}

// RecordGatewayOutcome counts a gateway request reaching a terminal state.
func RecordGatewayOutcome(state string) {
	gatewayOutcomes.WithLabelValues(state).Inc()
}

// InstrumentHandler wraps next with request count and latency collection.
func InstrumentHandler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps label cardinality bounded: /api/auth/* paths are kept
// whole, anything else collapses to its first segment.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	if strings.HasPrefix(trimmed, "api/auth/") {
		return "/" + trimmed
	}
	return "/" + strings.SplitN(trimmed, "/", 2)[0]
}
