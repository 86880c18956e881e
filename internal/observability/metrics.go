package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drinks_api"

// Result label values
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultHit     = "hit"
	ResultMiss    = "miss"
)

// Metrics holds the collectors exported by the service
type Metrics struct {
	authDecisions    *prometheus.CounterVec
	authDuration     *prometheus.HistogramVec
	jwksFetches      *prometheus.CounterVec
	jwksFetchLatency prometheus.Histogram
	keyCacheLookups  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "decisions_total",
				Help:      "Authorization decisions by result and error code",
			},
			[]string{"result", "code"},
		),
		authDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "decision_duration_seconds",
				Help:      "Time spent extracting, verifying and authorizing a token",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		jwksFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jwks",
				Name:      "fetches_total",
				Help:      "JWKS document fetches from the identity provider",
			},
			[]string{"result"},
		),
		jwksFetchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "jwks",
				Name:      "fetch_duration_seconds",
				Help:      "Latency of JWKS document fetches",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		keyCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "jwks",
				Name:      "cache_lookups_total",
				Help:      "Key set cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.authDecisions,
		m.authDuration,
		m.jwksFetches,
		m.jwksFetchLatency,
		m.keyCacheLookups,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// RecordAuthDecision counts one guard outcome. An empty code means the request was allowed.
func (m *Metrics) RecordAuthDecision(code string, duration time.Duration) {
	if m == nil {
		return
	}
	result := ResultAllowed
	if code != "" {
		result = ResultDenied
	}
	m.authDecisions.WithLabelValues(result, code).Inc()
	m.authDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordJWKSFetch counts one fetch of the key set document
func (m *Metrics) RecordJWKSFetch(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.jwksFetches.WithLabelValues(result).Inc()
	m.jwksFetchLatency.Observe(duration.Seconds())
}

// RecordKeyCacheLookup counts a lookup served from (hit) or missing (miss) the in-memory key set
func (m *Metrics) RecordKeyCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := ResultHit
	if !hit {
		result = ResultMiss
	}
	m.keyCacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one served request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
