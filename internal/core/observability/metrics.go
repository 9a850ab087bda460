// Package observability holds the service-wide Prometheus metrics.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream WMTS calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	tileRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_requests_total",
			Help: "Tile fetches by celestial body and upstream outcome.",
		},
		[]string{"body", "outcome"},
	)

	tileValidationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_validation_failures_total",
			Help: "Tile requests rejected before any upstream call, by error kind.",
		},
		[]string{"body", "kind"},
	)

	hotTilesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hot_tiles",
			Help: "Number of tiles currently tracked by the hotness model.",
		},
		[]string{"tier"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, seconds float64) {
	s := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, s).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, s).Observe(seconds)
}

func ObserveUpstreamLatency(upstream string, seconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(seconds)
}

func ObserveTileOutcome(body, outcome string) {
	tileRequestsTotal.WithLabelValues(body, outcome).Inc()
}

func ObserveValidationFailure(body, kind string) {
	tileValidationFailuresTotal.WithLabelValues(body, kind).Inc()
}

func SetHotTilesGauge(tier string, n int) {
	hotTilesGauge.WithLabelValues(tier).Set(float64(n))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
