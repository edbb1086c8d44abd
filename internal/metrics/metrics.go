package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// REST metrics
	RestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateio_rest_requests_total",
			Help: "REST requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateio_rest_request_duration_seconds",
			Help:    "REST round trip time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateio_rate_limit_wait_seconds",
			Help:    "Time spent waiting for a rate limit token",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"bucket"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateio_circuit_breaker_state",
			Help: "REST circuit breaker state (0=closed, 1=open, 2=half open)",
		},
	)

	// WebSocket metrics
	WSFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateio_ws_frames_total",
			Help: "Decoded WebSocket frames by channel and variant",
		},
		[]string{"channel", "kind"},
	)

	WSDecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateio_ws_decode_errors_total",
			Help: "WebSocket frames that failed to decode",
		},
		[]string{"channel"},
	)

	WSServerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateio_ws_server_errors_total",
			Help: "Server messages carrying an error object",
		},
		[]string{"channel", "code"},
	)

	WSConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateio_ws_connection_state",
			Help: "Dispatcher state per endpoint (0=open, 1=closing, 2=closed, 3=failed)",
		},
		[]string{"endpoint"},
	)

	StreamDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateio_stream_dropped_total",
			Help: "Updates dropped because a subscriber buffer was full",
		},
		[]string{"channel"},
	)
)

// ObserveRest records one REST call.
func ObserveRest(operation, outcome string, started time.Time) {
	RestRequests.WithLabelValues(operation, outcome).Inc()
	RestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
