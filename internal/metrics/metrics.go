// Package metrics defines the Prometheus instruments for an extraction run.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChunksFetched counts completed chunk fetches by dataset and outcome.
	ChunksFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energis_chunks_fetched_total",
			Help: "Number of chunk fetch operations completed",
		},
		[]string{"dataset", "status"},
	)

	// RowsExtracted counts rows forwarded to the sink.
	RowsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "energis_rows_extracted_total",
			Help: "Number of rows extracted and written to the sink",
		},
		[]string{"dataset"},
	)

	// AuthRetries counts login attempts retried after a session collision.
	AuthRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "energis_auth_retries_total",
			Help: "Number of login retries caused by the session-collision fault",
		},
	)

	// RequestDuration observes data request latency per dataset.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "energis_request_duration_seconds",
			Help:    "Duration of data requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dataset"},
	)
)

// Register registers all extractor metrics with the default registry.
// Call once from main before serving the metrics endpoint.
func Register() {
	prometheus.MustRegister(ChunksFetched, RowsExtracted, AuthRetries, RequestDuration)
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
