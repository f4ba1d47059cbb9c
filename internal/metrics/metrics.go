package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry served on /metrics
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// RelayConnections is the number of live websocket sessions
	RelayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "relay_connections", Help: "Live relay connections."},
	)
	// RelayTopics is the number of topics with at least one member
	RelayTopics = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "relay_topics", Help: "Topics with at least one subscriber."},
	)
	RelayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_published_total", Help: "Events fanned out, by outbound event name."},
		[]string{"event"},
	)
	RelayDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_deliveries_total", Help: "Per-member deliveries by result."},
		[]string{"result"},
	)
	RelayInboundDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_inbound_dropped_total", Help: "Inbound client events dropped, by reason."},
		[]string{"reason"},
	)
	RelayTickFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "relay_tick_failures_total", Help: "Recovered failures in periodic relay tasks."},
		[]string{"task"},
	)

	IngestRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_records_total", Help: "Records consumed from ingestion sources."},
		[]string{"source", "result"},
	)

	AIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ai_requests_total", Help: "Generative AI proxy requests by endpoint and result."},
		[]string{"endpoint", "result"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			RelayConnections,
			RelayTopics,
			RelayPublished,
			RelayDeliveries,
			RelayInboundDropped,
			RelayTickFailures,
			IngestRecords,
			AIRequests,
		)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
