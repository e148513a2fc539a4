package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	IncomingMessages *prometheus.CounterVec
	OutgoingMessages *prometheus.CounterVec
	ExtractRequests  *prometheus.CounterVec
	ExtractLatency   *prometheus.HistogramVec
	ExtractCacheHits prometheus.Counter
	PaymentInserts   *prometheus.CounterVec
	Errors           *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			IncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incoming_messages_total",
				Help:      "Total incoming chat messages processed.",
			}, []string{"type"}),
			OutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outgoing_messages_total",
				Help:      "Total outgoing chat messages sent.",
			}, []string{"type"}),
			ExtractRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extract_requests_total",
				Help:      "Total extraction model requests by outcome.",
			}, []string{"status"}),
			ExtractLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extract_request_duration_seconds",
				Help:      "Latency distribution for extraction model calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			ExtractCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extract_cache_hits_total",
				Help:      "Total extraction results served from cache.",
			}),
			PaymentInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_inserts_total",
				Help:      "Total payment rows inserted by outcome.",
			}, []string{"status"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.IncomingMessages,
			metricsInstance.OutgoingMessages,
			metricsInstance.ExtractRequests,
			metricsInstance.ExtractLatency,
			metricsInstance.ExtractCacheHits,
			metricsInstance.PaymentInserts,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
