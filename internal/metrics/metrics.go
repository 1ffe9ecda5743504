// Package metrics exposes Prometheus collectors for the parser service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes recorded by ObservePage.
const (
	OutcomeParsed     = "parsed"
	OutcomeIncomplete = "incomplete"
	OutcomeNotFound   = "not_found"
	OutcomeMalformed  = "malformed"
	OutcomeDuplicate  = "duplicate"
)

var (
	parserPagesTotal           *prometheus.CounterVec
	parserTokensDiscovered     *prometheus.CounterVec
	parserRecordsStoredTotal   prometheus.Counter
	parserWorkerFailuresTotal  *prometheus.CounterVec
	parserWorkerRestartsTotal  *prometheus.CounterVec
	parserQueueDepth           *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		parserPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_pages_total",
				Help: "Total number of pages handled, labeled by worker kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		parserTokensDiscovered = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_tokens_discovered_total",
				Help: "Total number of tokens forwarded to the frontier, labeled by worker kind.",
			},
			[]string{"kind"},
		)

		parserRecordsStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parser_records_stored_total",
				Help: "Total number of normalized user records handed to storage.",
			},
		)

		parserWorkerFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_worker_failures_total",
				Help: "Total number of workers that entered the error state, labeled by kind.",
			},
			[]string{"kind"},
		)

		parserWorkerRestartsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parser_worker_restarts_total",
				Help: "Total number of worker restarts, labeled by kind.",
			},
			[]string{"kind"},
		)

		parserQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parser_queue_depth",
				Help: "Number of pages buffered in each queue.",
			},
			[]string{"kind"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for a kind and outcome.
func ObservePage(kind, outcome string) {
	Init()
	parserPagesTotal.WithLabelValues(kind, outcome).Inc()
}

// ObserveTokens adds n forwarded tokens for a kind.
func ObserveTokens(kind string, n int) {
	Init()
	if n > 0 {
		parserTokensDiscovered.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveRecordStored increments the stored record counter.
func ObserveRecordStored() {
	Init()
	parserRecordsStoredTotal.Inc()
}

// ObserveWorkerFailure increments the failure counter for a kind.
func ObserveWorkerFailure(kind string) {
	Init()
	parserWorkerFailuresTotal.WithLabelValues(kind).Inc()
}

// WorkerFailures returns the failure counter of a worker kind.
func WorkerFailures(kind string) prometheus.Counter {
	Init()
	return parserWorkerFailuresTotal.WithLabelValues(kind)
}

// ObserveWorkerRestart increments the restart counter for a kind.
func ObserveWorkerRestart(kind string) {
	Init()
	parserWorkerRestartsTotal.WithLabelValues(kind).Inc()
}

// SetQueueDepth records the buffered item count of a queue.
func SetQueueDepth(kind string, depth int) {
	Init()
	parserQueueDepth.WithLabelValues(kind).Set(float64(depth))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
