// Package metrics owns the prometheus registry exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	IndexBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_index_builds_total",
		Help: "Search index builds by outcome (published, discarded, failed).",
	}, []string{"outcome"})

	SummaryCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "summary_cache_lookups_total",
		Help: "Summary cache lookups by result (hit, miss).",
	}, []string{"result"})

	AIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ai_requests_total",
		Help: "Calls to the generative provider by operation and outcome.",
	}, []string{"operation", "outcome"})

	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Open websocket connections.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		IndexBuilds,
		SummaryCache,
		AIRequests,
		WSConnections,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
