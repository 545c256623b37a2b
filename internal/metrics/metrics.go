// Package metrics exposes Prometheus collectors for the worker.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	toolCallsTotal             *prometheus.CounterVec
	toolDurationSeconds        *prometheus.HistogramVec
	cacheLookupsTotal          *prometheus.CounterVec
	fetchRequestsTotal         *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchTimeoutsTotal         prometheus.Counter
	diagRequestsTotal          *prometheus.CounterVec
	diagRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		toolCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_tool_calls_total",
				Help: "Total number of tool invocations, labeled by tool and outcome.",
			},
			[]string{"tool", "outcome"},
		)

		toolDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "websearch_tool_duration_seconds",
				Help:    "Histogram of tool latencies, labeled by tool.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"tool"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_cache_lookups_total",
				Help: "Total number of fetch cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_fetch_requests_total",
				Help: "Total number of outbound fetches, labeled by site and status class.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchTimeoutsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "websearch_fetch_timeouts_total",
				Help: "Total number of outbound fetches that hit the request timeout.",
			},
		)

		diagRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "websearch_diagnostics_requests_total",
				Help: "Total number of diagnostics HTTP requests, labeled by route and code.",
			},
			[]string{"route", "code"},
		)

		diagRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "websearch_diagnostics_request_duration_seconds",
				Help:    "Histogram of diagnostics HTTP request latencies, labeled by route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// StatusClass buckets an HTTP status code as "2xx", "3xx", and so on.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveToolCall records one tool invocation.
func ObserveToolCall(tool, outcome string, duration time.Duration) {
	Init()
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolDurationSeconds.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveCacheLookup counts a fetch cache hit or miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records a completed outbound fetch.
func ObserveFetch(site string, statusCode int, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchRequestsTotal.WithLabelValues(sanitizedSite, StatusClass(statusCode)).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveFetchTimeout counts an outbound fetch that timed out.
func ObserveFetchTimeout() {
	Init()
	fetchTimeoutsTotal.Inc()
}

// ObserveDiagnosticsRequest records one request served by the diagnostics
// server. route is the matched chi pattern.
func ObserveDiagnosticsRequest(route string, code int, duration time.Duration) {
	Init()
	diagRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	diagRequestDurationSeconds.WithLabelValues(route).Observe(duration.Seconds())
}
