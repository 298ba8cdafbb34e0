// Package metrics exposes Prometheus collectors for the storefront finder.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_search_pages_total",
			Help: "Search provider pages requested, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	resultsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_results_skipped_total",
			Help: "Search results dropped before persistence, labeled by reason.",
		},
		[]string{"reason"},
	)

	storesDiscoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefinder_stores_discovered_total",
			Help: "Stores canonicalized and located.",
		},
	)

	locationSourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_location_sources_total",
			Help: "Location results, labeled by the strategy that produced them.",
		},
		[]string{"source"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_fetches_total",
			Help: "Storefront HTTP fetches, labeled by status class.",
		},
		[]string{"status"},
	)

	upsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_upserts_total",
			Help: "Store upserts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	productsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_products_total",
			Help: "Catalog products processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	robotsFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefinder_robots_fallbacks_total",
			Help: "robots.txt probes that timed out and were treated as allow-all.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefinder_ops_http_requests_total",
			Help: "Ops server requests, labeled by method and status code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefinder_ops_http_request_duration_seconds",
			Help:    "Ops server request latency, labeled by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefinder_rate_limit_delays_seconds",
			Help:    "Histogram of per-host rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)
)

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

// StatusClass buckets an HTTP status code ("2xx", "4xx", ...). Zero maps to "error".
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "error"
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearchPage counts one provider page by outcome (ok, absent, empty, error).
func ObserveSearchPage(outcome string) {
	searchPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSkip counts a dropped search result.
func ObserveSkip(reason string) {
	resultsSkippedTotal.WithLabelValues(reason).Inc()
}

// ObserveDiscovered counts a located store.
func ObserveDiscovered() {
	storesDiscoveredTotal.Inc()
}

// ObserveLocation counts a location result by source.
func ObserveLocation(source string) {
	locationSourcesTotal.WithLabelValues(source).Inc()
}

// ObserveFetch counts a storefront fetch by status code (0 for transport errors).
func ObserveFetch(statusCode int) {
	fetchesTotal.WithLabelValues(StatusClass(statusCode)).Inc()
}

// ObserveUpserts adds saved and skipped counts for one batch.
func ObserveUpserts(saved, skipped int) {
	if saved > 0 {
		upsertsTotal.WithLabelValues("saved").Add(float64(saved))
	}
	if skipped > 0 {
		upsertsTotal.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// ObserveProduct counts a catalog product by outcome (inserted, failed).
func ObserveProduct(outcome string) {
	productsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRobotsFallback counts a robots.txt probe treated as allow-all.
func ObserveRobotsFallback() {
	robotsFallbacksTotal.Inc()
}

// ObserveHTTPRequest records an ops server request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
