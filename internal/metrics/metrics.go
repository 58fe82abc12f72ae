// Package metrics exposes Prometheus collectors for the scraping service.
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

var (
	authCrawlsTotal            *prometheus.CounterVec
	authSetupsTotal            *prometheus.CounterVec
	platformLinksExtracted     *prometheus.HistogramVec
	platformContentCrawlsTotal *prometheus.CounterVec
	activeBrowserSessions      prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		authCrawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlgate_auth_crawls_total",
				Help: "Total authenticated crawls, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		authSetupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlgate_auth_setups_total",
				Help: "Total login setup runs, labeled by strategy and outcome.",
			},
			[]string{"strategy", "status"},
		)

		platformLinksExtracted = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawlgate_platform_links_extracted",
				Help:    "Links found per extraction run, labeled by platform.",
				Buckets: []float64{0, 1, 5, 10, 20, 50},
			},
			[]string{"platform"},
		)

		platformContentCrawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawlgate_platform_content_crawls_total",
				Help: "Total platform content crawls, labeled by platform and outcome.",
			},
			[]string{"platform", "status"},
		)

		activeBrowserSessions = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawlgate_active_browser_sessions",
				Help: "Number of browser sessions currently open.",
			},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthCrawl counts one authenticated crawl outcome.
func ObserveAuthCrawl(site, status string) {
	authCrawlsTotal.WithLabelValues(site, status).Inc()
}

// ObserveSetup counts one login setup outcome.
func ObserveSetup(strategy, status string) {
	authSetupsTotal.WithLabelValues(strategy, status).Inc()
}

// ObserveLinksExtracted records how many links an extraction run found.
func ObserveLinksExtracted(platform string, count int) {
	platformLinksExtracted.WithLabelValues(platform).Observe(float64(count))
}

// ObserveContentCrawl counts one platform content crawl outcome.
func ObserveContentCrawl(platform, status string) {
	platformContentCrawlsTotal.WithLabelValues(platform, status).Inc()
}

// IncBrowserSessions increments the open browser sessions gauge.
func IncBrowserSessions() {
	activeBrowserSessions.Inc()
}

// DecBrowserSessions decrements the open browser sessions gauge.
func DecBrowserSessions() {
	activeBrowserSessions.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
