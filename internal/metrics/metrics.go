// Package metrics exposes Prometheus collectors for the scraper and sheet sync.
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
	scraperPagesTotal           *prometheus.CounterVec
	scraperRecordsTotal         *prometheus.CounterVec
	sheetsWritesTotal           *prometheus.CounterVec
	sheetsRetriesTotal          *prometheus.CounterVec
	runsTotal                   *prometheus.CounterVec
	runDurationSeconds          *prometheus.HistogramVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	activeWorkers               prometheus.Gauge
	fetchRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total number of listing pages fetched, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		scraperRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_records_total",
				Help: "Total number of unique records scraped, labeled by kind.",
			},
			[]string{"kind"},
		)

		sheetsWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_writes_total",
				Help: "Total number of worksheet writes, labeled by status.",
			},
			[]string{"status"},
		)

		sheetsRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheets_quota_retries_total",
				Help: "Total number of sheet calls retried after a quota rejection, labeled by operation.",
			},
			[]string{"op"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_runs_total",
				Help: "Total number of sync runs, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_run_duration_seconds",
				Help:    "Histogram of sync run durations, labeled by kind.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
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

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_active_workers",
				Help: "Number of workers currently executing a run.",
			},
		)

		fetchRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of fetch rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
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

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one fetched listing page.
func ObservePage(kind, status string) {
	Init()
	scraperPagesTotal.WithLabelValues(kind, status).Inc()
}

// ObserveRecords adds the unique record count of a finished scrape.
func ObserveRecords(kind string, n int) {
	Init()
	if n > 0 {
		scraperRecordsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveSheetWrite counts a worksheet write outcome.
func ObserveSheetWrite(status string) {
	Init()
	sheetsWritesTotal.WithLabelValues(status).Inc()
}

// ObserveSheetRetry counts a quota-triggered retry.
func ObserveSheetRetry(op string) {
	Init()
	sheetsRetriesTotal.WithLabelValues(op).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(kind, status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(kind, status).Inc()
	runDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a fetch rate limit wait.
func ObserveRateLimitDelay(rawURL string, duration time.Duration) {
	Init()
	fetchRateLimitDelaysSeconds.WithLabelValues(SanitizeSite(rawURL)).Observe(duration.Seconds())
}
