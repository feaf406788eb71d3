// Package metrics provides Prometheus metrics for the Scout server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Search metrics
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_provider_searches_total",
			Help: "Total number of searches completed per provider",
		},
		[]string{"provider"},
	)

	searchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_provider_results_total",
			Help: "Total number of results returned per provider",
		},
		[]string{"provider"},
	)

	searchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_provider_search_duration_seconds",
			Help:    "Time from submission to completion of a provider search",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	engineCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_engine_cache_hits_total",
			Help: "Searches answered from the engine result cache",
		},
	)

	// Drive API metrics
	driveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_drive_requests_total",
			Help: "Total number of Drive API requests",
		},
		[]string{"op", "status"},
	)

	drivePagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_drive_list_pages_total",
			Help: "Total number of list pages fetched from Drive",
		},
	)

	tokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_drive_token_exchanges_total",
			Help: "Total number of refresh-token exchanges",
		},
		[]string{"result"},
	)
)

// ObserveSearch records one completed provider search.
func ObserveSearch(provider string, d time.Duration, results int) {
	searchesTotal.WithLabelValues(provider).Inc()
	searchResults.WithLabelValues(provider).Add(float64(results))
	searchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// CacheHit records a search served from the engine cache.
func CacheHit() {
	engineCacheHits.Inc()
}

// DriveRequest records a Drive API call. status is the HTTP status code,
// or 0 when the request failed before a response arrived.
func DriveRequest(op string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	driveRequestsTotal.WithLabelValues(op, label).Inc()
}

// DrivePage records one fetched list page.
func DrivePage() {
	drivePagesTotal.Inc()
}

// TokenExchange records the outcome of a refresh-token exchange.
func TokenExchange(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	tokenExchangesTotal.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency, labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
