// Package metrics provides Prometheus metrics for the sync-status tracker.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciliation metrics
	reconcilePassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_reconcile_passes_total",
			Help: "Total number of completed reconciliation passes",
		},
	)

	reconcilePassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "syncwatch_reconcile_pass_duration_seconds",
			Help:    "Time spent in one reconciliation pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_fetch_requests_total",
			Help: "On-demand fetch requests issued by reconciliation passes",
		},
		[]string{"result"},
	)

	itemsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_items_skipped_total",
			Help: "Index items skipped because their metadata was unreadable",
		},
	)

	snapshotRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_snapshot_rows",
			Help: "Number of rows in the published result snapshot",
		},
	)

	// Index metrics
	indexEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_index_events_total",
			Help: "Events delivered by the remote index query",
		},
		[]string{"kind"},
	)

	indexItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_index_items",
			Help: "Number of items in the current index result set",
		},
	)

	// Download metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_downloads_total",
			Help: "Completed content downloads",
		},
		[]string{"status"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncwatch_download_bytes_total",
			Help: "Total bytes written to the content cache",
		},
	)

	downloadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncwatch_downloads_in_flight",
			Help: "Downloads currently copying content",
		},
	)

	// Source backend metrics
	sourceOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncwatch_source_operation_duration_seconds",
			Help:    "Source backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "operation"},
	)

	sourceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_source_operations_total",
			Help: "Source backend operations by outcome",
		},
		[]string{"source", "operation", "status"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncwatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordReconcilePass records one finished pass and the size of its snapshot.
func RecordReconcilePass(duration time.Duration, rows int) {
	reconcilePassesTotal.Inc()
	reconcilePassDuration.Observe(duration.Seconds())
	snapshotRows.Set(float64(rows))
}

// RecordFetchRequest records a fetch request issued during a pass.
func RecordFetchRequest(success bool) {
	fetchRequestsTotal.WithLabelValues(outcome(success, "requested")).Inc()
}

// RecordSkippedItem records an item dropped for unreadable metadata.
func RecordSkippedItem() {
	itemsSkippedTotal.Inc()
}

// RecordIndexEvent records an event delivered by the index query.
func RecordIndexEvent(kind string, items int) {
	indexEventsTotal.WithLabelValues(kind).Inc()
	indexItems.Set(float64(items))
}

// RecordDownload records a finished download.
func RecordDownload(bytes int64, success bool) {
	downloadsTotal.WithLabelValues(outcome(success, "success")).Inc()
	if success {
		downloadBytesTotal.Add(float64(bytes))
	}
}

// AddDownloadsInFlight adjusts the in-flight download gauge.
func AddDownloadsInFlight(delta int) {
	downloadsInFlight.Add(float64(delta))
}

// RecordSourceOperation records a backend call such as a listing or a read.
func RecordSourceOperation(source, operation string, duration time.Duration, success bool) {
	sourceOperationDuration.WithLabelValues(source, operation).Observe(duration.Seconds())
	sourceOperationsTotal.WithLabelValues(source, operation, outcome(success, "success")).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func outcome(success bool, ok string) string {
	if success {
		return ok
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code. It keeps
// Flush and Hijack working so SSE and WebSocket handlers can sit behind it.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics, labelled
// by the matched route pattern rather than the raw path.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
