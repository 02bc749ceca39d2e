// Package metrics wires Prometheus instrumentation for the upload
// engine, scanner, and HTTP surface as a single nil-safe collector:
// every method is safe to call on a nil *Metrics, so callers never
// branch on whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector this service exports.
// A nil *Metrics disables collection with zero overhead; New(false)
// returns nil directly so call sites can do `m := metrics.New(cfg.Enabled)`
// unconditionally.
type Metrics struct {
	objectOpsTotal   *prometheus.CounterVec
	objectOpDuration *prometheus.HistogramVec
	bytesTransferred *prometheus.CounterVec
	activeUploads    prometheus.Gauge
	partNumber       prometheus.Histogram
	scanTickDuration prometheus.Histogram
	scanObjectsSeen  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New builds a Metrics registered against prometheus.DefaultRegisterer,
// or returns nil if enabled is false.
func New(enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer builds a Metrics registered against reg. Exposed
// so tests can register against a scratch prometheus.Registry instead
// of the process-global default.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		objectOpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ditto_object_store_operations_total",
			Help: "Total object store operations by operation and outcome.",
		}, []string{"operation", "status"}),
		objectOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ditto_object_store_operation_duration_seconds",
			Help:    "Object store operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		bytesTransferred: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ditto_bytes_transferred_total",
			Help: "Bytes transferred to or from the object store.",
		}, []string{"direction"}),
		activeUploads: f.NewGauge(prometheus.GaugeOpts{
			Name: "ditto_active_uploads",
			Help: "Number of in-flight multipart upload sessions.",
		}),
		partNumber: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ditto_upload_part_number",
			Help:    "Distribution of part numbers uploaded, a proxy for file size.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
		scanTickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ditto_scan_tick_duration_seconds",
			Help:    "Duration of a single scanner Tick call.",
			Buckets: prometheus.DefBuckets,
		}),
		scanObjectsSeen: f.NewCounter(prometheus.CounterOpts{
			Name: "ditto_scan_objects_indexed_total",
			Help: "Total objects indexed by the generational scanner.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ditto_http_requests_total",
			Help: "Total HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ditto_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveObjectOp records one object-store operation's outcome and
// latency.
func (m *Metrics) ObserveObjectOp(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.objectOpsTotal.WithLabelValues(operation, status).Inc()
	m.objectOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBytes records bytes moved to ("write") or from ("read") the
// object store.
func (m *Metrics) RecordBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(n))
}

// SetActiveUploads reports the current live session count.
func (m *Metrics) SetActiveUploads(n int) {
	if m == nil {
		return
	}
	m.activeUploads.Set(float64(n))
}

// RecordPartNumber records the part number of a completed part upload.
func (m *Metrics) RecordPartNumber(n int) {
	if m == nil {
		return
	}
	m.partNumber.Observe(float64(n))
}

// ObserveScanTick records one scanner.Tick call's duration and the
// number of objects it indexed.
func (m *Metrics) ObserveScanTick(duration time.Duration, objectsSeen int) {
	if m == nil {
		return
	}
	m.scanTickDuration.Observe(duration.Seconds())
	m.scanObjectsSeen.Add(float64(objectsSeen))
}

// ObserveHTTPRequest records one completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, statusClass(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
