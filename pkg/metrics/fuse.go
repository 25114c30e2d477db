package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FUSEMetrics collects per-operation metrics for the FUSE request handlers.
//
// The FUSE adapter records every handled kernel request through this
// interface. Handlers always hold a non-nil instance: NewFUSEMetrics returns
// a no-op implementation when collection is disabled.
type FUSEMetrics interface {
	// RecordRequest records one handled request with its duration and
	// outcome. Operation names: "getattr", "lookup", "readdir",
	// "readdirplus", "open", "opendir", "read", "statfs".
	// Status is "ok" or "error".
	RecordRequest(operation string, duration time.Duration, status string)

	// RecordBytesRead records payload bytes returned by a read request.
	RecordBytesRead(n int)
}

// fuseMetrics is the Prometheus implementation of FUSEMetrics.
type fuseMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesReadTotal  prometheus.Counter
}

// NewFUSEMetrics creates a Prometheus-backed FUSEMetrics instance, or the
// no-op implementation if metrics are disabled.
func NewFUSEMetrics() FUSEMetrics {
	if !IsEnabled() {
		return NewNoopFUSEMetrics()
	}

	reg := GetRegistry()

	return &fuseMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "bucketfs_fuse_requests_total",
				Help: "Total number of FUSE requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "bucketfs_fuse_request_duration_seconds",
				Help: "Duration of FUSE request handling in seconds",
				Buckets: []float64{
					0.0001, // 100µs (table-only requests)
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s (reads of large objects)
					30.0,   // 30s
				},
			},
			[]string{"operation"},
		),
		bytesReadTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "bucketfs_fuse_bytes_read_total",
				Help: "Total payload bytes returned by read requests",
			},
		),
	}
}

func (m *fuseMetrics) RecordRequest(operation string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *fuseMetrics) RecordBytesRead(n int) {
	m.bytesReadTotal.Add(float64(n))
}

// noopFUSEMetrics discards all observations.
type noopFUSEMetrics struct{}

// NewNoopFUSEMetrics returns a FUSEMetrics that discards everything.
func NewNoopFUSEMetrics() FUSEMetrics {
	return noopFUSEMetrics{}
}

func (noopFUSEMetrics) RecordRequest(string, time.Duration, string) {}
func (noopFUSEMetrics) RecordBytesRead(int)                         {}
