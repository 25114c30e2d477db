package s3

import "time"

// S3Metrics is the consumer-side metrics interface for the S3 backend.
//
// The concrete Prometheus implementation lives in pkg/metrics; keeping the
// interface here means this package has no dependency on the metrics stack
// and works with a nil/no-op collector.
type S3Metrics interface {
	// ObserveOperation records one backend call with its duration and outcome.
	// Operation names: "list", "fetch".
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes records bytes transferred for an operation.
	RecordBytes(operation string, bytes int64)
}

// noopMetrics is used when no metrics collector is configured.
type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}
