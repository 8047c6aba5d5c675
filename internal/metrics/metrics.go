// Package metrics exposes Prometheus instrumentation for archive operations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *ArchiveMetrics
)

// ArchiveMetrics holds all Prometheus metrics for the archive service.
type ArchiveMetrics struct {
	OperationsTotal   *prometheus.CounterVec   // archivehub_operations_total{action,status}
	OperationDuration *prometheus.HistogramVec // archivehub_operation_duration_seconds{action}
	BytesUploaded     prometheus.Counter       // archivehub_bytes_uploaded_total
	BytesDownloaded   prometheus.Counter       // archivehub_bytes_downloaded_total
	RollbacksTotal    *prometheus.CounterVec   // archivehub_rollbacks_total{operation}
}

// Init registers the archive metrics. Metrics are only registered once;
// subsequent calls return the same instance.
func Init(registry prometheus.Registerer) *ArchiveMetrics {
	once.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		instance = &ArchiveMetrics{
			OperationsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "archivehub_operations_total",
				Help: "Total archive operations by action and status",
			}, []string{"action", "status"}),

			OperationDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "archivehub_operation_duration_seconds",
				Help:    "Archive operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"action"}),

			BytesUploaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "archivehub_bytes_uploaded_total",
				Help: "Total bytes accepted by uploads",
			}),

			BytesDownloaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "archivehub_bytes_downloaded_total",
				Help: "Total bytes served by downloads",
			}),

			RollbacksTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "archivehub_rollbacks_total",
				Help: "Compensating rollbacks triggered by catalog failures",
			}, []string{"operation"}),
		}
	})

	return instance
}

// RecordOperation records one completed operation.
func (m *ArchiveMetrics) RecordOperation(action, status string, durationSeconds float64) {
	m.OperationsTotal.WithLabelValues(action, status).Inc()
	m.OperationDuration.WithLabelValues(action).Observe(durationSeconds)
}

// RecordUpload records bytes accepted by an upload.
func (m *ArchiveMetrics) RecordUpload(bytes int64) {
	m.BytesUploaded.Add(float64(bytes))
}

// RecordDownload records bytes served by a download.
func (m *ArchiveMetrics) RecordDownload(bytes int64) {
	m.BytesDownloaded.Add(float64(bytes))
}

// RecordRollback records a compensating rollback.
func (m *ArchiveMetrics) RecordRollback(operation string) {
	m.RollbacksTotal.WithLabelValues(operation).Inc()
}
