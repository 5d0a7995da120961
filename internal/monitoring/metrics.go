package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	LifecycleOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "org_lifecycle_operations_total",
			Help: "Total number of organization lifecycle operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)
	PartialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "org_partial_failures_total",
			Help: "Multi-store operations that aborted mid-sequence leaving orphaned resources",
		},
		[]string{"operation"},
	)
	MigrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "org_partition_migration_duration_seconds",
			Help:    "Duration of partition migration during rename in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
	MigratedRecords = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "org_partition_migrated_records",
			Help:    "Number of records copied per partition migration",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
)

// InitMetrics registers the service collectors with the default registry.
// Duplicate registration (e.g. in tests) is logged, not fatal.
func InitMetrics(log *zap.Logger) {
	for _, c := range []prometheus.Collector{LifecycleOps, PartialFailures, MigrationDuration, MigratedRecords} {
		if err := prometheus.Register(c); err != nil {
			log.Warn("failed to register metric collector", zap.Error(err))
		}
	}
}
