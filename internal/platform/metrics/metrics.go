package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuditEventsRecorded   *prometheus.CounterVec
	AuditRecordFailures   prometheus.Counter
	AuditMalformedSkipped prometheus.Counter
	AuditPartitionsPruned prometheus.Counter

	ConsentWrites    prometheus.Counter
	ConsentReads     prometheus.Counter
	ConsentDeletions prometheus.Counter

	RetentionSweeps        prometheus.Counter
	RetentionSweepFailures prometheus.Counter
	RetentionSweepDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics with the provided registerer.
// Pass prometheus.DefaultRegisterer in production; tests use their own registry
// so suites do not collide on duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuditEventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_events_recorded_total",
			Help: "Total audit events appended to the chained log, by action.",
		}, []string{"action"}),
		AuditRecordFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_record_failures_total",
			Help: "Total audit append attempts that failed at the storage layer.",
		}),
		AuditMalformedSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_malformed_entries_skipped_total",
			Help: "Total malformed stored entries skipped during audit scans.",
		}),
		AuditPartitionsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_partitions_pruned_total",
			Help: "Total day-partitions removed by retention pruning.",
		}),
		ConsentWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_consent_writes_total",
			Help: "Total consent records written.",
		}),
		ConsentReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_consent_reads_total",
			Help: "Total consent record lookups that found a record.",
		}),
		ConsentDeletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_consent_deletions_total",
			Help: "Total consent records deleted by the retention sweep.",
		}),
		RetentionSweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_retention_sweeps_total",
			Help: "Total retention sweeps executed.",
		}),
		RetentionSweepFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_retention_sweep_failures_total",
			Help: "Total retention sweep steps that failed.",
		}),
		RetentionSweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_retention_sweep_duration_seconds",
			Help:    "Wall time of a full retention sweep.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
