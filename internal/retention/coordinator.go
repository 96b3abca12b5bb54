package retention

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"custodia/internal/audit"
	"custodia/internal/platform/metrics"
)

// ConsentSweeper is the slice of the consent service the coordinator uses.
type ConsentSweeper interface {
	ApplyRetention(ctx context.Context) (int, error)
}

// AuditPruner is the slice of the audit log the coordinator uses.
type AuditPruner interface {
	Prune(ctx context.Context, retentionDays int) (int, error)
	Record(ctx context.Context, actorID, action, resource string, details map[string]any, status string) (string, error)
}

// Locker gates a sweep across replicas. TryLock returns a release func and
// whether the lock was obtained.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (release func(), acquired bool, err error)
}

// Summary reports how much one sweep removed.
type Summary struct {
	ConsentDeleted    int `json:"consent_records_deleted"`
	PartitionsDeleted int `json:"log_partitions_deleted"`
}

// Coordinator runs the retention sweep over both stores. It owns neither: it
// only invokes their operations and records a summary event, holding no lock
// of its own across the sweep.
type Coordinator struct {
	consents           ConsentSweeper
	auditLog           AuditPruner
	metrics            *metrics.Metrics
	auditRetentionDays int
	interval           time.Duration
	locker             Locker
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLocker adds a cross-replica lock so only one instance sweeps at a time.
func WithLocker(locker Locker) Option {
	return func(c *Coordinator) { c.locker = locker }
}

// WithInterval overrides the default 24h sweep period.
func WithInterval(interval time.Duration) Option {
	return func(c *Coordinator) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// New creates the coordinator. metrics may be nil for embedded use.
func New(consents ConsentSweeper, auditLog AuditPruner, m *metrics.Metrics, auditRetentionDays int, opts ...Option) *Coordinator {
	c := &Coordinator{
		consents:           consents,
		auditLog:           auditLog,
		metrics:            m,
		auditRetentionDays: auditRetentionDays,
		interval:           24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunOnce sweeps the consent store, prunes the audit log, then records one
// summary event carrying both counts. A failing step is logged and does not
// stop the remaining steps; the first failure is still returned so on-demand
// callers see it.
func (c *Coordinator) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	var summary Summary
	var errs []error

	consentDeleted, err := c.consents.ApplyRetention(ctx)
	if err != nil {
		log.WithField("error", err).Error("Consent retention sweep failed")
		errs = append(errs, err)
	}
	summary.ConsentDeleted = consentDeleted

	partitionsDeleted, err := c.auditLog.Prune(ctx, c.auditRetentionDays)
	if err != nil {
		log.WithField("error", err).Error("Audit log pruning failed")
		errs = append(errs, err)
	}
	summary.PartitionsDeleted = partitionsDeleted

	status := audit.StatusSuccess
	if len(errs) > 0 {
		status = audit.StatusError
	}
	if _, err := c.auditLog.Record(ctx, audit.SystemActor, audit.ActionDailyRetention, "system", map[string]any{
		"consent_records_deleted": summary.ConsentDeleted,
		"log_partitions_deleted":  summary.PartitionsDeleted,
		"audit_retention_days":    c.auditRetentionDays,
	}, status); err != nil {
		log.WithField("error", err).Error("Failed to record retention summary event")
		errs = append(errs, err)
	}

	if c.metrics != nil {
		c.metrics.RetentionSweeps.Inc()
		c.metrics.RetentionSweepDuration.Observe(time.Since(start).Seconds())
		if len(errs) > 0 {
			c.metrics.RetentionSweepFailures.Inc()
		}
	}
	log.WithFields(log.Fields{
		"consent_records_deleted": summary.ConsentDeleted,
		"log_partitions_deleted":  summary.PartitionsDeleted,
	}).Info("Retention sweep finished")

	return summary, errors.Join(errs...)
}

// Run sweeps on the configured period until the context is cancelled. Sweep
// failures are logged and the loop resumes on the next tick.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log.WithField("interval", c.interval).Info("Retention coordinator started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	if c.locker != nil {
		release, acquired, err := c.locker.TryLock(ctx, c.interval/2)
		if err != nil {
			log.WithField("error", err).Warn("Retention lock unavailable, skipping sweep")
			return
		}
		if !acquired {
			log.Debug("Another replica holds the retention lock, skipping sweep")
			return
		}
		defer release()
	}

	if _, err := c.RunOnce(ctx); err != nil {
		log.WithField("error", err).Error("Scheduled retention sweep failed")
	}
}
