package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"custodia/internal/audit"
	"custodia/internal/platform/metrics"
	"custodia/pkg/platform/sentinel"
)

// AuditRecorder is the slice of the audit log the consent service needs.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, resource string, details map[string]any, status string) (string, error)
}

// Service persists consent decisions and enforces expiry. Every mutating or
// sensitive read emits an event into the audit log; an append failure there
// fails the whole operation, because an unlogged consent action is itself a
// compliance violation.
type Service struct {
	store                Store
	auditor              AuditRecorder
	metrics              *metrics.Metrics
	defaultRetentionDays int
	nowFn                func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNow overrides the clock, letting tests advance logical time.
func WithNow(nowFn func() time.Time) Option {
	return func(s *Service) { s.nowFn = nowFn }
}

// WithDefaultRetentionDays overrides the system-wide default retention.
func WithDefaultRetentionDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultRetentionDays = days
		}
	}
}

// NewService creates the consent service. metrics may be nil for embedded use.
func NewService(store Store, auditor AuditRecorder, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:                store,
		auditor:              auditor,
		metrics:              m,
		defaultRetentionDays: DefaultRetentionDays,
		nowFn:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func resourceFor(subjectID string) string {
	return "subject/" + subjectID + "/consent"
}

// SetConsent creates or wholly replaces the subject's consent record,
// recomputing the expiry from the retention period at write time.
func (s *Service) SetConsent(ctx context.Context, req SetRequest) (Record, error) {
	if req.SubjectID == "" {
		return Record{}, errors.New("subject id is required")
	}
	retention := req.RetentionDays
	if retention <= 0 {
		retention = s.defaultRetentionDays
	}
	categories := req.DataCategories
	if len(categories) == 0 {
		categories = []string{CategoryAll}
	}
	requester := req.RequesterID
	if requester == "" {
		requester = audit.SystemActor
	}

	now := s.nowFn().UTC()
	record := Record{
		SubjectID:         req.SubjectID,
		MonitoringEnabled: req.MonitoringEnabled,
		RetentionDays:     retention,
		DataCategories:    categories,
		ExpiresAt:         now.AddDate(0, 0, retention).Format(time.RFC3339),
		LastUpdated:       now,
		LastUpdatedBy:     requester,
	}

	if err := s.store.Save(ctx, record); err != nil {
		log.WithFields(log.Fields{
			"subject_id": req.SubjectID,
			"error":      err,
		}).Error("Failed to persist consent record")
		return Record{}, fmt.Errorf("save consent: %w", err)
	}

	if _, err := s.auditor.Record(ctx, requester, audit.ActionSetConsent, resourceFor(req.SubjectID), map[string]any{
		"monitoring_enabled": req.MonitoringEnabled,
		"retention_days":     retention,
		"data_categories":    categories,
	}, audit.StatusSuccess); err != nil {
		return Record{}, fmt.Errorf("audit consent change: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ConsentWrites.Inc()
	}
	log.WithFields(log.Fields{
		"subject_id":         req.SubjectID,
		"monitoring_enabled": req.MonitoringEnabled,
		"retention_days":     retention,
	}).Info("Updated consent settings")

	return record, nil
}

// GetConsent returns the subject's record. Absence surfaces as
// sentinel.ErrNotFound, which callers treat as an empty result rather than a
// failure. A successful lookup is itself audited: reading someone's consent
// state is compliance-relevant.
func (s *Service) GetConsent(ctx context.Context, subjectID string) (Record, error) {
	record, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return Record{}, err
	}

	if _, err := s.auditor.Record(ctx, audit.SystemActor, audit.ActionAccessConsent, resourceFor(subjectID), map[string]any{
		"access_type": "read",
	}, audit.StatusSuccess); err != nil {
		return Record{}, fmt.Errorf("audit consent access: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ConsentReads.Inc()
	}
	return record, nil
}

// IsMonitoringAllowed answers the enforcement question. Denied by default:
// no record, an expired record, an unparsable expiry, or any storage failure
// all refuse monitoring.
func (s *Service) IsMonitoringAllowed(ctx context.Context, subjectID string) bool {
	record, err := s.GetConsent(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			log.WithFields(log.Fields{
				"subject_id": subjectID,
				"error":      err,
			}).Warn("Refusing monitoring, consent unreadable")
		}
		return false
	}

	now := s.nowFn()
	if !record.IsActive(now) {
		if _, parseErr := record.ExpirationTime(); parseErr != nil {
			log.WithField("subject_id", subjectID).Error("Invalid expiration on consent record")
		} else {
			log.WithField("subject_id", subjectID).Warn("Consent has expired")
		}
		return false
	}
	return record.MonitoringEnabled
}

// ListConsents returns all records in storage order. With activeOnly, records
// that have expired or whose expiry cannot be parsed are excluded; they stay
// on disk until the retention sweep removes them.
func (s *Service) ListConsents(ctx context.Context, activeOnly bool) ([]Record, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return records, nil
	}

	now := s.nowFn()
	active := make([]Record, 0, len(records))
	for _, record := range records {
		if record.IsActive(now) {
			active = append(active, record)
		}
	}
	return active, nil
}

// ApplyRetention deletes every record whose expiry has passed, treating an
// unparsable expiry as expired so invalid records cannot accumulate forever.
// Each deletion is audited before the record is removed. Per-record failures
// are logged and skipped; the sweep keeps going.
func (s *Service) ApplyRetention(ctx context.Context) (int, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	now := s.nowFn()
	deleted := 0
	for _, record := range records {
		expires, parseErr := record.ExpirationTime()
		if parseErr == nil && !now.After(expires) {
			continue
		}

		reason := "retention_policy_expired"
		if parseErr != nil {
			reason = "invalid_expiration"
		}
		if _, err := s.auditor.Record(ctx, audit.SystemActor, audit.ActionDeleteConsent, resourceFor(record.SubjectID), map[string]any{
			"reason": reason,
		}, audit.StatusSuccess); err != nil {
			log.WithFields(log.Fields{
				"subject_id": record.SubjectID,
				"error":      err,
			}).Error("Skipping consent deletion, audit append failed")
			continue
		}
		if err := s.store.Delete(ctx, record.SubjectID); err != nil {
			log.WithFields(log.Fields{
				"subject_id": record.SubjectID,
				"error":      err,
			}).Error("Failed to delete expired consent record")
			continue
		}

		deleted++
		if s.metrics != nil {
			s.metrics.ConsentDeletions.Inc()
		}
		log.WithField("subject_id", record.SubjectID).Info("Deleted expired consent record")
	}
	return deleted, nil
}
