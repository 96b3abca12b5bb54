package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"custodia/internal/platform/metrics"
)

// defaultQueryLimit caps Query results when the caller does not set one.
const defaultQueryLimit = 100

// Log is the hash-chained audit recorder. It owns chain continuation and
// per-partition serialization; the Store underneath only appends and scans.
//
// A failed Record must be treated as unknown-outcome by callers: the recorder
// never retries internally, so a retry could double-append.
type Log struct {
	store   Store
	metrics *metrics.Metrics
	nowFn   func() time.Time

	mu       sync.Mutex
	partMu   map[string]*sync.Mutex
	lastHash map[string]string

	mirror chan<- Event
}

// Option configures a Log.
type Option func(*Log)

// WithNow overrides the clock, letting tests advance logical time.
func WithNow(nowFn func() time.Time) Option {
	return func(l *Log) { l.nowFn = nowFn }
}

// WithMirror fans recorded events out to the channel without blocking. The
// chained store remains the compliance record; mirror delivery is best-effort.
func WithMirror(ch chan<- Event) Option {
	return func(l *Log) { l.mirror = ch }
}

// NewLog creates the recorder. metrics may be nil for embedded use.
func NewLog(store Store, m *metrics.Metrics, opts ...Option) *Log {
	l := &Log{
		store:    store,
		metrics:  m,
		nowFn:    time.Now,
		partMu:   make(map[string]*sync.Mutex),
		lastHash: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// partition returns the mutex serializing writes to one day-partition.
func (l *Log) partition(day string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.partMu[day]
	if !ok {
		mu = &sync.Mutex{}
		l.partMu[day] = mu
	}
	return mu
}

// Record appends one event to the current day-partition and returns its id.
// Partition selection is by the clock at call time; crossing a day boundary
// simply starts a new chain from the genesis marker.
func (l *Log) Record(ctx context.Context, actorID, action, resource string, details map[string]any, status string) (string, error) {
	details, err := canonicalDetails(details)
	if err != nil {
		return "", err
	}
	now := l.nowFn()
	day := Day(now)

	mu := l.partition(day)
	mu.Lock()
	defer mu.Unlock()

	prevHash, ok := l.lastHash[day]
	if !ok {
		stored, err := l.store.LastHash(ctx, day)
		if err != nil {
			return "", fmt.Errorf("read last hash of partition %s: %w", day, err)
		}
		prevHash = stored
	}

	event := Event{
		EventID:   uuid.NewString(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Status:    status,
		Details:   details,
		PrevHash:  prevHash,
	}
	hash, err := event.ComputeHash()
	if err != nil {
		return "", err
	}
	event.Hash = hash

	if err := l.store.Append(ctx, day, event); err != nil {
		if l.metrics != nil {
			l.metrics.AuditRecordFailures.Inc()
		}
		log.WithFields(log.Fields{
			"action":   action,
			"resource": resource,
			"error":    err,
		}).Error("Failed to append audit event")
		return "", err
	}
	l.lastHash[day] = event.Hash

	if l.metrics != nil {
		l.metrics.AuditEventsRecorded.WithLabelValues(action).Inc()
	}
	l.emit(event)

	return event.EventID, nil
}

func (l *Log) emit(event Event) {
	if l.mirror == nil {
		return
	}
	select {
	case l.mirror <- event:
	default:
		log.WithField("event_id", event.EventID).Warn("Audit mirror buffer full, dropping event")
	}
}

// Query returns events matching the filter, oldest partition first and in
// append order within a partition, stopping once the limit is reached.
// Malformed stored entries are skipped, never fatal.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	days, err := l.store.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	var results []Event
	for _, day := range days {
		// Day keys compare lexicographically in chronological order.
		if filter.From != "" && day < filter.From {
			continue
		}
		if filter.To != "" && day > filter.To {
			continue
		}

		events, malformed, err := l.store.Read(ctx, day)
		if err != nil {
			return nil, err
		}
		if malformed > 0 && l.metrics != nil {
			l.metrics.AuditMalformedSkipped.Add(float64(malformed))
		}

		for _, event := range events {
			if filter.ActorID != "" && event.ActorID != filter.ActorID {
				continue
			}
			if filter.Action != "" && event.Action != filter.Action {
				continue
			}
			results = append(results, event)
			if len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

// VerifyChain recomputes the partition's hash chain from the stored entries.
// Any malformed entry, broken link, or digest mismatch fails verification.
func (l *Log) VerifyChain(ctx context.Context, day string) (bool, error) {
	events, malformed, err := l.store.Read(ctx, day)
	if err != nil {
		return false, err
	}
	if malformed > 0 {
		return false, nil
	}

	prevHash := GenesisHash
	for _, event := range events {
		if event.PrevHash != prevHash {
			return false, nil
		}
		if !event.Verify() {
			return false, nil
		}
		prevHash = event.Hash
	}
	return true, nil
}

// Prune removes every partition strictly older than now minus retentionDays,
// emitting one deletion event into the current partition before each removal.
// The partition receiving deletion events is never pruned. Returns the number
// of partitions removed.
func (l *Log) Prune(ctx context.Context, retentionDays int) (int, error) {
	now := l.nowFn()
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	today := Day(now)

	days, err := l.store.Partitions(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, day := range days {
		if day == today {
			continue
		}
		date, err := parseDay(day)
		if err != nil {
			continue
		}
		if !date.Before(cutoff) {
			continue
		}

		// The deletion is itself a compliance-relevant action: log it into the
		// active chain before the data disappears.
		if _, err := l.Record(ctx, SystemActor, ActionDelete, l.resourceName(day), map[string]any{
			"reason":         "retention_policy",
			"retention_days": retentionDays,
		}, StatusSuccess); err != nil {
			return deleted, fmt.Errorf("record deletion of partition %s: %w", day, err)
		}

		mu := l.partition(day)
		mu.Lock()
		err = l.store.DeletePartition(ctx, day)
		if err == nil {
			l.mu.Lock()
			delete(l.lastHash, day)
			l.mu.Unlock()
		}
		mu.Unlock()
		if err != nil {
			return deleted, err
		}

		deleted++
		if l.metrics != nil {
			l.metrics.AuditPartitionsPruned.Inc()
		}
		log.WithField("partition", day).Info("Pruned expired audit partition")
	}
	return deleted, nil
}

// resourceName identifies a partition in deletion events. File-backed stores
// expose their on-disk path; other stores are identified by day key.
func (l *Log) resourceName(day string) string {
	if fs, ok := l.store.(*FileStore); ok {
		return fs.PartitionPath(day)
	}
	return "audit_log/" + day
}
