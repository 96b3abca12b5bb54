package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisHash marks the prev_hash of the first entry in a day-partition.
// It is stored explicitly so a partition verifies from its serialized form
// alone, without out-of-band knowledge.
const GenesisHash = ""

// Actor and action names used by the system itself.
const (
	SystemActor = "system"

	ActionSetConsent     = "set_consent"
	ActionAccessConsent  = "access_consent"
	ActionDeleteConsent  = "delete_consent"
	ActionDelete         = "delete"
	ActionDailyRetention = "daily_retention"
)

// Outcome tags for the Status field.
const (
	StatusSuccess = "success"
	StatusDenied  = "denied"
	StatusError   = "error"
)

// Event is one entry of the hash-chained audit log. EventID and Hash are
// assigned exactly once at record time and never mutated; entries of the same
// day-partition form a singly linked chain through PrevHash.
//
// Timestamp is kept as an RFC3339Nano string so the digest input is exactly
// what is stored, byte for byte.
type Event struct {
	EventID   string         `json:"event_id"`
	Timestamp string         `json:"timestamp"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// Time parses the event timestamp.
func (e Event) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// ComputeHash returns the digest that belongs in e.Hash: SHA-256 over the
// previous entry's hash concatenated with the canonical serialization of the
// event. Canonical form is the JSON encoding with the hash field blanked;
// encoding/json emits struct fields in declared order and map keys sorted, so
// the encoding is deterministic for any stored event.
func (e Event) ComputeHash() (string, error) {
	canonical := e
	canonical.Hash = ""
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("canonicalize event %s: %w", e.EventID, err)
	}
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalDetails forces details into JSON-normal form (float64 numbers,
// map values, sorted keys) by round-tripping them through encoding/json.
// Hashing must happen over this form: a later read recomputes the digest from
// the stored JSON, so any value that does not survive the round trip byte for
// byte would break verification of an untampered chain.
func canonicalDetails(details map[string]any) (map[string]any, error) {
	if len(details) == 0 {
		return map[string]any{}, nil
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("canonicalize details: %w", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(payload, &normalized); err != nil {
		return nil, fmt.Errorf("canonicalize details: %w", err)
	}
	return normalized, nil
}

// Verify reports whether the stored hash matches the recomputed digest.
func (e Event) Verify() bool {
	computed, err := e.ComputeHash()
	if err != nil {
		return false
	}
	return computed == e.Hash
}

// Filter narrows a Query. Zero values mean "no constraint"; the date range is
// inclusive on both ends and compares whole day-partitions.
type Filter struct {
	From    string // partition day, YYYY-MM-DD
	To      string // partition day, YYYY-MM-DD
	ActorID string
	Action  string
	Limit   int
}

const dayFormat = "2006-01-02"

// Day returns the partition key for t in UTC.
func Day(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

func parseDay(day string) (time.Time, error) {
	return time.Parse(dayFormat, day)
}
