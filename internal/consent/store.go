package consent

import "context"

// Store is the keyed storage contract for consent records: one record per
// subject, whole-record replacement on write, at-most-one-writer per subject.
// Get returns sentinel.ErrNotFound (wrapped or bare) for an absent subject
// and sentinel.ErrMalformed for a record that no longer parses.
type Store interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, subjectID string) (Record, error)
	// List returns all parsable records in storage order. Malformed records
	// are logged and skipped, never fatal.
	List(ctx context.Context) ([]Record, error)
	// Delete removes a record. Deleting an absent subject is not an error.
	Delete(ctx context.Context, subjectID string) error
}
