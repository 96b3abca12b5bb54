package consent

import "time"

// DefaultRetentionDays applies when a set-consent request leaves the
// retention period unspecified.
const DefaultRetentionDays = 90

// CategoryAll is the sentinel data category meaning consent covers every
// category.
const CategoryAll = "all"

// Record captures a subject's monitoring consent decision. A write always
// replaces the prior record whole; there is no partial update.
//
// ExpiresAt is stored as an RFC3339 string and is always derived from
// RetentionDays at write time. It is never settable on its own, but a stored
// value may still turn out unparsable (hand-edited files, partial writes from
// older tooling); read paths treat that as "cannot prove active" and only the
// retention sweep actually deletes.
type Record struct {
	SubjectID         string    `json:"subject_id"`
	MonitoringEnabled bool      `json:"monitoring_enabled"`
	RetentionDays     int       `json:"retention_days"`
	DataCategories    []string  `json:"data_categories"`
	ExpiresAt         string    `json:"expires_at"`
	LastUpdated       time.Time `json:"last_updated"`
	LastUpdatedBy     string    `json:"last_updated_by"`
}

// ExpirationTime parses the stored expiry.
func (r Record) ExpirationTime() (time.Time, error) {
	return time.Parse(time.RFC3339, r.ExpiresAt)
}

// IsActive returns true when the record provably has not expired. An
// unparsable expiry is not active.
func (r Record) IsActive(now time.Time) bool {
	expires, err := r.ExpirationTime()
	if err != nil {
		return false
	}
	return !now.After(expires)
}

// SetRequest carries the inputs of a consent write. RetentionDays and
// DataCategories are optional; zero values take the system defaults.
type SetRequest struct {
	SubjectID         string
	MonitoringEnabled bool
	RetentionDays     int
	DataCategories    []string
	RequesterID       string
}
