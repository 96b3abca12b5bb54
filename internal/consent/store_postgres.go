package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/pkg/platform/sentinel"
)

// PostgresStore persists consent records in a consents table. Whole-record
// replacement maps to an upsert; row-level locking in Postgres gives the
// at-most-one-writer-per-subject discipline for free.
//
// expires_at is a text column on purpose: the expiry contract (unparsable
// means cannot-prove-active, swept as expired) is identical across every
// backend that way.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, record Record) error {
	query := `
		INSERT INTO consents (
			subject_id, monitoring_enabled, retention_days,
			data_categories, expires_at, last_updated, last_updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subject_id) DO UPDATE SET
			monitoring_enabled = EXCLUDED.monitoring_enabled,
			retention_days     = EXCLUDED.retention_days,
			data_categories    = EXCLUDED.data_categories,
			expires_at         = EXCLUDED.expires_at,
			last_updated       = EXCLUDED.last_updated,
			last_updated_by    = EXCLUDED.last_updated_by
	`
	_, err := s.pool.Exec(ctx, query,
		record.SubjectID,
		record.MonitoringEnabled,
		record.RetentionDays,
		record.DataCategories,
		record.ExpiresAt,
		record.LastUpdated,
		record.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert consent record %s: %w", record.SubjectID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subjectID string) (Record, error) {
	query := `
		SELECT subject_id, monitoring_enabled, retention_days,
			data_categories, expires_at, last_updated, last_updated_by
		FROM consents
		WHERE subject_id = $1
	`
	var record Record
	err := s.pool.QueryRow(ctx, query, subjectID).Scan(
		&record.SubjectID,
		&record.MonitoringEnabled,
		&record.RetentionDays,
		&record.DataCategories,
		&record.ExpiresAt,
		&record.LastUpdated,
		&record.LastUpdatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("consent for %s: %w", subjectID, sentinel.ErrNotFound)
		}
		return Record{}, fmt.Errorf("query consent record %s: %w", subjectID, err)
	}
	return record, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	query := `
		SELECT subject_id, monitoring_enabled, retention_days,
			data_categories, expires_at, last_updated, last_updated_by
		FROM consents
		ORDER BY subject_id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		if err := rows.Scan(
			&record.SubjectID,
			&record.MonitoringEnabled,
			&record.RetentionDays,
			&record.DataCategories,
			&record.ExpiresAt,
			&record.LastUpdated,
			&record.LastUpdatedBy,
		); err != nil {
			return nil, fmt.Errorf("scan consent record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, subjectID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM consents WHERE subject_id = $1`, subjectID)
	if err != nil {
		return fmt.Errorf("delete consent record %s: %w", subjectID, err)
	}
	return nil
}
