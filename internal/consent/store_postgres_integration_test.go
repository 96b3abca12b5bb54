//go:build integration

package consent_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"custodia/internal/consent"
	"custodia/pkg/platform/sentinel"
)

const consentsDDL = `
CREATE TABLE IF NOT EXISTS consents (
    subject_id         TEXT PRIMARY KEY,
    monitoring_enabled BOOLEAN     NOT NULL,
    retention_days     INTEGER     NOT NULL CHECK (retention_days > 0),
    data_categories    TEXT[]      NOT NULL DEFAULT '{all}',
    expires_at         TEXT        NOT NULL,
    last_updated       TIMESTAMPTZ NOT NULL,
    last_updated_by    TEXT        NOT NULL
)`

type PostgresStoreSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *consent.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("custodia_test"),
		postgres.WithUsername("custodia"),
		postgres.WithPassword("custodia"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(s.T(), container)
	s.Require().NoError(err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = pgxpool.New(ctx, dsn)
	s.Require().NoError(err)

	_, err = s.pool.Exec(ctx, consentsDDL)
	s.Require().NoError(err)

	s.store = consent.NewPostgresStore(s.pool)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE consents")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newRecord(subjectID string) consent.Record {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	return consent.Record{
		SubjectID:         subjectID,
		MonitoringEnabled: true,
		RetentionDays:     30,
		DataCategories:    []string{consent.CategoryAll},
		ExpiresAt:         now.AddDate(0, 0, 30).Format(time.RFC3339),
		LastUpdated:       now,
		LastUpdatedBy:     "hr-admin",
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	record := s.newRecord("e1")
	s.Require().NoError(s.store.Save(ctx, record))

	got, err := s.store.Get(ctx, "e1")
	s.Require().NoError(err)
	s.Equal(record.SubjectID, got.SubjectID)
	s.Equal(record.MonitoringEnabled, got.MonitoringEnabled)
	s.Equal(record.RetentionDays, got.RetentionDays)
	s.Equal(record.DataCategories, got.DataCategories)
	s.Equal(record.ExpiresAt, got.ExpiresAt)
	s.True(record.LastUpdated.Equal(got.LastUpdated))
	s.Equal(record.LastUpdatedBy, got.LastUpdatedBy)
}

func (s *PostgresStoreSuite) TestUpsertReplaces() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.newRecord("e1")))

	replacement := s.newRecord("e1")
	replacement.MonitoringEnabled = false
	replacement.DataCategories = []string{"email"}
	s.Require().NoError(s.store.Save(ctx, replacement))

	got, err := s.store.Get(ctx, "e1")
	s.Require().NoError(err)
	s.False(got.MonitoringEnabled)
	s.Equal([]string{"email"}, got.DataCategories)
}

func (s *PostgresStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), "ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListAndDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, s.newRecord("b")))
	s.Require().NoError(s.store.Save(ctx, s.newRecord("a")))

	records, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("a", records[0].SubjectID)
	s.Equal("b", records[1].SubjectID)

	s.Require().NoError(s.store.Delete(ctx, "a"))
	records, err = s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(records, 1)

	s.Run("deleting a missing subject is not an error", func() {
		s.NoError(s.store.Delete(ctx, "ghost"))
	})
}
