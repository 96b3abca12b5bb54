package consent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/pkg/platform/sentinel"
)

type FileStoreSuite struct {
	suite.Suite
	dir   string
	store *FileStore
	ctx   context.Context
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}

func (s *FileStoreSuite) SetupTest() {
	s.dir = s.T().TempDir()
	var err error
	s.store, err = NewFileStore(s.dir)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *FileStoreSuite) newRecord(subjectID string) Record {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	return Record{
		SubjectID:         subjectID,
		MonitoringEnabled: true,
		RetentionDays:     30,
		DataCategories:    []string{CategoryAll},
		ExpiresAt:         now.AddDate(0, 0, 30).Format(time.RFC3339),
		LastUpdated:       now,
		LastUpdatedBy:     "hr-admin",
	}
}

// TestRoundTrip verifies a saved record reads back equal in every field.
func (s *FileStoreSuite) TestRoundTrip() {
	record := s.newRecord("e1")
	s.Require().NoError(s.store.Save(s.ctx, record))

	got, err := s.store.Get(s.ctx, "e1")
	s.Require().NoError(err)
	s.Equal(record, got)

	s.Run("save replaces wholesale", func() {
		replacement := s.newRecord("e1")
		replacement.MonitoringEnabled = false
		replacement.DataCategories = []string{"email"}
		s.Require().NoError(s.store.Save(s.ctx, replacement))

		got, err := s.store.Get(s.ctx, "e1")
		s.Require().NoError(err)
		s.Equal(replacement, got)
	})
}

func (s *FileStoreSuite) TestGetMissing() {
	_, err := s.store.Get(s.ctx, "ghost")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *FileStoreSuite) TestGetMalformed() {
	path := filepath.Join(s.dir, "broken.json")
	s.Require().NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := s.store.Get(s.ctx, "broken")
	s.Require().ErrorIs(err, sentinel.ErrMalformed)
}

func (s *FileStoreSuite) TestListSkipsMalformed() {
	s.Require().NoError(s.store.Save(s.ctx, s.newRecord("a")))
	s.Require().NoError(s.store.Save(s.ctx, s.newRecord("b")))
	s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "broken.json"), []byte("{not json"), 0o644))

	records, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("a", records[0].SubjectID)
	s.Equal("b", records[1].SubjectID)
}

func (s *FileStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Save(s.ctx, s.newRecord("e1")))
	s.Require().NoError(s.store.Delete(s.ctx, "e1"))

	_, err := s.store.Get(s.ctx, "e1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Run("deleting a missing subject is not an error", func() {
		s.NoError(s.store.Delete(s.ctx, "e1"))
	})
}
