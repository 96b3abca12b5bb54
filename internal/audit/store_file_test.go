package audit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type FileStoreSuite struct {
	suite.Suite
	dir   string
	store *FileStore
	log   *Log
	now   time.Time
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
	s.now = time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	s.log = NewLog(s.store, nil, WithNow(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

// TestRoundTrip verifies that a stored entry reads back equal in every field.
func (s *FileStoreSuite) TestRoundTrip() {
	details := map[string]any{
		"ip_address": "10.0.0.7",
		"attempts":   float64(3),
		"granted":    true,
	}
	eventID, err := s.log.Record(s.ctx, "alice", "access", "doc/1", details, StatusSuccess)
	s.Require().NoError(err)

	events, malformed, err := s.store.Read(s.ctx, Day(s.now))
	s.Require().NoError(err)
	s.Zero(malformed)
	s.Require().Len(events, 1)

	got := events[0]
	s.Equal(eventID, got.EventID)
	s.Equal("alice", got.ActorID)
	s.Equal("access", got.Action)
	s.Equal("doc/1", got.Resource)
	s.Equal(StatusSuccess, got.Status)
	s.Equal(details, got.Details)
	s.Equal(GenesisHash, got.PrevHash)
	s.True(got.Verify())
}

// TestLossyDetailValuesStillVerify pins detail values that do not survive a
// JSON round trip byte for byte: integers above 2^53 and struct values whose
// field order differs from sorted map keys. The recorded chain must verify
// from the stored form regardless.
func (s *FileStoreSuite) TestLossyDetailValuesStillVerify() {
	type window struct {
		Limit int `json:"limit"`
		Burst int `json:"burst"`
	}
	details := map[string]any{
		"bytes_read": int64(9007199254740993),
		"window":     window{Limit: 100, Burst: 10},
	}
	_, err := s.log.Record(s.ctx, "alice", "access", "doc/1", details, StatusSuccess)
	s.Require().NoError(err)
	_, err = s.log.Record(s.ctx, "bob", "access", "doc/2", map[string]any{
		"duration_ns": int64(1756632000000000123),
	}, StatusSuccess)
	s.Require().NoError(err)

	day := Day(s.now)
	ok, err := s.log.VerifyChain(s.ctx, day)
	s.Require().NoError(err)
	s.True(ok)

	s.Run("every stored entry verifies on its own", func() {
		events, malformed, err := s.store.Read(s.ctx, day)
		s.Require().NoError(err)
		s.Zero(malformed)
		s.Require().Len(events, 2)
		for _, event := range events {
			s.True(event.Verify())
		}
	})

	s.Run("a fresh recorder extends and the chain still verifies", func() {
		fresh := NewLog(s.store, nil, WithNow(func() time.Time { return s.now }))
		_, err := fresh.Record(s.ctx, "carol", "access", "doc/3", nil, StatusSuccess)
		s.Require().NoError(err)

		ok, err := fresh.VerifyChain(s.ctx, day)
		s.Require().NoError(err)
		s.True(ok)
	})
}

// TestMalformedLinesAreSkipped corrupts the file between valid entries and
// expects reads to keep the valid ones.
func (s *FileStoreSuite) TestMalformedLinesAreSkipped() {
	day := Day(s.now)
	_, err := s.log.Record(s.ctx, "alice", "access", "doc/1", nil, StatusSuccess)
	s.Require().NoError(err)

	f, err := os.OpenFile(s.store.PartitionPath(day), os.O_WRONLY|os.O_APPEND, 0o644)
	s.Require().NoError(err)
	_, err = f.WriteString("{this is not json\n")
	s.Require().NoError(err)
	s.Require().NoError(f.Close())

	_, err = s.log.Record(s.ctx, "bob", "modify", "doc/2", nil, StatusSuccess)
	s.Require().NoError(err)

	events, malformed, err := s.store.Read(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(1, malformed)
	s.Require().Len(events, 2)
	s.Equal("alice", events[0].ActorID)
	s.Equal("bob", events[1].ActorID)

	s.Run("query skips the malformed line too", func() {
		queried, err := s.log.Query(s.ctx, Filter{})
		s.Require().NoError(err)
		s.Len(queried, 2)
	})

	s.Run("a tampered file never verifies", func() {
		ok, err := s.log.VerifyChain(s.ctx, day)
		s.Require().NoError(err)
		s.False(ok)
	})
}

// TestOnDiskTamperDetection edits a stored field directly in the file.
func (s *FileStoreSuite) TestOnDiskTamperDetection() {
	day := Day(s.now)
	_, err := s.log.Record(s.ctx, "alice", "access", "doc/1", nil, StatusSuccess)
	s.Require().NoError(err)
	_, err = s.log.Record(s.ctx, "bob", "modify", "doc/2", nil, StatusSuccess)
	s.Require().NoError(err)

	ok, err := s.log.VerifyChain(s.ctx, day)
	s.Require().NoError(err)
	s.Require().True(ok)

	path := s.store.PartitionPath(day)
	raw, err := os.ReadFile(path)
	s.Require().NoError(err)
	tampered := bytes.Replace(raw, []byte(`"alice"`), []byte(`"malic"`), 1)
	s.Require().NotEqual(raw, tampered)
	s.Require().NoError(os.WriteFile(path, tampered, 0o644))

	ok, err = s.log.VerifyChain(s.ctx, day)
	s.Require().NoError(err)
	s.False(ok)
}

// TestPartitionsAndLastHash covers listing order and chain continuation
// across recorder restarts.
func (s *FileStoreSuite) TestPartitionsAndLastHash() {
	days := []time.Time{
		time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
	}
	for _, day := range days {
		s.now = day
		_, err := s.log.Record(s.ctx, "alice", "access", "doc", nil, StatusSuccess)
		s.Require().NoError(err)
	}

	s.Run("partitions list ascending", func() {
		listed, err := s.store.Partitions(s.ctx)
		s.Require().NoError(err)
		s.Equal([]string{"2026-08-29", "2026-08-30", "2026-08-31"}, listed)
	})

	s.Run("stray files are ignored", func() {
		s.Require().NoError(os.WriteFile(filepath.Join(s.dir, "audit_log_garbage.jsonl"), []byte("x"), 0o644))
		listed, err := s.store.Partitions(s.ctx)
		s.Require().NoError(err)
		s.Len(listed, 3)
	})

	s.Run("a fresh recorder continues the stored chain", func() {
		fresh := NewLog(s.store, nil, WithNow(func() time.Time { return s.now }))
		_, err := fresh.Record(s.ctx, "bob", "modify", "doc", nil, StatusSuccess)
		s.Require().NoError(err)

		ok, err := fresh.VerifyChain(s.ctx, Day(s.now))
		s.Require().NoError(err)
		s.True(ok)

		events, _, err := s.store.Read(s.ctx, Day(s.now))
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(events[0].Hash, events[1].PrevHash)
	})
}

// TestPruneLeavesNewerPartitionsUntouched asserts byte-identical survivors.
func (s *FileStoreSuite) TestPruneLeavesNewerPartitionsUntouched() {
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	s.now = base.AddDate(0, 0, -120)
	_, err := s.log.Record(s.ctx, "alice", "access", "old", nil, StatusSuccess)
	s.Require().NoError(err)
	oldDay := Day(s.now)

	s.now = base.AddDate(0, 0, -10)
	_, err = s.log.Record(s.ctx, "bob", "access", "recent", nil, StatusSuccess)
	s.Require().NoError(err)
	recentDay := Day(s.now)

	recentBefore, err := os.ReadFile(s.store.PartitionPath(recentDay))
	s.Require().NoError(err)

	s.now = base
	deleted, err := s.log.Prune(s.ctx, 90)
	s.Require().NoError(err)
	s.Equal(1, deleted)

	_, statErr := os.Stat(s.store.PartitionPath(oldDay))
	s.True(os.IsNotExist(statErr))

	recentAfter, err := os.ReadFile(s.store.PartitionPath(recentDay))
	s.Require().NoError(err)
	s.Equal(recentBefore, recentAfter)

	s.Run("deletion event names the removed file", func() {
		events, err := s.log.Query(s.ctx, Filter{Action: ActionDelete})
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(s.store.PartitionPath(oldDay), events[0].Resource)
	})
}
