package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"custodia/pkg/platform/sentinel"
)

// FileStore keeps one JSON file per subject under a single directory. Writes
// go through a temp file and rename so a concurrent reader never observes a
// half-written record; a store-wide RWMutex gives at-most-one-writer per key.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the consent directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create consent dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(subjectID string) string {
	return filepath.Join(s.dir, subjectID+".json")
}

func (s *FileStore) Save(_ context.Context, record Record) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal consent record %s: %w", record.SubjectID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+record.SubjectID+"-*")
	if err != nil {
		return fmt.Errorf("create temp consent file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write consent record %s: %w", record.SubjectID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close consent record %s: %w", record.SubjectID, err)
	}
	if err := os.Rename(tmpName, s.path(record.SubjectID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist consent record %s: %w", record.SubjectID, err)
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, subjectID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, err := os.ReadFile(s.path(subjectID))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("consent for %s: %w", subjectID, sentinel.ErrNotFound)
		}
		return Record{}, fmt.Errorf("read consent record %s: %w", subjectID, err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("consent for %s: %w", subjectID, sentinel.ErrMalformed)
	}
	return record, nil
}

func (s *FileStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	sort.Strings(matches)

	var records []Record
	for _, match := range matches {
		payload, err := os.ReadFile(match)
		if err != nil {
			log.WithFields(log.Fields{
				"file":  filepath.Base(match),
				"error": err,
			}).Warn("Skipping unreadable consent record")
			continue
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			log.WithField("file", filepath.Base(match)).Warn("Skipping malformed consent record")
			continue
		}
		if record.SubjectID == "" {
			record.SubjectID = strings.TrimSuffix(filepath.Base(match), ".json")
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *FileStore) Delete(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(subjectID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete consent record %s: %w", subjectID, err)
	}
	return nil
}
