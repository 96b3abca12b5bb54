package consent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"custodia/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map, for tests and in-process embedding.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.SubjectID] = record
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, subjectID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[subjectID]
	if !ok {
		return Record{}, fmt.Errorf("consent for %s: %w", subjectID, sentinel.ErrNotFound)
	}
	return record, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subjects := make([]string, 0, len(s.records))
	for subjectID := range s.records {
		subjects = append(subjects, subjectID)
	}
	sort.Strings(subjects)

	records := make([]Record, 0, len(subjects))
	for _, subjectID := range subjects {
		records = append(records, s.records[subjectID])
	}
	return records, nil
}

func (s *InMemoryStore) Delete(_ context.Context, subjectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, subjectID)
	return nil
}
