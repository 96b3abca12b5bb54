package audit

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps partitions in a map. It backs tests and in-process
// embedding where durability is not required.
type InMemoryStore struct {
	mu         sync.RWMutex
	partitions map[string][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{partitions: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, day string, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partitions[day] = append(s.partitions[day], event)
	return nil
}

func (s *InMemoryStore) LastHash(_ context.Context, day string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.partitions[day]
	if len(events) == 0 {
		return GenesisHash, nil
	}
	return events[len(events)-1].Hash, nil
}

func (s *InMemoryStore) Read(_ context.Context, day string) ([]Event, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.partitions[day]...), 0, nil
}

func (s *InMemoryStore) Partitions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	days := make([]string, 0, len(s.partitions))
	for day := range s.partitions {
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

func (s *InMemoryStore) DeletePartition(_ context.Context, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.partitions, day)
	return nil
}
