package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Store implements ports.RunStore and ports.EventJournal in memory.
// Safe for concurrent use.
type Store struct {
	data   map[string]*domain.RunRecord
	events map[string][]*domain.Event
	mu     sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data:   make(map[string]*domain.RunRecord),
		events: make(map[string][]*domain.Event),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, record *domain.RunRecord) error {
	// Copy to ensure isolation, similar to serialization
	copied := *record

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[record.ID] = &copied
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	// Create a copy on read so caller can't mutate store state directly by pointer
	ret := *record
	return &ret, nil
}

// Delete removes the record and its events.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	delete(s.events, runID)
	return nil
}

// List returns the stored run IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	slices.Sort(runs)
	return runs, nil
}

// Append records an executed event.
func (s *Store) Append(ctx context.Context, runID string, seq int, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[runID] = append(s.events[runID], event.Clone())
	return nil
}

// Events returns the executed events of a run in execution order.
func (s *Store) Events(ctx context.Context, runID string) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Event, 0, len(s.events[runID]))
	for _, e := range s.events[runID] {
		out = append(out, e.Clone())
	}
	return out, nil
}
