package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atmx/lending-gateway/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	entries []model.JournalEntry
	byID    map[string]int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]int),
	}
}

func (s *MemoryStore) InsertOperation(_ context.Context, e *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[e.ID]; exists {
		return fmt.Errorf("operation %s already exists", e.ID)
	}
	s.byID[e.ID] = len(s.entries)
	s.entries = append(s.entries, *e)
	return nil
}

func (s *MemoryStore) GetOperation(_ context.Context, id string) (*model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("get operation %s: %w", id, ErrNotFound)
	}
	e := s.entries[i]
	return &e, nil
}

// ListOperationsByUser matches addresses case-insensitively.
func (s *MemoryStore) ListOperationsByUser(_ context.Context, user string, limit int) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = normalizeLimit(limit)
	result := []model.JournalEntry{}
	for i := len(s.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if strings.EqualFold(s.entries[i].User, user) {
			result = append(result, s.entries[i])
		}
	}
	return result, nil
}
