package store

import (
	"sync"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// MatchStore is a thread-safe in-memory store for matches, keyed by
// match ID with a secondary index by cycle ID. Matches are immutable
// once stored.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*domain.Match
	byCycle map[string][]*domain.Match // cycle_id -> matches (chronological)
}

// NewMatchStore creates an empty MatchStore.
func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches: make(map[string]*domain.Match),
		byCycle: make(map[string][]*domain.Match),
	}
}

// Create adds a match to both indexes.
func (s *MatchStore) Create(m *domain.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.matches[m.ID] = m
	s.byCycle[m.CycleID] = append(s.byCycle[m.CycleID], m)
}

// Get retrieves a match by ID. It returns domain.ErrMatchNotFound if the
// match does not exist.
func (s *MatchStore) Get(id string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return m, nil
}

// ListByCycle returns all matches created by one matching cycle, in
// creation order.
func (s *MatchStore) ListByCycle(cycleID string) []*domain.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.byCycle[cycleID]
	result := make([]*domain.Match, len(all))
	copy(result, all)
	return result
}
