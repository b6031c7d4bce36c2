package store

import (
	"sync"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// CaseStore is a thread-safe in-memory store for settlement cases,
// keyed by match ID (one case per match). Terminal cases are retained
// as audit records and never deleted.
type CaseStore struct {
	mu    sync.RWMutex
	cases map[string]*domain.SettlementCase
	order []string // match IDs in creation order
}

// NewCaseStore creates an empty CaseStore.
func NewCaseStore() *CaseStore {
	return &CaseStore{
		cases: make(map[string]*domain.SettlementCase),
	}
}

// Create adds a case to the store.
func (s *CaseStore) Create(c *domain.SettlementCase) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cases[c.MatchID] = c
	s.order = append(s.order, c.MatchID)
}

// Get returns a copy of the case for the given match ID. It returns
// domain.ErrCaseNotFound if no case exists. Copies keep readers from
// observing a case mid-transition.
func (s *CaseStore) Get(matchID string) (*domain.SettlementCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[matchID]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	cp := *c
	return &cp, nil
}

// Transition moves a case to next if the edge is legal, applying mutate
// to the case under the store lock and bumping Version. It returns the
// updated copy, or domain.ErrCaseNotFound / domain.ErrConcurrentModification
// when the case is missing or the edge is illegal from the current state.
func (s *CaseStore) Transition(matchID string, next domain.CaseState, mutate func(*domain.SettlementCase)) (*domain.SettlementCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[matchID]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	if !c.State.CanTransition(next) {
		return nil, domain.ErrConcurrentModification
	}

	c.State = next
	if mutate != nil {
		mutate(c)
	}
	c.Version++
	c.UpdatedAt = time.Now().UTC()

	cp := *c
	return &cp, nil
}

// Update applies mutate to a non-state field set (attempt counters, leg
// refs, last error) under the store lock and bumps Version.
func (s *CaseStore) Update(matchID string, mutate func(*domain.SettlementCase)) (*domain.SettlementCase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[matchID]
	if !ok {
		return nil, domain.ErrCaseNotFound
	}
	mutate(c)
	c.Version++
	c.UpdatedAt = time.Now().UTC()

	cp := *c
	return &cp, nil
}

// List returns copies of all cases in creation order.
func (s *CaseStore) List() []*domain.SettlementCase {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SettlementCase, 0, len(s.order))
	for _, id := range s.order {
		cp := *s.cases[id]
		result = append(result, &cp)
	}
	return result
}
