package store

import (
	"sync"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// IntentStore is a thread-safe in-memory store for trade intents,
// with a primary index by intent ID and a secondary index by trader ID.
// The registry is the only writer; the store itself does no lifecycle
// validation.
type IntentStore struct {
	mu            sync.RWMutex
	intents       map[string]*domain.TradeIntent
	traderIntents map[string][]*domain.TradeIntent // trader_id -> intents (append-only)
}

// NewIntentStore creates an empty IntentStore.
func NewIntentStore() *IntentStore {
	return &IntentStore{
		intents:       make(map[string]*domain.TradeIntent),
		traderIntents: make(map[string][]*domain.TradeIntent),
	}
}

// Create adds an intent to the store and appends it to the trader's
// secondary index.
func (s *IntentStore) Create(i *domain.TradeIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intents[i.ID] = i
	s.traderIntents[i.TraderID] = append(s.traderIntents[i.TraderID], i)
}

// Get retrieves an intent by ID. It returns domain.ErrIntentNotFound if
// the intent does not exist.
func (s *IntentStore) Get(id string) (*domain.TradeIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.intents[id]
	if !ok {
		return nil, domain.ErrIntentNotFound
	}
	return i, nil
}

// ListByTrader returns a trader's intents in reverse chronological order
// (newest first).
func (s *IntentStore) ListByTrader(traderID string) []*domain.TradeIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.traderIntents[traderID]
	result := make([]*domain.TradeIntent, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		result = append(result, all[i])
	}
	return result
}
