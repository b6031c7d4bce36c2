package store

import (
	"sync"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// LedgerStore is a thread-safe append-only store for reconciliation
// ledger entries. Rounding remainders land here so no value silently
// disappears during rate conversion.
type LedgerStore struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

// Append adds an entry to the ledger.
func (s *LedgerStore) Append(e *domain.LedgerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
}

// List returns all entries in append order.
func (s *LedgerStore) List() []*domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LedgerEntry, len(s.entries))
	copy(result, s.entries)
	return result
}

// TotalMicroFen returns the sum of all banked remainders in micro-fen.
func (s *LedgerStore) TotalMicroFen() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, e := range s.entries {
		total += e.RemainderMicroFen
	}
	return total
}
