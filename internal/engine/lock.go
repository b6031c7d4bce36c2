package engine

import (
	"sync"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// PairLock grants at most one matching cycle per currency pair at a
// time. A second trigger while a cycle is running is rejected, not
// queued, so redundant triggers can never stack up a cycle backlog.
//
// The lock is passed into the cycle invocation and released on every
// exit path; it is never ambient global state.
type PairLock struct {
	mu   sync.Mutex
	held map[domain.Pair]bool
}

// NewPairLock creates an empty PairLock.
func NewPairLock() *PairLock {
	return &PairLock{held: make(map[domain.Pair]bool)}
}

// TryAcquire attempts to take the pair's lock without blocking.
// Returns false if a cycle for the pair is already in flight.
func (l *PairLock) TryAcquire(pair domain.Pair) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[pair] {
		return false
	}
	l.held[pair] = true
	return true
}

// Release frees the pair's lock.
func (l *PairLock) Release(pair domain.Pair) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, pair)
}
