package registry

import (
	"time"

	"github.com/google/btree"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// poolEntry represents a single open intent resting in a directional
// matching pool.
type poolEntry struct {
	ToleranceBps int64
	CreatedAt    time.Time
	IntentID     string
	Intent       *domain.TradeIntent
}

// entryLess defines pool priority order: rate tolerance descending
// (wider tolerance is compatible with more rates, so it ranks first),
// then created_at ascending (FIFO), then intent ID ascending. The ID
// tie-break makes snapshot order fully deterministic for audit replay.
func entryLess(a, b poolEntry) bool {
	if a.ToleranceBps != b.ToleranceBps {
		return a.ToleranceBps > b.ToleranceBps
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.IntentID < b.IntentID
}

// pool maintains one direction's open intents in priority order using a
// B-tree with a secondary index for O(log n) removal by intent ID.
// Callers synchronize through the registry mutex.
type pool struct {
	direction domain.Direction
	tree      *btree.BTreeG[poolEntry]
	index     map[string]poolEntry // intent_id -> entry
}

// newPool creates a pool for the given direction.
func newPool(direction domain.Direction) *pool {
	const degree = 32
	return &pool{
		direction: direction,
		tree:      btree.NewG[poolEntry](degree, entryLess),
		index:     make(map[string]poolEntry),
	}
}

// insert adds an intent to the pool.
func (p *pool) insert(i *domain.TradeIntent) {
	entry := poolEntry{
		ToleranceBps: i.RateToleranceBps,
		CreatedAt:    i.CreatedAt,
		IntentID:     i.ID,
		Intent:       i,
	}
	p.tree.ReplaceOrInsert(entry)
	p.index[i.ID] = entry
}

// remove deletes an intent from the pool by ID. No-op if absent.
func (p *pool) remove(intentID string) {
	entry, ok := p.index[intentID]
	if !ok {
		return
	}
	delete(p.index, intentID)
	p.tree.Delete(entry)
}

// contains reports whether the intent is resting in the pool.
func (p *pool) contains(intentID string) bool {
	_, ok := p.index[intentID]
	return ok
}

// walk iterates pool entries in priority order. The callback returns
// true to continue, false to stop.
func (p *pool) walk(fn func(poolEntry) bool) {
	p.tree.Ascend(fn)
}

// size returns the number of intents resting in the pool.
func (p *pool) size() int {
	return p.tree.Len()
}
