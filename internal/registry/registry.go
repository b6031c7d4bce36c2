package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

// Registry owns every trade intent's lifecycle. All mutation goes
// through its operations, which serialize on a single mutex so that a
// cycle's batch of fills is applied as one all-or-nothing unit against
// consistent version tokens. Reads (snapshots, lookups) hand out copies.
type Registry struct {
	mu      sync.Mutex // serializes all intent state transitions
	intents *store.IntentStore
	matches *store.MatchStore
	ledger  *store.LedgerStore
	events  *store.EventLog
	pools   map[domain.Direction]*pool
	logger  *slog.Logger
}

// New creates a Registry backed by the given stores.
func New(
	intents *store.IntentStore,
	matches *store.MatchStore,
	ledger *store.LedgerStore,
	events *store.EventLog,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		intents: intents,
		matches: matches,
		ledger:  ledger,
		events:  events,
		pools: map[domain.Direction]*pool{
			domain.DirectionNGNToCNY: newPool(domain.DirectionNGNToCNY),
			domain.DirectionCNYToNGN: newPool(domain.DirectionCNYToNGN),
		},
		logger: logger,
	}
}

// SubmitRequest carries the caller-supplied fields of a new intent.
// ReferenceRate is stamped by the service layer from the current quote.
type SubmitRequest struct {
	TraderID         string
	Direction        domain.Direction
	Amount           int64 // minor units, source currency
	RateToleranceBps int64
	ReferenceRate    decimal.Decimal
	MinFillAmount    int64
	ExpiresAt        time.Time
}

// Submit validates the request, registers a new pending intent in its
// directional pool, and returns the assigned intent ID.
func (r *Registry) Submit(req SubmitRequest) (*domain.TradeIntent, error) {
	now := time.Now().UTC()

	if req.TraderID == "" {
		return nil, &domain.ValidationError{Message: "trader_id is required"}
	}
	if !req.Direction.Valid() {
		return nil, &domain.ValidationError{Message: "direction must be ngn_to_cny or cny_to_ngn"}
	}
	if req.Amount <= 0 {
		return nil, &domain.ValidationError{Message: "amount must be positive"}
	}
	if req.MinFillAmount <= 0 {
		return nil, &domain.ValidationError{Message: "min_fill_amount must be positive"}
	}
	if req.MinFillAmount > req.Amount {
		return nil, &domain.ValidationError{Message: "min_fill_amount must not exceed amount"}
	}
	if req.RateToleranceBps < 0 {
		return nil, &domain.ValidationError{Message: "rate_tolerance_bps must not be negative"}
	}
	if !req.ReferenceRate.IsPositive() {
		return nil, &domain.ValidationError{Message: "reference_rate must be positive"}
	}
	if !req.ExpiresAt.After(now) {
		return nil, &domain.ValidationError{Message: "expires_at must be in the future"}
	}

	intent := &domain.TradeIntent{
		ID:               uuid.New().String(),
		TraderID:         req.TraderID,
		Direction:        req.Direction,
		Amount:           req.Amount,
		RateToleranceBps: req.RateToleranceBps,
		ReferenceRate:    req.ReferenceRate,
		MinFillAmount:    req.MinFillAmount,
		Status:           domain.IntentStatusPending,
		Version:          1,
		CreatedAt:        now,
		ExpiresAt:        req.ExpiresAt,
	}

	r.mu.Lock()
	r.intents.Create(intent)
	r.pools[intent.Direction].insert(intent)
	r.mu.Unlock()

	r.emit(domain.EventIntentSubmitted, intent, "", intent.Amount)
	return intent.Clone(), nil
}

// Get returns a copy of the intent.
func (r *Registry) Get(id string) (*domain.TradeIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, err := r.intents.Get(id)
	if err != nil {
		return nil, err
	}
	return intent.Clone(), nil
}

// ListByTrader returns copies of a trader's intents, newest first.
func (r *Registry) ListByTrader(traderID string) []*domain.TradeIntent {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.intents.ListByTrader(traderID)
	result := make([]*domain.TradeIntent, len(all))
	for i, intent := range all {
		result[i] = intent.Clone()
	}
	return result
}

// Snapshot returns the open, unexpired intents for one direction in
// priority order (tolerance rank, then FIFO). Entries are deep copies:
// the matcher computes fills against an immutable view and the registry
// re-validates versions at application time.
func (r *Registry) Snapshot(direction domain.Direction, now time.Time) []*domain.TradeIntent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*domain.TradeIntent
	r.pools[direction].walk(func(e poolEntry) bool {
		if !e.Intent.Status.Open() || !e.Intent.ExpiresAt.After(now) {
			return true // skip; the sweeper force-closes these
		}
		result = append(result, e.Intent.Clone())
		return true
	})
	return result
}

// PoolSizes returns the number of resting intents per direction.
func (r *Registry) PoolSizes() map[domain.Direction]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return map[domain.Direction]int{
		domain.DirectionNGNToCNY: r.pools[domain.DirectionNGNToCNY].size(),
		domain.DirectionCNYToNGN: r.pools[domain.DirectionCNYToNGN].size(),
	}
}

// ApplyFills applies one matching cycle's batch of fills and match
// records as a single all-or-nothing unit. Every fill's intent must
// still be open with its version unchanged since the snapshot;
// otherwise nothing is applied and domain.ErrConcurrentModification is
// returned so the cycle can retry against a fresh snapshot.
//
// Matches are persisted and rounding remainders banked in the same
// critical section, so fills can never exist without their Match
// records.
func (r *Registry) ApplyFills(cycleID string, fills []domain.Fill, matches []*domain.Match) error {
	r.mu.Lock()

	// Validation pass: nothing is mutated until every fill checks out.
	resolved := make([]*domain.TradeIntent, len(fills))
	for idx, f := range fills {
		intent, err := r.intents.Get(f.IntentID)
		if err != nil {
			r.mu.Unlock()
			return domain.ErrConcurrentModification
		}
		if !intent.Status.Open() || intent.Version != f.SnapshotVersion || intent.Remaining() < f.Amount {
			r.mu.Unlock()
			return domain.ErrConcurrentModification
		}
		resolved[idx] = intent
	}

	// Application pass.
	type emission struct {
		typ    domain.EventType
		intent *domain.TradeIntent
		amount int64
	}
	var emissions []emission

	for idx, f := range fills {
		intent := resolved[idx]
		intent.FilledAmount += f.Amount
		intent.Version++
		if intent.Remaining() == 0 {
			intent.Status = domain.IntentStatusMatched
			r.pools[intent.Direction].remove(intent.ID)
			emissions = append(emissions, emission{domain.EventIntentMatched, intent, f.Amount})
		} else {
			intent.Status = domain.IntentStatusPartiallyMatched
			emissions = append(emissions, emission{domain.EventIntentPartiallyFilled, intent, f.Amount})
		}
	}

	for _, m := range matches {
		r.matches.Create(m)
		if m.RemainderMicroFen != 0 {
			r.ledger.Append(&domain.LedgerEntry{
				ID:                uuid.New().String(),
				MatchID:           m.ID,
				RemainderMicroFen: m.RemainderMicroFen,
				Reason:            domain.LedgerReasonRounding,
				CreatedAt:         m.CreatedAt,
			})
		}
	}
	r.mu.Unlock()

	for _, e := range emissions {
		r.emit(e.typ, e.intent, "", e.amount)
	}
	r.logger.Info("cycle fills applied",
		slog.String("cycle_id", cycleID),
		slog.Int("fills", len(fills)),
		slog.Int("matches", len(matches)),
	)
	return nil
}

// ReleaseFill rolls back both sides of a match after settlement failed
// before completion: filled amounts return to the pool and the intents
// reopen (or expire, if their window has passed meanwhile).
func (r *Registry) ReleaseFill(m *domain.Match) {
	r.releaseSide(m, m.BuyIntentID, m.MatchedAmountNGN)
	r.releaseSide(m, m.SellIntentID, m.MatchedAmountCNY)
}

func (r *Registry) releaseSide(m *domain.Match, intentID string, amount int64) {
	now := time.Now().UTC()

	r.mu.Lock()
	intent, err := r.intents.Get(intentID)
	if err != nil {
		r.mu.Unlock()
		r.logger.Warn("release fill: intent missing",
			slog.String("intent_id", intentID), slog.String("match_id", m.ID))
		return
	}

	intent.FilledAmount -= amount
	if intent.FilledAmount < 0 {
		intent.FilledAmount = 0
	}
	intent.Version++

	if !intent.ExpiresAt.After(now) {
		// Window passed while the fill was in flight; force-close.
		intent.Status = domain.IntentStatusExpired
		expiredAt := intent.ExpiresAt
		intent.ExpiredAt = &expiredAt
		r.pools[intent.Direction].remove(intent.ID)
	} else if intent.FilledAmount == 0 {
		intent.Status = domain.IntentStatusPending
		r.pools[intent.Direction].insert(intent)
	} else {
		intent.Status = domain.IntentStatusPartiallyMatched
		if !r.pools[intent.Direction].contains(intent.ID) {
			r.pools[intent.Direction].insert(intent)
		}
	}
	r.mu.Unlock()

	r.emit(domain.EventIntentFillReleased, intent, m.ID, amount)
}

// MarkSettling transitions a match's fully-filled intents to settling.
// Partially matched intents keep their open status so their remainder
// stays eligible for the next cycle.
func (r *Registry) MarkSettling(m *domain.Match) {
	r.transitionIf(m.BuyIntentID, domain.IntentStatusMatched, domain.IntentStatusSettling)
	r.transitionIf(m.SellIntentID, domain.IntentStatusMatched, domain.IntentStatusSettling)
}

// MarkSettled transitions a match's settling intents to settled.
func (r *Registry) MarkSettled(m *domain.Match) {
	r.transitionIf(m.BuyIntentID, domain.IntentStatusSettling, domain.IntentStatusSettled)
	r.transitionIf(m.SellIntentID, domain.IntentStatusSettling, domain.IntentStatusSettled)
}

// MarkFailed freezes a match's intents in failed state. Used only for
// ambiguous outcomes that need manual review; clean failures release
// fills back to the pool instead.
func (r *Registry) MarkFailed(m *domain.Match) {
	r.freeze(m.BuyIntentID)
	r.freeze(m.SellIntentID)
}

func (r *Registry) transitionIf(intentID string, from, to domain.IntentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, err := r.intents.Get(intentID)
	if err != nil || intent.Status != from {
		return
	}
	intent.Status = to
	intent.Version++
}

func (r *Registry) freeze(intentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, err := r.intents.Get(intentID)
	if err != nil || intent.Status.Terminal() {
		return
	}
	intent.Status = domain.IntentStatusFailed
	intent.Version++
	r.pools[intent.Direction].remove(intent.ID)
}

// Cancel closes an intent's open remainder. Only pending or partially
// matched intents can be cancelled; fills already in settlement are
// unaffected.
func (r *Registry) Cancel(id string) (*domain.TradeIntent, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	intent, err := r.intents.Get(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if !intent.Status.Open() {
		r.mu.Unlock()
		return nil, domain.ErrIntentNotCancellable
	}

	intent.Status = domain.IntentStatusCancelled
	intent.CancelledAt = &now
	intent.Version++
	r.pools[intent.Direction].remove(intent.ID)
	clone := intent.Clone()
	r.mu.Unlock()

	r.emit(domain.EventIntentCancelled, intent, "", intent.Remaining())
	return clone, nil
}

// ExpireStale moves every open intent whose window has passed to
// expired and removes it from its pool. Idempotent; safe to call
// repeatedly. Returns the IDs of newly expired intents.
func (r *Registry) ExpireStale(now time.Time) []string {
	r.mu.Lock()

	var stale []*domain.TradeIntent
	for _, p := range r.pools {
		p.walk(func(e poolEntry) bool {
			if e.Intent.Status.Open() && !e.Intent.ExpiresAt.After(now) {
				stale = append(stale, e.Intent)
			}
			return true
		})
	}

	ids := make([]string, 0, len(stale))
	for _, intent := range stale {
		intent.Status = domain.IntentStatusExpired
		expiredAt := intent.ExpiresAt
		intent.ExpiredAt = &expiredAt
		intent.Version++
		r.pools[intent.Direction].remove(intent.ID)
		ids = append(ids, intent.ID)
	}
	r.mu.Unlock()

	for _, intent := range stale {
		r.emit(domain.EventIntentExpired, intent, "", intent.Remaining())
	}
	return ids
}

// emit appends a domain event to the log. Emission happens outside the
// registry mutex so log consumers can never block a transition.
func (r *Registry) emit(typ domain.EventType, intent *domain.TradeIntent, matchID string, amount int64) {
	r.events.Append(domain.Event{
		Type:     typ,
		IntentID: intent.ID,
		MatchID:  matchID,
		TraderID: intent.TraderID,
		Amount:   amount,
	})
}
