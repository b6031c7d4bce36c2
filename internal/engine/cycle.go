package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/registry"
)

// RateSource supplies a conversion rate with a validity window.
type RateSource interface {
	GetRate(ctx context.Context, pair domain.Pair) (*domain.RateQuote, error)
}

// Settler receives the matches a cycle produced and drives their
// settlement. The engine hands off and returns; settlement progress is
// the orchestrator's concern.
type Settler interface {
	Enqueue(matches []*domain.Match)
}

// Engine runs matching cycles: one exclusive pass per trigger that
// pairs compatible intents at a locked rate and hands the matches to
// the settlement orchestrator.
type Engine struct {
	locks    *PairLock
	registry *registry.Registry
	rates    RateSource
	settler  Settler
	logger   *slog.Logger

	mu         sync.RWMutex
	lastReport *CycleReport
}

// New creates an Engine.
func New(
	locks *PairLock,
	reg *registry.Registry,
	rates RateSource,
	settler Settler,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		locks:    locks,
		registry: reg,
		rates:    rates,
		settler:  settler,
		logger:   logger,
	}
}

// RunCycle executes one matching cycle for the pair. It is exclusive
// per pair: a concurrent trigger gets domain.ErrCycleInProgress
// immediately rather than queueing. The cycle is all-or-nothing: on a
// stale rate or an unresolvable fill conflict nothing is applied.
func (e *Engine) RunCycle(ctx context.Context, pair domain.Pair) (*CycleReport, error) {
	if pair != domain.PairNGNCNY {
		return nil, domain.ErrUnknownPair
	}
	if !e.locks.TryAcquire(pair) {
		return nil, domain.ErrCycleInProgress
	}
	defer e.locks.Release(pair)

	startedAt := time.Now().UTC()
	cycleID := newCycleID(startedAt)

	quote, err := e.rates.GetRate(ctx, pair)
	if err != nil {
		return nil, err
	}
	if quote.Expired(startedAt) {
		return nil, domain.ErrStaleRate
	}

	expired := e.registry.ExpireStale(startedAt)

	proposal, buySize, sellSize, err := e.matchOnce(cycleID, quote)
	if err != nil {
		return nil, err
	}

	// The fill batch is applied as a single unit. If any intent changed
	// since the snapshot (expired or cancelled concurrently), retry once
	// against a fresh snapshot before surfacing a conflict.
	conflictRetried := false
	err = e.applyChecked(cycleID, proposal, quote)
	if err == domain.ErrConcurrentModification {
		conflictRetried = true
		proposal, buySize, sellSize, err = e.matchOnce(cycleID, quote)
		if err == nil {
			err = e.applyChecked(cycleID, proposal, quote)
		}
		if err == domain.ErrConcurrentModification {
			err = domain.ErrCycleConflict
		}
	}
	if err != nil {
		return nil, err
	}

	if len(proposal.Matches) > 0 {
		e.settler.Enqueue(proposal.Matches)
	}

	completedAt := time.Now().UTC()
	report := buildReport(
		cycleID, pair, startedAt, completedAt,
		buySize, sellSize, proposal, len(expired), quote, conflictRetried,
	)

	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	e.logger.Info("matching cycle completed",
		slog.String("cycle_id", cycleID),
		slog.Int("matches", report.MatchCount),
		slog.Int64("volume_ngn", report.VolumeNGN),
		slog.Int64("volume_cny", report.VolumeCNY),
		slog.Int("expired", report.ExpiredCount),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// matchOnce snapshots both pools and runs the matcher.
func (e *Engine) matchOnce(cycleID string, quote *domain.RateQuote) (*Proposal, int, int, error) {
	now := time.Now().UTC()
	if quote.Expired(now) {
		return nil, 0, 0, domain.ErrStaleRate
	}

	buys := e.registry.Snapshot(domain.DirectionNGNToCNY, now)
	sells := e.registry.Snapshot(domain.DirectionCNYToNGN, now)
	proposal := MatchIntents(cycleID, buys, sells, quote, now)
	return proposal, len(buys), len(sells), nil
}

// applyChecked re-validates the quote immediately before application:
// a quote that expired mid-cycle aborts with nothing applied.
func (e *Engine) applyChecked(cycleID string, proposal *Proposal, quote *domain.RateQuote) error {
	if quote.Expired(time.Now().UTC()) {
		return domain.ErrStaleRate
	}
	return e.registry.ApplyFills(cycleID, proposal.Fills, proposal.Matches)
}

// LastReport returns the most recent completed cycle report, or nil.
func (e *Engine) LastReport() *CycleReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReport
}
