package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/rail"
	"github.com/tradeflowafrica/tradeflow/internal/registry"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

type fixture struct {
	reg    *registry.Registry
	cases  *store.CaseStore
	events *store.EventLog
	ngn    *rail.StubRail
	cny    *rail.StubRail
	orch   *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := store.NewEventLog()
	reg := registry.New(
		store.NewIntentStore(),
		store.NewMatchStore(),
		store.NewLedgerStore(),
		events,
		logger,
	)
	cases := store.NewCaseStore()
	ngn := rail.NewStubRail("prov")
	cny := rail.NewStubRail("cips")

	cfg := Config{
		Workers:             1,
		MaxSubmitAttempts:   3,
		MaxPollAttempts:     4,
		PollInitialInterval: time.Millisecond,
		PollMaxInterval:     2 * time.Millisecond,
		ReversalMaxInterval: 2 * time.Millisecond,
	}
	return &fixture{
		reg:    reg,
		cases:  cases,
		events: events,
		ngn:    ngn,
		cny:    cny,
		orch:   New(cfg, cases, reg, ngn, cny, nil, events, logger),
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.orch.Start(ctx)
	t.Cleanup(func() {
		cancel()
		f.orch.Wait()
	})
}

// newMatch submits a matched buy/sell pair and applies its fills so the
// intents reach matched state, then returns the match.
func (f *fixture) newMatch(t *testing.T) *domain.Match {
	t.Helper()
	rate := decimal.RequireFromString("0.004677")
	buy, err := f.reg.Submit(registry.SubmitRequest{
		TraderID:         "buyer",
		Direction:        domain.DirectionNGNToCNY,
		Amount:           1_000_000,
		RateToleranceBps: 100,
		ReferenceRate:    rate,
		MinFillAmount:    100_000,
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	sell, err := f.reg.Submit(registry.SubmitRequest{
		TraderID:         "seller",
		Direction:        domain.DirectionCNYToNGN,
		Amount:           4_677,
		RateToleranceBps: 100,
		ReferenceRate:    rate,
		MinFillAmount:    400,
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	m := &domain.Match{
		ID:               "M-" + buy.ID[:8],
		CycleID:          "MC-1",
		BuyIntentID:      buy.ID,
		SellIntentID:     sell.ID,
		MatchedAmountNGN: 1_000_000,
		MatchedAmountCNY: 4_677,
		LockedRate:       rate,
		RateValidUntil:   now.Add(time.Minute),
		CreatedAt:        now,
	}
	fills := []domain.Fill{
		{IntentID: buy.ID, Amount: 1_000_000, SnapshotVersion: buy.Version},
		{IntentID: sell.ID, Amount: 4_677, SnapshotVersion: sell.Version},
	}
	require.NoError(t, f.reg.ApplyFills("MC-1", fills, []*domain.Match{m}))
	return m
}

func (f *fixture) caseState(matchID string) domain.CaseState {
	c, err := f.cases.Get(matchID)
	if err != nil {
		return ""
	}
	return c.State
}

func (f *fixture) hasEvent(typ domain.EventType, matchID string) bool {
	for _, e := range f.events.After(0, 1000) {
		if e.Type == typ && e.MatchID == matchID {
			return true
		}
	}
	return false
}

func (f *fixture) intentStatus(t *testing.T, id string) domain.IntentStatus {
	t.Helper()
	intent, err := f.reg.Get(id)
	require.NoError(t, err)
	return intent.Status
}

func TestOrchestratorSettlesBothLegs(t *testing.T) {
	f := newFixture(t)
	m := f.newMatch(t)

	f.orch.Enqueue([]*domain.Match{m})
	f.start(t)

	require.Eventually(t, func() bool {
		return f.caseState(m.ID) == domain.CaseStateSettled
	}, 2*time.Second, 5*time.Millisecond)

	c, err := f.cases.Get(m.ID)
	require.NoError(t, err)
	require.NotEmpty(t, c.NGNLegRef)
	require.NotEmpty(t, c.CNYLegRef)
	require.Equal(t, 1, c.NGNAttempts)
	require.Equal(t, 1, c.CNYAttempts)
	require.False(t, c.RequiresManualReview)

	require.Equal(t, 1, f.ngn.Movements())
	require.Equal(t, 1, f.cny.Movements())
	require.Equal(t, 0, f.ngn.Reversals())

	require.Equal(t, domain.IntentStatusSettled, f.intentStatus(t, m.BuyIntentID))
	require.Equal(t, domain.IntentStatusSettled, f.intentStatus(t, m.SellIntentID))

	require.True(t, f.hasEvent(domain.EventSettlementStarted, m.ID))
	require.True(t, f.hasEvent(domain.EventSettlementCompleted, m.ID))
}

func TestOrchestratorNGNTerminalErrorFailsClean(t *testing.T) {
	f := newFixture(t)
	m := f.newMatch(t)
	f.ngn.ScriptSubmitErrors(ngnKey(m.ID),
		&domain.RailError{Message: "account blocked", Terminal: true})

	f.orch.Enqueue([]*domain.Match{m})
	f.start(t)

	require.Eventually(t, func() bool {
		return f.caseState(m.ID) == domain.CaseStateFailed
	}, 2*time.Second, 5*time.Millisecond)

	c, err := f.cases.Get(m.ID)
	require.NoError(t, err)
	require.False(t, c.RequiresManualReview)
	require.Contains(t, c.LastError, "account blocked")

	// No money moved, so both fills return to the pool.
	require.Equal(t, 0, f.ngn.Movements())
	require.Equal(t, 0, f.cny.Movements())
	require.Equal(t, domain.IntentStatusPending, f.intentStatus(t, m.BuyIntentID))
	require.Equal(t, domain.IntentStatusPending, f.intentStatus(t, m.SellIntentID))
	require.True(t, f.hasEvent(domain.EventSettlementFailed, m.ID))
}

func TestOrchestratorRetriesTransientSubmitOnce(t *testing.T) {
	f := newFixture(t)
	m := f.newMatch(t)
	f.ngn.ScriptSubmitErrors(ngnKey(m.ID),
		&domain.RailError{Message: "gateway timeout"},
		errors.New("connection reset"),
	)

	f.orch.Enqueue([]*domain.Match{m})
	f.start(t)

	require.Eventually(t, func() bool {
		return f.caseState(m.ID) == domain.CaseStateSettled
	}, 2*time.Second, 5*time.Millisecond)

	c, err := f.cases.Get(m.ID)
	require.NoError(t, err)
	require.Equal(t, 3, c.NGNAttempts)

	// The stable idempotency key guarantees a single fund movement no
	// matter how many submit attempts it took.
	require.Equal(t, 1, f.ngn.Movements())
}

func TestOrchestratorCompensatesRejectedCNYLeg(t *testing.T) {
	f := newFixture(t)
	m := f.newMatch(t)
	f.cny.ScriptOutcome(cnyKey(m.ID), domain.LegStatusRejected, 1)

	f.orch.Enqueue([]*domain.Match{m})
	f.start(t)

	require.Eventually(t, func() bool {
		return f.caseState(m.ID) == domain.CaseStateReversed
	}, 2*time.Second, 5*time.Millisecond)

	c, err := f.cases.Get(m.ID)
	require.NoError(t, err)
	require.True(t, c.CompensationRequired)
	require.NotEmpty(t, c.ReversalRef)

	require.Equal(t, 1, f.ngn.Movements())
	require.Equal(t, 1, f.ngn.Reversals())

	// The reversal made both sides whole again, so fills reopen.
	require.Equal(t, domain.IntentStatusPending, f.intentStatus(t, m.BuyIntentID))
	require.Equal(t, domain.IntentStatusPending, f.intentStatus(t, m.SellIntentID))
	require.True(t, f.hasEvent(domain.EventSettlementReversed, m.ID))
}

func TestOrchestratorUnknownOutcomeEscalates(t *testing.T) {
	f := newFixture(t)
	m := f.newMatch(t)
	f.cny.ScriptNeverSettles(cnyKey(m.ID))

	f.orch.Enqueue([]*domain.Match{m})
	f.start(t)

	require.Eventually(t, func() bool {
		return f.caseState(m.ID) == domain.CaseStateFailed
	}, 2*time.Second, 5*time.Millisecond)

	c, err := f.cases.Get(m.ID)
	require.NoError(t, err)
	require.True(t, c.RequiresManualReview)

	// Fills stay frozen: the CNY transfer may have landed, so releasing
	// them could pay the same amount twice.
	require.Equal(t, domain.IntentStatusFailed, f.intentStatus(t, m.BuyIntentID))
	require.Equal(t, domain.IntentStatusFailed, f.intentStatus(t, m.SellIntentID))
	require.Equal(t, 0, f.ngn.Reversals())
}

func TestOrchestratorCancelBeforeWorkerStarts(t *testing.T) {
	f := newFixture(t)
	m := f.newMatch(t)

	// Enqueue creates the case; no worker pool is started.
	f.orch.Enqueue([]*domain.Match{m})

	require.NoError(t, f.orch.Cancel(m.ID, m))
	require.Equal(t, domain.CaseStateCancelled, f.caseState(m.ID))
	require.Equal(t, domain.IntentStatusPending, f.intentStatus(t, m.BuyIntentID))

	require.ErrorIs(t, f.orch.Cancel(m.ID, m), domain.ErrCaseNotCancellable)
	require.Equal(t, 0, f.ngn.Movements())
}
