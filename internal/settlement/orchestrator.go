// Package settlement drives matches through the two-leg settlement
// protocol. The NGN leg is always confirmed before the CNY leg is
// attempted; a CNY failure after NGN confirmation is compensated by
// reversing the NGN leg.
package settlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/rail"
	"github.com/tradeflowafrica/tradeflow/internal/registry"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

// Config bounds the orchestrator's concurrency and retry behaviour.
type Config struct {
	// Workers caps concurrent settlement cases, respecting external
	// rail rate limits.
	Workers int
	// MaxSubmitAttempts bounds transient-error retries per leg
	// submission.
	MaxSubmitAttempts int
	// MaxPollAttempts bounds confirmation polling; an exhausted leg is
	// Unknown and escalates to manual review, never guessed at.
	MaxPollAttempts     int
	PollInitialInterval time.Duration
	PollMaxInterval     time.Duration
	// ReversalMaxInterval caps the backoff of the indefinitely retried
	// NGN reversal.
	ReversalMaxInterval time.Duration
}

// DefaultConfig returns the standard retry bounds.
func DefaultConfig() Config {
	return Config{
		Workers:             8,
		MaxSubmitAttempts:   3,
		MaxPollAttempts:     8,
		PollInitialInterval: 500 * time.Millisecond,
		PollMaxInterval:     30 * time.Second,
		ReversalMaxInterval: time.Minute,
	}
}

// BeneficiaryResolver maps a trader to payout routing for a currency.
// Registration/KYC owns this data; the orchestrator only consumes it.
type BeneficiaryResolver interface {
	Resolve(ctx context.Context, traderID string, currency domain.Currency) (account, bank string, err error)
}

// noopResolver returns empty routing; rails fall back to their own
// directory. Used when no resolver is wired.
type noopResolver struct{}

func (noopResolver) Resolve(context.Context, string, domain.Currency) (string, string, error) {
	return "", "", nil
}

// Orchestrator runs settlement cases on a bounded worker pool. Each
// case is owned by exactly one worker task for its lifetime; within a
// case, steps are strictly sequential.
type Orchestrator struct {
	cfg           Config
	cases         *store.CaseStore
	registry      *registry.Registry
	ngn           rail.ReversibleRail
	cny           rail.Rail
	beneficiaries BeneficiaryResolver
	events        *store.EventLog
	logger        *slog.Logger

	queue chan *domain.Match
	wg    sync.WaitGroup
}

// New creates an Orchestrator. beneficiaries may be nil.
func New(
	cfg Config,
	cases *store.CaseStore,
	reg *registry.Registry,
	ngn rail.ReversibleRail,
	cny rail.Rail,
	beneficiaries BeneficiaryResolver,
	events *store.EventLog,
	logger *slog.Logger,
) *Orchestrator {
	if beneficiaries == nil {
		beneficiaries = noopResolver{}
	}
	return &Orchestrator{
		cfg:           cfg,
		cases:         cases,
		registry:      reg,
		ngn:           ngn,
		cny:           cny,
		beneficiaries: beneficiaries,
		events:        events,
		logger:        logger,
		queue:         make(chan *domain.Match, 256),
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	for w := 0; w < o.cfg.Workers; w++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-o.queue:
					o.settle(ctx, m)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Enqueue creates a settlement case per match and queues it for a
// worker. It never blocks the matching cycle: overflow is handed to a
// goroutine.
func (o *Orchestrator) Enqueue(matches []*domain.Match) {
	now := time.Now().UTC()
	for _, m := range matches {
		c := &domain.SettlementCase{
			MatchID:   m.ID,
			State:     domain.CaseStateCreated,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		o.cases.Create(c)
		o.events.Append(domain.Event{
			Type:    domain.EventSettlementStarted,
			MatchID: m.ID,
			Amount:  m.MatchedAmountNGN,
		})

		select {
		case o.queue <- m:
		default:
			go func(m *domain.Match) { o.queue <- m }(m)
		}
	}
}

// Cancel cancels a case that no worker has started on. Fills return to
// the pool. After a submission may be in flight the outcome is
// ambiguous and only the failure/compensation path applies.
func (o *Orchestrator) Cancel(matchID string, m *domain.Match) error {
	_, err := o.cases.Transition(matchID, domain.CaseStateCancelled, nil)
	if err == domain.ErrConcurrentModification {
		return domain.ErrCaseNotCancellable
	}
	if err != nil {
		return err
	}
	o.registry.ReleaseFill(m)
	return nil
}

// Case returns a copy of the case for a match.
func (o *Orchestrator) Case(matchID string) (*domain.SettlementCase, error) {
	return o.cases.Get(matchID)
}

// Cases returns copies of all cases in creation order.
func (o *Orchestrator) Cases() []*domain.SettlementCase {
	return o.cases.List()
}
