package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/rail"
)

// errOutcomeUnknown marks a leg whose terminal status could not be
// established within the poll budget. Unknown is never resolved by
// guessing; the case escalates to manual review.
var errOutcomeUnknown = errors.New("leg outcome unknown after poll budget")

func ngnKey(matchID string) string      { return matchID + ":ngn" }
func cnyKey(matchID string) string      { return matchID + ":cny" }
func reversalKey(matchID string) string { return matchID + ":ngn:rev" }

// settle drives one case from created to a terminal state. The legs are
// strictly sequenced: the CNY leg is never submitted until the NGN leg
// is confirmed.
func (o *Orchestrator) settle(ctx context.Context, m *domain.Match) {
	log := o.logger.With(slog.String("match_id", m.ID))

	if _, err := o.cases.Transition(m.ID, domain.CaseStateNGNLegSubmitting, nil); err != nil {
		// Cancelled before any worker started on it.
		log.Info("settlement case skipped", slog.String("reason", err.Error()))
		return
	}
	o.registry.MarkSettling(m)

	// NGN leg.
	ngnReq, err := o.legRequest(ctx, m, domain.LegKindNGN)
	if err != nil {
		o.failClean(m, log, "ngn beneficiary lookup: "+err.Error())
		return
	}
	ngnRef, err := o.submitLeg(ctx, o.ngn, m, domain.LegKindNGN, ngnReq, ngnKey(m.ID))
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("settlement interrupted by shutdown", slog.String("state", string(domain.CaseStateNGNLegSubmitting)))
			return
		}
		o.failClean(m, log, "ngn submit: "+err.Error())
		return
	}
	o.cases.Update(m.ID, func(c *domain.SettlementCase) { c.NGNLegRef = ngnRef })

	switch status, err := o.pollLeg(ctx, o.ngn, ngnRef); {
	case ctx.Err() != nil:
		log.Warn("settlement interrupted by shutdown", slog.String("state", string(domain.CaseStateNGNLegSubmitting)))
		return
	case errors.Is(err, errOutcomeUnknown):
		// The transfer may have landed. Releasing fills here could pay
		// the same intent twice, so freeze everything for an operator.
		o.failManualReview(m, log, "ngn leg outcome unknown")
		return
	case status == domain.LegStatusRejected:
		o.failClean(m, log, "ngn leg rejected by rail")
		return
	}
	o.cases.Transition(m.ID, domain.CaseStateNGNLegConfirmed, nil)
	log.Info("ngn leg confirmed", slog.String("leg_ref", ngnRef))

	// CNY leg. From here on NGN money has moved: every failure path
	// below must compensate or escalate, never silently release.
	o.cases.Transition(m.ID, domain.CaseStateCNYLegSubmitting, nil)

	cnyReq, err := o.legRequest(ctx, m, domain.LegKindCNY)
	if err != nil {
		o.compensate(ctx, m, log, ngnRef, "cny beneficiary lookup: "+err.Error())
		return
	}
	cnyRef, err := o.submitLeg(ctx, o.cny, m, domain.LegKindCNY, cnyReq, cnyKey(m.ID))
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("settlement interrupted by shutdown", slog.String("state", string(domain.CaseStateCNYLegSubmitting)))
			return
		}
		o.compensate(ctx, m, log, ngnRef, "cny submit: "+err.Error())
		return
	}
	o.cases.Update(m.ID, func(c *domain.SettlementCase) { c.CNYLegRef = cnyRef })

	switch status, err := o.pollLeg(ctx, o.cny, cnyRef); {
	case ctx.Err() != nil:
		log.Warn("settlement interrupted by shutdown", slog.String("state", string(domain.CaseStateCNYLegSubmitting)))
		return
	case errors.Is(err, errOutcomeUnknown):
		// The CNY leg may have settled; reversing the NGN leg now could
		// double-pay. Manual review is the only safe outcome.
		o.failManualReview(m, log, "cny leg outcome unknown")
		return
	case status == domain.LegStatusRejected:
		o.compensate(ctx, m, log, ngnRef, "cny leg rejected by rail")
		return
	}

	o.cases.Transition(m.ID, domain.CaseStateCNYLegConfirmed, nil)
	o.cases.Transition(m.ID, domain.CaseStateSettled, nil)
	o.registry.MarkSettled(m)
	o.events.Append(domain.Event{
		Type:    domain.EventSettlementCompleted,
		MatchID: m.ID,
		Amount:  m.MatchedAmountNGN,
	})
	log.Info("settlement completed",
		slog.String("ngn_ref", ngnRef),
		slog.String("cny_ref", cnyRef),
	)
}

// legRequest builds the rail request for one side of a match. The NGN
// payout goes to the CNY-selling trader and the CNY payout to the
// NGN-selling trader.
func (o *Orchestrator) legRequest(ctx context.Context, m *domain.Match, kind domain.LegKind) (rail.LegRequest, error) {
	var (
		intentID string
		amount   int64
		currency domain.Currency
	)
	if kind == domain.LegKindNGN {
		intentID, amount, currency = m.SellIntentID, m.MatchedAmountNGN, domain.CurrencyNGN
	} else {
		intentID, amount, currency = m.BuyIntentID, m.MatchedAmountCNY, domain.CurrencyCNY
	}

	intent, err := o.registry.Get(intentID)
	if err != nil {
		return rail.LegRequest{}, err
	}
	account, bank, err := o.beneficiaries.Resolve(ctx, intent.TraderID, currency)
	if err != nil {
		return rail.LegRequest{}, err
	}

	return rail.LegRequest{
		MatchID:            m.ID,
		Kind:               kind,
		Amount:             amount,
		Currency:           currency,
		BeneficiaryAccount: account,
		BeneficiaryBank:    bank,
		Narration:          "TradeFlow settlement " + m.ID,
	}, nil
}

// submitLeg submits one leg, retrying transient errors up to the
// configured budget. The idempotency key is stable across attempts, so
// a retry after an ambiguous network failure moves funds at most once.
func (o *Orchestrator) submitLeg(ctx context.Context, r rail.Rail, m *domain.Match, kind domain.LegKind, req rail.LegRequest, key string) (string, error) {
	b := o.newBackoff(o.cfg.PollMaxInterval)

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxSubmitAttempts; attempt++ {
		ref, err := r.Submit(ctx, req, key)

		o.cases.Update(m.ID, func(c *domain.SettlementCase) {
			if kind == domain.LegKindNGN {
				c.NGNAttempts = attempt
			} else {
				c.CNYAttempts = attempt
			}
			if err != nil {
				c.LastError = err.Error()
			}
		})

		if err == nil {
			return ref, nil
		}
		lastErr = err
		if domain.IsTerminalRailError(err) {
			return "", err
		}
		o.logger.Warn("leg submit failed, retrying",
			slog.String("match_id", m.ID),
			slog.String("leg", string(kind)),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt < o.cfg.MaxSubmitAttempts && !sleep(ctx, b.NextBackOff()) {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// pollLeg polls until the rail reports a terminal status or the poll
// budget is exhausted, in which case errOutcomeUnknown is returned.
// Poll errors consume attempts like pending responses do.
func (o *Orchestrator) pollLeg(ctx context.Context, r rail.Rail, legRef string) (domain.LegStatus, error) {
	b := o.newBackoff(o.cfg.PollMaxInterval)

	for attempt := 1; attempt <= o.cfg.MaxPollAttempts; attempt++ {
		status, err := r.Poll(ctx, legRef)
		if err == nil && status != domain.LegStatusPending {
			return status, nil
		}
		if err != nil {
			o.logger.Warn("leg poll failed",
				slog.String("leg_ref", legRef),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		if attempt < o.cfg.MaxPollAttempts && !sleep(ctx, b.NextBackOff()) {
			return "", ctx.Err()
		}
	}
	return "", errOutcomeUnknown
}

// compensate reverses the confirmed NGN leg after the CNY leg failed.
// The reversal is retried indefinitely with capped backoff: the NGN
// rail's reversal is idempotent, and leaving the trader's money gone
// with nothing received is not an acceptable resting state.
func (o *Orchestrator) compensate(ctx context.Context, m *domain.Match, log *slog.Logger, ngnRef, reason string) {
	o.cases.Transition(m.ID, domain.CaseStateCompensating, func(c *domain.SettlementCase) {
		c.CompensationRequired = true
		c.LastError = reason
	})
	log.Warn("compensating ngn leg", slog.String("reason", reason))

	b := o.newBackoff(o.cfg.ReversalMaxInterval)
	var revRef string
	for {
		var err error
		revRef, err = o.ngn.Reverse(ctx, ngnRef, reversalKey(m.ID))
		if err == nil {
			break
		}
		log.Warn("ngn reversal failed, retrying",
			slog.String("ngn_ref", ngnRef),
			slog.String("error", err.Error()),
		)
		if !sleep(ctx, b.NextBackOff()) {
			log.Error("ngn reversal interrupted by shutdown; case left compensating",
				slog.String("ngn_ref", ngnRef))
			return
		}
	}

	o.cases.Transition(m.ID, domain.CaseStateReversed, func(c *domain.SettlementCase) {
		c.ReversalRef = revRef
	})
	o.registry.ReleaseFill(m)
	o.events.Append(domain.Event{
		Type:    domain.EventSettlementReversed,
		MatchID: m.ID,
		Amount:  m.MatchedAmountNGN,
	})
	log.Info("settlement reversed", slog.String("reversal_ref", revRef))
}

// failClean fails a case before any money moved: fills return to the
// pool so the remainder can match in a later cycle.
func (o *Orchestrator) failClean(m *domain.Match, log *slog.Logger, reason string) {
	o.cases.Transition(m.ID, domain.CaseStateFailed, func(c *domain.SettlementCase) {
		c.LastError = reason
	})
	o.registry.ReleaseFill(m)
	o.events.Append(domain.Event{
		Type:    domain.EventSettlementFailed,
		MatchID: m.ID,
		Amount:  m.MatchedAmountNGN,
	})
	log.Warn("settlement failed", slog.String("reason", reason))
}

// failManualReview fails a case whose outcome is ambiguous. Fills are
// frozen rather than released: re-matching an amount that may already
// have been paid out would double-spend it.
func (o *Orchestrator) failManualReview(m *domain.Match, log *slog.Logger, reason string) {
	o.cases.Transition(m.ID, domain.CaseStateFailed, func(c *domain.SettlementCase) {
		c.LastError = reason
		c.RequiresManualReview = true
	})
	o.registry.MarkFailed(m)
	o.events.Append(domain.Event{
		Type:    domain.EventSettlementFailed,
		MatchID: m.ID,
		Amount:  m.MatchedAmountNGN,
	})
	log.Error("settlement requires manual review", slog.String("reason", reason))
}

// newBackoff returns an exponential backoff capped at max that never
// gives up on its own; attempt budgets are enforced by the callers.
func (o *Orchestrator) newBackoff(max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.cfg.PollInitialInterval
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// sleep waits for d or until ctx is done, reporting whether the full
// wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
