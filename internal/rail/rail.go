// Package rail adapts external settlement rails (Providus Bank for the
// NGN leg, Afrexim CIPS for the CNY leg) behind a common submit/poll
// contract.
package rail

import (
	"context"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// LegRequest describes one currency-side settlement action.
type LegRequest struct {
	MatchID  string
	Kind     domain.LegKind
	Amount   int64 // minor units of Currency
	Currency domain.Currency
	// Beneficiary routing, opaque to the orchestrator.
	BeneficiaryAccount string
	BeneficiaryBank    string
	Narration          string
}

// Rail is a settlement rail's submit/poll surface. Submit must be
// idempotent given a stable idempotency key: a retried submission after
// a network failure moves funds exactly once. Poll never guesses; it
// reports the rail's own view of the leg.
type Rail interface {
	Submit(ctx context.Context, req LegRequest, idempotencyKey string) (legRef string, err error)
	Poll(ctx context.Context, legRef string) (domain.LegStatus, error)
}

// ReversibleRail is a rail that additionally supports reversing a
// confirmed leg. Only the NGN rail qualifies; a confirmed CIPS
// settlement is outside this system's control.
type ReversibleRail interface {
	Rail
	Reverse(ctx context.Context, legRef, idempotencyKey string) (reversalRef string, err error)
}
