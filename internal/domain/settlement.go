package domain

import "time"

// CaseState is the state machine position of a settlement case.
//
// The NGN leg is always submitted and confirmed before the CNY leg is
// attempted: the NGN rail supports a reliable idempotent reversal, while
// a confirmed CNY settlement is treated as non-reversible. A CNY failure
// after NGN confirmation therefore compensates by reversing the NGN leg.
type CaseState string

const (
	CaseStateCreated          CaseState = "created"
	CaseStateNGNLegSubmitting CaseState = "ngn_leg_submitting"
	CaseStateNGNLegConfirmed  CaseState = "ngn_leg_confirmed"
	CaseStateCNYLegSubmitting CaseState = "cny_leg_submitting"
	CaseStateCNYLegConfirmed  CaseState = "cny_leg_confirmed"
	CaseStateSettled          CaseState = "settled"
	CaseStateCompensating     CaseState = "compensating_ngn_reversal"
	CaseStateReversed         CaseState = "reversed"
	CaseStateFailed           CaseState = "failed"
	CaseStateCancelled        CaseState = "cancelled"
)

// Terminal reports whether the state is final. Terminal cases are
// retained forever as audit records, never deleted.
func (s CaseState) Terminal() bool {
	switch s {
	case CaseStateSettled, CaseStateReversed, CaseStateFailed, CaseStateCancelled:
		return true
	}
	return false
}

// caseTransitions enumerates the legal state machine edges.
var caseTransitions = map[CaseState][]CaseState{
	CaseStateCreated:          {CaseStateNGNLegSubmitting, CaseStateCancelled},
	CaseStateNGNLegSubmitting: {CaseStateNGNLegConfirmed, CaseStateFailed},
	CaseStateNGNLegConfirmed:  {CaseStateCNYLegSubmitting},
	CaseStateCNYLegSubmitting: {CaseStateCNYLegConfirmed, CaseStateCompensating, CaseStateFailed},
	CaseStateCNYLegConfirmed:  {CaseStateSettled},
	CaseStateCompensating:     {CaseStateReversed},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s CaseState) CanTransition(next CaseState) bool {
	for _, t := range caseTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// LegKind names one side of a settlement case.
type LegKind string

const (
	LegKindNGN LegKind = "ngn"
	LegKindCNY LegKind = "cny"
)

// LegStatus is a rail's view of a submitted leg.
type LegStatus string

const (
	LegStatusPending   LegStatus = "pending"
	LegStatusConfirmed LegStatus = "confirmed"
	LegStatusRejected  LegStatus = "rejected"
)

// SettlementCase drives one Match through the two-leg settlement
// protocol. It is owned by exactly one orchestration task for its
// lifetime; Version increments on every transition for audit replay.
type SettlementCase struct {
	MatchID              string
	State                CaseState
	NGNLegRef            string // rail reference, empty until submitted
	CNYLegRef            string
	ReversalRef          string
	NGNAttempts          int
	CNYAttempts          int
	LastError            string
	CompensationRequired bool
	RequiresManualReview bool
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Cancellable reports whether the case may still be cancelled cleanly.
// Only a case no worker has started on qualifies: once a submission may
// be in flight the outcome is ambiguous, and once the NGN leg is
// confirmed money has moved and only the failure/compensation path
// applies.
func (c *SettlementCase) Cancellable() bool {
	return c.State == CaseStateCreated
}
