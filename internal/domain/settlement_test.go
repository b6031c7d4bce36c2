package domain

import "testing"

func TestCaseStateTransitions(t *testing.T) {
	tests := []struct {
		from CaseState
		to   CaseState
		want bool
	}{
		{CaseStateCreated, CaseStateNGNLegSubmitting, true},
		{CaseStateCreated, CaseStateCancelled, true},
		{CaseStateCreated, CaseStateCNYLegSubmitting, false},
		{CaseStateNGNLegSubmitting, CaseStateNGNLegConfirmed, true},
		{CaseStateNGNLegSubmitting, CaseStateFailed, true},
		{CaseStateNGNLegSubmitting, CaseStateCancelled, false},
		{CaseStateNGNLegConfirmed, CaseStateCNYLegSubmitting, true},
		{CaseStateNGNLegConfirmed, CaseStateSettled, false},
		{CaseStateCNYLegSubmitting, CaseStateCNYLegConfirmed, true},
		{CaseStateCNYLegSubmitting, CaseStateCompensating, true},
		{CaseStateCNYLegSubmitting, CaseStateFailed, true},
		{CaseStateCNYLegConfirmed, CaseStateSettled, true},
		{CaseStateCompensating, CaseStateReversed, true},
		{CaseStateCompensating, CaseStateFailed, false},
		{CaseStateSettled, CaseStateFailed, false},
		{CaseStateCancelled, CaseStateNGNLegSubmitting, false},
		{CaseStateReversed, CaseStateCreated, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCaseStateTerminal(t *testing.T) {
	terminal := []CaseState{CaseStateSettled, CaseStateReversed, CaseStateFailed, CaseStateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []CaseState{
		CaseStateCreated, CaseStateNGNLegSubmitting, CaseStateNGNLegConfirmed,
		CaseStateCNYLegSubmitting, CaseStateCNYLegConfirmed, CaseStateCompensating,
	}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestCaseCancellable(t *testing.T) {
	c := &SettlementCase{State: CaseStateCreated}
	if !c.Cancellable() {
		t.Error("created case should be cancellable")
	}

	for _, s := range []CaseState{
		CaseStateNGNLegSubmitting, CaseStateNGNLegConfirmed, CaseStateCNYLegSubmitting,
		CaseStateSettled, CaseStateCompensating, CaseStateFailed,
	} {
		c := &SettlementCase{State: s}
		if c.Cancellable() {
			t.Errorf("case in state %s should not be cancellable", s)
		}
	}
}

func TestIntentStatusLifecycle(t *testing.T) {
	open := []IntentStatus{IntentStatusPending, IntentStatusPartiallyMatched}
	for _, s := range open {
		if !s.Open() {
			t.Errorf("%s should be open", s)
		}
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	for _, s := range []IntentStatus{IntentStatusSettled, IntentStatusFailed, IntentStatusExpired, IntentStatusCancelled} {
		if s.Open() {
			t.Errorf("%s should not be open", s)
		}
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	for _, s := range []IntentStatus{IntentStatusMatched, IntentStatusSettling} {
		if s.Open() || s.Terminal() {
			t.Errorf("%s should be neither open nor terminal", s)
		}
	}
}
