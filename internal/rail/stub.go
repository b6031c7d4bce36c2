package rail

import (
	"context"
	"fmt"
	"sync"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// StubRail is an in-memory rail with real idempotency semantics: a
// repeated Submit with the same key returns the original reference
// without creating a second movement. Used by tests and the dev wiring.
//
// Outcomes are scriptable per idempotency key; unscripted submissions
// confirm on the first poll.
type StubRail struct {
	name string

	mu          sync.Mutex
	byKey       map[string]string            // idempotency key -> leg ref
	statuses    map[string]domain.LegStatus  // leg ref -> current status
	pollsLeft   map[string]int               // leg ref -> polls until terminal
	submitErrs  map[string][]error           // idempotency key -> scripted submit errors, consumed in order
	finalStatus map[string]domain.LegStatus  // idempotency key -> scripted terminal status
	neverSettle map[string]bool              // idempotency key -> stay pending forever
	movements   int                          // real-world fund movements
	reversals   int
}

// NewStubRail creates a StubRail.
func NewStubRail(name string) *StubRail {
	return &StubRail{
		name:        name,
		byKey:       make(map[string]string),
		statuses:    make(map[string]domain.LegStatus),
		pollsLeft:   make(map[string]int),
		submitErrs:  make(map[string][]error),
		finalStatus: make(map[string]domain.LegStatus),
		neverSettle: make(map[string]bool),
	}
}

// ScriptSubmitErrors queues errors returned by successive Submit calls
// for the key before one succeeds.
func (r *StubRail) ScriptSubmitErrors(idempotencyKey string, errs ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitErrs[idempotencyKey] = append(r.submitErrs[idempotencyKey], errs...)
}

// ScriptOutcome sets the terminal status reached after polls polls.
func (r *StubRail) ScriptOutcome(idempotencyKey string, status domain.LegStatus, polls int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalStatus[idempotencyKey] = status
	if ref, ok := r.byKey[idempotencyKey]; ok {
		r.pollsLeft[ref] = polls
	}
	// Applied at submit time for keys not yet submitted.
	r.pollsLeft["key:"+idempotencyKey] = polls
}

// ScriptNeverSettles makes the leg stay pending on every poll.
func (r *StubRail) ScriptNeverSettles(idempotencyKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.neverSettle[idempotencyKey] = true
}

// Submit registers a movement, deduplicating on the idempotency key.
func (r *StubRail) Submit(_ context.Context, req LegRequest, idempotencyKey string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if errs := r.submitErrs[idempotencyKey]; len(errs) > 0 {
		err := errs[0]
		r.submitErrs[idempotencyKey] = errs[1:]
		return "", err
	}

	if ref, ok := r.byKey[idempotencyKey]; ok {
		return ref, nil
	}

	r.movements++
	ref := fmt.Sprintf("%s-%06d", r.name, r.movements)
	r.byKey[idempotencyKey] = ref
	r.statuses[ref] = domain.LegStatusPending
	if polls, ok := r.pollsLeft["key:"+idempotencyKey]; ok {
		r.pollsLeft[ref] = polls
		delete(r.pollsLeft, "key:"+idempotencyKey)
	} else {
		r.pollsLeft[ref] = 1
	}
	if r.neverSettle[idempotencyKey] {
		r.pollsLeft[ref] = -1
	}
	_ = req
	return ref, nil
}

// Poll advances the leg toward its scripted terminal status.
func (r *StubRail) Poll(_ context.Context, legRef string) (domain.LegStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status, ok := r.statuses[legRef]
	if !ok {
		return "", &domain.RailError{Message: "unknown leg ref " + legRef, Terminal: true}
	}
	if status != domain.LegStatusPending {
		return status, nil
	}
	if r.pollsLeft[legRef] < 0 {
		return domain.LegStatusPending, nil
	}

	r.pollsLeft[legRef]--
	if r.pollsLeft[legRef] > 0 {
		return domain.LegStatusPending, nil
	}

	final := domain.LegStatusConfirmed
	for key, ref := range r.byKey {
		if ref == legRef {
			if s, ok := r.finalStatus[key]; ok {
				final = s
			}
			break
		}
	}
	r.statuses[legRef] = final
	return final, nil
}

// Reverse records a reversal, deduplicating on the idempotency key.
func (r *StubRail) Reverse(_ context.Context, legRef, idempotencyKey string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.byKey[idempotencyKey]; ok {
		return ref, nil
	}

	r.reversals++
	ref := fmt.Sprintf("%s-rev-%06d", r.name, r.reversals)
	r.byKey[idempotencyKey] = ref
	_ = legRef
	return ref, nil
}

// Movements returns the count of real-world fund movements created.
func (r *StubRail) Movements() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.movements
}

// Reversals returns the count of reversals created.
func (r *StubRail) Reversals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reversals
}
