package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates which way a trade intent converts funds.
type Direction string

const (
	DirectionNGNToCNY Direction = "ngn_to_cny"
	DirectionCNYToNGN Direction = "cny_to_ngn"
)

// SourceCurrency returns the currency the trader pays in.
func (d Direction) SourceCurrency() Currency {
	if d == DirectionNGNToCNY {
		return CurrencyNGN
	}
	return CurrencyCNY
}

// Opposite returns the counterpart direction.
func (d Direction) Opposite() Direction {
	if d == DirectionNGNToCNY {
		return DirectionCNYToNGN
	}
	return DirectionNGNToCNY
}

// Valid reports whether d is one of the two corridor directions.
func (d Direction) Valid() bool {
	return d == DirectionNGNToCNY || d == DirectionCNYToNGN
}

// IntentStatus represents the lifecycle state of a trade intent.
type IntentStatus string

const (
	IntentStatusPending          IntentStatus = "pending"
	IntentStatusPartiallyMatched IntentStatus = "partially_matched"
	IntentStatusMatched          IntentStatus = "matched"
	IntentStatusSettling         IntentStatus = "settling"
	IntentStatusSettled          IntentStatus = "settled"
	IntentStatusFailed           IntentStatus = "failed"
	IntentStatusExpired          IntentStatus = "expired"
	IntentStatusCancelled        IntentStatus = "cancelled"
)

// Open reports whether the status still allows matching.
func (s IntentStatus) Open() bool {
	return s == IntentStatusPending || s == IntentStatusPartiallyMatched
}

// Terminal reports whether the status is a final state.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentStatusSettled, IntentStatusFailed, IntentStatusExpired, IntentStatusCancelled:
		return true
	}
	return false
}

// TradeIntent is a trader's standing offer to convert a fixed amount in
// one currency direction. Amounts are minor units (kobo or fen) of the
// source currency. Intents are owned by the registry: all mutation goes
// through registry transitions, which bump Version for optimistic
// concurrency.
type TradeIntent struct {
	ID           string
	TraderID     string
	Direction    Direction
	Amount       int64 // minor units, source currency
	FilledAmount int64
	// RateToleranceBps is the maximum acceptable deviation of a cycle's
	// locked rate from ReferenceRate, in basis points.
	RateToleranceBps int64
	// ReferenceRate is the NGN/CNY rate quoted to the trader at
	// submission. It never changes after submission.
	ReferenceRate decimal.Decimal
	MinFillAmount int64
	Status        IntentStatus
	Version       int64
	CreatedAt     time.Time
	ExpiresAt     time.Time
	CancelledAt   *time.Time
	ExpiredAt     *time.Time
}

// Remaining returns the unfilled portion of the intent.
func (i *TradeIntent) Remaining() int64 {
	return i.Amount - i.FilledAmount
}

// AcceptsRate reports whether the locked rate deviates from the
// reference rate by no more than the intent's tolerance. deviationBps is
// the absolute deviation of the locked rate from the cycle's reference
// rate in basis points.
func (i *TradeIntent) AcceptsRate(deviationBps int64) bool {
	if deviationBps < 0 {
		deviationBps = -deviationBps
	}
	return deviationBps <= i.RateToleranceBps
}

// Clone returns a deep copy of the intent. Snapshots hand out clones so
// matcher-side reads never observe concurrent registry mutation.
func (i *TradeIntent) Clone() *TradeIntent {
	c := *i
	if i.CancelledAt != nil {
		t := *i.CancelledAt
		c.CancelledAt = &t
	}
	if i.ExpiredAt != nil {
		t := *i.ExpiredAt
		c.ExpiredAt = &t
	}
	return &c
}
