package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Match pairs one NGN->CNY intent with one CNY->NGN intent at a locked
// rate. A Match is immutable once created; only its settlement status
// (tracked in the SettlementCase) changes afterwards.
type Match struct {
	ID               string
	CycleID          string
	BuyIntentID      string // ngn_to_cny side
	SellIntentID     string // cny_to_ngn side
	MatchedAmountNGN int64  // kobo
	MatchedAmountCNY int64  // fen, = round-half-even(NGN × rate)
	// RemainderMicroFen is the rounding remainder of the NGN->CNY
	// conversion in micro-fen. It is banked to the reconciliation
	// ledger, never credited to either party.
	RemainderMicroFen int64
	LockedRate        decimal.Decimal // CNY per NGN
	RateValidUntil    time.Time
	CreatedAt         time.Time
}

// Fill is one intent-side decrement produced by a matching cycle. The
// matcher returns fills; the registry applies them transactionally.
type Fill struct {
	IntentID string
	// Amount is in the intent's own source currency minor units.
	Amount int64
	// SnapshotVersion is the intent version observed in the snapshot the
	// fill was computed from. Application fails if the live version
	// differs (optimistic concurrency).
	SnapshotVersion int64
}

// LedgerEntry records value that belongs to neither party: rounding
// remainders from rate conversion. Append-only.
type LedgerEntry struct {
	ID                string
	MatchID           string
	RemainderMicroFen int64
	Reason            string
	CreatedAt         time.Time
}

// LedgerReasonRounding marks remainders banked by rate conversion.
const LedgerReasonRounding = "rate_rounding"
