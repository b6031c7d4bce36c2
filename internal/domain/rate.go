package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair identifies a currency pair for matching and rate lookup.
type Pair string

// PairNGNCNY is the only corridor currently traded.
const PairNGNCNY Pair = "NGN/CNY"

// RateQuote is a read-only conversion rate with a validity window. Rate
// is CNY per NGN. A quote locked for a cycle is used unchanged for every
// Match it produces, for the Match's entire lifetime; re-fetching a fresh
// rate mid-settlement is forbidden.
type RateQuote struct {
	Pair       Pair
	Rate       decimal.Decimal // CNY per 1 NGN
	Source     string
	FetchedAt  time.Time
	ValidUntil time.Time
}

// Expired reports whether the quote is no longer valid at now.
func (q *RateQuote) Expired(now time.Time) bool {
	return !now.Before(q.ValidUntil)
}

// ConvertNGNToCNY converts an NGN minor-unit amount to CNY minor units
// at the quote's rate using banker's rounding (round-half-even) on the
// fen. The second return value is the rounding remainder expressed in
// micro-fen (1e-6 fen): the exact product minus the rounded fen amount,
// scaled by 1e6. The remainder accrues to the reconciliation ledger and
// must never silently disappear.
func (q *RateQuote) ConvertNGNToCNY(kobo int64) (fen int64, remainderMicroFen int64) {
	exact := decimal.NewFromInt(kobo).Mul(q.Rate)
	rounded := exact.RoundBank(0)
	rem := exact.Sub(rounded).Mul(decimal.NewFromInt(1_000_000))
	return rounded.IntPart(), rem.IntPart()
}

// ConvertCNYToNGN converts a CNY minor-unit amount to the equivalent NGN
// minor units, rounding half-even. Used to express a CNY-side intent's
// remaining capacity in NGN terms during matching.
func (q *RateQuote) ConvertCNYToNGN(fen int64) int64 {
	return decimal.NewFromInt(fen).Div(q.Rate).RoundBank(0).IntPart()
}

// DeviationBps returns the deviation of other from q in basis points of
// q's rate, as a signed integer. Tolerance checks compare its absolute
// value against an intent's RateToleranceBps.
func (q *RateQuote) DeviationBps(other decimal.Decimal) int64 {
	if q.Rate.IsZero() {
		return 0
	}
	return other.Sub(q.Rate).
		Div(q.Rate).
		Mul(decimal.NewFromInt(10_000)).
		RoundBank(0).
		IntPart()
}
