package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

func testQuote(rate string) *domain.RateQuote {
	now := time.Now().UTC()
	return &domain.RateQuote{
		Pair:       domain.PairNGNCNY,
		Rate:       decimal.RequireFromString(rate),
		Source:     "test",
		FetchedAt:  now,
		ValidUntil: now.Add(time.Minute),
	}
}

func newIntent(dir domain.Direction, amount, tolBps, minFill int64, refRate string) *domain.TradeIntent {
	return &domain.TradeIntent{
		ID:               uuid.New().String(),
		TraderID:         "trader",
		Direction:        dir,
		Amount:           amount,
		RateToleranceBps: tolBps,
		ReferenceRate:    decimal.RequireFromString(refRate),
		MinFillAmount:    minFill,
		Status:           domain.IntentStatusPending,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	}
}

func newBuy(amount, tolBps, minFill int64) *domain.TradeIntent {
	return newIntent(domain.DirectionNGNToCNY, amount, tolBps, minFill, "0.0046")
}

func newSell(amount, tolBps, minFill int64) *domain.TradeIntent {
	return newIntent(domain.DirectionCNYToNGN, amount, tolBps, minFill, "0.0046")
}

func TestMatchIntentsExactFill(t *testing.T) {
	quote := testQuote("0.0046")
	buy := newBuy(1_000_000, 50, 100_000)
	sell := newSell(4_600, 50, 400)

	p := MatchIntents("MC-1", []*domain.TradeIntent{buy}, []*domain.TradeIntent{sell}, quote, time.Now().UTC())

	if len(p.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(p.Matches))
	}
	m := p.Matches[0]
	if m.MatchedAmountNGN != 1_000_000 || m.MatchedAmountCNY != 4_600 {
		t.Errorf("matched %d kobo / %d fen, want 1000000 / 4600", m.MatchedAmountNGN, m.MatchedAmountCNY)
	}
	if m.RemainderMicroFen != 0 {
		t.Errorf("remainder = %d, want 0 for an exact conversion", m.RemainderMicroFen)
	}
	if !m.LockedRate.Equal(quote.Rate) {
		t.Errorf("locked rate = %s, want %s", m.LockedRate, quote.Rate)
	}
	if m.BuyIntentID != buy.ID || m.SellIntentID != sell.ID {
		t.Error("match references wrong intents")
	}

	if len(p.Fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(p.Fills))
	}
	if p.Fills[0].IntentID != buy.ID || p.Fills[0].Amount != 1_000_000 {
		t.Errorf("buy fill = %+v", p.Fills[0])
	}
	if p.Fills[1].IntentID != sell.ID || p.Fills[1].Amount != 4_600 {
		t.Errorf("sell fill = %+v", p.Fills[1])
	}
}

func TestMatchIntentsPartialBuy(t *testing.T) {
	quote := testQuote("0.0046")
	buy := newBuy(2_000_000, 50, 100_000)
	sell := newSell(4_600, 50, 400)

	p := MatchIntents("MC-1", []*domain.TradeIntent{buy}, []*domain.TradeIntent{sell}, quote, time.Now().UTC())

	if len(p.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(p.Matches))
	}
	if p.Matches[0].MatchedAmountNGN != 1_000_000 {
		t.Errorf("matched NGN = %d, want 1000000 (sell-constrained)", p.Matches[0].MatchedAmountNGN)
	}
}

func TestMatchIntentsPartialSell(t *testing.T) {
	quote := testQuote("0.0046")
	buy := newBuy(1_000_000, 50, 100_000)
	sell := newSell(9_200, 50, 400)

	p := MatchIntents("MC-1", []*domain.TradeIntent{buy}, []*domain.TradeIntent{sell}, quote, time.Now().UTC())

	if len(p.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(p.Matches))
	}
	m := p.Matches[0]
	if m.MatchedAmountNGN != 1_000_000 || m.MatchedAmountCNY != 4_600 {
		t.Errorf("matched %d / %d, want 1000000 / 4600 (buy-constrained)", m.MatchedAmountNGN, m.MatchedAmountCNY)
	}
}

func TestMatchIntentsMinFillFloor(t *testing.T) {
	quote := testQuote("0.0046")
	// Pairing would leave the buy with 400,000 kobo, below its floor.
	buy := newBuy(1_000_000, 50, 500_000)
	sell := newSell(2_760, 50, 400) // 600,000 kobo of capacity

	p := MatchIntents("MC-1", []*domain.TradeIntent{buy}, []*domain.TradeIntent{sell}, quote, time.Now().UTC())

	if len(p.Matches) != 0 {
		t.Fatalf("got %d matches, want 0 (sub-floor residual)", len(p.Matches))
	}
	if len(p.Fills) != 0 {
		t.Errorf("got %d fills, want 0", len(p.Fills))
	}
}

func TestMatchIntentsFloorSkipKeepsLargerSideAvailable(t *testing.T) {
	quote := testQuote("0.0046")
	buy := newBuy(1_000_000, 50, 500_000)
	small := newSell(2_760, 50, 400) // would strand the buy below floor
	full := newSell(4_600, 50, 400)  // consumes the buy exactly

	p := MatchIntents("MC-1",
		[]*domain.TradeIntent{buy},
		[]*domain.TradeIntent{small, full},
		quote, time.Now().UTC(),
	)

	if len(p.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(p.Matches))
	}
	m := p.Matches[0]
	if m.SellIntentID != full.ID || m.MatchedAmountNGN != 1_000_000 {
		t.Errorf("buy should skip the stranding sell and fill against the next: %+v", m)
	}
}

func TestMatchIntentsToleranceExcludes(t *testing.T) {
	quote := testQuote("0.0046")
	// Reference rate far from the locked rate with zero tolerance.
	strict := newIntent(domain.DirectionNGNToCNY, 1_000_000, 0, 100_000, "0.0050")
	flexible := newBuy(1_000_000, 50, 100_000)
	sell := newSell(4_600, 50, 400)

	p := MatchIntents("MC-1",
		[]*domain.TradeIntent{strict, flexible},
		[]*domain.TradeIntent{sell},
		quote, time.Now().UTC(),
	)

	if len(p.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(p.Matches))
	}
	if p.Matches[0].BuyIntentID != flexible.ID {
		t.Error("out-of-tolerance intent was matched")
	}
}

func TestMatchIntentsAggregatesFillsPerIntent(t *testing.T) {
	quote := testQuote("0.0046")
	buy := newBuy(2_000_000, 50, 100_000)
	sellA := newSell(4_600, 50, 400)
	sellB := newSell(4_600, 50, 400)

	p := MatchIntents("MC-1",
		[]*domain.TradeIntent{buy},
		[]*domain.TradeIntent{sellA, sellB},
		quote, time.Now().UTC(),
	)

	if len(p.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(p.Matches))
	}
	// One aggregated fill for the buy, one per sell.
	if len(p.Fills) != 3 {
		t.Fatalf("got %d fills, want 3", len(p.Fills))
	}
	if p.Fills[0].IntentID != buy.ID || p.Fills[0].Amount != 2_000_000 {
		t.Errorf("buy fill = %+v, want aggregated 2000000", p.Fills[0])
	}
}

func TestMatchIntentsEmptyPools(t *testing.T) {
	quote := testQuote("0.0046")

	p := MatchIntents("MC-1", nil, []*domain.TradeIntent{newSell(4_600, 50, 400)}, quote, time.Now().UTC())
	if len(p.Matches) != 0 || len(p.Fills) != 0 {
		t.Error("one-sided pool must produce no matches")
	}

	p = MatchIntents("MC-1", nil, nil, quote, time.Now().UTC())
	if len(p.Matches) != 0 || len(p.Fills) != 0 {
		t.Error("empty pools must produce no matches")
	}
}

func TestMatchIntentsDeterministic(t *testing.T) {
	quote := testQuote("0.0046")
	buys := []*domain.TradeIntent{newBuy(2_000_000, 50, 100_000), newBuy(500_000, 50, 100_000)}
	sells := []*domain.TradeIntent{newSell(4_600, 50, 400), newSell(6_900, 50, 400)}
	now := time.Now().UTC()

	p1 := MatchIntents("MC-1", buys, sells, quote, now)
	p2 := MatchIntents("MC-1", buys, sells, quote, now)

	if len(p1.Matches) != len(p2.Matches) || len(p1.Fills) != len(p2.Fills) {
		t.Fatal("identical inputs produced different match/fill counts")
	}
	for i := range p1.Matches {
		a, b := p1.Matches[i], p2.Matches[i]
		if a.BuyIntentID != b.BuyIntentID || a.SellIntentID != b.SellIntentID ||
			a.MatchedAmountNGN != b.MatchedAmountNGN || a.MatchedAmountCNY != b.MatchedAmountCNY ||
			a.RemainderMicroFen != b.RemainderMicroFen {
			t.Errorf("match %d differs between identical runs", i)
		}
	}
	for i := range p1.Fills {
		if p1.Fills[i] != p2.Fills[i] {
			t.Errorf("fill %d differs between identical runs", i)
		}
	}
}
