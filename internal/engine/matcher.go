package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// Proposal is the output of one matching pass: the Match records to
// create and the fill instructions the registry applies transactionally.
// Fills are aggregated per intent (one fill per intent per cycle) so the
// registry's version check is exact.
//
// The matcher never mutates the registry; a failed downstream step can
// therefore never leave intents decremented without Match records.
type Proposal struct {
	Fills   []domain.Fill
	Matches []*domain.Match
}

// MatchIntents walks both directional snapshots with two cursors and
// pairs compatible intents greedily at the locked rate. Snapshots must
// already be in priority order (tolerance rank, then FIFO); given
// identical snapshots and quote the output is identical, which keeps
// cycles auditable and replayable.
//
// Greedy, priority-respecting, not globally rate-optimal: first-come,
// first-served within tolerance is the product requirement.
func MatchIntents(
	cycleID string,
	buys, sells []*domain.TradeIntent,
	quote *domain.RateQuote,
	now time.Time,
) *Proposal {
	proposal := &Proposal{}

	// Remaining capacity per intent, in each intent's own currency.
	remaining := make(map[string]int64, len(buys)+len(sells))
	for _, b := range buys {
		remaining[b.ID] = b.Remaining()
	}
	for _, s := range sells {
		remaining[s.ID] = s.Remaining()
	}
	fillTotal := make(map[string]int64)

	bi, si := 0, 0
	for bi < len(buys) && si < len(sells) {
		buy := buys[bi]
		sell := sells[si]

		if !acceptsLockedRate(buy, quote) {
			bi++
			continue
		}
		if !acceptsLockedRate(sell, quote) {
			si++
			continue
		}

		buyRem := remaining[buy.ID]
		sellRem := remaining[sell.ID]
		if buyRem <= 0 {
			bi++
			continue
		}
		if sellRem <= 0 {
			si++
			continue
		}

		// Express the CNY side's capacity in NGN terms and take the
		// smaller side.
		sellRemNGN := quote.ConvertCNYToNGN(sellRem)
		matchedNGN := buyRem
		if sellRemNGN < matchedNGN {
			matchedNGN = sellRemNGN
		}
		if matchedNGN <= 0 {
			// Sell remainder too small to express at this rate.
			si++
			continue
		}

		matchedCNY, remainderMicroFen := quote.ConvertNGNToCNY(matchedNGN)
		if matchedNGN == sellRemNGN {
			// The sell side constrains the match. Round-tripping
			// kobo->fen can miss its remaining capacity by a fen, so
			// consume it exactly and bank the signed difference: a
			// 1-fen residual would otherwise strand below the floor.
			exactMicroFen := matchedCNY*1_000_000 + remainderMicroFen
			matchedCNY = sellRem
			remainderMicroFen = exactMicroFen - sellRem*1_000_000
		}
		if matchedCNY <= 0 {
			si++
			continue
		}

		// Floor rule: splitting is allowed down to min_fill, never
		// below it. A pairing that would strand a sub-floor residual
		// is skipped; the constraining (smaller) side's cursor
		// advances so the larger intent stays available.
		buyResidual := buyRem - matchedNGN
		sellResidual := sellRem - matchedCNY
		if (buyResidual > 0 && buyResidual < buy.MinFillAmount) ||
			(sellResidual > 0 && sellResidual < sell.MinFillAmount) {
			if buyRem <= sellRemNGN {
				bi++
			} else {
				si++
			}
			continue
		}

		proposal.Matches = append(proposal.Matches, &domain.Match{
			ID:                uuid.New().String(),
			CycleID:           cycleID,
			BuyIntentID:       buy.ID,
			SellIntentID:      sell.ID,
			MatchedAmountNGN:  matchedNGN,
			MatchedAmountCNY:  matchedCNY,
			RemainderMicroFen: remainderMicroFen,
			LockedRate:        quote.Rate,
			RateValidUntil:    quote.ValidUntil,
			CreatedAt:         now,
		})

		remaining[buy.ID] -= matchedNGN
		remaining[sell.ID] -= matchedCNY
		fillTotal[buy.ID] += matchedNGN
		fillTotal[sell.ID] += matchedCNY

		if remaining[buy.ID] == 0 {
			bi++
		}
		if remaining[sell.ID] == 0 {
			si++
		}
	}

	// Aggregate fills in snapshot order for deterministic output.
	for _, b := range buys {
		if amt := fillTotal[b.ID]; amt > 0 {
			proposal.Fills = append(proposal.Fills, domain.Fill{
				IntentID:        b.ID,
				Amount:          amt,
				SnapshotVersion: b.Version,
			})
		}
	}
	for _, s := range sells {
		if amt := fillTotal[s.ID]; amt > 0 {
			proposal.Fills = append(proposal.Fills, domain.Fill{
				IntentID:        s.ID,
				Amount:          amt,
				SnapshotVersion: s.Version,
			})
		}
	}

	return proposal
}

// acceptsLockedRate checks the intent's tolerance against the cycle's
// locked rate, measured from the rate quoted to the trader at
// submission.
func acceptsLockedRate(i *domain.TradeIntent, quote *domain.RateQuote) bool {
	ref := domain.RateQuote{Rate: i.ReferenceRate}
	return i.AcceptsRate(ref.DeviationBps(quote.Rate))
}
