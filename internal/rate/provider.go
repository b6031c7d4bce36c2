// Package rate supplies NGN/CNY conversion quotes with validity
// windows. The NGN/CNY cross rate is derived from USD base rates, the
// only form the upstream free-tier API publishes.
package rate

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// Provider supplies a currency conversion rate with a validity window.
type Provider interface {
	GetRate(ctx context.Context, pair domain.Pair) (*domain.RateQuote, error)
}

// Deterministic development rates, matching typical corridor levels.
var (
	FixedNGNPerUSD = decimal.RequireFromString("1550.00")
	FixedCNYPerUSD = decimal.RequireFromString("7.25")
)

// FixedProvider returns a deterministic quote. Used in development and
// tests.
type FixedProvider struct {
	NGNPerUSD decimal.Decimal
	CNYPerUSD decimal.Decimal
	TTL       time.Duration
}

// NewFixedProvider creates a FixedProvider with the standard dev rates.
func NewFixedProvider(ttl time.Duration) *FixedProvider {
	return &FixedProvider{
		NGNPerUSD: FixedNGNPerUSD,
		CNYPerUSD: FixedCNYPerUSD,
		TTL:       ttl,
	}
}

// GetRate derives the CNY-per-NGN cross rate from the fixed USD rates.
func (p *FixedProvider) GetRate(_ context.Context, pair domain.Pair) (*domain.RateQuote, error) {
	if pair != domain.PairNGNCNY {
		return nil, domain.ErrUnknownPair
	}
	now := time.Now().UTC()
	return &domain.RateQuote{
		Pair:       pair,
		Rate:       CrossRate(p.NGNPerUSD, p.CNYPerUSD),
		Source:     "fixed",
		FetchedAt:  now,
		ValidUntil: now.Add(p.TTL),
	}, nil
}

// CrossRate computes CNY per NGN from per-USD base rates, to 6 decimal
// places.
func CrossRate(ngnPerUSD, cnyPerUSD decimal.Decimal) decimal.Decimal {
	return cnyPerUSD.DivRound(ngnPerUSD, 6)
}

// CachedProvider wraps another provider and reuses its quote until the
// validity window lapses, so repeated triggers inside one window see
// the same rate.
type CachedProvider struct {
	inner Provider

	mu    sync.Mutex
	quote *domain.RateQuote
}

// NewCachedProvider creates a CachedProvider.
func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{inner: inner}
}

// GetRate returns the cached quote while it remains valid, otherwise
// fetches a fresh one.
func (p *CachedProvider) GetRate(ctx context.Context, pair domain.Pair) (*domain.RateQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if p.quote != nil && p.quote.Pair == pair && !p.quote.Expired(now) {
		q := *p.quote
		return &q, nil
	}

	quote, err := p.inner.GetRate(ctx, pair)
	if err != nil {
		return nil, err
	}
	p.quote = quote
	q := *quote
	return &q, nil
}
