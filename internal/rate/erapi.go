package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// defaultERAPIURL is the free-tier endpoint publishing per-USD rates.
const defaultERAPIURL = "https://open.er-api.com/v6/latest/USD"

// ERAPIProvider fetches live USD base rates from exchangerate-api.com
// and derives the NGN/CNY cross rate.
type ERAPIProvider struct {
	url    string
	ttl    time.Duration
	client *http.Client
}

// NewERAPIProvider creates an ERAPIProvider. An empty url selects the
// default endpoint.
func NewERAPIProvider(url string, ttl, timeout time.Duration) *ERAPIProvider {
	if url == "" {
		url = defaultERAPIURL
	}
	return &ERAPIProvider{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: timeout},
	}
}

// erapiResponse is the subset of the upstream payload we consume.
type erapiResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// GetRate fetches per-USD rates and returns the CNY-per-NGN cross rate
// with a validity window of the configured TTL.
func (p *ERAPIProvider) GetRate(ctx context.Context, pair domain.Pair) (*domain.RateQuote, error) {
	if pair != domain.PairNGNCNY {
		return nil, domain.ErrUnknownPair
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate fetch: unexpected status %d", resp.StatusCode)
	}

	var body erapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("rate fetch: decode: %w", err)
	}
	if body.Result != "success" {
		return nil, fmt.Errorf("rate fetch: upstream result %q", body.Result)
	}

	ngn, ok := body.Rates["NGN"]
	if !ok || !ngn.IsPositive() {
		return nil, fmt.Errorf("rate fetch: missing NGN rate")
	}
	cny, ok := body.Rates["CNY"]
	if !ok || !cny.IsPositive() {
		return nil, fmt.Errorf("rate fetch: missing CNY rate")
	}

	now := time.Now().UTC()
	return &domain.RateQuote{
		Pair:       pair,
		Rate:       CrossRate(ngn, cny),
		Source:     "exchangerate-api",
		FetchedAt:  now,
		ValidUntil: now.Add(p.ttl),
	}, nil
}
