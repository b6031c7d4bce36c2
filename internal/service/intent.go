// Package service hosts the application layer between HTTP handlers
// and the core: request validation, unit conversion, reference rate
// stamping, and webhook delivery.
package service

import (
	"context"
	"regexp"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/rate"
	"github.com/tradeflowafrica/tradeflow/internal/registry"
)

var traderIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// SubmitIntentRequest represents the input for intent submission.
// Amounts are major units of the direction's source currency.
type SubmitIntentRequest struct {
	TraderID         string
	Direction        domain.Direction
	Amount           float64
	RateToleranceBps int64
	MinFillAmount    float64
	ExpiresAt        time.Time
}

// IntentService handles intent submission, retrieval, cancellation, and
// listing. Submission stamps the intent with the current corridor rate
// as its reference rate.
type IntentService struct {
	registry *registry.Registry
	rates    rate.Provider
}

// NewIntentService creates a new IntentService.
func NewIntentService(reg *registry.Registry, rates rate.Provider) *IntentService {
	return &IntentService{registry: reg, rates: rates}
}

// Submit validates the request, quotes the current rate as the intent's
// reference, and registers the intent in its directional pool.
func (s *IntentService) Submit(ctx context.Context, req SubmitIntentRequest) (*domain.TradeIntent, error) {
	if !traderIDRegex.MatchString(req.TraderID) {
		return nil, &domain.ValidationError{
			Message: "trader_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if !req.Direction.Valid() {
		return nil, &domain.ValidationError{
			Message: "direction must be 'ngn_to_cny' or 'cny_to_ngn'",
		}
	}

	amount, err := domain.MajorToMinor(req.Amount)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "amount must have at most 2 decimal places",
		}
	}
	minFill, err := domain.MajorToMinor(req.MinFillAmount)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "min_fill_amount must have at most 2 decimal places",
		}
	}

	quote, err := s.rates.GetRate(ctx, domain.PairNGNCNY)
	if err != nil {
		return nil, err
	}

	return s.registry.Submit(registry.SubmitRequest{
		TraderID:         req.TraderID,
		Direction:        req.Direction,
		Amount:           amount,
		RateToleranceBps: req.RateToleranceBps,
		ReferenceRate:    quote.Rate,
		MinFillAmount:    minFill,
		ExpiresAt:        req.ExpiresAt,
	})
}

// Get retrieves an intent by ID.
func (s *IntentService) Get(id string) (*domain.TradeIntent, error) {
	return s.registry.Get(id)
}

// Cancel closes an intent's open remainder.
func (s *IntentService) Cancel(id string) (*domain.TradeIntent, error) {
	return s.registry.Cancel(id)
}

// ListByTrader returns a trader's intents, newest first.
func (s *IntentService) ListByTrader(traderID string) ([]*domain.TradeIntent, error) {
	if !traderIDRegex.MatchString(traderID) {
		return nil, &domain.ValidationError{
			Message: "trader_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	return s.registry.ListByTrader(traderID), nil
}
