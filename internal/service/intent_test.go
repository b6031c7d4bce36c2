package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/rate"
	"github.com/tradeflowafrica/tradeflow/internal/registry"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

func newIntentService() (*IntentService, *registry.Registry) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(
		store.NewIntentStore(),
		store.NewMatchStore(),
		store.NewLedgerStore(),
		store.NewEventLog(),
		logger,
	)
	return NewIntentService(reg, rate.NewFixedProvider(time.Minute)), reg
}

func validSubmit() SubmitIntentRequest {
	return SubmitIntentRequest{
		TraderID:         "trader-1",
		Direction:        domain.DirectionNGNToCNY,
		Amount:           10_000,
		RateToleranceBps: 50,
		MinFillAmount:    1_000,
		ExpiresAt:        time.Now().UTC().Add(time.Hour),
	}
}

func TestIntentServiceSubmit(t *testing.T) {
	svc, _ := newIntentService()

	intent, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if intent.ID == "" {
		t.Error("intent ID not assigned")
	}
	if intent.Amount != 1_000_000 {
		t.Errorf("Amount = %d kobo, want 1000000", intent.Amount)
	}
	if intent.MinFillAmount != 100_000 {
		t.Errorf("MinFillAmount = %d kobo, want 100000", intent.MinFillAmount)
	}
	// Reference rate is stamped from the current quote, never
	// caller-supplied.
	if !intent.ReferenceRate.IsPositive() {
		t.Errorf("ReferenceRate = %s, want the provider's quote", intent.ReferenceRate)
	}
}

func TestIntentServiceSubmitValidation(t *testing.T) {
	svc, _ := newIntentService()

	tests := []struct {
		name    string
		mutate  func(*SubmitIntentRequest)
		wantMsg string
	}{
		{
			name:    "empty trader id",
			mutate:  func(r *SubmitIntentRequest) { r.TraderID = "" },
			wantMsg: "trader_id",
		},
		{
			name:    "trader id with spaces",
			mutate:  func(r *SubmitIntentRequest) { r.TraderID = "trader 1" },
			wantMsg: "trader_id",
		},
		{
			name:    "trader id too long",
			mutate:  func(r *SubmitIntentRequest) { r.TraderID = strings.Repeat("a", 65) },
			wantMsg: "trader_id",
		},
		{
			name:    "invalid direction",
			mutate:  func(r *SubmitIntentRequest) { r.Direction = "usd_to_eur" },
			wantMsg: "direction",
		},
		{
			name:    "amount with sub-minor precision",
			mutate:  func(r *SubmitIntentRequest) { r.Amount = 100.005 },
			wantMsg: "amount",
		},
		{
			name:    "min fill with sub-minor precision",
			mutate:  func(r *SubmitIntentRequest) { r.MinFillAmount = 0.001 },
			wantMsg: "min_fill_amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmit()
			tt.mutate(&req)

			_, err := svc.Submit(context.Background(), req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if !strings.Contains(ve.Message, tt.wantMsg) {
				t.Errorf("message %q does not mention %q", ve.Message, tt.wantMsg)
			}
		})
	}
}

func TestIntentServiceSubmitRateUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(
		store.NewIntentStore(),
		store.NewMatchStore(),
		store.NewLedgerStore(),
		store.NewEventLog(),
		logger,
	)
	svc := NewIntentService(reg, failingProvider{})

	_, err := svc.Submit(context.Background(), validSubmit())
	if !errors.Is(err, domain.ErrStaleRate) {
		t.Errorf("err = %v, want ErrStaleRate", err)
	}
}

type failingProvider struct{}

func (failingProvider) GetRate(context.Context, domain.Pair) (*domain.RateQuote, error) {
	return nil, domain.ErrStaleRate
}

func TestIntentServiceCancel(t *testing.T) {
	svc, _ := newIntentService()

	intent, err := svc.Submit(context.Background(), validSubmit())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	cancelled, err := svc.Cancel(intent.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != domain.IntentStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	if _, err := svc.Cancel(intent.ID); !errors.Is(err, domain.ErrIntentNotCancellable) {
		t.Errorf("second cancel: err = %v, want ErrIntentNotCancellable", err)
	}
}

func TestIntentServiceListByTrader(t *testing.T) {
	svc, _ := newIntentService()

	if _, err := svc.Submit(context.Background(), validSubmit()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	intents, err := svc.ListByTrader("trader-1")
	if err != nil {
		t.Fatalf("ListByTrader: %v", err)
	}
	if len(intents) != 1 {
		t.Errorf("got %d intents, want 1", len(intents))
	}

	if _, err := svc.ListByTrader("bad trader"); err == nil {
		t.Error("malformed trader id accepted")
	}
}
