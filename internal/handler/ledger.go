package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

// LedgerHandler serves the reconciliation ledger.
type LedgerHandler struct {
	ledger *store.LedgerStore
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger *store.LedgerStore) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// ledgerEntryResponse is a single ledger entry in responses.
type ledgerEntryResponse struct {
	EntryID           string `json:"entry_id"`
	MatchID           string `json:"match_id"`
	RemainderMicroFen int64  `json:"remainder_micro_fen"`
	Reason            string `json:"reason"`
	CreatedAt         string `json:"created_at"`
}

// List handles GET /admin/ledger.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.ledger.List()

	result := make([]ledgerEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = ledgerEntryResponse{
			EntryID:           e.ID,
			MatchID:           e.MatchID,
			RemainderMicroFen: e.RemainderMicroFen,
			Reason:            e.Reason,
			CreatedAt:         e.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"entries":         result,
		"total_micro_fen": h.ledger.TotalMicroFen(),
	})
}

// RateProvider is the slice of the rate provider the handler needs.
type RateProvider interface {
	GetRate(ctx context.Context, pair domain.Pair) (*domain.RateQuote, error)
}

// RateHandler serves the current corridor rate.
type RateHandler struct {
	rates RateProvider
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(rates RateProvider) *RateHandler {
	return &RateHandler{rates: rates}
}

// rateResponse is the JSON representation of a rate quote.
type rateResponse struct {
	Pair       string `json:"pair"`
	Rate       string `json:"rate"`
	Source     string `json:"source"`
	FetchedAt  string `json:"fetched_at"`
	ValidUntil string `json:"valid_until"`
}

// Current handles GET /rates/current.
func (h *RateHandler) Current(w http.ResponseWriter, r *http.Request) {
	quote, err := h.rates.GetRate(r.Context(), domain.PairNGNCNY)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPair) {
			WriteError(w, http.StatusNotFound, "unknown_pair", err.Error())
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "rate_unavailable", "The rate feed is currently unavailable")
		return
	}

	WriteJSON(w, http.StatusOK, rateResponse{
		Pair:       string(quote.Pair),
		Rate:       quote.Rate.String(),
		Source:     quote.Source,
		FetchedAt:  quote.FetchedAt.UTC().Format(time.RFC3339),
		ValidUntil: quote.ValidUntil.UTC().Format(time.RFC3339),
	})
}
