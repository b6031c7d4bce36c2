package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/settlement"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

// SettlementHandler handles match and settlement case endpoints.
type SettlementHandler struct {
	matches      *store.MatchStore
	orchestrator *settlement.Orchestrator
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(matches *store.MatchStore, orch *settlement.Orchestrator) *SettlementHandler {
	return &SettlementHandler{matches: matches, orchestrator: orch}
}

// matchResponse is the JSON representation of a match.
type matchResponse struct {
	MatchID           string  `json:"match_id"`
	CycleID           string  `json:"cycle_id"`
	BuyIntentID       string  `json:"buy_intent_id"`
	SellIntentID      string  `json:"sell_intent_id"`
	MatchedAmountNGN  float64 `json:"matched_amount_ngn"`
	MatchedAmountCNY  float64 `json:"matched_amount_cny"`
	RemainderMicroFen int64   `json:"remainder_micro_fen"`
	LockedRate        string  `json:"locked_rate"`
	RateValidUntil    string  `json:"rate_valid_until"`
	CreatedAt         string  `json:"created_at"`
}

// caseResponse is the JSON representation of a settlement case.
type caseResponse struct {
	MatchID              string `json:"match_id"`
	State                string `json:"state"`
	NGNLegRef            string `json:"ngn_leg_ref,omitempty"`
	CNYLegRef            string `json:"cny_leg_ref,omitempty"`
	ReversalRef          string `json:"reversal_ref,omitempty"`
	NGNAttempts          int    `json:"ngn_attempts"`
	CNYAttempts          int    `json:"cny_attempts"`
	LastError            string `json:"last_error,omitempty"`
	CompensationRequired bool   `json:"compensation_required"`
	RequiresManualReview bool   `json:"requires_manual_review"`
	Version              int64  `json:"version"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// GetMatch handles GET /matches/{match_id}.
func (h *SettlementHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")

	m, err := h.matches.Get(matchID)
	if err != nil {
		mapSettlementError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildMatchResponse(m))
}

// GetCase handles GET /matches/{match_id}/settlement.
func (h *SettlementHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")

	c, err := h.orchestrator.Case(matchID)
	if err != nil {
		mapSettlementError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildCaseResponse(c))
}

// CancelCase handles DELETE /matches/{match_id}/settlement. Only cases
// no worker has started on can be cancelled.
func (h *SettlementHandler) CancelCase(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "match_id")

	m, err := h.matches.Get(matchID)
	if err != nil {
		mapSettlementError(w, err)
		return
	}
	if err := h.orchestrator.Cancel(matchID, m); err != nil {
		mapSettlementError(w, err)
		return
	}

	c, err := h.orchestrator.Case(matchID)
	if err != nil {
		mapSettlementError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildCaseResponse(c))
}

// ListCases handles GET /admin/settlement/cases.
func (h *SettlementHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	cases := h.orchestrator.Cases()

	result := make([]caseResponse, len(cases))
	for i, c := range cases {
		result[i] = buildCaseResponse(c)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"cases": result})
}

func buildMatchResponse(m *domain.Match) matchResponse {
	return matchResponse{
		MatchID:           m.ID,
		CycleID:           m.CycleID,
		BuyIntentID:       m.BuyIntentID,
		SellIntentID:      m.SellIntentID,
		MatchedAmountNGN:  domain.MinorToMajor(m.MatchedAmountNGN),
		MatchedAmountCNY:  domain.MinorToMajor(m.MatchedAmountCNY),
		RemainderMicroFen: m.RemainderMicroFen,
		LockedRate:        m.LockedRate.String(),
		RateValidUntil:    m.RateValidUntil.UTC().Format(time.RFC3339),
		CreatedAt:         m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func buildCaseResponse(c *domain.SettlementCase) caseResponse {
	return caseResponse{
		MatchID:              c.MatchID,
		State:                string(c.State),
		NGNLegRef:            c.NGNLegRef,
		CNYLegRef:            c.CNYLegRef,
		ReversalRef:          c.ReversalRef,
		NGNAttempts:          c.NGNAttempts,
		CNYAttempts:          c.CNYAttempts,
		LastError:            c.LastError,
		CompensationRequired: c.CompensationRequired,
		RequiresManualReview: c.RequiresManualReview,
		Version:              c.Version,
		CreatedAt:            c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// mapSettlementError maps domain errors to HTTP responses for match and
// settlement endpoints.
func mapSettlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMatchNotFound):
		WriteError(w, http.StatusNotFound, "match_not_found", err.Error())
	case errors.Is(err, domain.ErrCaseNotFound):
		WriteError(w, http.StatusNotFound, "settlement_case_not_found", err.Error())
	case errors.Is(err, domain.ErrCaseNotCancellable):
		WriteError(w, http.StatusConflict, "settlement_case_not_cancellable", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
