package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/service"
)

// IntentHandler handles HTTP requests for trade intent endpoints.
type IntentHandler struct {
	intentSvc *service.IntentService
}

// NewIntentHandler creates a new IntentHandler.
func NewIntentHandler(intentSvc *service.IntentService) *IntentHandler {
	return &IntentHandler{intentSvc: intentSvc}
}

// submitIntentRequest is the JSON request body for POST /intents.
type submitIntentRequest struct {
	TraderID         string  `json:"trader_id"`
	Direction        string  `json:"direction"`
	Amount           float64 `json:"amount"`
	RateToleranceBps int64   `json:"rate_tolerance_bps"`
	MinFillAmount    float64 `json:"min_fill_amount"`
	ExpiresAt        string  `json:"expires_at"`
}

// intentResponse is the JSON representation of a trade intent.
type intentResponse struct {
	IntentID         string  `json:"intent_id"`
	TraderID         string  `json:"trader_id"`
	Direction        string  `json:"direction"`
	SourceCurrency   string  `json:"source_currency"`
	Amount           float64 `json:"amount"`
	FilledAmount     float64 `json:"filled_amount"`
	RemainingAmount  float64 `json:"remaining_amount"`
	RateToleranceBps int64   `json:"rate_tolerance_bps"`
	ReferenceRate    string  `json:"reference_rate"`
	MinFillAmount    float64 `json:"min_fill_amount"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
	ExpiresAt        string  `json:"expires_at"`
	CancelledAt      *string `json:"cancelled_at"`
	ExpiredAt        *string `json:"expired_at"`
}

// Submit handles POST /intents.
func (h *IntentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitIntentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "expires_at must be a valid RFC 3339 timestamp")
		return
	}

	intent, err := h.intentSvc.Submit(r.Context(), service.SubmitIntentRequest{
		TraderID:         req.TraderID,
		Direction:        domain.Direction(req.Direction),
		Amount:           req.Amount,
		RateToleranceBps: req.RateToleranceBps,
		MinFillAmount:    req.MinFillAmount,
		ExpiresAt:        expiresAt,
	})
	if err != nil {
		mapIntentError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildIntentResponse(intent))
}

// Get handles GET /intents/{intent_id}.
func (h *IntentHandler) Get(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intent_id")

	intent, err := h.intentSvc.Get(intentID)
	if err != nil {
		mapIntentError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildIntentResponse(intent))
}

// Cancel handles DELETE /intents/{intent_id}.
func (h *IntentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	intentID := chi.URLParam(r, "intent_id")

	intent, err := h.intentSvc.Cancel(intentID)
	if err != nil {
		mapIntentError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildIntentResponse(intent))
}

// ListByTrader handles GET /traders/{trader_id}/intents.
func (h *IntentHandler) ListByTrader(w http.ResponseWriter, r *http.Request) {
	traderID := chi.URLParam(r, "trader_id")

	intents, err := h.intentSvc.ListByTrader(traderID)
	if err != nil {
		mapIntentError(w, err)
		return
	}

	result := make([]intentResponse, len(intents))
	for i, intent := range intents {
		result[i] = buildIntentResponse(intent)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"intents": result})
}

// buildIntentResponse converts a domain intent to its JSON form.
func buildIntentResponse(i *domain.TradeIntent) intentResponse {
	resp := intentResponse{
		IntentID:         i.ID,
		TraderID:         i.TraderID,
		Direction:        string(i.Direction),
		SourceCurrency:   string(i.Direction.SourceCurrency()),
		Amount:           domain.MinorToMajor(i.Amount),
		FilledAmount:     domain.MinorToMajor(i.FilledAmount),
		RemainingAmount:  domain.MinorToMajor(i.Remaining()),
		RateToleranceBps: i.RateToleranceBps,
		ReferenceRate:    i.ReferenceRate.String(),
		MinFillAmount:    domain.MinorToMajor(i.MinFillAmount),
		Status:           string(i.Status),
		CreatedAt:        i.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:        i.ExpiresAt.UTC().Format(time.RFC3339),
	}

	if i.CancelledAt != nil {
		s := i.CancelledAt.UTC().Format(time.RFC3339)
		resp.CancelledAt = &s
	}
	if i.ExpiredAt != nil {
		s := i.ExpiredAt.UTC().Format(time.RFC3339)
		resp.ExpiredAt = &s
	}
	return resp
}

// mapIntentError maps domain errors to HTTP responses for intent endpoints.
func mapIntentError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrIntentNotFound):
		WriteError(w, http.StatusNotFound, "intent_not_found", err.Error())
	case errors.Is(err, domain.ErrIntentNotCancellable):
		WriteError(w, http.StatusConflict, "intent_not_cancellable", err.Error())
	case errors.Is(err, domain.ErrStaleRate):
		WriteError(w, http.StatusServiceUnavailable, "stale_rate", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
