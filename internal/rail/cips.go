package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// CIPSRail submits CNY settlements through the Afrexim CIPS corridor.
// CIPS settlements are treated as non-reversible once confirmed, so the
// rail exposes no reversal.
type CIPSRail struct {
	baseURL    string
	apiKey     string
	merchantID string
	client     *http.Client
}

// NewCIPSRail creates a CIPSRail.
func NewCIPSRail(baseURL, apiKey, merchantID string, timeout time.Duration) *CIPSRail {
	return &CIPSRail{
		baseURL:    baseURL,
		apiKey:     apiKey,
		merchantID: merchantID,
		client:     &http.Client{Timeout: timeout},
	}
}

type cipsSettlementRequest struct {
	MerchantID         string  `json:"merchant_id"`
	Amount             float64 `json:"amount"`
	Currency           string  `json:"currency"`
	BeneficiaryAccount string  `json:"beneficiary_account"`
	BeneficiaryBank    string  `json:"beneficiary_bank"`
	Reference          string  `json:"reference"`
}

type cipsSettlementResponse struct {
	SettlementID string `json:"settlement_id"`
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// Submit initiates a CNY settlement instruction. CIPS deduplicates on
// the Idempotency-Key header.
func (r *CIPSRail) Submit(ctx context.Context, req LegRequest, idempotencyKey string) (string, error) {
	payload := cipsSettlementRequest{
		MerchantID:         r.merchantID,
		Amount:             domain.MinorToMajor(req.Amount),
		Currency:           string(req.Currency),
		BeneficiaryAccount: req.BeneficiaryAccount,
		BeneficiaryBank:    req.BeneficiaryBank,
		Reference:          idempotencyKey,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/settlements", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", &domain.RailError{Message: err.Error(), Terminal: false}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyHTTPError(resp)
	}

	var out cipsSettlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.RailError{Message: "cips: " + err.Error(), Terminal: false}
	}
	if out.SettlementID == "" {
		return "", &domain.RailError{Code: out.Code, Message: "cips returned no settlement id", Terminal: false}
	}
	return out.SettlementID, nil
}

type cipsStatusResponse struct {
	SettlementID string `json:"settlement_id"`
	Status       string `json:"status"`
}

// Poll reports the corridor's view of a settlement.
func (r *CIPSRail) Poll(ctx context.Context, legRef string) (domain.LegStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/settlements/"+legRef, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", &domain.RailError{Message: err.Error(), Terminal: false}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyHTTPError(resp)
	}

	var out cipsStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.RailError{Message: "cips: " + err.Error(), Terminal: false}
	}
	return mapRailStatus(out.Status)
}
