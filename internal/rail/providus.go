package rail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// ProvidusRail submits NGN payouts through the Providus Bank transfer
// API and can reverse a confirmed transfer.
type ProvidusRail struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
}

// NewProvidusRail creates a ProvidusRail.
func NewProvidusRail(baseURL, clientID, clientSecret string, timeout time.Duration) *ProvidusRail {
	return &ProvidusRail{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: timeout},
	}
}

type providusTransferRequest struct {
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	AccountNumber  string  `json:"account_number"`
	BankCode       string  `json:"bank_code"`
	Narration      string  `json:"narration"`
	IdempotencyKey string  `json:"idempotency_key"`
}

type providusTransferResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Submit initiates an NGN transfer. The idempotency key travels both in
// the body and the Idempotency-Key header; Providus deduplicates on it.
func (r *ProvidusRail) Submit(ctx context.Context, req LegRequest, idempotencyKey string) (string, error) {
	payload := providusTransferRequest{
		Amount:         domain.MinorToMajor(req.Amount),
		Currency:       string(req.Currency),
		AccountNumber:  req.BeneficiaryAccount,
		BankCode:       req.BeneficiaryBank,
		Narration:      req.Narration,
		IdempotencyKey: idempotencyKey,
	}

	var resp providusTransferResponse
	if err := r.post(ctx, "/api/v1/transfers", idempotencyKey, payload, &resp); err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", &domain.RailError{Code: resp.Code, Message: "providus returned no reference", Terminal: false}
	}
	return resp.Reference, nil
}

type providusStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Poll reports the rail's view of a transfer.
func (r *ProvidusRail) Poll(ctx context.Context, legRef string) (domain.LegStatus, error) {
	var resp providusStatusResponse
	if err := r.get(ctx, "/api/v1/transfers/"+legRef, &resp); err != nil {
		return "", err
	}
	return mapRailStatus(resp.Status)
}

// Reverse requests a reversal of a confirmed transfer. Idempotent on
// the reversal key, so indefinite retry is safe.
func (r *ProvidusRail) Reverse(ctx context.Context, legRef, idempotencyKey string) (string, error) {
	payload := map[string]string{"idempotency_key": idempotencyKey}

	var resp providusTransferResponse
	if err := r.post(ctx, "/api/v1/transfers/"+legRef+"/reversal", idempotencyKey, payload, &resp); err != nil {
		return "", err
	}
	if resp.Reference == "" {
		return "", &domain.RailError{Code: resp.Code, Message: "providus returned no reversal reference", Terminal: false}
	}
	return resp.Reference, nil
}

func (r *ProvidusRail) post(ctx context.Context, path, idempotencyKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Id", r.clientID)
	req.Header.Set("Client-Secret", r.clientSecret)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	return r.do(req, out)
}

func (r *ProvidusRail) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", r.clientID)
	req.Header.Set("Client-Secret", r.clientSecret)

	return r.do(req, out)
}

func (r *ProvidusRail) do(req *http.Request, out any) error {
	resp, err := r.client.Do(req)
	if err != nil {
		// Network failures and timeouts are transient by definition:
		// the submission may or may not have landed, which is exactly
		// what the idempotency key exists for.
		return &domain.RailError{Message: err.Error(), Terminal: false}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return classifyHTTPError(resp)
}

// classifyHTTPError maps an HTTP failure to a RailError. 4xx responses
// (other than timeouts and throttling) are validation-class and
// terminal; everything else is transient.
func classifyHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	if body.Message == "" {
		body.Message = fmt.Sprintf("http status %d", resp.StatusCode)
	}

	terminal := resp.StatusCode >= 400 && resp.StatusCode < 500 &&
		resp.StatusCode != http.StatusRequestTimeout &&
		resp.StatusCode != http.StatusTooManyRequests
	return &domain.RailError{Code: body.Code, Message: body.Message, Terminal: terminal}
}

// mapRailStatus normalizes a rail's status string.
func mapRailStatus(s string) (domain.LegStatus, error) {
	switch s {
	case "pending", "processing", "queued":
		return domain.LegStatusPending, nil
	case "confirmed", "successful", "completed", "settled":
		return domain.LegStatusConfirmed, nil
	case "rejected", "failed", "returned":
		return domain.LegStatusRejected, nil
	default:
		return "", &domain.RailError{Message: fmt.Sprintf("unrecognized rail status %q", s), Terminal: false}
	}
}
