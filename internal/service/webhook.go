package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

// Valid webhook event types.
var validWebhookEvents = map[domain.EventType]bool{
	domain.EventIntentSubmitted:       true,
	domain.EventIntentPartiallyFilled: true,
	domain.EventIntentMatched:         true,
	domain.EventIntentFillReleased:    true,
	domain.EventIntentExpired:         true,
	domain.EventIntentCancelled:       true,
	domain.EventSettlementStarted:     true,
	domain.EventSettlementCompleted:   true,
	domain.EventSettlementFailed:      true,
	domain.EventSettlementReversed:    true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and event delivery. Delivery is
// decoupled from the core through the event log: the notifier loop
// polls by sequence cursor and posts fire-and-forget, so a slow
// subscriber can never block a state transition.
type WebhookService struct {
	store  *store.WebhookStore
	events *store.EventLog
	client *http.Client
	logger *slog.Logger
	cursor int64
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	events *store.EventLog,
	webhookTimeout time.Duration,
	logger *slog.Logger,
) *WebhookService {
	return &WebhookService{
		store:  webhookStore,
		events: events,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates one subscription
// per event type. Returns the resulting webhooks and whether any new
// subscription was created.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[domain.EventType]bool, len(req.Events))
	deduped := make([]domain.EventType, 0, len(req.Events))
	for _, raw := range req.Events {
		event := domain.EventType(raw)
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + raw,
			}
		}
		if !seen[event] {
			seen[event] = true
			deduped = append(deduped, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(deduped))

	for _, event := range deduped {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
			continue
		}
		for _, existing := range s.store.ListByEvent(event) {
			if existing.URL == req.URL {
				webhooks = append(webhooks, existing)
				break
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions.
func (s *WebhookService) List() []*domain.Webhook {
	return s.store.List()
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// Run polls the event log and delivers notifications until ctx is
// cancelled. Only the notifier moves the cursor, so delivery order per
// subscriber follows log order.
func (s *WebhookService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drain()
		}
	}
}

// drain delivers every event appended since the cursor.
func (s *WebhookService) drain() {
	for {
		batch := s.events.After(s.cursor, 100)
		if len(batch) == 0 {
			return
		}
		for _, e := range batch {
			s.dispatch(e)
			s.cursor = e.Sequence
		}
	}
}

// eventPayload is the JSON body posted to subscribers.
type eventPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      eventPayloadData `json:"data"`
}

type eventPayloadData struct {
	Sequence int64   `json:"sequence"`
	IntentID string  `json:"intent_id,omitempty"`
	MatchID  string  `json:"match_id,omitempty"`
	TraderID string  `json:"trader_id,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
}

// dispatch posts one event to each of its subscribers. Fire-and-forget;
// failures are logged at debug and never retried.
func (s *WebhookService) dispatch(e domain.Event) {
	subs := s.store.ListByEvent(e.Type)
	if len(subs) == 0 {
		return
	}

	payload := eventPayload{
		Event:     string(e.Type),
		Timestamp: e.OccurredAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: eventPayloadData{
			Sequence: e.Sequence,
			IntentID: e.IntentID,
			MatchID:  e.MatchID,
			TraderID: e.TraderID,
			Amount:   domain.MinorToMajor(e.Amount),
		},
	}

	for _, wh := range subs {
		go s.deliver(wh, string(e.Type), payload)
	}
}

// deliver sends the webhook payload via HTTP POST with the delivery
// headers. Errors are logged and otherwise ignored.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload eventPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
}
