package store

import (
	"sync"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhook
// subscriptions. Primary index: webhook_id -> webhook. Secondary index:
// event type -> webhooks.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook
	byEvent  map[domain.EventType][]*domain.Webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		byEvent:  make(map[domain.EventType][]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription keyed by (event, url). If a
// subscription already exists for that pair it is a no-op. Returns true
// if a new subscription was created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byEvent[w.Event] {
		if existing.URL == w.URL {
			existing.UpdatedAt = w.UpdatedAt
			return false
		}
	}

	s.webhooks[w.WebhookID] = w
	s.byEvent[w.Event] = append(s.byEvent[w.Event], w)
	return true
}

// ListByEvent returns all subscriptions for an event type.
func (s *WebhookStore) ListByEvent(event domain.EventType) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.byEvent[event]
	result := make([]*domain.Webhook, len(all))
	copy(result, all)
	return result
}

// List returns all subscriptions.
func (s *WebhookStore) List() []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0, len(s.webhooks))
	for _, w := range s.webhooks {
		result = append(result, w)
	}
	return result
}

// Delete removes a webhook by ID. It returns domain.ErrWebhookNotFound
// if the webhook does not exist. Both indexes are cleaned up.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}

	delete(s.webhooks, id)

	subs := s.byEvent[w.Event]
	for i, existing := range subs {
		if existing.WebhookID == id {
			s.byEvent[w.Event] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(s.byEvent[w.Event]) == 0 {
		delete(s.byEvent, w.Event)
	}

	return nil
}
