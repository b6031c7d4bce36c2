package domain

import "time"

// EventType names a domain event emitted on a state transition.
type EventType string

const (
	EventIntentSubmitted       EventType = "intent.submitted"
	EventIntentPartiallyFilled EventType = "intent.partially_filled"
	EventIntentMatched         EventType = "intent.matched"
	EventIntentFillReleased    EventType = "intent.fill_released"
	EventIntentExpired         EventType = "intent.expired"
	EventIntentCancelled       EventType = "intent.cancelled"
	EventSettlementStarted     EventType = "settlement.started"
	EventSettlementCompleted   EventType = "settlement.completed"
	EventSettlementFailed      EventType = "settlement.failed"
	EventSettlementReversed    EventType = "settlement.reversed"
)

// Event is one entry in the append-only domain event log. Downstream
// consumers (the webhook notifier) poll the log by sequence number; the
// core never blocks on delivery.
type Event struct {
	Sequence   int64
	Type       EventType
	IntentID   string
	MatchID    string
	TraderID   string
	Amount     int64 // minor units in the intent's source currency, 0 if n/a
	OccurredAt time.Time
}

// Webhook represents a subscriber's registration for an event type.
type Webhook struct {
	WebhookID string
	Event     EventType
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
