package store

import (
	"sync"
	"time"

	"github.com/tradeflowafrica/tradeflow/internal/domain"
)

// EventLog is a thread-safe append-only log of domain events. Consumers
// poll with After using their own offset cursor; the log never pushes,
// so emitters can never block on a slow consumer.
type EventLog struct {
	mu     sync.RWMutex
	events []domain.Event
	seq    int64
}

// NewEventLog creates an empty EventLog.
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append assigns the next sequence number and timestamp to e and stores it.
func (l *EventLog) Append(e domain.Event) domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e.Sequence = l.seq
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	l.events = append(l.events, e)
	return e
}

// After returns up to limit events with sequence numbers strictly
// greater than seq, in order.
func (l *EventLog) After(seq int64, limit int) []domain.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Sequences are dense and 1-based, so the first candidate index is seq.
	start := int(seq)
	if start >= len(l.events) {
		return nil
	}
	end := len(l.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	result := make([]domain.Event, end-start)
	copy(result, l.events[start:end])
	return result
}

// LastSequence returns the sequence number of the most recent event,
// or 0 when the log is empty.
func (l *EventLog) LastSequence() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}
