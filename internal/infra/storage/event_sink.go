package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hydroedu/hydrosim/internal/events"
)

// EventSink adapts an EventRepository to the events.EventPersister interface.
type EventSink struct {
	repo    EventRepository
	timeout time.Duration
}

// NewEventSink wraps repo. Each write is bounded by timeout.
func NewEventSink(repo EventRepository, timeout time.Duration) *EventSink {
	return &EventSink{repo: repo, timeout: timeout}
}

// Append implements events.EventPersister.
func (s *EventSink) Append(e events.SimEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.repo.Append(ctx, StoredEvent{
		ID:        e.ID,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		EventType: string(e.Type),
		Payload:   payload,
		Day:       e.Day,
		Hour:      e.Hour,
		Tick:      e.Tick,
	})
}

var _ events.EventPersister = (*EventSink)(nil)
