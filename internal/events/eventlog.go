// Package events provides the append-only simulation event log.
// Every tick reading, prompt transition and player action lands here, so a session's
// history can be replayed, exported or persisted.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeTick            EventType = "TICK"
	EventTypePromptRaised    EventType = "PROMPT_RAISED"
	EventTypePromptResolved  EventType = "PROMPT_RESOLVED"
	EventTypePromptMissed    EventType = "PROMPT_MISSED"
	EventTypeActionApplied   EventType = "ACTION_APPLIED"
	EventTypeStageAdvanced   EventType = "STAGE_ADVANCED"
	EventTypeSimulationError EventType = "SIMULATION_ERROR"
	EventTypeSimulationEnded EventType = "SIMULATION_ENDED"
)

// SimEvent represents an immutable record of something that happened in a session.
type SimEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Payload   interface{} `json:"payload"` // Event-specific data
	Day       int         `json:"day"`
	Hour      int         `json:"hour"`
	Tick      int64       `json:"tick"`
}

// PromptPayload is attached to prompt lifecycle events.
type PromptPayload struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Penalty float64 `json:"penalty"`
}

// ActionPayload is attached to ACTION_APPLIED events.
type ActionPayload struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Failed  bool   `json:"failed"`
}

// StagePayload is attached to STAGE_ADVANCED events.
type StagePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MessagePayload carries a free-text detail (errors, end of run).
type MessagePayload struct {
	Message string `json:"message"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event SimEvent) error
}

// EventLog is the in-memory append-only log of one session's events.
type EventLog struct {
	mu        sync.RWMutex
	events    []SimEvent
	persister EventPersister
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister) *EventLog {
	return &EventLog{
		events:    make([]SimEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the log. Events are immutable once appended.
// The in-memory log always keeps the event; a persister failure is returned to the caller.
func (el *EventLog) Append(event SimEvent) error {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	el.mu.Unlock()

	if el.persister != nil {
		return el.persister.Append(event)
	}
	return nil
}

// GetByType returns all events of one type, oldest first.
func (el *EventLog) GetByType(t EventType) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// GetByDay returns all events that occurred on a specific simulated day.
func (el *EventLog) GetByDay(day int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if e.Day == day {
			result = append(result, e)
		}
	}
	return result
}

// Tail returns at most the last n events.
func (el *EventLog) Tail(n int) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if n <= 0 || n > len(el.events) {
		n = len(el.events)
	}
	out := make([]SimEvent, n)
	copy(out, el.events[len(el.events)-n:])
	return out
}

// Len returns the number of events recorded.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

// Replay returns a copy of the full history in append order.
func (el *EventLog) Replay() []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]SimEvent, len(el.events))
	copy(out, el.events)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
