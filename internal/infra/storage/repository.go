// Package storage provides the persistence layer for the simulation server.
// This package implements the repository pattern to keep the engine free of SQL.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// StoredEvent mirrors the simulation event structure for persistence.
// The engine package does NOT import this; the sink adapts events on the way in.
type StoredEvent struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"session_id" db:"session_id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	EventType string          `json:"event_type" db:"event_type"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	Day       int             `json:"day" db:"day"`
	Hour      int             `json:"hour" db:"hour"`
	Tick      int64           `json:"tick" db:"tick"`
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Append adds a new event to the ledger.
	Append(ctx context.Context, event StoredEvent) error

	// GetBySessionID retrieves all events of a session in append order.
	GetBySessionID(ctx context.Context, sessionID string) ([]StoredEvent, error)

	// GetByEventType retrieves a session's events of one type in append order.
	GetByEventType(ctx context.Context, sessionID, eventType string) ([]StoredEvent, error)

	// DeleteBySessionID drops a session's events.
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

// StoredSnapshot is the latest paused state of a session.
type StoredSnapshot struct {
	SessionID string          `json:"session_id" db:"session_id"`
	City      string          `json:"city" db:"city"`
	Month     string          `json:"month" db:"month"`
	Crop      string          `json:"crop" db:"crop"`
	Day       int             `json:"day" db:"day"`
	Health    float64         `json:"health" db:"health"`
	Language  string          `json:"language" db:"language"`
	Data      json.RawMessage `json:"data" db:"data"` // Engine snapshot document
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// SnapshotRepository defines the interface for session snapshots.
type SnapshotRepository interface {
	// Upsert updates or inserts the snapshot of a session.
	Upsert(ctx context.Context, snapshot StoredSnapshot) error

	// Get retrieves a session's snapshot or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*StoredSnapshot, error)

	// List returns every stored snapshot, most recently updated first.
	List(ctx context.Context) ([]StoredSnapshot, error)

	// Delete removes a session's snapshot.
	Delete(ctx context.Context, sessionID string) error
}
