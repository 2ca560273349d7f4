package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event StoredEvent) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}

	query := `
		INSERT INTO sim_events (id, session_id, timestamp, event_type, payload, day, hour, tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.Timestamp.UTC(), event.EventType,
		payload, event.Day, event.Hour, event.Tick,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]StoredEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var payloadStr string
		err := rows.Scan(
			&e.ID, &e.SessionID, &e.Timestamp, &e.EventType,
			&payloadStr, &e.Day, &e.Hour, &e.Tick,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Payload = []byte(payloadStr)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLiteEventRepository) GetBySessionID(ctx context.Context, sessionID string) ([]StoredEvent, error) {
	query := `SELECT id, session_id, timestamp, event_type, payload, day, hour, tick FROM sim_events WHERE session_id = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, sessionID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, sessionID, eventType string) ([]StoredEvent, error) {
	query := `SELECT id, session_id, timestamp, event_type, payload, day, hour, tick FROM sim_events WHERE session_id = ? AND event_type = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, sessionID, eventType)
}

func (r *SQLiteEventRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sim_events WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	return nil
}

// ---------------------------------------------------------
// SQLiteSnapshotRepository
// ---------------------------------------------------------

type SQLiteSnapshotRepository struct {
	db *sql.DB
}

func NewSQLiteSnapshotRepository(db *sql.DB) *SQLiteSnapshotRepository {
	return &SQLiteSnapshotRepository{db: db}
}

func (r *SQLiteSnapshotRepository) Upsert(ctx context.Context, snapshot StoredSnapshot) error {
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now()
	}
	// Stored as UTC so updated_at sorts lexically
	snapshot.UpdatedAt = snapshot.UpdatedAt.UTC()
	if snapshot.Language == "" {
		snapshot.Language = "en"
	}

	query := `
		INSERT INTO snapshots (session_id, city, month, crop, day, health, language, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			city=excluded.city,
			month=excluded.month,
			crop=excluded.crop,
			day=excluded.day,
			health=excluded.health,
			language=excluded.language,
			data=excluded.data,
			updated_at=excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		snapshot.SessionID, snapshot.City, snapshot.Month, snapshot.Crop,
		snapshot.Day, snapshot.Health, snapshot.Language, string(snapshot.Data), snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `session_id, city, month, crop, day, health, language, data, updated_at`

func scanSnapshot(scan func(dest ...interface{}) error) (StoredSnapshot, error) {
	var s StoredSnapshot
	var data string
	err := scan(&s.SessionID, &s.City, &s.Month, &s.Crop, &s.Day, &s.Health, &s.Language, &data, &s.UpdatedAt)
	s.Data = []byte(data)
	return s, err
}

func (r *SQLiteSnapshotRepository) Get(ctx context.Context, sessionID string) (*StoredSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE session_id = ?`
	s, err := scanSnapshot(r.db.QueryRowContext(ctx, query, sessionID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot %s: %w", sessionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

func (r *SQLiteSnapshotRepository) List(ctx context.Context) ([]StoredSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []StoredSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

func (r *SQLiteSnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

var (
	_ EventRepository    = (*SQLiteEventRepository)(nil)
	_ SnapshotRepository = (*SQLiteSnapshotRepository)(nil)
)
