package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroedu/hydrosim/internal/events"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEventRepository_AppendAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	for i, typ := range []string{"TICK", "PROMPT_RAISED", "TICK"} {
		err := repo.Append(ctx, StoredEvent{
			ID:        "evt-" + string(rune('a'+i)),
			SessionID: "s1",
			Timestamp: now,
			EventType: typ,
			Payload:   json.RawMessage(`{"n":1}`),
			Day:       1,
			Hour:      i * 2,
			Tick:      int64(12 + i),
		})
		require.NoError(t, err)
	}
	require.NoError(t, repo.Append(ctx, StoredEvent{ID: "other", SessionID: "s2", Timestamp: now, EventType: "TICK"}))

	all, err := repo.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "evt-a", all[0].ID)
	assert.Equal(t, "evt-c", all[2].ID)
	assert.Equal(t, int64(14), all[2].Tick)
	assert.JSONEq(t, `{"n":1}`, string(all[0].Payload))

	ticks, err := repo.GetByEventType(ctx, "s1", "TICK")
	require.NoError(t, err)
	assert.Len(t, ticks, 2)

	require.NoError(t, repo.DeleteBySessionID(ctx, "s1"))
	all, err = repo.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, all)

	// Other sessions are untouched
	other, err := repo.GetBySessionID(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
	assert.Equal(t, "null", string(other[0].Payload))
}

func TestEventRepository_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	e := StoredEvent{ID: "dup", SessionID: "s1", Timestamp: time.Now(), EventType: "TICK"}

	require.NoError(t, repo.Append(ctx, e))
	assert.Error(t, repo.Append(ctx, e))
}

func TestSnapshotRepository_UpsertGetList(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSnapshotRepository(openTestDB(t))
	older := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, repo.Upsert(ctx, StoredSnapshot{
		SessionID: "a", City: "Lahore", Month: "January", Crop: "Spinach",
		Day: 3, Health: 90, Data: json.RawMessage(`{"day":3}`), UpdatedAt: older,
	}))
	require.NoError(t, repo.Upsert(ctx, StoredSnapshot{
		SessionID: "b", City: "Karachi", Month: "June", Crop: "Mint",
		Day: 1, Health: 100, Language: "ur", Data: json.RawMessage(`{"day":1}`),
	}))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Spinach", got.Crop)
	assert.Equal(t, "en", got.Language)
	assert.JSONEq(t, `{"day":3}`, string(got.Data))

	// Upsert overwrites in place
	require.NoError(t, repo.Upsert(ctx, StoredSnapshot{
		SessionID: "a", City: "Lahore", Month: "January", Crop: "Spinach",
		Day: 7, Health: 72.5, Data: json.RawMessage(`{"day":7}`), UpdatedAt: older,
	}))
	got, err = repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Day)
	assert.InDelta(t, 72.5, got.Health, 1e-9)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].SessionID)
	assert.Equal(t, "ur", list[0].Language)

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEventSink_PersistsEngineEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	sink := NewEventSink(repo, time.Second)

	err := sink.Append(events.SimEvent{
		ID:        events.GenerateEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypePromptMissed,
		SessionID: "s1",
		Payload:   events.PromptPayload{Key: "water_low", Label: "Water tank is low! Refill water.", Penalty: 0.5},
		Day:       2,
		Hour:      6,
		Tick:      27,
	})
	require.NoError(t, err)

	stored, err := repo.GetByEventType(ctx, "s1", string(events.EventTypePromptMissed))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(27), stored[0].Tick)

	var p events.PromptPayload
	require.NoError(t, json.Unmarshal(stored[0].Payload, &p))
	assert.Equal(t, "water_low", p.Key)
	assert.InDelta(t, 0.5, p.Penalty, 1e-9)
}
