package network

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/events"
	"github.com/hydroedu/hydrosim/internal/infra/storage"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/report"
	"github.com/hydroedu/hydrosim/internal/session"
)

// ReplayHandler serves the recorded history of sessions: tick CSV, run summary and the
// event log. Live sessions answer from memory; closed ones from the event repository.
type ReplayHandler struct {
	store     *session.Store
	events    storage.EventRepository
	snapshots storage.SnapshotRepository
	logger    *logger.Logger
}

// NewReplayHandler creates a new replay handler. Repositories may be nil.
func NewReplayHandler(store *session.Store, er storage.EventRepository, sr storage.SnapshotRepository, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		store:     store,
		events:    er,
		snapshots: sr,
		logger:    log,
	}
}

// ReplayEvent is one event in the replay response.
type ReplayEvent struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Day       int             `json:"day"`
	Hour      int             `json:"hour"`
	Tick      int64           `json:"tick"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ReplayResponse is the API response for GET /events.
type ReplayResponse struct {
	SessionID   string         `json:"session_id"`
	Source      string         `json:"source"` // "memory" or "storage"
	TotalEvents int            `json:"total_events"`
	Counts      map[string]int `json:"counts"`
	GeneratedAt string         `json:"generated_at"`
	Events      []ReplayEvent  `json:"events"`
}

// SummaryResponse is the API response for GET /summary.
type SummaryResponse struct {
	SessionID string             `json:"session_id"`
	Summary   report.Summary     `json:"summary"`
	Yield     engine.YieldReport `json:"yield"`
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /history.csv", rh.HandleHistoryCSV)
	mux.HandleFunc("GET /summary", rh.HandleSummary)
	mux.HandleFunc("GET /events", rh.HandleEvents)
	mux.HandleFunc("GET /snapshots", rh.HandleSnapshots)
}

// HandleHistoryCSV streams the tick history of a live session.
// GET /history.csv?sid=XXX
func (rh *ReplayHandler) HandleHistoryCSV(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	sess, ok := rh.store.Get(sid)
	if sid == "" || !ok {
		jsonError(w, msgInvalidSession, http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteHistoryCSV(&buf, sess.Engine.History()); err != nil {
		rh.logger.Error("Failed to export history for " + sid + ": " + err.Error())
		jsonError(w, "Failed to export history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="history-`+sid+`.csv"`)
	_, _ = w.Write(buf.Bytes())
}

// HandleSummary returns statistics over the tick history plus the yield estimate.
// GET /summary?sid=XXX
func (rh *ReplayHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	sess, ok := rh.store.Get(sid)
	if sid == "" || !ok {
		jsonError(w, msgInvalidSession, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, SummaryResponse{
		SessionID: sid,
		Summary:   report.Summarize(sess.Engine.History()),
		Yield:     sess.Engine.Yield(),
	})
}

// HandleEvents replays the event log of a session.
// GET /events?sid=XXX&type=PROMPT_MISSED&day=N
func (rh *ReplayHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sid := q.Get("sid")
	if sid == "" {
		jsonError(w, msgInvalidSession, http.StatusBadRequest)
		return
	}

	day := -1
	if d := q.Get("day"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			jsonError(w, "Invalid day", http.StatusBadRequest)
			return
		}
		day = n
	}
	eventType := q.Get("type")

	var (
		replay []ReplayEvent
		source string
	)
	if sess, ok := rh.store.Get(sid); ok {
		source = "memory"
		replay = fromLog(sess.Engine.Events())
	} else if rh.events != nil {
		source = "storage"
		var (
			stored []storage.StoredEvent
			err    error
		)
		if eventType != "" {
			stored, err = rh.events.GetByEventType(r.Context(), sid, eventType)
		} else {
			stored, err = rh.events.GetBySessionID(r.Context(), sid)
		}
		if err != nil {
			rh.logger.Error("Failed to load events for " + sid + ": " + err.Error())
			jsonError(w, "Failed to load events", http.StatusInternalServerError)
			return
		}
		replay = fromStorage(stored)
	} else {
		jsonError(w, msgInvalidSession, http.StatusBadRequest)
		return
	}

	filtered := make([]ReplayEvent, 0, len(replay))
	counts := make(map[string]int)
	for _, e := range replay {
		if day >= 0 && e.Day != day {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		counts[e.Type]++
		filtered = append(filtered, e)
	}

	rh.logger.Event("EVENT_REPLAY", sid, source+" events:"+strconv.Itoa(len(filtered)))
	writeJSON(w, http.StatusOK, ReplayResponse{
		SessionID:   sid,
		Source:      source,
		TotalEvents: len(filtered),
		Counts:      counts,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	})
}

// HandleSnapshots lists the stored snapshots without their documents.
// GET /snapshots
func (rh *ReplayHandler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	if rh.snapshots == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": []storage.StoredSnapshot{}})
		return
	}
	list, err := rh.snapshots.List(r.Context())
	if err != nil {
		rh.logger.Error("Failed to list snapshots: " + err.Error())
		jsonError(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}
	for i := range list {
		list[i].Data = nil
	}
	if list == nil {
		list = []storage.StoredSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": list})
}

func fromLog(log []events.SimEvent) []ReplayEvent {
	out := make([]ReplayEvent, 0, len(log))
	for _, e := range log {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			payload = nil
		}
		out = append(out, ReplayEvent{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Type:      string(e.Type),
			Day:       e.Day,
			Hour:      e.Hour,
			Tick:      e.Tick,
			Payload:   payload,
		})
	}
	return out
}

func fromStorage(stored []storage.StoredEvent) []ReplayEvent {
	out := make([]ReplayEvent, 0, len(stored))
	for _, e := range stored {
		out = append(out, ReplayEvent{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Type:      e.EventType,
			Day:       e.Day,
			Hour:      e.Hour,
			Tick:      e.Tick,
			Payload:   e.Payload,
		})
	}
	return out
}
