// Package network exposes simulation sessions over HTTP and WebSocket.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/infra/storage"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/platform/metrics"
	"github.com/hydroedu/hydrosim/internal/session"
)

// Defaults applied by POST /start when the body leaves a field empty.
const (
	DefaultCity  = "Lahore"
	DefaultMonth = "January"
	DefaultCrop  = "Cherry Tomato"
)

// CatalogLister lists the reference data a client can start a session with.
type CatalogLister interface {
	Cities() []string
	Crops() []string
}

// Options wires a Server. Store, Hub and Logger are required.
type Options struct {
	Store     *session.Store
	Hub       *Hub
	Snapshots storage.SnapshotRepository // Optional; enables server-side pause snapshots
	Events    storage.EventRepository    // Optional; serves replay of closed sessions
	Catalog   CatalogLister              // Optional
	Logger    *logger.Logger
	Metrics   *metrics.Collector
	Speed     time.Duration // Driver interval used on resume
	ActionGap time.Duration // Minimum gap between WebSocket actions per client
}

// Server routes the HTTP API onto the session store.
type Server struct {
	store     *session.Store
	hub       *Hub
	snapshots storage.SnapshotRepository
	events    storage.EventRepository
	catalog   CatalogLister
	logger    *logger.Logger
	metrics   *metrics.Collector
	speed     time.Duration
	actionGap time.Duration
	upgrader  websocket.Upgrader
}

// NewServer creates the API server.
func NewServer(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.Get()
	}
	return &Server{
		store:     opts.Store,
		hub:       opts.Hub,
		snapshots: opts.Snapshots,
		events:    opts.Events,
		catalog:   opts.Catalog,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		speed:     opts.Speed,
		actionGap: opts.ActionGap,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // The dashboard may be served from another origin
			},
		},
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /action", s.handleAction)
	mux.HandleFunc("POST /prompt_result", s.handlePromptResult)
	mux.HandleFunc("POST /resolve_prompt", s.handleResolvePrompt)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /resume", s.handleResume)
	mux.HandleFunc("POST /resume_from_snapshot", s.handleResumeFromSnapshot)
	mux.HandleFunc("POST /restart", s.handleRestart)
	mux.HandleFunc("GET /catalog", s.handleCatalog)
	mux.HandleFunc("GET /ws", s.serveWs)

	replay := NewReplayHandler(s.store, s.events, s.snapshots, s.logger)
	replay.RegisterRoutes(mux)

	mux.HandleFunc("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /metrics/prometheus", s.metrics.PrometheusHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "sessions": s.store.Len()})
	})

	return mux
}

// apiRequest is the union of the JSON bodies the API accepts.
type apiRequest struct {
	SID      string          `json:"sid"`
	City     string          `json:"city"`
	Month    string          `json:"month"`
	Crop     string          `json:"crop"`
	Language string          `json:"language"`
	ActionID string          `json:"action_id"`
	Acted    *bool           `json:"acted"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// decodeRequest reads an optional JSON body. Malformed bodies read as empty.
func decodeRequest(r *http.Request) apiRequest {
	var req apiRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.SID == "" {
		req.SID = r.URL.Query().Get("sid")
	}
	return req
}

func (s *Server) lookup(w http.ResponseWriter, sid string) (*session.Session, bool) {
	sess, ok := s.store.Get(sid)
	if sid == "" || !ok {
		jsonError(w, msgInvalidSession, http.StatusBadRequest)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	city := orDefault(req.City, DefaultCity)
	month := orDefault(req.Month, DefaultMonth)
	cropName := orDefault(req.Crop, DefaultCrop)

	sess, err := s.store.Create(city, month, cropName, req.Language)
	if err != nil {
		s.logger.Warn("Failed to start session: " + err.Error())
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r.URL.Query().Get("sid"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NewStatusPayload(sess))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	sess, ok := s.lookup(w, req.SID)
	if !ok {
		return
	}
	if req.ActionID == "" {
		jsonError(w, msgMissingAction, http.StatusBadRequest)
		return
	}

	// Failures still carry a message for the player
	feedback, err := sess.Engine.Apply(req.ActionID)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("Action %s on %s: %v", req.ActionID, sess.ID, err))
	}
	s.logger.Event("PLAYER_ACTION", sess.ID, req.ActionID+": "+feedback)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "feedback": feedback})
}

// handlePromptResult is called by the frontend when a prompt expired without action.
func (s *Server) handlePromptResult(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	sess, ok := s.lookup(w, req.SID)
	if !ok {
		return
	}
	sess.Engine.PromptMissed()
	writeOK(w)
}

func (s *Server) handleResolvePrompt(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	sess, ok := s.lookup(w, req.SID)
	if !ok {
		return
	}
	sess.Engine.ResolvePrompt(req.Acted == nil || *req.Acted)
	writeOK(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	sess, ok := s.lookup(w, req.SID)
	if !ok {
		return
	}
	sess.Engine.Pause()
	snap := sess.Engine.Snapshot()

	if s.snapshots != nil {
		if err := s.store.Save(r.Context(), s.snapshots, sess); err != nil {
			s.logger.Error(fmt.Sprintf("Failed to persist snapshot for %s: %v", sess.ID, err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "snapshot": snap})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	sess, ok := s.lookup(w, req.SID)
	if !ok {
		return
	}
	sess.Engine.Resume()
	sess.Engine.Start(s.speed)
	writeOK(w)
}

// handleResumeFromSnapshot rebuilds a session from the snapshot in the body, or from the
// stored snapshot of sid when the body carries none. The engine comes back paused.
func (s *Server) handleResumeFromSnapshot(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	if req.SID == "" {
		jsonError(w, msgSnapshotRequired, http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case len(req.Snapshot) > 0 && req.Snapshot[0] == '{':
		_, err = s.store.Restore(req.SID, req.Snapshot, req.Language)
	case len(req.Snapshot) == 0 && s.snapshots != nil:
		_, err = s.store.Load(r.Context(), s.snapshots, req.SID, req.Language)
		if errors.Is(err, storage.ErrNotFound) {
			jsonError(w, msgSnapshotRequired, http.StatusBadRequest)
			return
		}
	default:
		jsonError(w, msgSnapshotRequired, http.StatusBadRequest)
		return
	}

	if err != nil {
		s.logger.Warn(fmt.Sprintf("Rejected snapshot for %s: %v", req.SID, err))
		jsonError(w, "bad snapshot: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeOK(w)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	req := decodeRequest(r)
	if _, ok := s.lookup(w, req.SID); !ok {
		return
	}
	s.store.Delete(req.SID)
	s.hub.CloseSession(req.SID)

	if s.snapshots != nil {
		if err := s.snapshots.Delete(r.Context(), req.SID); err != nil {
			s.logger.Error(fmt.Sprintf("Failed to delete snapshot for %s: %v", req.SID, err))
		}
	}
	writeOK(w)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"actions": engine.Actions()}
	if s.catalog != nil {
		body["cities"] = s.catalog.Cities()
		body["crops"] = s.catalog.Crops()
	}
	writeJSON(w, http.StatusOK, body)
}

// serveWs upgrades the connection and attaches it to the session's room.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	sess, ok := s.lookup(w, sid)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.metrics.RecordWSError()
		s.logger.Error("Failed to upgrade websocket connection: " + err.Error())
		return
	}

	client := NewClient(s.hub, conn, sid, s.actionGap)
	client.Register()
	client.write(StatusMessage(sess))

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.WritePump()
	go client.ReadPump()
}

// Shutdown persists every live session when a snapshot repository is configured.
func (s *Server) Shutdown(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	n, err := s.store.SaveAll(ctx, s.snapshots)
	if err != nil {
		s.logger.Error("Final snapshot pass incomplete: " + err.Error())
	}
	s.logger.Info(fmt.Sprintf("Saved %d session snapshots", n))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
