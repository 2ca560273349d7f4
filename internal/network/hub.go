package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/platform/metrics"
	"github.com/hydroedu/hydrosim/internal/session"
)

// outbound is a message addressed to every client watching one session.
type outbound struct {
	sessionID string
	payload   []byte
}

// Hub maintains the active clients grouped by session and pushes messages to them.
type Hub struct {
	rooms     map[string]map[*Client]bool
	broadcast chan outbound
	mu        sync.Mutex

	store   *session.Store
	logger  *logger.Logger
	metrics *metrics.Collector
}

// NewHub initializes a new WebSocket Hub serving the sessions in store.
func NewHub(store *session.Store, log *logger.Logger, m *metrics.Collector) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*Client]bool),
		broadcast: make(chan outbound, 64),
		store:     store,
		logger:    log,
		metrics:   m,
	}
}

// Run starts the Hub's main loop to fan broadcasts out to clients.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[msg.sessionID] {
				select {
				case client.send <- msg.payload:
					h.metrics.RecordWSMessage(false)
				default:
					// Slow consumer
					h.metrics.RecordWSError()
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.sessionID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[client.sessionID] = room
	}
	room[client] = true
	h.mu.Unlock()

	h.metrics.RecordWSConnection(1)
	h.logger.Event("WS_CONNECTED", client.sessionID, "New WebSocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	removed := h.removeLocked(client)
	h.mu.Unlock()
	if removed {
		h.logger.Event("WS_DISCONNECTED", client.sessionID, "WebSocket client disconnected")
	}
}

// reply queues payload for one client if it is still registered. Full buffers drop it.
func (h *Hub) reply(client *Client, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.rooms[client.sessionID][client] {
		return
	}
	select {
	case client.send <- payload:
		h.metrics.RecordWSMessage(false)
	default:
		h.metrics.RecordWSError()
	}
}

// removeLocked drops client and closes its send channel. Caller holds mu.
func (h *Hub) removeLocked(client *Client) bool {
	room, ok := h.rooms[client.sessionID]
	if !ok || !room[client] {
		return false
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.sessionID)
	}
	close(client.send)
	h.metrics.RecordWSConnection(-1)
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for client := range room {
			h.removeLocked(client)
		}
	}
}

// CloseSession disconnects every client watching sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[sessionID] {
		h.removeLocked(client)
	}
}

// Watched returns the ids of sessions with at least one connected client.
func (h *Hub) Watched() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast queues v, encoded as JSON, for every client of sessionID.
func (h *Hub) Broadcast(ctx context.Context, sessionID string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to serialize message for WebSocket broadcast: " + err.Error())
		return
	}
	select {
	case h.broadcast <- outbound{sessionID: sessionID, payload: payload}:
	case <-ctx.Done():
	}
}

// PushStatus broadcasts the current status of every watched session once.
func (h *Hub) PushStatus(ctx context.Context) {
	for _, id := range h.Watched() {
		sess, ok := h.store.Get(id)
		if !ok {
			h.Broadcast(ctx, id, ErrorMessage(msgInvalidSession))
			continue
		}
		h.Broadcast(ctx, id, StatusMessage(sess))
	}
}

// StartStatusPusher spawns a goroutine that pushes status to watching clients every
// interval. This lets the Hub run independently of each engine's driver loop.
func (h *Hub) StartStatusPusher(ctx context.Context, interval time.Duration) {
	go func() {
		pushInterval := time.NewTicker(interval)
		defer pushInterval.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pushInterval.C:
				h.PushStatus(ctx)
			}
		}
	}()
}
