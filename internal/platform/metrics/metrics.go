// Package metrics provides observability for the simulation server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers runtime counters across all sessions.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TickErrors     int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64
	LastTickTime   time.Time

	// Prompt metrics
	PromptsRaised   int64
	PromptsResolved int64
	PromptsMissed   int64
	PenaltyTotal    float64

	// Player actions
	ActionsApplied int64
	ActionFailures int64

	// Sessions
	SessionsActive  int64
	SessionsEvicted int64

	// Persistence
	SnapshotWrites      int64
	SnapshotWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = New()

// New returns an empty collector. Tests use their own instance.
func New() *Collector {
	return &Collector{StartTime: time.Now()}
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordTick records a tick cycle completion.
func (c *Collector) RecordTick(latency time.Duration, err error) {
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}
	if err != nil {
		atomic.AddInt64(&c.TickErrors, 1)
	}

	c.mu.Lock()
	c.LastTickTime = time.Now()
	c.mu.Unlock()
}

// RecordPromptRaised counts a newly raised prompt.
func (c *Collector) RecordPromptRaised() {
	atomic.AddInt64(&c.PromptsRaised, 1)
}

// RecordPromptResolved counts a prompt cleared by the player.
func (c *Collector) RecordPromptResolved() {
	atomic.AddInt64(&c.PromptsResolved, 1)
}

// RecordPromptMissed counts an expired prompt and the health it cost.
func (c *Collector) RecordPromptMissed(penalty float64) {
	atomic.AddInt64(&c.PromptsMissed, 1)
	c.mu.Lock()
	c.PenaltyTotal += penalty
	c.mu.Unlock()
}

// RecordAction records a player action outcome.
func (c *Collector) RecordAction(err error) {
	atomic.AddInt64(&c.ActionsApplied, 1)
	if err != nil {
		atomic.AddInt64(&c.ActionFailures, 1)
	}
}

// RecordSession records session directory changes.
func (c *Collector) RecordSession(delta int64) {
	atomic.AddInt64(&c.SessionsActive, delta)
}

// RecordEviction counts a session dropped for capacity.
func (c *Collector) RecordEviction() {
	atomic.AddInt64(&c.SessionsEvicted, 1)
}

// RecordSnapshotWrite records a snapshot persisted to storage.
func (c *Collector) RecordSnapshotWrite(err error) {
	atomic.AddInt64(&c.SnapshotWrites, 1)
	if err != nil {
		atomic.AddInt64(&c.SnapshotWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	lastTick := ""
	if !c.LastTickTime.IsZero() {
		lastTick = c.LastTickTime.Format(time.RFC3339)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"errors":         atomic.LoadInt64(&c.TickErrors),
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
			"last_tick":      lastTick,
		},

		"prompts": map[string]interface{}{
			"raised":        atomic.LoadInt64(&c.PromptsRaised),
			"resolved":      atomic.LoadInt64(&c.PromptsResolved),
			"missed":        atomic.LoadInt64(&c.PromptsMissed),
			"penalty_total": c.PenaltyTotal,
		},

		"actions": map[string]interface{}{
			"applied":  atomic.LoadInt64(&c.ActionsApplied),
			"failures": atomic.LoadInt64(&c.ActionFailures),
		},

		"sessions": map[string]interface{}{
			"active":  atomic.LoadInt64(&c.SessionsActive),
			"evicted": atomic.LoadInt64(&c.SessionsEvicted),
		},

		"snapshots": map[string]interface{}{
			"written": atomic.LoadInt64(&c.SnapshotWrites),
			"errors":  atomic.LoadInt64(&c.SnapshotWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		_ = json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}
		gauge := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n", name, help)
			fmt.Fprintf(w, "# TYPE %s gauge\n", name)
			fmt.Fprintf(w, "%s %d\n\n", name, v)
		}

		counter("hydro_tick_count", "Total simulation ticks", atomic.LoadInt64(&c.TickCount))
		counter("hydro_tick_errors", "Ticks that failed and were recovered", atomic.LoadInt64(&c.TickErrors))

		fmt.Fprintf(w, "# HELP hydro_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE hydro_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "hydro_tick_latency_max_ms %.3f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP hydro_prompts_total Prompts by outcome\n")
		fmt.Fprintf(w, "# TYPE hydro_prompts_total counter\n")
		fmt.Fprintf(w, "hydro_prompts_total{outcome=\"raised\"} %d\n", atomic.LoadInt64(&c.PromptsRaised))
		fmt.Fprintf(w, "hydro_prompts_total{outcome=\"resolved\"} %d\n", atomic.LoadInt64(&c.PromptsResolved))
		fmt.Fprintf(w, "hydro_prompts_total{outcome=\"missed\"} %d\n\n", atomic.LoadInt64(&c.PromptsMissed))

		counter("hydro_actions_total", "Player actions applied", atomic.LoadInt64(&c.ActionsApplied))
		counter("hydro_action_failures_total", "Player actions that fell back", atomic.LoadInt64(&c.ActionFailures))
		gauge("hydro_sessions_active", "Sessions in the directory", atomic.LoadInt64(&c.SessionsActive))
		counter("hydro_sessions_evicted_total", "Sessions evicted for capacity", atomic.LoadInt64(&c.SessionsEvicted))
		counter("hydro_snapshot_writes_total", "Snapshots written to storage", atomic.LoadInt64(&c.SnapshotWrites))
		gauge("hydro_ws_connections", "Active WebSocket connections", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP hydro_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE hydro_ws_messages_total counter\n")
		fmt.Fprintf(w, "hydro_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "hydro_ws_messages_total{direction=\"out\"} %d\n\n", atomic.LoadInt64(&c.WSMessagesOut))

		c.mu.RLock()
		fmt.Fprintf(w, "# HELP hydro_penalty_health_total Health lost to missed prompts\n")
		fmt.Fprintf(w, "# TYPE hydro_penalty_health_total counter\n")
		fmt.Fprintf(w, "hydro_penalty_health_total %.2f\n", c.PenaltyTotal)
		c.mu.RUnlock()
	}
}
