package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/domain/rules"
	"github.com/hydroedu/hydrosim/internal/events"
	"github.com/hydroedu/hydrosim/internal/platform/config"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/platform/metrics"
)

// Deps are the collaborators an engine is built from. Zero fields get working defaults.
type Deps struct {
	Catalog   crop.Catalog
	Tuning    *config.Tuning
	Logger    *logger.Logger
	Metrics   *metrics.Collector
	Persister events.EventPersister // Optional durable event sink
	SessionID string
	Now       func() time.Time
	Jitter    Jitter
}

func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = crop.Default()
	}
	if d.Tuning == nil {
		d.Tuning = config.Default()
	}
	if d.Logger == nil {
		d.Logger = logger.Discard()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Jitter == nil {
		d.Jitter = defaultJitter()
	}
	return d
}

// Engine is one crop simulation. All state is guarded by mu; the driver goroutine and
// player calls take turns on it.
type Engine struct {
	mu sync.Mutex

	city      string
	month     string
	cropName  string
	sessionID string
	profile   *crop.Profile
	climate   crop.Climate

	tuning   *config.Tuning
	logger   *logger.Logger
	metrics  *metrics.Collector
	eventLog *events.EventLog
	now      func() time.Time

	env     *EnvironmentSystem
	prompts *PromptSystem

	state         State
	feedback      []string
	notifications []string

	// Driver loop
	running bool
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds an engine for the given city, month and crop.
// It fails with ErrDataNotFound when the catalog has no matching rows.
func New(deps Deps, city, month, cropName string) (*Engine, error) {
	deps = deps.withDefaults()

	climate, err := deps.Catalog.Climate(city, month)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataNotFound, err)
	}
	profile, err := deps.Catalog.Profile(cropName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataNotFound, err)
	}

	e := &Engine{
		city:      city,
		month:     month,
		cropName:  cropName,
		sessionID: deps.SessionID,
		profile:   profile,
		climate:   climate,

		tuning:   deps.Tuning,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		eventLog: events.NewEventLog(deps.Persister),
		now:      deps.Now,

		env:     NewEnvironmentSystem(deps.Tuning, climate, deps.Jitter),
		prompts: NewPromptSystem(deps.Tuning, deps.Now, deps.Logger),

		state: State{
			Stage:       profile.Stages[0].Name,
			Water:       100.0,
			EC:          profile.Tolerances.EC.Max(),
			PH:          profile.Tolerances.PH.Max(),
			Temperature: climate.MeanTemp,
			Humidity:    climate.Humidity,
			Health:      100.0,
		},
		feedback:      make([]string, 0),
		notifications: make([]string, 0),
	}
	return e, nil
}

// City returns the location the engine simulates.
func (e *Engine) City() string { return e.city }

// Month returns the climate month.
func (e *Engine) Month() string { return e.month }

// Crop returns the crop name.
func (e *Engine) Crop() string { return e.cropName }

// SessionID returns the id events are tagged with.
func (e *Engine) SessionID() string { return e.sessionID }

// Profile exposes the crop's reference profile.
func (e *Engine) Profile() *crop.Profile { return e.profile }

// EventLog exposes the session's event log.
func (e *Engine) EventLog() *events.EventLog { return e.eventLog }

// Step runs a single tick synchronously. A failed tick wraps ErrTransientTick; its message
// is also written to feedback so the player sees it.
func (e *Engine) Step() (err error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTransientTick, r)
		}
		if err != nil {
			e.addFeedback("Simulation error: " + err.Error())
			e.logger.Error(fmt.Sprintf("session %s: %v", e.sessionID, err))
			_ = e.record(events.EventTypeSimulationError, events.MessagePayload{Message: err.Error()})
		}
		e.metrics.RecordTick(time.Since(start), err)
	}()

	if tickErr := e.tick(); tickErr != nil {
		return fmt.Errorf("%w: %w", ErrTransientTick, tickErr)
	}
	return nil
}

// tick advances the simulation by one step. Caller holds mu.
func (e *Engine) tick() error {
	if e.tuning.Prompts.AutoExpire && e.prompts.Expired() {
		e.missPrompt()
	}

	if e.state.Day >= e.profile.LastStageEnd() {
		e.state.Stage = StageHarvestable
		return nil
	}

	e.state.Stage = StageFor(e.profile, e.state.Day)
	uptake, _ := e.profile.Stage(e.state.Stage)
	e.env.Apply(&e.state, uptake)

	// Light before prompts so the projection sees this tick's credit
	e.notifications = e.notifications[:0]
	if e.env.AccrueLight(&e.state, e.profile.Tolerances.RequiredLight()) {
		e.addFeedback("Required daily light met, grow light turned off.")
	}

	e.evaluateConditions()
	e.state.Health = rules.Round2(rules.Clamp(e.state.Health, 0, 100))

	e.advanceClock()
	// A lost TICK event is logged by record; the tick itself already happened
	_ = e.record(events.EventTypeTick, e.reading())
	return nil
}

// finished reports whether the driver loop should end. Caller holds mu.
func (e *Engine) finished() bool {
	return e.state.Stage == StageHarvestable || e.state.Health <= 0
}

// addFeedback appends a player-facing line, keeping the stream bounded. Caller holds mu.
func (e *Engine) addFeedback(msg string) {
	e.feedback = append(e.feedback, msg)
	if limit := e.tuning.Simulation.FeedbackLimit; limit > 0 && len(e.feedback) > limit {
		e.feedback = append(e.feedback[:0:0], e.feedback[len(e.feedback)-limit:]...)
	}
}

// record appends an event stamped with the current clock. Caller holds mu.
func (e *Engine) record(t events.EventType, payload interface{}) error {
	err := e.eventLog.Append(events.SimEvent{
		ID:        events.GenerateEventID(),
		Timestamp: e.now(),
		Type:      t,
		SessionID: e.sessionID,
		Payload:   payload,
		Day:       e.state.Day,
		Hour:      e.state.Hour,
		Tick:      e.state.Tick,
	})
	if err != nil {
		e.logger.Warn(fmt.Sprintf("session %s: failed to persist %s event: %v", e.sessionID, t, err))
		return fmt.Errorf("failed to persist %s event: %w", t, err)
	}
	return nil
}

// tail returns a copy of the last n entries of s.
func tail(s []string, n int) []string {
	if n <= 0 || n > len(s) {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[len(s)-n:])
	return out
}
