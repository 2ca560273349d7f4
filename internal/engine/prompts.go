package engine

import (
	"fmt"
	"time"

	"github.com/hydroedu/hydrosim/internal/domain/rules"
	"github.com/hydroedu/hydrosim/internal/events"
	"github.com/hydroedu/hydrosim/internal/platform/config"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
)

// Prompt keys. Each key is resolved by exactly one kind of player action.
const (
	PromptWaterLow     = "water_low"
	PromptECLow        = "ec_low"
	PromptECHigh       = "ec_high"
	PromptPHOut        = "ph_out"
	PromptHumidityLow  = "humidity_low"
	PromptHumidityHigh = "humidity_high"
	PromptTempLow      = "temp_low"
	PromptTempHigh     = "temp_high"
	PromptLightOn      = "light_on"
	PromptLightOff     = "light_off"
)

// Prompt is a timed request for the player to act.
type Prompt struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	ExpiresAt int64  `json:"expires_at"` // Unix milliseconds
}

// PromptSystem enforces the single-active-prompt gate and tracks staged penalties.
type PromptSystem struct {
	tuning *config.Tuning
	logger *logger.Logger
	now    func() time.Time

	active      *Prompt
	nextAllowed int64              // Global gap after a resolution or miss
	lastRaised  map[string]int64   // Per-key cooldown
	pending     map[string]float64 // Penalty charged only if the prompt is missed
}

// NewPromptSystem creates an empty prompt gate.
func NewPromptSystem(tuning *config.Tuning, now func() time.Time, log *logger.Logger) *PromptSystem {
	return &PromptSystem{
		tuning:     tuning,
		logger:     log,
		now:        now,
		lastRaised: make(map[string]int64),
		pending:    make(map[string]float64),
	}
}

func (ps *PromptSystem) nowMs() int64 {
	return ps.now().UnixMilli()
}

// MaybeRaise raises key unless a prompt is active, the global gap has not elapsed, or the
// key is cooling down. It returns the raised prompt and its staged penalty.
func (ps *PromptSystem) MaybeRaise(key, label string) (*Prompt, float64, bool) {
	now := ps.nowMs()
	if ps.active != nil {
		return nil, 0, false
	}
	if now < ps.nextAllowed {
		return nil, 0, false
	}
	if last, ok := ps.lastRaised[key]; ok && now-last < ps.tuning.Prompts.Cooldown.Milliseconds() {
		return nil, 0, false
	}

	ps.active = &Prompt{
		Key:       key,
		Label:     label,
		ExpiresAt: now + ps.tuning.TTLFor(key).Milliseconds(),
	}
	ps.lastRaised[key] = now

	if _, staged := ps.pending[key]; !staged {
		ps.pending[key] = ps.tuning.PenaltyFor(key)
	}
	return ps.Active(), ps.pending[key], true
}

// Resolve clears the active prompt. When acted is true the staged penalty is dropped.
// It returns the cleared key and whether a penalty was forgiven.
func (ps *PromptSystem) Resolve(acted bool) (string, bool) {
	var key string
	if ps.active != nil {
		key = ps.active.Key
	}

	forgiven := false
	if _, staged := ps.pending[key]; acted && staged {
		delete(ps.pending, key)
		forgiven = true
	}
	ps.clear()
	return key, forgiven
}

// Miss clears the active prompt and returns the penalty it costs.
// With no active prompt it does nothing.
func (ps *PromptSystem) Miss() (Prompt, float64, bool) {
	if ps.active == nil {
		return Prompt{}, 0, false
	}
	p := *ps.active
	penalty, staged := ps.pending[p.Key]
	if !staged {
		penalty = ps.tuning.PenaltyFor(p.Key)
	}
	delete(ps.pending, p.Key)
	ps.clear()
	return p, penalty, true
}

func (ps *PromptSystem) clear() {
	ps.active = nil
	ps.nextAllowed = ps.nowMs() + ps.tuning.Prompts.MinGap.Milliseconds()
}

// ClearCooldown forgets the last raise of key so a new violation can prompt at once.
func (ps *PromptSystem) ClearCooldown(key string) {
	delete(ps.lastRaised, key)
}

// Expired reports whether the active prompt ran out of time.
func (ps *PromptSystem) Expired() bool {
	return ps.active != nil && ps.nowMs() >= ps.active.ExpiresAt
}

// Active returns a copy of the active prompt, or nil.
func (ps *PromptSystem) Active() *Prompt {
	if ps.active == nil {
		return nil
	}
	p := *ps.active
	return &p
}

// Pending returns the staged penalty for key.
func (ps *PromptSystem) Pending(key string) (float64, bool) {
	p, ok := ps.pending[key]
	return p, ok
}

// evaluateConditions compares the environment against the crop's tolerances, fills the
// notification list and raises at most one prompt. Caller holds mu.
func (e *Engine) evaluateConditions() {
	tol := e.profile.Tolerances
	s := &e.state

	e.check(PromptWaterLow, s.Water < e.tuning.Thresholds.WaterLow,
		"Water tank is low! Refill water.")

	e.check(PromptECLow, s.EC < tol.EC.Min(), "EC too low. Normalize EC.")
	e.check(PromptECHigh, s.EC > tol.EC.Max(), "EC too high. Normalize EC.")

	e.check(PromptPHOut, !tol.PH.Contains(s.PH), "pH is drifting. Normalize pH.")

	e.check(PromptHumidityLow, s.Humidity < tol.Humidity.Min(),
		fmt.Sprintf("Air is too dry (%.1f%%). Spray water.", s.Humidity))
	e.check(PromptHumidityHigh, s.Humidity > tol.Humidity.Max(),
		fmt.Sprintf("Air is too humid (%.1f%%). Dehumidify.", s.Humidity))

	e.check(PromptTempLow, s.Temperature < tol.Temperature.Min(),
		fmt.Sprintf("Temperature %.1f°C is too low. Move to sunlight.", s.Temperature))
	e.check(PromptTempHigh, s.Temperature > tol.Temperature.Max(),
		fmt.Sprintf("Temperature %.1f°C is too high. Move to shade.", s.Temperature))

	required := tol.RequiredLight()
	projected := rules.ProjectedLight(s.DailyLightHours, e.climate.Sunlight, s.Hour)
	e.check(PromptLightOn, projected < required && !s.LightOn,
		fmt.Sprintf("Not enough daylight to reach %d hours. Turn on the light.", required))
}

// check handles one condition: a violation notifies and tries to prompt, a pass clears
// the key's cooldown.
func (e *Engine) check(key string, violated bool, label string) {
	if !violated {
		e.prompts.ClearCooldown(key)
		return
	}
	e.notifications = append(e.notifications, label)

	p, penalty, raised := e.prompts.MaybeRaise(key, label)
	if !raised {
		return
	}
	e.metrics.RecordPromptRaised()
	e.logger.Event("PROMPT_RAISED", e.sessionID, fmt.Sprintf("%s (penalty %.2f)", p.Key, penalty))
	_ = e.record(events.EventTypePromptRaised, events.PromptPayload{Key: p.Key, Label: p.Label, Penalty: penalty})
}

// resolvePrompt clears the active prompt. Caller holds mu.
func (e *Engine) resolvePrompt(acted bool) {
	active := e.prompts.Active()
	key, forgiven := e.prompts.Resolve(acted)
	if forgiven {
		e.addFeedback("Action handled in time.")
	}
	if active == nil {
		return
	}
	e.metrics.RecordPromptResolved()
	_ = e.record(events.EventTypePromptResolved, events.PromptPayload{Key: key, Label: active.Label})
}

// resolveIfMatches resolves the active prompt when its key is one the action fixes.
// Caller holds mu.
func (e *Engine) resolveIfMatches(keys ...string) {
	active := e.prompts.Active()
	if active == nil {
		return
	}
	for _, k := range keys {
		if active.Key == k {
			e.resolvePrompt(true)
			return
		}
	}
}

// missPrompt charges the active prompt's penalty. Caller holds mu.
func (e *Engine) missPrompt() {
	p, penalty, ok := e.prompts.Miss()
	if !ok {
		return
	}
	e.state.Health = rules.Round2(rules.Clamp(e.state.Health-penalty, 0, 100))
	e.addFeedback(fmt.Sprintf("Missed: %s (-%.2f health)", p.Label, penalty))

	e.metrics.RecordPromptMissed(penalty)
	e.logger.Event("PROMPT_MISSED", e.sessionID, fmt.Sprintf("%s cost %.2f health", p.Key, penalty))
	_ = e.record(events.EventTypePromptMissed, events.PromptPayload{Key: p.Key, Label: p.Label, Penalty: penalty})
}

// ResolvePrompt clears the active prompt. With acted=true its staged penalty is forgiven.
func (e *Engine) ResolvePrompt(acted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resolvePrompt(acted)
}

// PromptMissed charges the active prompt's staged penalty once and clears it.
// Calling it with no active prompt is a no-op.
func (e *Engine) PromptMissed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missPrompt()
}

// ActivePrompt returns a copy of the outstanding prompt, or nil.
func (e *Engine) ActivePrompt() *Prompt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prompts.Active()
}
