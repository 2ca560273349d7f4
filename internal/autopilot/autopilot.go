// Package autopilot plays a session without a human: it reads the active prompt, picks
// the action that fixes it and, at a configurable rate, lets prompts lapse instead.
package autopilot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
)

// Decision kinds.
const (
	KindObserve = "OBSERVE" // No prompt outstanding
	KindAct     = "ACT"     // Apply ActionID
	KindResolve = "RESOLVE" // Condition already fixed, just acknowledge
	KindMiss    = "MISS"    // Let the prompt lapse
)

// Decision is the pilot's response to one status.
type Decision struct {
	Kind      string `json:"kind"`
	PromptKey string `json:"prompt_key,omitempty"`
	ActionID  string `json:"action_id,omitempty"`
	Reason    string `json:"reason"`
}

// promptActions maps each prompt key to the action that resolves it.
var promptActions = map[string]string{
	engine.PromptWaterLow:     engine.ActionRefillWater,
	engine.PromptECLow:        engine.ActionNormalizeEC,
	engine.PromptECHigh:       engine.ActionNormalizeEC,
	engine.PromptPHOut:        engine.ActionNormalizePH,
	engine.PromptTempHigh:     engine.ActionMoveInside,
	engine.PromptTempLow:      engine.ActionMoveOutside,
	engine.PromptHumidityHigh: engine.ActionDehumidify,
	engine.PromptHumidityLow:  engine.ActionSprayWater,
	engine.PromptLightOn:      engine.ActionToggleLight,
	engine.PromptLightOff:     engine.ActionToggleLight,
}

// ActionFor returns the action id that resolves a prompt key.
func ActionFor(key string) (string, bool) {
	a, ok := promptActions[key]
	return a, ok
}

// Pilot is a scripted player.
type Pilot struct {
	missRate float64
	roll     distuv.Uniform
	logger   *logger.Logger
}

// New creates a pilot that misses a fraction missRate of prompts. src drives the misses;
// nil seeds from the wall clock.
func New(missRate float64, src rand.Source, log *logger.Logger) *Pilot {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Pilot{
		missRate: missRate,
		roll:     distuv.Uniform{Min: 0, Max: 1, Src: src},
		logger:   log,
	}
}

// Decide chooses a response to the status' active prompt.
func (p *Pilot) Decide(st engine.Status) Decision {
	prompt := st.ActivePrompt
	if prompt == nil {
		return Decision{Kind: KindObserve, Reason: "no prompt"}
	}
	d := Decision{PromptKey: prompt.Key}

	if p.missRate > 0 && p.roll.Rand() < p.missRate {
		d.Kind = KindMiss
		d.Reason = "simulated inattention"
		return d
	}

	action, ok := ActionFor(prompt.Key)
	if !ok {
		d.Kind = KindResolve
		d.Reason = "no action for prompt"
		return d
	}

	// A toggle in the wrong direction would not resolve the light prompts
	if (prompt.Key == engine.PromptLightOn && st.LightOn) || (prompt.Key == engine.PromptLightOff && !st.LightOn) {
		d.Kind = KindResolve
		d.Reason = "light already in requested state"
		return d
	}

	d.Kind = KindAct
	d.ActionID = action
	d.Reason = prompt.Label
	return d
}

// Act decides on the engine's current status and carries the decision out.
func (p *Pilot) Act(e *engine.Engine) (Decision, error) {
	d := p.Decide(e.Status())

	var err error
	switch d.Kind {
	case KindAct:
		_, err = e.Apply(d.ActionID)
	case KindResolve:
		e.ResolvePrompt(true)
	case KindMiss:
		e.PromptMissed()
	}

	if d.Kind != KindObserve {
		p.logger.Event("AUTOPILOT", e.SessionID(), fmt.Sprintf("%s %s %s", d.Kind, d.PromptKey, d.ActionID))
	}
	return d, err
}

// Clock is a settable time source shared with the engine so prompt timers follow
// simulated rather than wall time.
type Clock struct {
	t time.Time
}

// NewClock starts a clock at start.
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the clock's time.
func (c *Clock) Now() time.Time { return c.t }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// Result summarizes a headless run.
type Result struct {
	Ticks      int            `json:"ticks"`
	Actions    int            `json:"actions"`
	Resolved   int            `json:"resolved"`
	Misses     int            `json:"misses"`
	TickErrors int            `json:"tick_errors"`
	ByAction   map[string]int `json:"by_action"`
	Final      engine.Status  `json:"final"`
}

// RunOptions bound a headless run.
type RunOptions struct {
	MaxTicks int           // Zero runs until harvest or death
	TickTime time.Duration // Simulated wall time per tick, applied to Clock
	Clock    *Clock        // Optional; must be the clock the engine reads
	OnTick   func(engine.Status)
}

// Run steps e synchronously and plays every tick until the crop is harvestable or dead,
// MaxTicks is reached, or ctx is cancelled.
func (p *Pilot) Run(ctx context.Context, e *engine.Engine, opts RunOptions) (Result, error) {
	res := Result{ByAction: make(map[string]int)}

	for opts.MaxTicks <= 0 || res.Ticks < opts.MaxTicks {
		if err := ctx.Err(); err != nil {
			res.Final = e.Status()
			return res, err
		}
		st := e.Status()
		if st.Stage == engine.StageHarvestable || st.Health <= 0 {
			break
		}

		if err := e.Step(); err != nil {
			res.TickErrors++
		}
		res.Ticks++
		if opts.Clock != nil {
			opts.Clock.Advance(opts.TickTime)
		}

		d, err := p.Act(e)
		switch d.Kind {
		case KindAct:
			res.Actions++
			res.ByAction[d.ActionID]++
			if err != nil {
				p.logger.Warn("autopilot action failed: " + err.Error())
			}
		case KindResolve:
			res.Resolved++
		case KindMiss:
			res.Misses++
		}

		if opts.OnTick != nil {
			opts.OnTick(e.Status())
		}
	}

	res.Final = e.Status()
	return res, nil
}
