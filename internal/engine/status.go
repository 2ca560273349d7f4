package engine

import (
	"github.com/hydroedu/hydrosim/internal/domain/rules"
	"github.com/hydroedu/hydrosim/internal/events"
)

// Status labels.
const (
	StatusGrowing = "Growing"
	StatusDead    = "Dead"
)

// Reading is the per-tick record kept in the event log and exported as history.
type Reading struct {
	Day          int     `json:"day" csv:"day"`
	Hour         int     `json:"hour" csv:"hour"`
	Tick         int64   `json:"tick" csv:"tick"`
	Stage        string  `json:"stage" csv:"stage"`
	LightOn      bool    `json:"light_on" csv:"light_on"`
	LightToday   int     `json:"light_today" csv:"light_today"`
	Water        float64 `json:"water" csv:"water"`
	EC           float64 `json:"ec" csv:"ec"`
	PH           float64 `json:"ph" csv:"ph"`
	Temperature  float64 `json:"temperature" csv:"temperature"`
	Humidity     float64 `json:"humidity" csv:"humidity"`
	Health       float64 `json:"health" csv:"health"`
	ActivePrompt string  `json:"active_prompt" csv:"active_prompt"`
}

// Status is a read-only view of the engine for the transport layer.
type Status struct {
	City  string `json:"city"`
	Month string `json:"month"`
	Crop  string `json:"crop"`

	Day   int    `json:"day"`
	Hour  int    `json:"hour"`
	Tick  int64  `json:"tick"`
	Stage string `json:"stage"`

	LightOn     bool    `json:"light_on"`
	LightToday  int     `json:"light_today"`
	Water       float64 `json:"water"`
	EC          float64 `json:"ec"`
	PH          float64 `json:"ph"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	TempOffset  float64 `json:"temp_offset"`
	Inside      bool    `json:"inside"`

	Health      float64 `json:"health"`
	Label       string  `json:"status"`
	Category    string  `json:"category"`
	Use         string  `json:"use"`
	Seasonality string  `json:"seasonality"`
	YieldKg     float64 `json:"yield_kg"`

	ActivePrompt  *Prompt  `json:"active_prompt"`
	Notifications []string `json:"notifications"`
	Feedback      []string `json:"feedback"`

	Running bool `json:"running"`
	Paused  bool `json:"paused"`
}

// YieldReport is the harvest estimate at the current health.
type YieldReport struct {
	Crop            string  `json:"crop"`
	Health          float64 `json:"health"`
	YieldKg         float64 `json:"yield_kg"`
	WeeksPerHarvest string  `json:"weeks_per_harvest"`
}

// Status returns a consistent view of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.state
	label := StatusGrowing
	if s.Health <= 0 {
		label = StatusDead
	}
	n := e.tuning.Simulation.StatusTail

	return Status{
		City:  e.city,
		Month: e.month,
		Crop:  e.cropName,

		Day:   s.Day,
		Hour:  s.Hour,
		Tick:  s.Tick,
		Stage: s.Stage,

		LightOn:     s.LightOn,
		LightToday:  s.DailyLightHours,
		Water:       rules.Round2(s.Water),
		EC:          rules.Round2(s.EC),
		PH:          rules.Round2(s.PH),
		Temperature: rules.Round2(s.Temperature),
		Humidity:    rules.Round2(s.Humidity),
		TempOffset:  s.TempOffset,
		Inside:      s.Inside,

		Health:      rules.Round2(s.Health),
		Label:       label,
		Category:    e.profile.Category.Category,
		Use:         e.profile.Category.Use,
		Seasonality: e.profile.Category.Seasonality,
		YieldKg:     e.yieldLocked().YieldKg,

		ActivePrompt:  e.prompts.Active(),
		Notifications: tail(e.notifications, n),
		Feedback:      tail(e.feedback, n),

		Running: e.running,
		Paused:  e.paused,
	}
}

// Yield estimates the harvest at the current health.
func (e *Engine) Yield() YieldReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.yieldLocked()
}

func (e *Engine) yieldLocked() YieldReport {
	weeks := e.profile.Yield.WeeksPerHarvest
	if weeks == "" {
		weeks = "N/A"
	}
	return YieldReport{
		Crop:            e.cropName,
		Health:          rules.Round2(e.state.Health),
		YieldKg:         rules.YieldKg(e.profile.Yield.PerPlant, e.state.Health),
		WeeksPerHarvest: weeks,
	}
}

// reading captures the current state for the tick history. Caller holds mu.
func (e *Engine) reading() Reading {
	s := e.state
	r := Reading{
		Day:         s.Day,
		Hour:        s.Hour,
		Tick:        s.Tick,
		Stage:       s.Stage,
		LightOn:     s.LightOn,
		LightToday:  s.DailyLightHours,
		Water:       s.Water,
		EC:          s.EC,
		PH:          s.PH,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Health:      s.Health,
	}
	if p := e.prompts.Active(); p != nil {
		r.ActivePrompt = p.Key
	}
	return r
}

// History returns the tick readings recorded so far, oldest first, capped at
// simulation.history_limit entries.
func (e *Engine) History() []Reading {
	ticks := e.eventLog.GetByType(events.EventTypeTick)
	if limit := e.tuning.Simulation.HistoryLimit; limit > 0 && len(ticks) > limit {
		ticks = ticks[len(ticks)-limit:]
	}

	out := make([]Reading, 0, len(ticks))
	for _, ev := range ticks {
		if r, ok := ev.Payload.(Reading); ok {
			out = append(out, r)
		}
	}
	return out
}

// Events returns the raw event history.
func (e *Engine) Events() []events.SimEvent {
	return e.eventLog.Replay()
}

// Feedback returns the last n feedback lines (all when n <= 0).
func (e *Engine) Feedback(n int) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return tail(e.feedback, n)
}
