package engine

import "github.com/hydroedu/hydrosim/internal/domain/crop"

// StageHarvestable is the terminal stage entered once the last stage's day range has passed.
const StageHarvestable = "Harvestable"

// State is the mutable aggregate owned by one engine.
type State struct {
	Day             int
	Hour            int // 0-22, step of hours_per_tick
	Tick            int64
	Stage           string
	LightOn         bool
	DailyLightHours int

	Water       float64 // %
	EC          float64
	PH          float64
	Temperature float64 // °C
	Humidity    float64 // %
	TempOffset  float64 // User nudge, bounded by actions.offset_limit
	Inside      bool

	Health float64
}

// StageFor returns the stage whose day range contains day, or Harvestable.
func StageFor(p *crop.Profile, day int) string {
	if s, ok := p.StageFor(day); ok {
		return s.Name
	}
	return StageHarvestable
}

// advanceClock moves the simulated clock forward by one tick.
// It reports whether a new day started.
func (e *Engine) advanceClock() bool {
	e.state.Tick++
	e.state.Hour += e.tuning.Simulation.HoursPerTick

	if e.state.Hour < 24 {
		return false
	}
	e.state.Hour = 0
	e.state.Day++
	e.startDay()
	return true
}

// startDay clears everything that is tracked per simulated day.
func (e *Engine) startDay() {
	e.state.DailyLightHours = 0
	e.env.ResetDailyMarks()
}

// alignTick derives the tick counter from the clock so cadence gates stay consistent
// after a jump in time.
func (e *Engine) alignTick() {
	hpt := e.tuning.Simulation.HoursPerTick
	e.state.Tick = int64(e.state.Day*e.tuning.TicksPerDay() + e.state.Hour/hpt)
}

// nextStage returns the stage after the one the current day falls in, if any.
func (e *Engine) nextStage() (current string, next crop.StageUptake, ok bool) {
	current = StageFor(e.profile, e.state.Day)
	i := e.profile.StageIndex(current)
	if i < 0 || i+1 >= len(e.profile.Stages) {
		return current, crop.StageUptake{}, false
	}
	return current, e.profile.Stages[i+1], true
}
