package engine

import (
	"math"

	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/domain/rules"
	"github.com/hydroedu/hydrosim/internal/platform/config"
)

// Far enough in the past that the first tick always applies EC and pH drift.
const neverUpdated = math.MinInt32

// EnvironmentSystem drifts water, nutrients, temperature and humidity once per tick.
type EnvironmentSystem struct {
	tuning  *config.Tuning
	climate crop.Climate
	jitter  Jitter

	lastECTick    int64
	lastPHTick    int64
	tempMarks     map[int]bool // Scheduled hours already applied today
	humidMarks    map[int]bool
	userLockUntil int64
}

// NewEnvironmentSystem creates the environment model for one location.
func NewEnvironmentSystem(tuning *config.Tuning, climate crop.Climate, jitter Jitter) *EnvironmentSystem {
	return &EnvironmentSystem{
		tuning:        tuning,
		climate:       climate,
		jitter:        jitter,
		lastECTick:    neverUpdated,
		lastPHTick:    neverUpdated,
		tempMarks:     make(map[int]bool),
		humidMarks:    make(map[int]bool),
		userLockUntil: -1,
	}
}

// Apply runs the fixed per-tick update order: water, EC, pH, temperature, humidity.
func (es *EnvironmentSystem) Apply(s *State, stage crop.StageUptake) {
	es.applyWater(s, stage)
	es.applyEC(s, stage)
	es.applyPH(s, stage)
	es.applyTemperature(s)
	es.applyHumidity(s)
}

func (es *EnvironmentSystem) applyWater(s *State, stage crop.StageUptake) {
	s.Water = math.Max(0, rules.Round2(s.Water-stage.WaterUptake))
}

func (es *EnvironmentSystem) applyEC(s *State, stage crop.StageUptake) {
	if s.Tick-es.lastECTick < int64(es.tuning.Pacing.ECUpdateEveryTicks) {
		return
	}
	es.lastECTick = s.Tick
	s.EC = math.Max(0, rules.Round2(s.EC-stage.ECReduction))
}

func (es *EnvironmentSystem) applyPH(s *State, stage crop.StageUptake) {
	if s.Tick-es.lastPHTick < int64(es.tuning.Pacing.PHUpdateEveryTicks) {
		return
	}
	es.lastPHTick = s.Tick
	th := es.tuning.Thresholds
	s.PH = rules.Round2(rules.Clamp(s.PH+stage.PHDrift, th.PHMin, th.PHMax))
}

func (es *EnvironmentSystem) applyTemperature(s *State) {
	// A manual relocation holds the reading for a few ticks
	if s.Tick < es.userLockUntil {
		return
	}

	p := es.tuning.Pacing
	if es.scheduled(es.tempMarks, p.TempUpdateHours, s.Hour) {
		outdoor := rules.OutdoorTemperature(s.Hour, es.climate.LowTemp, es.climate.HighTemp)
		base := outdoor
		if s.Inside {
			base = rules.IndoorTemperature(outdoor)
		}
		s.Temperature = rules.Round2(base + s.TempOffset + es.jitter(-p.TempScheduledJitter, p.TempScheduledJitter))
		return
	}
	s.Temperature = rules.Round2(s.Temperature + es.jitter(-p.TempJitter, p.TempJitter))
}

func (es *EnvironmentSystem) applyHumidity(s *State) {
	p := es.tuning.Pacing
	bound := p.HumidityJitter
	if es.scheduled(es.humidMarks, p.HumidityUpdateHours, s.Hour) {
		bound = p.HumidityScheduledDelta
	}
	delta := es.jitter(-bound, bound)
	s.Humidity = rules.Round2(rules.Clamp(s.Humidity+delta, 0, 100))
}

// scheduled reports whether hour is a scheduled update hour not yet applied today,
// and marks it applied.
func (es *EnvironmentSystem) scheduled(marks map[int]bool, hours []int, hour int) bool {
	if marks[hour] {
		return false
	}
	for _, h := range hours {
		if h == hour {
			marks[hour] = true
			return true
		}
	}
	return false
}

// AccrueLight credits daylight or grow-light hours for the tick and switches the grow
// light off once the crop's daily requirement is met. It reports whether the light was
// switched off.
func (es *EnvironmentSystem) AccrueLight(s *State, required int) bool {
	if s.Hour < es.climate.Sunlight || s.LightOn {
		s.DailyLightHours += es.tuning.Simulation.HoursPerTick
	}
	if s.LightOn && s.DailyLightHours >= required {
		s.LightOn = false
		return true
	}
	return false
}

// LockUserNudge suspends temperature updates until tick+user_lock_ticks.
func (es *EnvironmentSystem) LockUserNudge(tick int64) {
	es.userLockUntil = tick + int64(es.tuning.Pacing.UserLockTicks)
}

// ResetDailyMarks forgets which scheduled hours were applied.
func (es *EnvironmentSystem) ResetDailyMarks() {
	clear(es.tempMarks)
	clear(es.humidMarks)
}
