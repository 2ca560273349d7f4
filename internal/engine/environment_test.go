package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/platform/config"
)

func TestScheduledTemperatureFollowsDiurnalWave(t *testing.T) {
	climate := crop.Climate{LowTemp: 20, HighTemp: 30, MeanTemp: 25, Humidity: 50, Sunlight: 12}
	es := NewEnvironmentSystem(config.Default(), climate, NoJitter)

	wave := 20 + 10*(math.Sin(2*math.Pi*8/24)+1)/2

	outside := &State{Hour: 8, Temperature: 25}
	es.applyTemperature(outside)
	assert.InDelta(t, wave, outside.Temperature, 0.006)

	// Same hour again today is not re-applied
	outside.Temperature = 0
	es.applyTemperature(outside)
	assert.Equal(t, 0.0, outside.Temperature)

	es.ResetDailyMarks()
	inside := &State{Hour: 8, Inside: true, TempOffset: -4}
	es.applyTemperature(inside)
	assert.InDelta(t, wave-2-4, inside.Temperature, 0.006, "mild outdoor is two degrees cooler indoors plus the offset")
}

func TestScheduledHumidityOncePerDay(t *testing.T) {
	calls := 0
	widest := func(lo, hi float64) float64 {
		calls++
		return hi
	}
	es := NewEnvironmentSystem(config.Default(), crop.Climate{}, widest)

	s := &State{Hour: 12, Humidity: 50}
	es.applyHumidity(s)
	assert.Equal(t, 52.0, s.Humidity, "scheduled hour moves by up to 2")

	es.applyHumidity(s)
	assert.Equal(t, 52.2, s.Humidity, "repeat within the day only jitters")
	assert.Equal(t, 2, calls)
}

func TestDriftCadence(t *testing.T) {
	es := NewEnvironmentSystem(config.Default(), crop.Climate{}, NoJitter)
	stage := crop.StageUptake{ECReduction: 0.1, PHDrift: -0.1}
	s := &State{EC: 2.0, PH: 6.0}

	for tick := int64(0); tick < 7; tick++ {
		s.Tick = tick
		es.applyEC(s, stage)
		es.applyPH(s, stage)
	}

	assert.InDelta(t, 1.7, s.EC, 1e-9, "ticks 0, 3 and 6")
	assert.InDelta(t, 5.8, s.PH, 1e-9, "ticks 0 and 6")
}

func TestWaterAndECFloorAtZero(t *testing.T) {
	es := NewEnvironmentSystem(config.Default(), crop.Climate{}, NoJitter)
	s := &State{Water: 0.5, EC: 0.01}

	es.applyWater(s, crop.StageUptake{WaterUptake: 3})
	es.applyEC(s, crop.StageUptake{ECReduction: 1})

	assert.Equal(t, 0.0, s.Water)
	assert.Equal(t, 0.0, s.EC)
}
