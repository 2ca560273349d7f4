package engine

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/events"
	"github.com/hydroedu/hydrosim/internal/platform/config"
)

func TestNewInitialState(t *testing.T) {
	e := newDatasetEngine(t, "Lahore", "January", "Spinach")

	s := e.Status()
	assert.Equal(t, 0, s.Day)
	assert.Equal(t, 0, s.Hour)
	assert.Equal(t, "Seedling", s.Stage)
	assert.Equal(t, 100.0, s.Water)
	assert.Equal(t, 2.3, s.EC, "EC starts at the top of the crop range")
	assert.Equal(t, 7.0, s.PH, "pH starts at the top of the crop range")
	assert.Equal(t, 12.5, s.Temperature)
	assert.Equal(t, 70.0, s.Humidity)
	assert.Equal(t, 100.0, s.Health)
	assert.False(t, s.LightOn)
	assert.Nil(t, s.ActivePrompt)
}

func TestNewUnknownReferenceData(t *testing.T) {
	tests := []struct {
		name, city, month, crop string
	}{
		{"unknown city", "Atlantis", "January", "Spinach"},
		{"unknown month", "Lahore", "Smarch", "Spinach"},
		{"unknown crop", "Lahore", "January", "Durian"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Deps{}, tt.city, tt.month, tt.crop)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataNotFound)
			assert.ErrorIs(t, err, crop.ErrNotFound)
		})
	}
}

func TestClockAdvancesTwoHoursPerTick(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 11; i++ {
		require.NoError(t, f.engine.Step())
	}
	s := f.engine.Status()
	assert.Equal(t, 0, s.Day)
	assert.Equal(t, 22, s.Hour)

	require.NoError(t, f.engine.Step())
	s = f.engine.Status()
	assert.Equal(t, 1, s.Day, "hour 24 wraps into the next day")
	assert.Equal(t, 0, s.Hour)
	assert.Equal(t, int64(12), s.Tick)
	assert.Equal(t, 0, s.LightToday, "daily light resets at midnight")
}

func TestWaterAndNutrientDrift(t *testing.T) {
	f := newFixture(t)
	f.engine.state.Day = 11 // Vegetative: water 2.0, EC 0.05 every 3 ticks, pH 0.04 every 6
	f.engine.alignTick()

	for i := 0; i < 6; i++ {
		require.NoError(t, f.engine.Step())
	}

	s := f.engine.Status()
	assert.Equal(t, "Vegetative", s.Stage)
	assert.InDelta(t, 88.0, s.Water, 1e-9)
	assert.InDelta(t, 2.4, s.EC, 1e-9, "EC drifts on the first tick and three ticks later")
	assert.InDelta(t, 7.04, s.PH, 1e-9, "pH drifts once in six ticks")
}

func TestHarvestableEndsTicking(t *testing.T) {
	f := newFixture(t)
	f.engine.state.Day = 40
	f.engine.alignTick()
	before := f.engine.Status()

	require.NoError(t, f.engine.Step())

	after := f.engine.Status()
	assert.Equal(t, StageHarvestable, after.Stage)
	assert.Equal(t, before.Tick, after.Tick, "a harvestable crop does not advance the clock")
	assert.Equal(t, before.Water, after.Water)
}

func TestClampInvariantsHold(t *testing.T) {
	e, err := New(Deps{
		Tuning: config.Default(),
		Jitter: UniformJitter(rand.NewPCG(7, 11)),
	}, "Lahore", "June", "Cherry Tomato")
	require.NoError(t, err)

	for i := 0; i < 600; i++ {
		require.NoError(t, e.Step())
		if i%5 == 0 {
			e.PromptMissed()
		}
		if i%40 == 0 {
			_, _ = e.SprayMist()
			_, _ = e.MoveToShade()
		}

		s := e.Status()
		assert.True(t, s.Health >= 0 && s.Health <= 100, "health out of range: %v", s.Health)
		assert.True(t, s.Water >= 0 && s.Water <= 100, "water out of range: %v", s.Water)
		assert.True(t, s.Humidity >= 0 && s.Humidity <= 100, "humidity out of range: %v", s.Humidity)
		assert.True(t, s.PH >= 3 && s.PH <= 9, "pH out of range: %v", s.PH)
		assert.True(t, s.EC >= 0, "EC negative: %v", s.EC)
	}
}

func TestStepRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.engine.profile = nil

	err := f.engine.Step()

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransientTick))
	assert.Contains(t, f.engine.Feedback(1)[0], "Simulation error")
	assert.Equal(t, int64(1), f.metrics.TickErrors)
}

type failingPersister struct{ err error }

func (p failingPersister) Append(events.SimEvent) error { return p.err }

func TestStepSurvivesPersisterFailure(t *testing.T) {
	f := newFixture(t, func(d *Deps, _ *stubCatalog) {
		d.Persister = failingPersister{err: errors.New("disk full")}
	})

	err := f.engine.Step()

	require.NoError(t, err)
	for _, line := range f.engine.Feedback(0) {
		assert.NotContains(t, line, "Simulation error")
	}
	assert.Equal(t, int64(0), f.metrics.TickErrors)
	assert.Equal(t, int64(1), f.metrics.TickCount)
	assert.Equal(t, 2, f.engine.Status().Hour)
	assert.Len(t, f.engine.History(), 1)
}

func TestHistoryRecordsEveryTick(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, f.engine.Step())
	}

	h := f.engine.History()
	require.Len(t, h, 3)
	assert.Equal(t, int64(1), h[0].Tick)
	assert.Equal(t, 2, h[0].Hour)
	assert.Equal(t, 6, h[2].Hour)
	assert.InDelta(t, 97.0, h[2].Water, 1e-9)
}

func TestStatusAndYield(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		_, err := f.engine.RefillWater()
		require.NoError(t, err)
	}
	f.engine.state.Health = 80

	s := f.engine.Status()
	assert.Equal(t, "Leafy", s.Category)
	assert.Equal(t, StatusGrowing, s.Label)
	assert.Len(t, s.Feedback, 5, "status shows the last five feedback lines")
	assert.InDelta(t, 0.4, s.YieldKg, 1e-9)

	y := f.engine.Yield()
	assert.Equal(t, "Test Leaf", y.Crop)
	assert.Equal(t, "5-6", y.WeeksPerHarvest)

	f.engine.state.Health = 0
	assert.Equal(t, StatusDead, f.engine.Status().Label)
}
