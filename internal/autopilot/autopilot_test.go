package autopilot

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroedu/hydrosim/internal/engine"
)

func newEngine(t *testing.T, clock *Clock) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Deps{Now: clock.Now, Jitter: engine.NoJitter, SessionID: "pilot"},
		"Lahore", "January", "Spinach")
	require.NoError(t, err)
	return e
}

func TestActionFor(t *testing.T) {
	a, ok := ActionFor(engine.PromptWaterLow)
	assert.True(t, ok)
	assert.Equal(t, engine.ActionRefillWater, a)

	a, _ = ActionFor(engine.PromptECHigh)
	assert.Equal(t, engine.ActionNormalizeEC, a)

	_, ok = ActionFor("unknown")
	assert.False(t, ok)
}

func TestDecide(t *testing.T) {
	p := New(0, rand.NewPCG(1, 2), nil)

	d := p.Decide(engine.Status{})
	assert.Equal(t, KindObserve, d.Kind)

	d = p.Decide(engine.Status{ActivePrompt: &engine.Prompt{Key: engine.PromptTempHigh, Label: "hot"}})
	assert.Equal(t, KindAct, d.Kind)
	assert.Equal(t, engine.ActionMoveInside, d.ActionID)
	assert.Equal(t, "hot", d.Reason)

	d = p.Decide(engine.Status{LightOn: true, ActivePrompt: &engine.Prompt{Key: engine.PromptLightOn}})
	assert.Equal(t, KindResolve, d.Kind)

	d = p.Decide(engine.Status{ActivePrompt: &engine.Prompt{Key: engine.PromptLightOn}})
	assert.Equal(t, KindAct, d.Kind)
	assert.Equal(t, engine.ActionToggleLight, d.ActionID)
}

func TestDecideAlwaysMisses(t *testing.T) {
	p := New(1, rand.NewPCG(1, 2), nil)
	d := p.Decide(engine.Status{ActivePrompt: &engine.Prompt{Key: engine.PromptWaterLow}})
	assert.Equal(t, KindMiss, d.Kind)
	assert.Equal(t, engine.PromptWaterLow, d.PromptKey)
}

func TestRunAttentivePilotKeepsFullHealth(t *testing.T) {
	clock := NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newEngine(t, clock)
	p := New(0, rand.NewPCG(7, 7), nil)

	var seen int
	res, err := p.Run(context.Background(), e, RunOptions{
		TickTime: 2500 * time.Millisecond,
		Clock:    clock,
		OnTick:   func(engine.Status) { seen++ },
	})
	require.NoError(t, err)

	assert.Equal(t, engine.StageHarvestable, res.Final.Stage)
	assert.InDelta(t, 100.0, res.Final.Health, 1e-9)
	assert.Zero(t, res.Misses)
	assert.Positive(t, res.Actions)
	assert.Positive(t, res.ByAction[engine.ActionRefillWater])
	assert.Equal(t, res.Ticks, seen)
	assert.Nil(t, e.ActivePrompt())
}

func TestRunCarelessPilotLosesHealth(t *testing.T) {
	clock := NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	e := newEngine(t, clock)
	p := New(1, rand.NewPCG(7, 7), nil)

	res, err := p.Run(context.Background(), e, RunOptions{TickTime: 2500 * time.Millisecond, Clock: clock})
	require.NoError(t, err)

	assert.Positive(t, res.Misses)
	assert.Zero(t, res.Actions)
	assert.Less(t, res.Final.Health, 100.0)
}

func TestRunStopsAtMaxTicksAndCancel(t *testing.T) {
	clock := NewClock(time.Now())
	e := newEngine(t, clock)
	p := New(0, nil, nil)

	res, err := p.Run(context.Background(), e, RunOptions{MaxTicks: 5, TickTime: time.Second, Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Ticks)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = p.Run(ctx, e, RunOptions{MaxTicks: 5})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Ticks)
}
