package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPauseResumeStop(t *testing.T) {
	f := newFixture(t)
	e := f.engine

	e.Start(time.Millisecond) // Floored to simulation.min_speed
	e.Start(time.Millisecond) // No-op while running
	require.True(t, e.Running())

	require.Eventually(t, func() bool { return e.Status().Tick >= 2 }, 2*time.Second, 10*time.Millisecond)

	e.Pause()
	assert.True(t, e.Status().Paused)
	e.Resume()
	assert.False(t, e.Paused())

	e.Stop()
	assert.False(t, e.Running())
	assert.Contains(t, e.Feedback(0), "Simulation ended.")

	// Stopping twice is harmless
	e.Stop()
}

func TestLoopEndsAtHarvest(t *testing.T) {
	f := newFixture(t)
	f.engine.state.Day = 40

	f.engine.Start(time.Millisecond)

	require.Eventually(t, func() bool { return !f.engine.Running() }, 5*time.Second, 10*time.Millisecond)
	fb := f.engine.Feedback(2)
	assert.Equal(t, "Simulation ended.", fb[0])
	assert.Equal(t, "Final yield: 0.500 kg at 100.00% health.", fb[1])
}

func TestLoopEndsWhenCropDies(t *testing.T) {
	f := newFixture(t)
	f.engine.state.Health = 0

	f.engine.Start(time.Millisecond)

	require.Eventually(t, func() bool { return !f.engine.Running() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), f.engine.Status().Tick, "a dead crop never ticks")
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	f := newFixture(t)
	f.engine.Stop()
	assert.False(t, f.engine.Running())
}
