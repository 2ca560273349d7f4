package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hydroedu/hydrosim/internal/events"
)

// Start spawns the driver goroutine, which ticks every speed (floored at
// simulation.min_speed) until the crop is harvestable, dies, or Stop is called.
// Calling Start while the loop runs is a no-op.
func (e *Engine) Start(speed time.Duration) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	if speed <= 0 {
		speed = e.tuning.Simulation.DefaultSpeed
	}
	if min := e.tuning.Simulation.MinSpeed; speed < min {
		speed = min
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.running = true
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()

	e.logger.Info(fmt.Sprintf("session %s: simulation started (%s/%s, %s, every %s)",
		e.sessionID, e.city, e.month, e.cropName, speed))
	go e.loop(ctx, speed, done)
}

// loop is the single driver of one engine.
func (e *Engine) loop(ctx context.Context, speed time.Duration, done chan struct{}) {
	defer close(done)
	defer e.finish(done)

	for {
		if !e.shouldRun() {
			return
		}
		if e.Paused() {
			if !sleep(ctx, e.tuning.Simulation.PausedPoll) {
				return
			}
			continue
		}

		// Failures are already logged to feedback; the loop keeps going
		_ = e.Step()

		if !sleep(ctx, speed) {
			return
		}
	}
}

func (e *Engine) shouldRun() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running && !e.finished()
}

// finish marks the loop stopped and writes the closing feedback. A loop replaced by a
// later Start leaves the running flag to its successor.
func (e *Engine) finish(done chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done == done {
		e.running = false
	}
	e.addFeedback("Simulation ended.")
	if e.state.Stage == StageHarvestable {
		y := e.yieldLocked()
		e.addFeedback(fmt.Sprintf("Final yield: %.3f kg at %.2f%% health.", y.YieldKg, y.Health))
	}
	_ = e.record(events.EventTypeSimulationEnded, events.MessagePayload{Message: e.state.Stage})
	e.logger.Info(fmt.Sprintf("session %s: simulation ended at day %d (%s, health %.2f)",
		e.sessionID, e.state.Day, e.state.Stage, e.state.Health))
}

// sleep waits for d or until ctx is cancelled. It reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Pause suspends ticking without stopping the driver.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume lets a paused driver tick again.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// Paused reports whether ticking is suspended.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Running reports whether the driver goroutine is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stop ends the driver and waits up to simulation.stop_timeout for it to exit.
// Stopping an engine that is not running is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(e.tuning.Simulation.StopTimeout):
		e.logger.Warn(fmt.Sprintf("session %s: driver did not stop within %s", e.sessionID, e.tuning.Simulation.StopTimeout))
	}
}
