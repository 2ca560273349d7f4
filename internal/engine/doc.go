// Package engine contains the hydroponics simulation loop and its rules.
//
// An Engine owns one crop's state. A single driver goroutine (Start) calls Step on a
// wall-clock cadence; player actions, prompt transitions and status reads take the same
// mutex, so every mutation is serialized. Each Step advances the clock by two simulated
// hours, drifts the environment, evaluates tolerances and raises at most one timed prompt.
// Missed prompts are the only thing that costs health.
package engine
