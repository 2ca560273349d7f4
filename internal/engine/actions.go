package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/hydroedu/hydrosim/internal/domain/rules"
	"github.com/hydroedu/hydrosim/internal/events"
)

// Action identifiers accepted by Apply.
const (
	ActionToggleLight = "toggle_light"
	ActionNormalizeEC = "normalize_ec"
	ActionNormalizePH = "normalize_ph"
	ActionMoveInside  = "move_inside"
	ActionMoveOutside = "move_outside"
	ActionRefillWater = "refill_water"
	ActionDehumidify  = "dehumidify"
	ActionSprayWater  = "spray_water"
	ActionNextStage   = "next_stage"
	ActionResetIdeals = "reset_ideals"
)

// ErrUnknownAction is returned by Apply for an id it does not recognise.
var ErrUnknownAction = fmt.Errorf("%w: unknown action", ErrActionFailure)

const fallbackMessage = "Action could not be completed."

var dispatch = map[string]func(e *Engine) (string, error){
	ActionToggleLight: (*Engine).FlipLight,
	ActionNormalizeEC: (*Engine).NormalizeEC,
	ActionNormalizePH: (*Engine).NormalizePH,
	ActionMoveInside:  (*Engine).MoveToShade,
	ActionMoveOutside: (*Engine).MoveToSunlight,
	ActionRefillWater: (*Engine).RefillWater,
	ActionDehumidify:  (*Engine).TurnOnDehumidifier,
	ActionSprayWater:  (*Engine).SprayMist,
	ActionNextStage:   (*Engine).AdvanceToNextStage,
	ActionResetIdeals: (*Engine).ResetToStageIdeals,
}

// Actions lists the ids Apply accepts, sorted.
func Actions() []string {
	ids := make([]string, 0, len(dispatch))
	for id := range dispatch {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// KnownAction reports whether Apply accepts id.
func KnownAction(id string) bool {
	_, ok := dispatch[id]
	return ok
}

// Apply runs the action with the given id.
func (e *Engine) Apply(actionID string) (string, error) {
	fn, ok := dispatch[actionID]
	if !ok {
		return e.act(actionID, nil, func() (string, error) {
			return "Action received.", fmt.Errorf("%w %q", ErrUnknownAction, actionID)
		})
	}
	return fn(e)
}

// act runs fn under the lock, resolves the active prompt if it matches keys and records
// the outcome. A panic inside fn becomes ErrActionFailure with the fallback message.
func (e *Engine) act(action string, keys []string, fn func() (string, error)) (msg string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrActionFailure, action, r)
			msg = fallbackMessage
			e.addFeedback(msg)
		}
		if err != nil {
			e.logger.Warn(fmt.Sprintf("session %s: %v", e.sessionID, err))
		}
		e.metrics.RecordAction(err)
		_ = e.record(events.EventTypeActionApplied, events.ActionPayload{
			Action:  action,
			Message: msg,
			Failed:  err != nil,
		})
	}()

	msg, err = fn()
	if err != nil {
		return msg, err
	}
	e.resolveIfMatches(keys...)
	return msg, nil
}

// LightOn reports whether the grow light is on.
func (e *Engine) LightOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.LightOn
}

// ToggleLight switches the grow light.
func (e *Engine) ToggleLight(on bool) (string, error) {
	return e.act(ActionToggleLight, nil, func() (string, error) {
		return e.setLight(on), nil
	})
}

// FlipLight inverts the grow light. The read and the write happen under one lock.
func (e *Engine) FlipLight() (string, error) {
	return e.act(ActionToggleLight, nil, func() (string, error) {
		return e.setLight(!e.state.LightOn), nil
	})
}

// setLight sets the grow light and resolves the matching light prompt. Caller holds mu.
func (e *Engine) setLight(on bool) string {
	e.state.LightOn = on
	state, key := "off", PromptLightOff
	if on {
		state, key = "on", PromptLightOn
	}
	msg := "Light turned " + state + "."
	e.addFeedback(msg)
	e.resolveIfMatches(key)
	return msg
}

// NormalizeEC resets EC to the midpoint of the crop's ideal range.
func (e *Engine) NormalizeEC() (string, error) {
	return e.act(ActionNormalizeEC, []string{PromptECLow, PromptECHigh}, func() (string, error) {
		old := e.state.EC
		e.state.EC = rules.Round2(e.profile.Tolerances.EC.Midpoint())
		msg := fmt.Sprintf("EC is normalized: %.2f → %.2f", old, e.state.EC)
		e.addFeedback(msg)
		return msg, nil
	})
}

// NormalizePH resets pH to the midpoint of the crop's ideal range.
func (e *Engine) NormalizePH() (string, error) {
	return e.act(ActionNormalizePH, []string{PromptPHOut}, func() (string, error) {
		old := e.state.PH
		e.state.PH = rules.Round2(e.profile.Tolerances.PH.Midpoint())
		msg := fmt.Sprintf("pH is normalized: %.2f → %.2f", old, e.state.PH)
		e.addFeedback(msg)
		return msg, nil
	})
}

// MoveToShade moves the crop indoors and cools it down.
func (e *Engine) MoveToShade() (string, error) {
	return e.act(ActionMoveInside, []string{PromptTempHigh}, func() (string, error) {
		a := e.tuning.Actions
		e.state.TempOffset = math.Max(-a.OffsetLimit, e.state.TempOffset-a.OffsetStep)
		e.state.Inside = true
		e.state.Temperature = rules.Round2(e.state.Temperature - a.ShadeTempDelta)
		e.env.LockUserNudge(e.state.Tick)

		msg := "Cooled down: temperature decreased."
		e.addFeedback(msg)
		return msg, nil
	})
}

// MoveToSunlight moves the crop outdoors and warms it up.
func (e *Engine) MoveToSunlight() (string, error) {
	return e.act(ActionMoveOutside, []string{PromptTempLow}, func() (string, error) {
		a := e.tuning.Actions
		e.state.TempOffset = math.Min(a.OffsetLimit, e.state.TempOffset+a.OffsetStep)
		e.state.Inside = false
		e.state.Temperature = rules.Round2(e.state.Temperature + a.SunTempDelta)
		e.env.LockUserNudge(e.state.Tick)

		msg := "Heated up: temperature increased."
		e.addFeedback(msg)
		return msg, nil
	})
}

// RefillWater fills the reservoir.
func (e *Engine) RefillWater() (string, error) {
	return e.act(ActionRefillWater, []string{PromptWaterLow}, func() (string, error) {
		e.state.Water = 100.0
		msg := "Water is refilled."
		e.addFeedback(msg)
		return msg, nil
	})
}

// SprayMist raises humidity.
func (e *Engine) SprayMist() (string, error) {
	return e.act(ActionSprayWater, []string{PromptHumidityLow}, func() (string, error) {
		e.state.Humidity = rules.Round2(rules.Clamp(e.state.Humidity+e.tuning.Actions.MistDelta, 0, 100))
		msg := "Water is sprayed: humidity increased."
		e.addFeedback(msg)
		return msg, nil
	})
}

// TurnOnDehumidifier lowers humidity.
func (e *Engine) TurnOnDehumidifier() (string, error) {
	return e.act(ActionDehumidify, []string{PromptHumidityHigh}, func() (string, error) {
		e.state.Humidity = rules.Round2(rules.Clamp(e.state.Humidity-e.tuning.Actions.DehumidifyDelta, 0, 100))
		msg := "Dehumidified: humidity decreased."
		e.addFeedback(msg)
		return msg, nil
	})
}

// ResetToStageIdeals normalizes EC and pH, refills water and clears the active prompt.
// Health is left alone.
func (e *Engine) ResetToStageIdeals() (string, error) {
	return e.act(ActionResetIdeals, nil, func() (string, error) {
		return e.resetToIdeals(), nil
	})
}

func (e *Engine) resetToIdeals() string {
	tol := e.profile.Tolerances
	e.state.EC = rules.Round2(tol.EC.Midpoint())
	e.state.PH = rules.Round2(tol.PH.Midpoint())
	e.state.Water = 100.0
	e.resolvePrompt(true)
	e.notifications = e.notifications[:0]

	msg := fmt.Sprintf("Reset to %s ideals (water 100%%, EC & pH normalized).", e.state.Stage)
	e.addFeedback(msg)
	return msg
}

// AdvanceToNextStage jumps to the first day of the next growth stage and resets the
// reservoir to ideal values. At the last stage it changes nothing and returns
// ErrActionFailure.
func (e *Engine) AdvanceToNextStage() (string, error) {
	return e.act(ActionNextStage, nil, func() (string, error) {
		current, next, ok := e.nextStage()
		if !ok {
			msg := "No further stage to advance to."
			e.addFeedback(msg)
			return msg, fmt.Errorf("%w: %s is the last stage", ErrActionFailure, current)
		}

		if next.Start() > e.state.Day {
			e.state.Day = next.Start()
		}
		e.state.Stage = next.Name
		e.state.Hour = 0
		e.alignTick()
		e.startDay()
		e.resetToIdeals()

		msg := fmt.Sprintf("Advanced from %s to %s. Values reset to %s ideals.", current, next.Name, next.Name)
		e.addFeedback(msg)
		e.logger.Event("STAGE_ADVANCED", e.sessionID, current+" -> "+next.Name)
		_ = e.record(events.EventTypeStageAdvanced, events.StagePayload{From: current, To: next.Name})
		return msg, nil
	})
}
