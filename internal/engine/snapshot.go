package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hydroedu/hydrosim/internal/domain/rules"
)

// SnapshotVersion is written into every snapshot.
const SnapshotVersion = 1

// Snapshot is the serializable subset of engine state used for pause and resume.
// Prompt state, streams and drift cadences are not part of it and start fresh on restore.
type Snapshot struct {
	Version         int     `json:"version"`
	City            string  `json:"city"`
	Month           string  `json:"month"`
	Crop            string  `json:"crop"`
	Day             int     `json:"day"`
	Hour            int     `json:"hour"`
	Stage           string  `json:"stage"`
	LightOn         bool    `json:"light_on"`
	WaterLevel      float64 `json:"water_level"`
	EC              float64 `json:"ec"`
	PH              float64 `json:"ph"`
	Health          float64 `json:"health"`
	DailyLightHours int     `json:"daily_light_hours"`
	CurrentTemp     float64 `json:"current_temp"`
	CurrentHumidity float64 `json:"current_humidity"`
	TempOffset      float64 `json:"temp_offset"`
	Inside          bool    `json:"inside"`
	Paused          bool    `json:"paused"` // Always true
}

// Snapshot captures the engine state. The engine itself keeps running.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := e.state
	return Snapshot{
		Version:         SnapshotVersion,
		City:            e.city,
		Month:           e.month,
		Crop:            e.cropName,
		Day:             s.Day,
		Hour:            s.Hour,
		Stage:           s.Stage,
		LightOn:         s.LightOn,
		WaterLevel:      s.Water,
		EC:              s.EC,
		PH:              s.PH,
		Health:          s.Health,
		DailyLightHours: s.DailyLightHours,
		CurrentTemp:     s.Temperature,
		CurrentHumidity: s.Humidity,
		TempOffset:      s.TempOffset,
		Inside:          s.Inside,
		Paused:          true,
	}
}

// FromSnapshot rebuilds a paused, stopped engine from snap.
func FromSnapshot(deps Deps, snap Snapshot) (*Engine, error) {
	if snap.City == "" || snap.Month == "" || snap.Crop == "" {
		return nil, fmt.Errorf("%w: city, month and crop are required", ErrInvalidSnapshot)
	}
	e, err := New(deps, snap.City, snap.Month, snap.Crop)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := e.apply(snap); err != nil {
		return nil, err
	}
	return e, nil
}

// Restore rebuilds an engine from snapshot JSON. Fields missing from the document keep
// the values a fresh engine for the same city, month and crop would have.
func Restore(deps Deps, data []byte) (*Engine, error) {
	var id struct {
		City  string `json:"city"`
		Month string `json:"month"`
		Crop  string `json:"crop"`
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if id.City == "" || id.Month == "" || id.Crop == "" {
		return nil, fmt.Errorf("%w: city, month and crop are required", ErrInvalidSnapshot)
	}

	e, err := New(deps, id.City, id.Month, id.Crop)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	// Overlay the document onto the fresh engine's own snapshot
	snap := e.snapshotLocked()
	snap.Stage = ""
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := e.apply(snap); err != nil {
		return nil, err
	}
	return e, nil
}

// apply loads snap into a freshly built engine and leaves it paused.
func (e *Engine) apply(snap Snapshot) error {
	hpt := e.tuning.Simulation.HoursPerTick
	if snap.Day < 0 {
		return fmt.Errorf("%w: negative day %d", ErrInvalidSnapshot, snap.Day)
	}
	if snap.Hour < 0 || snap.Hour >= 24 || snap.Hour%hpt != 0 {
		return fmt.Errorf("%w: hour %d is not on a %d-hour tick", ErrInvalidSnapshot, snap.Hour, hpt)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stage := snap.Stage
	if stage == "" || (stage != StageHarvestable && e.profile.StageIndex(stage) < 0) {
		stage = StageFor(e.profile, snap.Day)
	}

	limit := e.tuning.Actions.OffsetLimit
	th := e.tuning.Thresholds
	e.state = State{
		Day:             snap.Day,
		Hour:            snap.Hour,
		Stage:           stage,
		LightOn:         snap.LightOn,
		DailyLightHours: snap.DailyLightHours,
		Water:           rules.Clamp(snap.WaterLevel, 0, 100),
		EC:              math.Max(0, snap.EC),
		PH:              rules.Clamp(snap.PH, th.PHMin, th.PHMax),
		Temperature:     snap.CurrentTemp,
		Humidity:        rules.Clamp(snap.CurrentHumidity, 0, 100),
		TempOffset:      rules.Clamp(snap.TempOffset, -limit, limit),
		Inside:          snap.Inside,
		Health:          rules.Clamp(snap.Health, 0, 100),
	}
	e.alignTick()

	e.paused = true
	e.running = false
	return nil
}
