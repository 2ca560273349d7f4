// Package config provides simulation tuning and server settings.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Tuning holds every knob the simulation engine reads.
type Tuning struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Pacing     PacingConfig     `yaml:"pacing"`
	Thresholds ThresholdConfig  `yaml:"thresholds"`
	Prompts    PromptConfig     `yaml:"prompts"`
	Actions    ActionConfig     `yaml:"actions"`
}

// SimulationConfig controls the driver loop and stream sizes.
type SimulationConfig struct {
	HoursPerTick  int           `yaml:"hours_per_tick"`
	DefaultSpeed  time.Duration `yaml:"default_speed"`
	MinSpeed      time.Duration `yaml:"min_speed"`
	PausedPoll    time.Duration `yaml:"paused_poll"`
	StopTimeout   time.Duration `yaml:"stop_timeout"`
	HistoryLimit  int           `yaml:"history_limit"`  // Max tick readings returned by History
	FeedbackLimit int           `yaml:"feedback_limit"` // Feedback lines retained in memory
	StatusTail    int           `yaml:"status_tail"`    // Feedback/notification lines in Status
}

// PacingConfig holds drift cadences and jitter bounds.
type PacingConfig struct {
	ECUpdateEveryTicks     int     `yaml:"ec_update_every_ticks"`
	PHUpdateEveryTicks     int     `yaml:"ph_update_every_ticks"`
	TempUpdateHours        []int   `yaml:"temp_update_hours"`
	HumidityUpdateHours    []int   `yaml:"humidity_update_hours"`
	TempJitter             float64 `yaml:"temp_jitter"`
	TempScheduledJitter    float64 `yaml:"temp_scheduled_jitter"`
	HumidityJitter         float64 `yaml:"humidity_jitter"`
	HumidityScheduledDelta float64 `yaml:"humidity_scheduled_delta"`
	UserLockTicks          int     `yaml:"user_lock_ticks"`
}

// ThresholdConfig holds fixed limits that are not crop specific.
type ThresholdConfig struct {
	WaterLow float64 `yaml:"water_low"`
	PHMin    float64 `yaml:"ph_min"`
	PHMax    float64 `yaml:"ph_max"`
}

// PromptConfig controls prompt timing and the penalty table.
type PromptConfig struct {
	TTL            time.Duration            `yaml:"ttl"`
	Durations      map[string]time.Duration `yaml:"durations"` // Per-key TTL overrides
	MinGap         time.Duration            `yaml:"min_gap"`
	Cooldown       time.Duration            `yaml:"cooldown"`
	AutoExpire     bool                     `yaml:"auto_expire"`
	DefaultPenalty float64                  `yaml:"default_penalty"`
	Penalties      map[string]float64       `yaml:"penalties"`
}

// ActionConfig holds the deterministic deltas applied by player actions.
type ActionConfig struct {
	MistDelta       float64 `yaml:"mist_delta"`
	DehumidifyDelta float64 `yaml:"dehumidify_delta"`
	ShadeTempDelta  float64 `yaml:"shade_temp_delta"`
	SunTempDelta    float64 `yaml:"sun_temp_delta"`
	OffsetStep      float64 `yaml:"offset_step"`
	OffsetLimit     float64 `yaml:"offset_limit"`
}

// Default returns the embedded defaults. It panics only if the embedded file is corrupt.
func Default() *Tuning {
	t, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return t
}

// Load loads tuning from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Tuning, error) {
	t := &Tuning{}
	if err := yaml.Unmarshal(defaultsYAML, t); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading tuning file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, t); err != nil {
			return nil, fmt.Errorf("parsing tuning file: %w", err)
		}
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate rejects values the engine cannot run with.
func (t *Tuning) Validate() error {
	if t.Simulation.HoursPerTick <= 0 || 24%t.Simulation.HoursPerTick != 0 {
		return fmt.Errorf("simulation.hours_per_tick must divide 24, got %d", t.Simulation.HoursPerTick)
	}
	if t.Pacing.ECUpdateEveryTicks <= 0 || t.Pacing.PHUpdateEveryTicks <= 0 {
		return fmt.Errorf("pacing cadences must be positive")
	}
	if t.Thresholds.PHMin >= t.Thresholds.PHMax {
		return fmt.Errorf("thresholds.ph_min must be below ph_max")
	}
	if t.Prompts.TTL <= 0 {
		return fmt.Errorf("prompts.ttl must be positive")
	}
	return nil
}

// TicksPerDay is the number of simulated steps in 24 hours.
func (t *Tuning) TicksPerDay() int {
	return 24 / t.Simulation.HoursPerTick
}

// PenaltyFor returns the configured penalty for a prompt key, or the default.
func (t *Tuning) PenaltyFor(key string) float64 {
	if p, ok := t.Prompts.Penalties[key]; ok {
		return p
	}
	return t.Prompts.DefaultPenalty
}

// TTLFor returns the prompt lifetime for a key.
func (t *Tuning) TTLFor(key string) time.Duration {
	if d, ok := t.Prompts.Durations[key]; ok && d > 0 {
		return d
	}
	return t.Prompts.TTL
}

// WriteYAML saves the tuning to a YAML file.
func (t *Tuning) WriteYAML(path string) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling tuning: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing tuning file: %w", err)
	}
	return nil
}
