// Package crop defines the static reference data the simulation reads: city climate,
// crop tolerances, growth stages and yield. This package is PURE apart from file loading
// and must NOT import engine, network or storage packages.
package crop

import (
	"errors"
	"sort"
)

// ErrNotFound is returned when a reference row is missing from the catalog.
var ErrNotFound = errors.New("reference data not found")

// Range is an inclusive [min, max] pair as stored in the data files.
type Range [2]float64

// Min returns the lower bound.
func (r Range) Min() float64 { return r[0] }

// Max returns the upper bound.
func (r Range) Max() float64 { return r[1] }

// Midpoint returns the centre of the range.
func (r Range) Midpoint() float64 { return (r[0] + r[1]) / 2.0 }

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool { return v >= r[0] && v <= r[1] }

// Climate is the monthly envelope for one city.
type Climate struct {
	LowTemp  float64 `json:"low_temp"`
	HighTemp float64 `json:"high_temp"`
	MeanTemp float64 `json:"mean_temp"`
	Humidity float64 `json:"humidity"`
	Sunlight int     `json:"sunlight"` // Natural daylight hours
}

// Tolerances are the crop-specific comfort ranges.
type Tolerances struct {
	EC          Range     `json:"ec_range"`
	PH          Range     `json:"ph_range"`
	Humidity    Range     `json:"humidity"`
	Temperature Range     `json:"temperature"`
	LightNeeds  []float64 `json:"light_needs"`
}

// RequiredLight is the minimum daily light hours the crop needs.
func (t Tolerances) RequiredLight() int {
	if len(t.LightNeeds) == 0 {
		return 0
	}
	return int(t.LightNeeds[0])
}

// Category is descriptive metadata shown to the player.
type Category struct {
	Category    string `json:"category"`
	Use         string `json:"use"`
	Seasonality string `json:"seasonality"`
}

// StageUptake describes one growth stage: its day range and per-tick consumption.
type StageUptake struct {
	Name        string  `json:"-"`
	Days        [2]int  `json:"days"`
	ECReduction float64 `json:"ec_reduction"`
	PHDrift     float64 `json:"ph_drift"`
	WaterUptake float64 `json:"water_uptake"`
}

// Start returns the first day of the stage.
func (s StageUptake) Start() int { return s.Days[0] }

// End returns the last day of the stage.
func (s StageUptake) End() int { return s.Days[1] }

// Yield holds harvest expectations for the crop.
type Yield struct {
	PerPlant        float64 `json:"yield_per_plant"`
	WeeksPerHarvest string  `json:"weeks_per_harvest"`
}

// Profile aggregates everything the engine needs about one crop.
type Profile struct {
	Name       string
	Tolerances Tolerances
	Category   Category
	Stages     []StageUptake // Ordered by start day
	Yield      Yield
}

// StageFor returns the stage whose day range contains day.
func (p *Profile) StageFor(day int) (StageUptake, bool) {
	for _, s := range p.Stages {
		if day >= s.Start() && day <= s.End() {
			return s, true
		}
	}
	return StageUptake{}, false
}

// Stage looks a stage up by name.
func (p *Profile) Stage(name string) (StageUptake, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageUptake{}, false
}

// StageIndex returns the position of name in the ordered stage list, or -1.
func (p *Profile) StageIndex(name string) int {
	for i, s := range p.Stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// LastStageEnd is the day at which the crop becomes harvestable.
func (p *Profile) LastStageEnd() int {
	end := 0
	for _, s := range p.Stages {
		if s.End() > end {
			end = s.End()
		}
	}
	return end
}

// orderStages turns the name-keyed stage table into a slice sorted by day range.
func orderStages(table map[string]StageUptake) []StageUptake {
	stages := make([]StageUptake, 0, len(table))
	for name, s := range table {
		s.Name = name
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool {
		if stages[i].Start() == stages[j].Start() {
			return stages[i].Name < stages[j].Name
		}
		return stages[i].Start() < stages[j].Start()
	})
	return stages
}

// Catalog is the read-only reference data source the engine consumes.
type Catalog interface {
	// Climate returns the monthly climate envelope for a city.
	Climate(city, month string) (Climate, error)
	// Profile returns the full reference profile for a crop.
	Profile(name string) (*Profile, error)
}
