// Package rules contains the pure calculation logic for the growing environment.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import "math"

// Indoor dampening thresholds.
const (
	HotOutdoor  = 30.0
	ColdOutdoor = 10.0
)

// OutdoorTemperature maps the hour of day onto a sine wave between the
// city's monthly low and high.
func OutdoorTemperature(hour int, low, high float64) float64 {
	angle := (float64(hour) / 24.0) * 2.0 * math.Pi
	wave := math.Sin(angle)
	return low + (high-low)*(wave+1.0)/2.0
}

// IndoorTemperature approximates the temperature inside a building:
// hot days are ~6°C cooler but not below 24°C, cold days ~4°C warmer but not
// above 18°C, mild days ~2°C cooler.
func IndoorTemperature(outdoor float64) float64 {
	switch {
	case outdoor >= HotOutdoor:
		return math.Max(24.0, outdoor-6.0)
	case outdoor <= ColdOutdoor:
		return math.Min(18.0, outdoor+4.0)
	default:
		return outdoor - 2.0
	}
}

// ProjectedLight is the light credit the crop will have by the end of the day
// if nothing changes: hours already accrued plus the natural daylight still to come.
func ProjectedLight(accrued, sunlight, hour int) int {
	remaining := sunlight - hour
	if remaining < 0 {
		remaining = 0
	}
	return accrued + remaining
}

// YieldKg scales per-plant yield by crop health, rounded to grams.
func YieldKg(perPlant, health float64) float64 {
	return Round(perPlant*health/100.0, 3)
}
