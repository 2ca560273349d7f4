package report

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hydroedu/hydrosim/internal/domain/rules"
	"github.com/hydroedu/hydrosim/internal/engine"
)

// Series describes one measured variable over a run.
type Series struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Summary aggregates a tick history.
type Summary struct {
	Ticks        int     `json:"ticks"`
	Days         int     `json:"days"`
	FinalStage   string  `json:"final_stage"`
	FinalHealth  float64 `json:"final_health"`
	LowestHealth float64 `json:"lowest_health"`

	// Prompts counts distinct prompts seen across consecutive readings.
	Prompts      int            `json:"prompts"`
	PromptsByKey map[string]int `json:"prompts_by_key"`
	LightOnTicks int            `json:"light_on_ticks"`

	Temperature Series `json:"temperature"`
	Humidity    Series `json:"humidity"`
	EC          Series `json:"ec"`
	PH          Series `json:"ph"`
	Water       Series `json:"water"`
	Health      Series `json:"health"`
}

// Summarize computes run statistics. An empty history yields a zero Summary.
func Summarize(readings []engine.Reading) Summary {
	sum := Summary{PromptsByKey: map[string]int{}}
	if len(readings) == 0 {
		return sum
	}

	n := len(readings)
	temp := make([]float64, n)
	humid := make([]float64, n)
	ec := make([]float64, n)
	ph := make([]float64, n)
	water := make([]float64, n)
	health := make([]float64, n)

	prev := ""
	for i, r := range readings {
		temp[i] = r.Temperature
		humid[i] = r.Humidity
		ec[i] = r.EC
		ph[i] = r.PH
		water[i] = r.Water
		health[i] = r.Health

		if r.LightOn {
			sum.LightOnTicks++
		}
		if r.ActivePrompt != "" && r.ActivePrompt != prev {
			sum.Prompts++
			sum.PromptsByKey[r.ActivePrompt]++
		}
		prev = r.ActivePrompt
	}

	first, last := readings[0], readings[n-1]
	sum.Ticks = n
	sum.Days = last.Day - first.Day + 1
	sum.FinalStage = last.Stage
	sum.FinalHealth = rules.Round2(last.Health)
	sum.LowestHealth = rules.Round2(floats.Min(health))

	sum.Temperature = describe(temp)
	sum.Humidity = describe(humid)
	sum.EC = describe(ec)
	sum.PH = describe(ph)
	sum.Water = describe(water)
	sum.Health = describe(health)
	return sum
}

func describe(x []float64) Series {
	mean := stat.Mean(x, nil)
	std := 0.0
	if len(x) > 1 {
		std = stat.StdDev(x, nil)
	}

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	return Series{
		Mean:   rules.Round2(mean),
		StdDev: rules.Round2(std),
		Min:    rules.Round2(floats.Min(x)),
		Max:    rules.Round2(floats.Max(x)),
		Median: rules.Round2(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
	}
}
