// Package main - hydro-sim
// Headless runner: plays one crop from planting to harvest with the autopilot and writes
// the tick history and a summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/hydroedu/hydrosim/internal/autopilot"
	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/engine"
	"github.com/hydroedu/hydrosim/internal/platform/config"
	"github.com/hydroedu/hydrosim/internal/platform/logger"
	"github.com/hydroedu/hydrosim/internal/report"
)

func main() {
	city := flag.String("city", "Lahore", "City with climate data")
	month := flag.String("month", "January", "Month of the climate envelope")
	cropName := flag.String("crop", "Cherry Tomato", "Crop to grow")
	dataDir := flag.String("data", "", "Reference data directory (empty = embedded dataset)")
	tuningPath := flag.String("tuning", "", "Tuning YAML file (empty = use defaults)")
	missRate := flag.Float64("miss-rate", 0.1, "Fraction of prompts the autopilot ignores")
	seed := flag.Uint64("seed", 0, "Random seed (0 = time based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after this many ticks (0 = until harvest)")
	tickTime := flag.Duration("tick-time", 2500*time.Millisecond, "Simulated wall time per tick")
	outputDir := flag.String("output", "", "Output directory for history.csv, summary.json and tuning.yaml")
	verbose := flag.Bool("v", false, "Log engine events")
	flag.Parse()

	log := logger.Discard()
	if *verbose {
		log = logger.NewLogger()
	}

	tuning, err := config.Load(*tuningPath)
	if err != nil {
		config.Exitf("tuning: %v", err)
	}

	catalog := crop.Default()
	if *dataDir != "" {
		if catalog, err = crop.LoadDir(*dataDir); err != nil {
			config.Exitf("reference data: %v", err)
		}
	}

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	clock := autopilot.NewClock(time.Now())

	eng, err := engine.New(engine.Deps{
		Catalog:   catalog,
		Tuning:    tuning,
		Logger:    log,
		SessionID: "headless",
		Now:       clock.Now,
		Jitter:    engine.UniformJitter(rand.NewPCG(*seed, 1)),
	}, *city, *month, *cropName)
	if err != nil {
		config.Exitf("%v", err)
	}

	history, err := report.NewHistoryFile(*outputDir)
	if err != nil {
		config.Exitf("output: %v", err)
	}
	defer history.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pilot := autopilot.New(*missRate, rand.NewPCG(*seed, 2), log)
	res, err := pilot.Run(ctx, eng, autopilot.RunOptions{
		MaxTicks: *maxTicks,
		TickTime: *tickTime,
		Clock:    clock,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "run interrupted: %v\n", err)
	}

	readings := eng.History()
	summary := report.Summarize(readings)
	if err := history.Write(readings...); err != nil {
		config.Exitf("%v", err)
	}

	fmt.Printf("%s in %s (%s), seed %d\n", *cropName, *city, *month, *seed)
	fmt.Printf("Ticks: %d  Days: %d  Stage: %s\n", res.Ticks, summary.Days, res.Final.Stage)
	fmt.Printf("Actions: %d  Acknowledged: %d  Missed: %d\n", res.Actions, res.Resolved, res.Misses)
	fmt.Printf("Health: %.2f (lowest %.2f)\n", res.Final.Health, summary.LowestHealth)
	fmt.Printf("Temperature: mean %.2f  std %.2f  [%.2f, %.2f]\n",
		summary.Temperature.Mean, summary.Temperature.StdDev, summary.Temperature.Min, summary.Temperature.Max)
	fmt.Printf("Humidity:    mean %.2f  std %.2f\n", summary.Humidity.Mean, summary.Humidity.StdDev)
	fmt.Printf("EC: mean %.2f  pH: mean %.2f\n", summary.EC.Mean, summary.PH.Mean)
	y := eng.Yield()
	fmt.Printf("Yield: %.3f kg (harvest every %s weeks)\n", y.YieldKg, y.WeeksPerHarvest)

	if *outputDir == "" {
		return
	}
	if len(readings) < res.Ticks {
		fmt.Fprintf(os.Stderr, "history.csv holds the last %d of %d ticks\n", len(readings), res.Ticks)
	}

	out := map[string]interface{}{
		"run":     res,
		"summary": summary,
		"yield":   y,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		config.Exitf("encoding summary: %v", err)
	}
	if err := os.WriteFile(filepath.Join(*outputDir, "summary.json"), data, 0644); err != nil {
		config.Exitf("writing summary.json: %v", err)
	}
	if err := tuning.WriteYAML(filepath.Join(*outputDir, "tuning.yaml")); err != nil {
		config.Exitf("%v", err)
	}
	fmt.Printf("Results written to %s\n", *outputDir)
}
