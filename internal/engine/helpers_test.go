package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hydroedu/hydrosim/internal/domain/crop"
	"github.com/hydroedu/hydrosim/internal/platform/config"
	"github.com/hydroedu/hydrosim/internal/platform/metrics"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// stubCatalog serves one location and one crop whose ranges start out fully satisfied.
type stubCatalog struct {
	climate crop.Climate
	profile crop.Profile
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		climate: crop.Climate{LowTemp: 20, HighTemp: 30, MeanTemp: 25, Humidity: 50, Sunlight: 12},
		profile: crop.Profile{
			Name: "Test Leaf",
			Tolerances: crop.Tolerances{
				EC:          crop.Range{1.5, 2.5},
				PH:          crop.Range{5.0, 7.0},
				Humidity:    crop.Range{0, 100},
				Temperature: crop.Range{-50, 60},
				LightNeeds:  []float64{0},
			},
			Category: crop.Category{Category: "Leafy", Use: "Salad", Seasonality: "All year"},
			Stages: []crop.StageUptake{
				{Name: "Seedling", Days: [2]int{0, 10}, WaterUptake: 1.0},
				{Name: "Vegetative", Days: [2]int{11, 25}, ECReduction: 0.05, PHDrift: 0.04, WaterUptake: 2.0},
				{Name: "Maturity", Days: [2]int{26, 40}, ECReduction: 0.03, PHDrift: 0.03, WaterUptake: 1.6},
			},
			Yield: crop.Yield{PerPlant: 0.5, WeeksPerHarvest: "5-6"},
		},
	}
}

func (c *stubCatalog) Climate(city, month string) (crop.Climate, error) {
	if city != "Testville" || month != "March" {
		return crop.Climate{}, fmt.Errorf("climate for %s/%s: %w", city, month, crop.ErrNotFound)
	}
	return c.climate, nil
}

func (c *stubCatalog) Profile(name string) (*crop.Profile, error) {
	if name != c.profile.Name {
		return nil, fmt.Errorf("crop %q: %w", name, crop.ErrNotFound)
	}
	p := c.profile
	return &p, nil
}

type fixture struct {
	engine  *Engine
	deps    Deps
	clock   *fakeClock
	metrics *metrics.Collector
}

// newFixture builds an engine over the stub catalog with no jitter and a fake clock.
// Options may adjust the deps or the catalog before the engine is built.
func newFixture(t *testing.T, opts ...func(*Deps, *stubCatalog)) *fixture {
	t.Helper()
	cat := newStubCatalog()
	clock := newFakeClock()
	m := metrics.New()
	deps := Deps{
		Catalog:   cat,
		Tuning:    config.Default(),
		Metrics:   m,
		SessionID: "test-session",
		Now:       clock.Now,
		Jitter:    NoJitter,
	}
	for _, opt := range opts {
		opt(&deps, cat)
	}

	e, err := New(deps, "Testville", "March", "Test Leaf")
	require.NoError(t, err)
	return &fixture{engine: e, deps: deps, clock: clock, metrics: m}
}

func withLightNeeds(hours float64) func(*Deps, *stubCatalog) {
	return func(_ *Deps, c *stubCatalog) {
		c.profile.Tolerances.LightNeeds = []float64{hours}
	}
}

func withJitter(j Jitter) func(*Deps, *stubCatalog) {
	return func(d *Deps, _ *stubCatalog) {
		d.Jitter = j
	}
}

// newDatasetEngine builds an engine over the embedded dataset.
func newDatasetEngine(t *testing.T, city, month, cropName string) *Engine {
	t.Helper()
	e, err := New(Deps{Tuning: config.Default(), Jitter: NoJitter}, city, month, cropName)
	require.NoError(t, err)
	return e
}
