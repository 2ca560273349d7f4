package crop

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

//go:embed data/*.json
var embeddedData embed.FS

// FileCatalog serves reference data decoded from the JSON files of a data directory.
type FileCatalog struct {
	climate    map[string]map[string]Climate
	tolerances map[string]Tolerances
	categories map[string]Category
	uptake     map[string]map[string]StageUptake
	yields     map[string]Yield
}

// Default returns the catalog bundled with the binary.
func Default() *FileCatalog {
	sub, err := fs.Sub(embeddedData, "data")
	if err != nil {
		panic(fmt.Sprintf("crop: embedded data: %v", err))
	}
	c, err := Load(sub)
	if err != nil {
		panic(fmt.Sprintf("crop: embedded data: %v", err))
	}
	return c
}

// LoadDir loads a catalog from a directory on disk.
func LoadDir(dir string) (*FileCatalog, error) {
	return Load(os.DirFS(dir))
}

// Load reads climate.json, crops.json, categories.json, uptake.json (or update.json)
// and yield.json from fsys.
func Load(fsys fs.FS) (*FileCatalog, error) {
	c := &FileCatalog{}
	if err := readJSON(fsys, "climate.json", &c.climate); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, "crops.json", &c.tolerances); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, "categories.json", &c.categories); err != nil {
		return nil, err
	}
	if err := readJSON(fsys, "yield.json", &c.yields); err != nil {
		return nil, err
	}

	// Older datasets ship the stage table as update.json
	err := readJSON(fsys, "uptake.json", &c.uptake)
	if errors.Is(err, fs.ErrNotExist) {
		err = readJSON(fsys, "update.json", &c.uptake)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// Climate implements Catalog.
func (c *FileCatalog) Climate(city, month string) (Climate, error) {
	months, ok := c.climate[city]
	if !ok {
		return Climate{}, fmt.Errorf("climate for city %q: %w", city, ErrNotFound)
	}
	cl, ok := months[month]
	if !ok {
		return Climate{}, fmt.Errorf("climate for %s/%s: %w", city, month, ErrNotFound)
	}
	return cl, nil
}

// Profile implements Catalog. Category metadata is optional; every other table is required.
func (c *FileCatalog) Profile(name string) (*Profile, error) {
	tol, ok := c.tolerances[name]
	if !ok {
		return nil, fmt.Errorf("crop %q: %w", name, ErrNotFound)
	}
	stages, ok := c.uptake[name]
	if !ok || len(stages) == 0 {
		return nil, fmt.Errorf("stage table for crop %q: %w", name, ErrNotFound)
	}
	y, ok := c.yields[name]
	if !ok {
		return nil, fmt.Errorf("yield for crop %q: %w", name, ErrNotFound)
	}
	cat, ok := c.categories[name]
	if !ok {
		cat = Category{Category: "N/A", Use: "N/A", Seasonality: "N/A"}
	}

	return &Profile{
		Name:       name,
		Tolerances: tol,
		Category:   cat,
		Stages:     orderStages(stages),
		Yield:      y,
	}, nil
}

// Cities lists the cities with climate data, sorted.
func (c *FileCatalog) Cities() []string {
	out := make([]string, 0, len(c.climate))
	for city := range c.climate {
		out = append(out, city)
	}
	sort.Strings(out)
	return out
}

// Crops lists the crops with tolerance data, sorted.
func (c *FileCatalog) Crops() []string {
	out := make([]string, 0, len(c.tolerances))
	for name := range c.tolerances {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var _ Catalog = (*FileCatalog)(nil)
