package crop

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestDefaultCatalogStagesOrdered(t *testing.T) {
	cat := Default()

	p, err := cat.Profile("Cherry Tomato")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}

	want := []string{"Seedling", "Vegetative", "Flowering", "Fruiting", "Maturity"}
	if len(p.Stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(p.Stages))
	}
	for i, name := range want {
		if p.Stages[i].Name != name {
			t.Errorf("stage %d = %s, want %s", i, p.Stages[i].Name, name)
		}
	}
	if p.LastStageEnd() != 90 {
		t.Errorf("last stage end = %d, want 90", p.LastStageEnd())
	}
}

func TestProfileStageFor(t *testing.T) {
	p, err := Default().Profile("Spinach")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}

	tests := []struct {
		day  int
		want string
		ok   bool
	}{
		{0, "Seedling", true},
		{10, "Seedling", true},
		{11, "Vegetative", true},
		{40, "Maturity", true},
		{41, "", false},
	}
	for _, tt := range tests {
		s, ok := p.StageFor(tt.day)
		if ok != tt.ok || s.Name != tt.want {
			t.Errorf("StageFor(%d) = %q,%v want %q,%v", tt.day, s.Name, ok, tt.want, tt.ok)
		}
	}
}

func TestCatalogNotFound(t *testing.T) {
	cat := Default()

	if _, err := cat.Climate("Atlantis", "January"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown city, got %v", err)
	}
	if _, err := cat.Climate("Lahore", "Smarch"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown month, got %v", err)
	}
	if _, err := cat.Profile("Durian"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown crop, got %v", err)
	}
}

func TestLoadFallsBackToUpdateJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"climate.json":    {Data: []byte(`{"Oslo":{"May":{"low_temp":5,"high_temp":15,"mean_temp":10,"humidity":60,"sunlight":16}}}`)},
		"crops.json":      {Data: []byte(`{"Kale":{"ec_range":[1,2],"ph_range":[6,7],"humidity":[40,70],"temperature":[8,22],"light_needs":[10]}}`)},
		"categories.json": {Data: []byte(`{}`)},
		"yield.json":      {Data: []byte(`{"Kale":{"yield_per_plant":0.4,"weeks_per_harvest":"6"}}`)},
		"update.json":     {Data: []byte(`{"Kale":{"Late":{"days":[8,20]},"Early":{"days":[0,7]}}}`)},
	}

	cat, err := Load(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := cat.Profile("Kale")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.Stages[0].Name != "Early" || p.Stages[1].Name != "Late" {
		t.Errorf("stages not ordered by start day: %+v", p.Stages)
	}
	if p.Category.Category != "N/A" {
		t.Errorf("missing category should default to N/A, got %q", p.Category.Category)
	}
	if p.Tolerances.RequiredLight() != 10 {
		t.Errorf("required light = %d, want 10", p.Tolerances.RequiredLight())
	}
}

func TestRangeHelpers(t *testing.T) {
	r := Range{1.5, 2.5}
	if r.Midpoint() != 2.0 {
		t.Errorf("midpoint = %v", r.Midpoint())
	}
	if !r.Contains(2.5) || r.Contains(3.0) {
		t.Errorf("contains misbehaves")
	}
}
