package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	tun, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if tun.Simulation.HoursPerTick != 2 {
		t.Errorf("expected 2 hours per tick, got %d", tun.Simulation.HoursPerTick)
	}
	if tun.TicksPerDay() != 12 {
		t.Errorf("expected 12 ticks per day, got %d", tun.TicksPerDay())
	}
	if tun.Prompts.TTL != 15*time.Second {
		t.Errorf("expected 15s ttl, got %v", tun.Prompts.TTL)
	}
	if got := tun.PenaltyFor("water_low"); got != 1.0 {
		t.Errorf("water_low penalty = %v, want 1.0", got)
	}
	if got := tun.PenaltyFor("light_on"); got != 0.2 {
		t.Errorf("light_on penalty = %v, want 0.2", got)
	}
	if got := tun.PenaltyFor("unknown_key"); got != 0.5 {
		t.Errorf("fallback penalty = %v, want 0.5", got)
	}
	if len(tun.Pacing.TempUpdateHours) != 2 || tun.Pacing.TempUpdateHours[0] != 8 {
		t.Errorf("unexpected temp update hours %v", tun.Pacing.TempUpdateHours)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	overlay := "prompts:\n  ttl: 30s\n  durations:\n    water_low: 45s\n  penalties:\n    light_on: 0.0\n"
	if err := os.WriteFile(path, []byte(overlay), 0644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	tun, err := Load(path)
	if err != nil {
		t.Fatalf("load overlay: %v", err)
	}
	if tun.Prompts.TTL != 30*time.Second {
		t.Errorf("ttl = %v, want 30s", tun.Prompts.TTL)
	}
	if tun.TTLFor("water_low") != 45*time.Second {
		t.Errorf("water_low ttl = %v, want 45s", tun.TTLFor("water_low"))
	}
	if tun.TTLFor("ec_low") != 30*time.Second {
		t.Errorf("ec_low ttl = %v, want 30s", tun.TTLFor("ec_low"))
	}
	if tun.PenaltyFor("light_on") != 0.0 {
		t.Errorf("light_on penalty should be overridden to 0")
	}
	// Untouched keys survive the merge
	if tun.PenaltyFor("water_low") != 1.0 {
		t.Errorf("water_low penalty lost during overlay")
	}
	if tun.Pacing.ECUpdateEveryTicks != 3 {
		t.Errorf("pacing lost during overlay")
	}
}

func TestLoadRejectsBadStep(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  hours_per_tick: 5\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "hours_per_tick") {
		t.Fatalf("expected hours_per_tick error, got %v", err)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Default().WriteYAML(path); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	tun, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if tun.Prompts.Cooldown != 8*time.Second {
		t.Errorf("cooldown = %v, want 8s", tun.Prompts.Cooldown)
	}
}
