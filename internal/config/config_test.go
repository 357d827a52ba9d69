package config

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Name != "baseline" {
		t.Errorf("expected name baseline, got %s", cfg.Name)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Steps <= 0 {
		t.Error("steps should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"infinite dt", func(c *Config) { c.Dt = math.Inf(1) }},
		{"no steps", func(c *Config) { c.Steps = 0 }},
		{"negative batch", func(c *Config) { c.Batch = -1 }},
		{"unknown backend", func(c *Config) { c.Backend = "gpu" }},
		{"duplicate solver", func(c *Config) { c.Solvers = []string{"cardio", "cardio"} }},
		{"nan initial", func(c *Config) { c.Initial = map[string]float64{"heart_rate": math.NaN()} }},
		{"jitter without batch", func(c *Config) { c.Jitter = map[string]float64{"heart_rate": 0.1} }},
		{"jitter above one", func(c *Config) {
			c.Batch = 4
			c.Jitter = map[string]float64{"heart_rate": 2}
		}},
		{"intervention past end", func(c *Config) {
			c.Interventions = []Intervention{{Step: c.Steps, Action: "epinephrine"}}
		}},
		{"intervention lane out of range", func(c *Config) {
			c.Batch = 2
			c.Interventions = []Intervention{{Step: 1, Action: "epinephrine", Lanes: []int{2}}}
		}},
		{"intervention without action", func(c *Config) {
			c.Interventions = []Intervention{{Step: 1}}
		}},
		{"negative dose", func(c *Config) {
			c.Interventions = []Intervention{{Step: 1, Action: "epinephrine", Dose: -1}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestInterventionAmount(t *testing.T) {
	if got := (Intervention{}).Amount(); got != 1 {
		t.Errorf("zero dose should mean 1, got %f", got)
	}
	if got := (Intervention{Dose: 2.5}).Amount(); got != 2.5 {
		t.Errorf("expected 2.5, got %f", got)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("sepsis")
	cfg.Batch = 3
	cfg.Jitter = map[string]float64{"heart_rate": 0.05}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "sepsis" || loaded.Batch != 3 {
		t.Errorf("round trip lost fields: %+v", loaded)
	}
	if len(loaded.Interventions) != len(cfg.Interventions) {
		t.Errorf("expected %d interventions, got %d", len(cfg.Interventions), len(loaded.Interventions))
	}
	if loaded.Jitter["heart_rate"] != 0.05 {
		t.Errorf("jitter lost: %v", loaded.Jitter)
	}
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	cfg := DefaultConfig()
	cfg.Steps = 0
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("hemorrhage")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Initial["fluid_volume"] != 1400 {
		t.Errorf("expected fluid_volume 1400, got %f", cfg.Initial["fluid_volume"])
	}

	cfg.Initial["fluid_volume"] = 1
	if again := GetPreset("hemorrhage"); again.Initial["fluid_volume"] != 1400 {
		t.Error("GetPreset should return an independent copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsValid(t *testing.T) {
	for _, name := range ListPresets() {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestListPresets(t *testing.T) {
	got := ListPresets()
	want := []string{"baseline", "fever", "hemorrhage", "sepsis"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}
