package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt      = 1.0
	DefaultSteps   = 500
	DefaultBackend = "auto"
	DefaultSeed    = 42
)

var ErrInvalid = errors.New("config: invalid")

// Config describes one simulation run. Empty Solvers or Couplers select the
// whole physiology library.
type Config struct {
	Name          string             `yaml:"name" validate:"required"`
	Dt            float64            `yaml:"dt" validate:"gt=0"`
	Steps         int                `yaml:"steps" validate:"gte=1"`
	Batch         int                `yaml:"batch" validate:"gte=0"`
	Backend       string             `yaml:"backend" validate:"omitempty,oneof=auto serial cpu"`
	Workers       int                `yaml:"workers,omitempty" validate:"gte=0"`
	Seed          int64              `yaml:"seed"`
	Solvers       []string           `yaml:"solvers,omitempty" validate:"unique,dive,required"`
	Couplers      []string           `yaml:"couplers,omitempty" validate:"unique,dive,required"`
	Initial       map[string]float64 `yaml:"initial,omitempty" validate:"dive,keys,required,endkeys"`
	Jitter        map[string]float64 `yaml:"jitter,omitempty" validate:"dive,keys,required,endkeys,gte=0,lte=1"`
	Interventions []Intervention     `yaml:"interventions,omitempty" validate:"dive"`
	Record        []string           `yaml:"record,omitempty" validate:"unique,dive,required"`
}

// Intervention applies Action after Step committed steps. Dose 0 means 1.
// Empty Lanes targets every lane.
type Intervention struct {
	Step   int     `yaml:"step" validate:"gte=0"`
	Action string  `yaml:"action" validate:"required"`
	Dose   float64 `yaml:"dose,omitempty" validate:"gte=0"`
	Lanes  []int   `yaml:"lanes,omitempty" validate:"unique,dive,gte=0"`
}

func (iv Intervention) Amount() float64 {
	if iv.Dose == 0 {
		return 1
	}
	return iv.Dose
}

func DefaultConfig() *Config {
	return &Config{
		Name:    "baseline",
		Dt:      DefaultDt,
		Steps:   DefaultSteps,
		Backend: DefaultBackend,
		Seed:    DefaultSeed,
	}
}

var validate = validator.New()

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be finite", ErrInvalid)
	}
	for k, v := range c.Initial {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: initial %q is not finite", ErrInvalid, k)
		}
	}
	if len(c.Jitter) > 0 && c.Batch == 0 {
		return fmt.Errorf("%w: jitter needs batch > 0", ErrInvalid)
	}
	lanes := max(c.Batch, 1)
	for i, iv := range c.Interventions {
		if iv.Step >= c.Steps {
			return fmt.Errorf("%w: intervention %d (%s) at step %d, run has %d steps",
				ErrInvalid, i, iv.Action, iv.Step, c.Steps)
		}
		for _, l := range iv.Lanes {
			if l >= lanes {
				return fmt.Errorf("%w: intervention %d (%s) targets lane %d of %d",
					ErrInvalid, i, iv.Action, l, lanes)
			}
		}
	}
	return nil
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Solvers = slices.Clone(c.Solvers)
	out.Couplers = slices.Clone(c.Couplers)
	out.Record = slices.Clone(c.Record)
	out.Initial = cloneMap(c.Initial)
	out.Jitter = cloneMap(c.Jitter)
	if c.Interventions != nil {
		out.Interventions = make([]Intervention, len(c.Interventions))
		for i, iv := range c.Interventions {
			iv.Lanes = slices.Clone(iv.Lanes)
			out.Interventions[i] = iv
		}
	}
	return &out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
