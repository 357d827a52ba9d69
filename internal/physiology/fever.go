package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Fever drives core temperature up with infection and down with
// antipyretics, relaxing toward BaselineTemp otherwise.
type Fever struct {
	BaselineTemp      float64
	MaxFever          float64
	MinTemp           float64
	InfectionFactor   float64
	AntipyreticEffect float64
	RegulationRate    float64
	InfectionDecay    float64
	AntipyreticDecay  float64
}

func NewFever() *Fever {
	return &Fever{
		BaselineTemp:      37.0,
		MaxFever:          41.5,
		MinTemp:           35.0,
		InfectionFactor:   0.03,
		AntipyreticEffect: 0.02,
		RegulationRate:    0.01,
		InfectionDecay:    0.1,
		AntipyreticDecay:  0.2,
	}
}

func (f *Fever) Name() string { return "fever" }

func (f *Fever) OwnedKeys() []string {
	return []string{KeyTemperature, KeyInfectionLevel, KeyAntipyreticLevel}
}

func (f *Fever) InitialState() map[string]float64 {
	return map[string]float64{
		KeyTemperature:      37.0,
		KeyInfectionLevel:   0.0,
		KeyAntipyreticLevel: 0.0,
	}
}

func (f *Fever) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, nil, f.OwnedKeys(), func(_, out []float64) {
		temp, infection, antipyretic := out[0], out[1], out[2]

		next := temp +
			f.InfectionFactor*infection*dt -
			f.AntipyreticEffect*antipyretic*dt +
			f.RegulationRate*(f.BaselineTemp-temp)*dt

		out[0] = clamp(next, f.MinTemp, f.MaxFever)
		out[1] = math.Max(0, infection-f.InfectionDecay*dt)
		out[2] = math.Max(0, antipyretic-f.AntipyreticDecay*dt)
	})
}
