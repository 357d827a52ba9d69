package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Lactate tracks tissue perfusion from blood pressure and the lactate
// produced when perfusion falls.
type Lactate struct {
	BaselineProduction   float64
	ClearanceRate        float64
	PerfusionSensitivity float64
	PerfusionThreshold   float64 // mmHg
}

func NewLactate() *Lactate {
	return &Lactate{
		BaselineProduction:   0.02,
		ClearanceRate:        0.05,
		PerfusionSensitivity: 0.1,
		PerfusionThreshold:   65.0,
	}
}

func (l *Lactate) Name() string        { return "lactate" }
func (l *Lactate) OwnedKeys() []string { return []string{KeyLactate, KeyPerfusion} }

func (l *Lactate) InitialState() map[string]float64 {
	return map[string]float64{KeyLactate: 0.8, KeyPerfusion: 100.0}
}

func (l *Lactate) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, []port{maybe(KeyBloodPressure, 90)}, l.OwnedKeys(), func(in, out []float64) {
		bp := in[0]
		lactate, perfusion := out[0], out[1]

		if bp < l.PerfusionThreshold {
			perfusion = clamp(perfusion-(l.PerfusionThreshold-bp)*2.0*dt, 0, 100)
		} else {
			perfusion = math.Min(100, perfusion+5.0*dt)
		}

		production := l.BaselineProduction + l.PerfusionSensitivity*(100-perfusion)/100
		clearance := l.ClearanceRate * perfusion / 100

		out[0] = math.Max(0, lactate+(production-clearance*lactate)*dt)
		out[1] = perfusion
	})
}
