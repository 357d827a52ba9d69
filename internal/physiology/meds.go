package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Meds eliminates circulating epinephrine at a first-order rate.
type Meds struct {
	EliminationRate float64
}

func NewMeds() *Meds { return &Meds{EliminationRate: 0.05} }

func (m *Meds) Name() string        { return "meds" }
func (m *Meds) OwnedKeys() []string { return []string{KeyEpinephrine} }

func (m *Meds) InitialState() map[string]float64 {
	return map[string]float64{KeyEpinephrine: 0}
}

func (m *Meds) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, nil, m.OwnedKeys(), func(_, out []float64) {
		out[0] = math.Max(0, out[0]-m.EliminationRate*out[0]*dt)
	})
}

// Fluids loses a fixed volume of circulating fluid per unit time.
type Fluids struct {
	BaselineLoss float64 // mL per dt
}

func NewFluids() *Fluids { return &Fluids{BaselineLoss: 1.0} }

func (f *Fluids) Name() string          { return "fluids" }
func (f *Fluids) OwnedKeys() []string   { return []string{KeyFluidVolume} }
func (f *Fluids) CoupledKeys() []string { return []string{KeyFluidVolume} }

func (f *Fluids) InitialState() map[string]float64 {
	return map[string]float64{KeyFluidVolume: 2000.0}
}

func (f *Fluids) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, nil, f.OwnedKeys(), func(_, out []float64) {
		out[0] = math.Max(0, out[0]-f.BaselineLoss*dt)
	})
}
