package physiology

import "github.com/san-kum/physim/internal/engine"

// Electrolytes relaxes each electrolyte toward its normal value.
type Electrolytes struct {
	// Rates are per dt, in the same order as OwnedKeys.
	Rates [6]float64
}

var electrolyteNormals = [6]float64{140.0, 4.0, 102.0, 9.5, 2.0, 3.5}

func NewElectrolytes() *Electrolytes {
	return &Electrolytes{Rates: [6]float64{0.02, 0.05, 0.03, 0.04, 0.03, 0.02}}
}

func (e *Electrolytes) Name() string { return "electrolytes" }

func (e *Electrolytes) OwnedKeys() []string {
	return []string{KeySodium, KeyPotassium, KeyChloride, KeyCalcium, KeyMagnesium, KeyPhosphate}
}

func (e *Electrolytes) CoupledKeys() []string {
	return []string{KeySodium, KeyPotassium}
}

func (e *Electrolytes) InitialState() map[string]float64 {
	out := make(map[string]float64, len(electrolyteNormals))
	for i, k := range e.OwnedKeys() {
		out[k] = electrolyteNormals[i]
	}
	return out
}

func (e *Electrolytes) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, nil, e.OwnedKeys(), func(_, out []float64) {
		for i := range out {
			out[i] += e.Rates[i] * (electrolyteNormals[i] - out[i]) * dt
		}
	})
}
