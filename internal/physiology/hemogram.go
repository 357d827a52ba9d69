package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Hemogram models red cell turnover and the white cell response to infection.
type Hemogram struct {
	HgbProduction float64
	WBCResponse   float64
	RBCDecay      float64 // per minute
}

// NewHemogram derives the red cell decay rate from a 120 day lifespan and
// sets hemoglobin production to balance it at 14 g/dL.
func NewHemogram() *Hemogram {
	decay := 1.0 / (120.0 * 24 * 60)
	return &Hemogram{
		HgbProduction: decay * 14.0,
		WBCResponse:   0.05,
		RBCDecay:      decay,
	}
}

func (h *Hemogram) Name() string { return "hemogram" }

func (h *Hemogram) OwnedKeys() []string {
	return []string{
		KeyHemoglobin, KeyHematocrit, KeyWBC, KeyRBC,
		KeyNeutrophils, KeyLymphocytes, KeyMonocytes, KeyEosinophils, KeyBasophils,
	}
}

func (h *Hemogram) CoupledKeys() []string { return []string{KeyHemoglobin, KeyWBC} }

func (h *Hemogram) InitialState() map[string]float64 {
	return map[string]float64{
		KeyHemoglobin:  14.0,
		KeyHematocrit:  42.0,
		KeyWBC:         7.5,
		KeyRBC:         5.0,
		KeyNeutrophils: 60.0,
		KeyLymphocytes: 30.0,
		KeyMonocytes:   7.0,
		KeyEosinophils: 2.0,
		KeyBasophils:   1.0,
	}
}

func (h *Hemogram) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, []port{maybe(KeyInfectionLevel, 0)}, h.OwnedKeys(), func(in, out []float64) {
		infection := in[0]
		hgb, wbc, rbc := out[0], out[2], out[3]

		hgb = math.Max(0, hgb+(h.HgbProduction-h.RBCDecay*hgb)*dt)
		out[0] = hgb
		out[1] = hgb * 3.0

		wbcTarget := 7.5 + infection*0.1
		out[2] = math.Max(0, wbc+h.WBCResponse*(wbcTarget-wbc)*dt)
		out[3] = math.Max(0, rbc+(h.HgbProduction/3.0-h.RBCDecay*rbc)*dt)

		out[4] = math.Min(85, out[4]+infection*0.02*dt)
		out[5] = math.Max(10, out[5]-infection*0.01*dt)
		out[6] = clamp(out[6]+infection*0.001*dt, 2, 12)
		out[7] = clamp(out[7]+infection*0.0005*dt, 0, 8)
		out[8] = clamp(out[8], 0, 2)
	})
}
