package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// TSS models toxic shock: toxin load, tissue damage and the immune response
// that clears both. Severity is a weighted score of the three.
type TSS struct {
	ToxinProduction float64
	ToxinClearance  float64
	DamageRate      float64
	HealingRate     float64
	ImmuneRate      float64
}

func NewTSS() *TSS {
	return &TSS{
		ToxinProduction: 0.05,
		ToxinClearance:  0.03,
		DamageRate:      0.02,
		HealingRate:     0.01,
		ImmuneRate:      0.1,
	}
}

func (t *TSS) Name() string { return "tss" }

func (t *TSS) OwnedKeys() []string {
	return []string{KeyTSSSeverity, KeyTissueDamage, KeyToxinLevel, KeyImmuneResponse}
}

func (t *TSS) InitialState() map[string]float64 {
	return map[string]float64{
		KeyTSSSeverity:    0.0,
		KeyTissueDamage:   0.0,
		KeyToxinLevel:     0.0,
		KeyImmuneResponse: 50.0,
	}
}

func (t *TSS) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	in := []port{maybe(KeyTemperature, 37.0), maybe(KeyWBC, 7.5)}
	return kernel(sc, in, t.OwnedKeys(), func(in, out []float64) {
		temp, wbc := in[0], in[1]
		damage, toxin, immune := out[1], out[2], out[3]

		production := t.ToxinProduction * (1 + damage/50.0)
		clearance := t.ToxinClearance * immune / 50.0
		toxinNew := clamp(toxin+(production-clearance*toxin)*dt, 0, 100)

		healing := t.HealingRate * immune / 50.0
		damageNew := clamp(damage+(t.DamageRate*toxinNew-healing*damage)*dt, 0, 100)

		target := math.Min(100, 50+toxinNew)
		if temp > 38.5 {
			target *= 1.2
		}
		if wbc < 4.0 {
			target *= 0.5
		}
		immuneNew := clamp(immune+t.ImmuneRate*(target-immune)*dt, 0, 100)

		out[0] = toxinNew*0.4 + damageNew*0.4 + (100-immuneNew)*0.2
		out[1], out[2], out[3] = damageNew, toxinNew, immuneNew
	})
}
