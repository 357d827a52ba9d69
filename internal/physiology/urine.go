package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Urine tracks kidney function, which falls while pressure stays below 65
// mmHg, and the output and composition of urine that follow from it.
type Urine struct {
	BaseOutputRate           float64
	KidneyRecoveryRate       float64
	OsmolalityAdjustmentRate float64
	ProteinClearanceRate     float64
}

func NewUrine() *Urine {
	return &Urine{
		BaseOutputRate:           60.0,
		KidneyRecoveryRate:       0.01,
		OsmolalityAdjustmentRate: 0.05,
		ProteinClearanceRate:     0.1,
	}
}

func (u *Urine) Name() string { return "urine" }

func (u *Urine) OwnedKeys() []string {
	return []string{
		KeyUrineOutput, KeyUrineSpecificGravity, KeyUrineSodium,
		KeyKidneyFunction, KeyUrineOsmolality, KeyUrineProtein,
	}
}

func (u *Urine) InitialState() map[string]float64 {
	return map[string]float64{
		KeyUrineOutput:          60.0,
		KeyUrineSpecificGravity: 1.015,
		KeyUrineSodium:          100.0,
		KeyKidneyFunction:       100.0,
		KeyUrineOsmolality:      600.0,
		KeyUrineProtein:         0,
	}
}

func (u *Urine) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	in := []port{maybe(KeyBloodPressure, 90), maybe(KeyFluidVolume, 2000), maybe(KeySodium, 140)}
	return kernel(sc, in, u.OwnedKeys(), func(in, out []float64) {
		bp, volume, serumSodium := in[0], in[1], in[2]
		output, sg, sodium, kidney, osm, protein := out[0], out[1], out[2], out[3], out[4], out[5]

		if bp < 65.0 {
			kidney = math.Max(0, kidney-(65.0-bp)*0.02*dt)
		} else {
			kidney = math.Min(100, kidney+u.KidneyRecoveryRate*(100.0-kidney)*dt)
		}

		target := u.BaseOutputRate *
			clamp(volume/2000.0, 0.2, 2.0) *
			clamp(bp/90.0, 0.2, 1.5) *
			(kidney / 100.0)
		output = math.Max(0, output+(target-output)*0.1*dt)

		sgTarget := 1.015 + (60.0-output)*0.0003
		out[1] = clamp(sg+(sgTarget-sg)*0.1*dt, 1.001, 1.040)

		osmTarget := 600.0 + (60.0-output)*10.0
		out[4] = clamp(osm+u.OsmolalityAdjustmentRate*(osmTarget-osm)*dt, 50, 1200)

		sodiumTarget := serumSodium * (kidney / 100.0)
		out[2] = math.Max(0, sodium+(sodiumTarget-sodium)*0.1*dt)

		production := (100 - kidney) * 0.2
		out[5] = math.Max(0, protein+(production-u.ProteinClearanceRate*protein)*dt)

		out[0], out[3] = output, kidney
	})
}
