package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Metabolytes covers blood gases and glucose handling. pH is derived from
// bicarbonate and pCO2 with Henderson-Hasselbalch after both relax toward
// their normals.
type Metabolytes struct {
	GlucoseBaseline             float64
	InsulinSensitivity          float64
	RespiratoryCompensationRate float64
	MetabolicCompensationRate   float64
}

func NewMetabolytes() *Metabolytes {
	return &Metabolytes{
		GlucoseBaseline:             100.0,
		InsulinSensitivity:          0.1,
		RespiratoryCompensationRate: 0.02,
		MetabolicCompensationRate:   0.01,
	}
}

func (m *Metabolytes) Name() string { return "metabolytes" }

func (m *Metabolytes) OwnedKeys() []string {
	return []string{KeyPH, KeyPCO2, KeyHCO3, KeyPO2, KeyBaseExcess, KeyGlucose, KeyKetones, KeyInsulin}
}

func (m *Metabolytes) InitialState() map[string]float64 {
	return map[string]float64{
		KeyPH:         7.4,
		KeyPCO2:       40.0,
		KeyHCO3:       24.0,
		KeyPO2:        95.0,
		KeyBaseExcess: 0,
		KeyGlucose:    100.0,
		KeyKetones:    0.1,
		KeyInsulin:    10.0,
	}
}

func (m *Metabolytes) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, []port{maybe(KeyOxySaturation, 98)}, m.OwnedKeys(), func(in, out []float64) {
		oxy := in[0]
		pco2, hco3, glucose, ketones, insulin := out[1], out[2], out[5], out[6], out[7]

		po2 := clamp(27.0*oxy-2560.0/(oxy+1.0), 40, 150)

		glucose = math.Max(40, glucose+(m.GlucoseBaseline-glucose)*0.05*dt-m.InsulinSensitivity*insulin*dt)
		production := math.Max(0, (glucose-180)/100.0) / (insulin + 1.0)
		ketones = math.Max(0, ketones+(production-0.05*ketones)*dt)
		insulinTarget := 10.0 + math.Max(0, (glucose-100.0)*0.2)
		insulin = math.Max(0, insulin+(insulinTarget-insulin)*0.1*dt)

		pco2 = clamp(pco2+(40.0-pco2)*m.RespiratoryCompensationRate*dt, 20, 80)
		hco3 = clamp(hco3+(24.0-hco3)*m.MetabolicCompensationRate*dt, 10, 40)
		ph := clamp(6.1+math.Log10((hco3/0.03)/pco2), 6.8, 7.8)
		baseExcess := (hco3 - 24.0) + (ph-7.4)*(pco2-40.0)*0.008

		out[0], out[1], out[2], out[3] = ph, pco2, hco3, po2
		out[4], out[5], out[6], out[7] = baseExcess, glucose, ketones, insulin
	})
}
