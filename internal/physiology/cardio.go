package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Cardio models mean arterial pressure with a windkessel equation, heart rate
// with a baroreflex, and oxygen saturation driven by perfusion pressure.
// Oxygen debt accumulates while saturation stays below OptimalOxy.
type Cardio struct {
	StrokeVolume float64
	Compliance   float64
	SVR          float64
	BaroGain     float64
	MapSetpoint  float64
	OxyRecovery  float64
	OxyDrop      float64
	EpiHRFactor  float64
	MinOxy       float64
	MaxOxy       float64
	MinBP        float64
	MaxBP        float64
	OptimalOxy   float64
	DebtFactor   float64

	// DtMinutes scales dt by 60 when the simulation clock runs in minutes.
	DtMinutes bool
}

func NewCardio() *Cardio {
	return &Cardio{
		StrokeVolume: 1.0,
		Compliance:   1.0,
		SVR:          1.0,
		BaroGain:     0.1,
		MapSetpoint:  90.0,
		OxyRecovery:  0.01,
		OxyDrop:      0.02,
		EpiHRFactor:  0.5,
		MinOxy:       75.0,
		MaxOxy:       100.0,
		MinBP:        10.0,
		MaxBP:        300.0,
		OptimalOxy:   95.0,
		DebtFactor:   0.1,
	}
}

func (c *Cardio) Name() string { return "cardio" }

func (c *Cardio) OwnedKeys() []string {
	return []string{KeyBloodPressure, KeyHeartRate, KeyOxySaturation, KeyOxygenDebt}
}

func (c *Cardio) CoupledKeys() []string {
	return []string{KeyBloodPressure, KeyHeartRate, KeyOxySaturation}
}

func (c *Cardio) InitialState() map[string]float64 {
	return map[string]float64{
		KeyBloodPressure: 90.0,
		KeyHeartRate:     80.0,
		KeyOxySaturation: 98.0,
		KeyOxygenDebt:    0.0,
	}
}

func (c *Cardio) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	if c.DtMinutes {
		dt *= 60
	}
	const mapThreshold = 60.0

	return kernel(sc, []port{maybe(KeyEpinephrine, 0)}, c.OwnedKeys(), func(in, out []float64) {
		epi := in[0]
		mapOld, hrOld, oxyOld, debt := out[0], out[1], out[2], out[3]

		co := hrOld * c.StrokeVolume
		mapNew := clamp(mapOld+(co-mapOld/c.SVR)/c.Compliance*dt, c.MinBP, c.MaxBP)

		hrNew := math.Max(0, hrOld+(c.BaroGain*(c.MapSetpoint-mapOld)+c.EpiHRFactor*epi)*dt)

		var oxyNew float64
		if mapOld >= mapThreshold {
			oxyNew = oxyOld + c.OxyRecovery*(c.MaxOxy-oxyOld)*dt
		} else {
			drop := 1.0 + math.Max(0, (mapThreshold-mapOld)/mapThreshold)
			oxyNew = oxyOld - c.OxyDrop*drop*dt
		}
		oxyNew = clamp(oxyNew, c.MinOxy, c.MaxOxy)

		if oxyNew < c.OptimalOxy {
			debt += (c.OptimalOxy - oxyNew) * c.DebtFactor * dt
		}

		out[0], out[1], out[2], out[3] = mapNew, hrNew, oxyNew, debt
	})
}
