package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// MedsVitals raises heart rate and blood pressure with epinephrine. The
// effect is blunted when circulating volume is low. It also carries the
// fever tachycardia, +10 bpm per degree above normal capped at 40, because
// heart_rate can have only one coupled writer.
type MedsVitals struct{}

func NewMedsVitals() *MedsVitals { return &MedsVitals{} }

func (MedsVitals) Name() string { return "meds_vitals" }

func (MedsVitals) InputKeys() []string {
	return []string{KeyEpinephrine, KeyFluidVolume, KeyTemperature, KeyHeartRate, KeyBloodPressure}
}

func (MedsVitals) OutputKeys() []string { return []string{KeyHeartRate, KeyBloodPressure} }

func (m MedsVitals) Couple(sc *engine.Scope) error {
	dt := sc.Dt()
	k := math.Min(0.1, dt/60.0)
	in := []port{need(KeyEpinephrine), need(KeyFluidVolume), need(KeyTemperature)}
	return kernel(sc, in, m.OutputKeys(), func(in, out []float64) {
		epi, volume, temp := in[0], in[1], in[2]
		hr, bp := out[0], out[1]

		if epi > 0 {
			hrEffect, bpEffect := epi*2.0, epi*0.5
			if volume < 1500 {
				f := math.Max(0.5, volume/2000.0)
				hrEffect *= f
				bpEffect *= f
			}
			hr += hrEffect * dt
			bp += bpEffect * dt
		}

		if math.Abs(temp-37.0) >= 0.2 {
			delta := clamp(temp, 30, 43) - 37.0
			target := math.Min(180, hr+math.Min(40, delta*10))
			hr = settle(hr, hr+(target-hr)*k, 0.5)
		}

		out[0], out[1] = hr, bp
	})
}

// FeverMetabolic lowers oxygen saturation and raises the metabolic rate as
// temperature departs from normal.
type FeverMetabolic struct{}

func NewFeverMetabolic() *FeverMetabolic { return &FeverMetabolic{} }

func (FeverMetabolic) Name() string { return "fever_metabolic" }

func (FeverMetabolic) InputKeys() []string {
	return []string{KeyTemperature, KeyOxySaturation, KeyMetabolicRate}
}

func (FeverMetabolic) OutputKeys() []string {
	return []string{KeyOxySaturation, KeyMetabolicRate}
}

func (FeverMetabolic) InitialState() map[string]float64 {
	return map[string]float64{KeyMetabolicRate: 1.0}
}

func (f FeverMetabolic) Couple(sc *engine.Scope) error {
	k := math.Min(0.1, sc.Dt()/60.0)
	return kernel(sc, []port{need(KeyTemperature)}, f.OutputKeys(), func(in, out []float64) {
		temp := in[0]
		if math.Abs(temp-37.0) < 0.2 {
			return
		}
		delta := clamp(temp, 30, 43) - 37.0
		oxy, metabolic := out[0], out[1]

		oxyTarget := math.Max(85, oxy+math.Max(-10, -0.3*delta))
		metTarget := math.Min(3, metabolic*math.Min(2, 1+0.07*delta))

		oxyNew := oxy + (oxyTarget-oxy)*k
		if math.Abs(oxyNew-oxy) > 0.1 {
			out[0] = clamp(oxyNew, 70, 100)
		}
		out[1] = settle(metabolic, metabolic+(metTarget-metabolic)*k, 0.01)
	})
}

// InfectionHemogram pushes white cells and platelets toward the levels seen
// at the current infection severity.
type InfectionHemogram struct{}

func NewInfectionHemogram() *InfectionHemogram { return &InfectionHemogram{} }

func (InfectionHemogram) Name() string { return "infection_hemogram" }

func (InfectionHemogram) InputKeys() []string {
	return []string{KeyTSSSeverity, KeyInfectionLevel, KeyWBC, KeyPlateletCount}
}

func (InfectionHemogram) OutputKeys() []string { return []string{KeyWBC, KeyPlateletCount} }

func (h InfectionHemogram) Couple(sc *engine.Scope) error {
	k := math.Min(0.05, sc.Dt()/3600.0)
	in := []port{need(KeyTSSSeverity), need(KeyInfectionLevel)}
	return kernel(sc, in, h.OutputKeys(), func(in, out []float64) {
		tss, infection := in[0], in[1]
		if tss < 1.0 && infection < 1.0 {
			return
		}
		severity := math.Max(clamp(tss, 0, 100), clamp(infection, 0, 100))
		wbc, platelets := out[0], out[1]

		var wbcFactor float64
		if severity < 50 {
			wbcFactor = 1 + severity/25.0
		} else {
			wbcFactor = 3 - (severity-50)/16.7
		}
		wbcTarget := math.Min(30, wbc*wbcFactor)
		plateletTarget := math.Min(600, platelets*math.Max(0.5, 1-severity/200.0))

		wbcNew := wbc + (wbcTarget-wbc)*k
		if math.Abs(wbcNew-wbc) > 0.1 {
			out[0] = clamp(wbcNew, 0.5, 30)
		}
		plateletNew := platelets + (plateletTarget-platelets)*k
		if math.Abs(plateletNew-platelets) > 1.0 {
			out[1] = clamp(plateletNew, 10, 600)
		}
	})
}

// CoagulationFluid turns a coagulopathy into bleeding, and bleeding into
// lost volume and hemoglobin.
type CoagulationFluid struct{}

func NewCoagulationFluid() *CoagulationFluid { return &CoagulationFluid{} }

func (CoagulationFluid) Name() string { return "coagulation_fluid" }

func (CoagulationFluid) InputKeys() []string {
	return []string{
		KeyPlateletCount, KeyPT, KeyPTT, KeyFibrinogen,
		KeyBleedingRate, KeyFluidVolume, KeyHemoglobin,
	}
}

func (CoagulationFluid) OutputKeys() []string {
	return []string{KeyBleedingRate, KeyFluidVolume, KeyHemoglobin}
}

func (CoagulationFluid) InitialState() map[string]float64 {
	return map[string]float64{KeyBleedingRate: 0}
}

func (c CoagulationFluid) Couple(sc *engine.Scope) error {
	k := math.Min(0.1, sc.Dt()/60.0)
	in := []port{need(KeyPlateletCount), need(KeyPT), need(KeyPTT), need(KeyFibrinogen)}
	return kernel(sc, in, c.OutputKeys(), func(in, out []float64) {
		platelets, inr, ptt, fib := in[0], in[1]/12.0, in[2], in[3]
		bleeding, volume, hgb := out[0], out[1], out[2]

		if math.Abs(platelets-250) < 10 && math.Abs(inr-1) < 0.1 &&
			math.Abs(ptt-30) < 2 && math.Abs(fib-300) < 20 && bleeding < 0.1 {
			return
		}

		risk := math.Min(2, 250/math.Max(20, clamp(platelets, 10, 600)))*0.3 +
			clamp(inr, 0.5, 10)*0.3 +
			clamp(ptt, 15, 120)/30*0.2 +
			math.Min(2, 300/math.Max(50, clamp(fib, 50, 800)))*0.2

		var effect float64
		if risk > 1 {
			effect = math.Min(5, (risk-1)*10) * k
		}
		loss := math.Min(300, bleeding*5) * k
		var hgbDrop float64
		if volume > 0 && bleeding > 0 {
			hgbDrop = math.Min(0.5, bleeding*0.05*(3000/math.Max(1000, volume))) * k
		}

		next := bleeding
		if effect > 0 {
			next = math.Min(15, next+effect)
		} else if bleeding > 0 {
			next = math.Max(0, bleeding-0.1*k)
		}

		out[0] = settle(bleeding, next, 0.05)
		out[1] = settle(volume, math.Max(500, volume-math.Min(100, loss)), 1.0)
		out[2] = settle(hgb, math.Max(3, hgb-math.Min(0.5, hgbDrop)), 0.05)
	})
}

// FluidElectrolytes dilutes or concentrates sodium and potassium as the
// circulating volume moves away from BaselineVolume.
type FluidElectrolytes struct {
	BaselineVolume float64
}

func NewFluidElectrolytes() *FluidElectrolytes {
	return &FluidElectrolytes{BaselineVolume: 2000.0}
}

func (f *FluidElectrolytes) Name() string { return "fluid_electrolytes" }

func (f *FluidElectrolytes) InputKeys() []string {
	return []string{KeyFluidVolume, KeySodium, KeyPotassium}
}

func (f *FluidElectrolytes) OutputKeys() []string { return []string{KeySodium, KeyPotassium} }

func (f *FluidElectrolytes) Couple(sc *engine.Scope) error {
	k := math.Min(0.1, sc.Dt()/60.0)
	return kernel(sc, []port{need(KeyFluidVolume)}, f.OutputKeys(), func(in, out []float64) {
		volume := in[0]
		if math.Abs(volume-f.BaselineVolume) < 50 {
			return
		}
		if volume <= 0 {
			volume = f.BaselineVolume
		}
		ratio := f.BaselineVolume / math.Max(volume, 1e-6)
		sodiumTarget := electrolyteNormals[0] * ratio
		potassiumTarget := electrolyteNormals[1] * ratio

		out[0] = settle(out[0], out[0]+(sodiumTarget-out[0])*k, 0.1)
		out[1] = settle(out[1], out[1]+(potassiumTarget-out[1])*k, 0.1)
	})
}
