package interventions

import (
	"github.com/san-kum/physim/internal/physiology"
)

// BloodTest draws a small sample and reports the lab panel.
type BloodTest struct {
	DrawML float64
}

func NewBloodTest() *BloodTest { return &BloodTest{DrawML: 15} }

func (b *BloodTest) Name() string { return "Blood Test" }

func (b *BloodTest) Description() string {
	return "Perform a blood test to measure hemogram, coagulation, and other blood values"
}

// Deltas ignores dose: one test draws one sample.
func (b *BloodTest) Deltas(lane map[string]float64, _ float64) (map[string]float64, error) {
	if err := require(lane, physiology.KeyFluidVolume); err != nil {
		return nil, err
	}
	return map[string]float64{physiology.KeyFluidVolume: -b.DrawML}, nil
}

var panel = []string{
	physiology.KeyHemoglobin,
	physiology.KeyPlateletCount,
	physiology.KeyWBC,
	physiology.KeyPT,
	physiology.KeyPTT,
	physiology.KeyCRP,
	physiology.KeySodium,
	physiology.KeyPotassium,
	physiology.KeyChloride,
	physiology.KeyLactate,
}

// Observe returns the panel values present in lane. INR is derived from PT.
func (b *BloodTest) Observe(lane map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(panel)+1)
	for _, k := range panel {
		if v, ok := lane[k]; ok {
			out[k] = v
		}
	}
	if pt, ok := out[physiology.KeyPT]; ok {
		out["inr"] = pt / 12.0
	}
	return out
}
