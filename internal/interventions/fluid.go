package interventions

import (
	"fmt"

	"github.com/san-kum/physim/internal/physiology"
)

// Fluid is an IV bolus. Electrolytes present in both the fluid and the state
// are mixed by volume-weighted concentration.
type Fluid struct {
	Label    string
	VolumeML float64
	Content  map[string]float64
}

func (f *Fluid) Name() string { return f.Label + " Administration" }

func (f *Fluid) Description() string {
	return fmt.Sprintf("Administer %.0f mL of %s IV fluid", f.VolumeML, f.Label)
}

func (f *Fluid) Deltas(lane map[string]float64, dose float64) (map[string]float64, error) {
	if err := checkDose(dose); err != nil {
		return nil, err
	}
	if err := require(lane, physiology.KeyFluidVolume); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Label, err)
	}

	added := f.VolumeML * dose
	current := lane[physiology.KeyFluidVolume]
	out := map[string]float64{physiology.KeyFluidVolume: added}

	if current+added <= 0 {
		return out, nil
	}
	for k, conc := range f.Content {
		cur, ok := lane[k]
		if !ok {
			continue
		}
		mixed := (cur*current + conc*added) / (current + added)
		out[k] = mixed - cur
	}
	return out, nil
}

func Fluids() map[string]*Fluid {
	return map[string]*Fluid{
		"normal_saline": {
			Label:    "Normal Saline",
			VolumeML: 500,
			Content: map[string]float64{
				physiology.KeySodium:   154,
				physiology.KeyChloride: 154,
			},
		},
		"lactated_ringers": {
			Label:    "Lactated Ringer's",
			VolumeML: 500,
			Content: map[string]float64{
				physiology.KeySodium:    130,
				physiology.KeyPotassium: 4,
				physiology.KeyCalcium:   3,
				physiology.KeyChloride:  109,
				physiology.KeyLactate:   28,
			},
		},
		"d5w": {
			Label:    "D5W",
			VolumeML: 500,
			Content:  map[string]float64{},
		},
	}
}
