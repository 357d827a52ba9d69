package interventions

import (
	"fmt"

	"github.com/san-kum/physim/internal/physiology"
)

// Medication adds fixed per-key effects scaled by the dose multiplier.
type Medication struct {
	Label   string
	Effects map[string]float64
	Desc    string
}

func (m *Medication) Name() string { return m.Label }

func (m *Medication) Description() string {
	if m.Desc != "" {
		return m.Desc
	}
	return fmt.Sprintf("Administer %s to the patient", m.Label)
}

func (m *Medication) Deltas(lane map[string]float64, dose float64) (map[string]float64, error) {
	if err := checkDose(dose); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(m.Effects))
	for k, d := range m.Effects {
		if err := require(lane, k); err != nil {
			return nil, fmt.Errorf("%s: %w", m.Label, err)
		}
		out[k] = d * dose
	}
	return out, nil
}

func Medications() map[string]*Medication {
	return map[string]*Medication{
		"epinephrine": {
			Label: "Epinephrine",
			Effects: map[string]float64{
				physiology.KeyEpinephrine:   5,
				physiology.KeyHeartRate:     30,
				physiology.KeyBloodPressure: 20,
			},
			Desc: "Administer epinephrine to increase heart rate and blood pressure",
		},
		"norepinephrine": {
			Label:   "Norepinephrine",
			Effects: map[string]float64{physiology.KeyBloodPressure: 15},
			Desc:    "Administer norepinephrine to increase blood pressure",
		},
		"propofol": {
			Label: "Propofol",
			Effects: map[string]float64{
				physiology.KeyBloodPressure: -10,
				physiology.KeyHeartRate:     -5,
			},
			Desc: "Administer propofol for sedation and anesthesia",
		},
		"morphine": {
			Label:   "Morphine",
			Effects: map[string]float64{physiology.KeyBloodPressure: -5},
			Desc:    "Administer morphine for pain management",
		},
		"antibiotics": {
			Label: "Antibiotics",
			Effects: map[string]float64{
				physiology.KeyInfectionLevel: -0.5,
				physiology.KeyWBC:            -0.2,
			},
			Desc: "Administer antibiotics to fight infection",
		},
		"acetaminophen": {
			Label:   "Acetaminophen",
			Effects: map[string]float64{physiology.KeyAntipyreticLevel: 10},
			Desc:    "Administer acetaminophen to reduce fever",
		},
	}
}
