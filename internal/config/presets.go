package config

import "sort"

// Presets are clinical scenarios expressed as initial overrides and a
// treatment protocol. dt is in seconds.
var Presets = map[string]*Config{
	"baseline": {
		Name: "baseline", Dt: 1, Steps: 600, Backend: DefaultBackend, Seed: DefaultSeed,
		Record: []string{"heart_rate", "blood_pressure", "fluid_volume", "temperature"},
	},
	"sepsis": {
		Name: "sepsis", Dt: 5, Steps: 720, Backend: DefaultBackend, Seed: DefaultSeed,
		Initial: map[string]float64{
			"infection_level": 0.6,
			"heart_rate":      105,
			"blood_pressure":  75,
			"temperature":     38.6,
			"lactate":         2.5,
			"crp":             40,
			"wbc":             14,
			"tss_severity":    0.3,
			"toxin_level":     20,
		},
		Interventions: []Intervention{
			{Step: 6, Action: "blood_test"},
			{Step: 12, Action: "antibiotics"},
			{Step: 12, Action: "lactated_ringers", Dose: 2},
			{Step: 60, Action: "norepinephrine"},
			{Step: 120, Action: "antibiotics"},
			{Step: 360, Action: "blood_test"},
		},
		Record: []string{"heart_rate", "blood_pressure", "lactate", "temperature", "wbc", "crp"},
	},
	"hemorrhage": {
		Name: "hemorrhage", Dt: 2, Steps: 900, Backend: DefaultBackend, Seed: DefaultSeed,
		Initial: map[string]float64{
			"fluid_volume":   1400,
			"blood_pressure": 70,
			"heart_rate":     120,
			"hemoglobin":     9,
			"platelet_count": 90,
			"fibrinogen":     150,
			"pt":             16,
			"ptt":            45,
		},
		Interventions: []Intervention{
			{Step: 10, Action: "normal_saline"},
			{Step: 30, Action: "normal_saline"},
			{Step: 45, Action: "norepinephrine"},
			{Step: 120, Action: "blood_test"},
		},
		Record: []string{"blood_pressure", "heart_rate", "fluid_volume", "hemoglobin", "bleeding_rate"},
	},
	"fever": {
		Name: "fever", Dt: 10, Steps: 720, Backend: DefaultBackend, Seed: DefaultSeed,
		Initial: map[string]float64{
			"temperature":     39.4,
			"infection_level": 0.3,
		},
		Interventions: []Intervention{
			{Step: 30, Action: "acetaminophen"},
			{Step: 30, Action: "antibiotics"},
			{Step: 390, Action: "acetaminophen"},
		},
		Record: []string{"temperature", "metabolic_rate", "oxy_saturation", "heart_rate"},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
