package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Sedation metabolises three sedatives and moves consciousness between a
// natural wake tendency and their combined effect. The score is a banded
// reading of consciousness, 0 awake to 5 unarousable.
type Sedation struct {
	PropofolPotency  float64
	MidazolamPotency float64
	DexmedPotency    float64
	MetabolismRate   float64
}

func NewSedation() *Sedation {
	return &Sedation{
		PropofolPotency:  0.2,
		MidazolamPotency: 0.1,
		DexmedPotency:    0.3,
		MetabolismRate:   0.1,
	}
}

func (s *Sedation) Name() string { return "sedation" }

func (s *Sedation) OwnedKeys() []string {
	return []string{KeySedationScore, KeyConsciousness, KeyPropofol, KeyMidazolam, KeyDexmedetomidine}
}

func (s *Sedation) InitialState() map[string]float64 {
	return map[string]float64{
		KeySedationScore:   0,
		KeyConsciousness:   100.0,
		KeyPropofol:        0,
		KeyMidazolam:       0,
		KeyDexmedetomidine: 0,
	}
}

func (s *Sedation) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, nil, s.OwnedKeys(), func(_, out []float64) {
		consciousness := out[1]
		propofol := math.Max(0, out[2]-s.MetabolismRate*out[2]*dt)
		midazolam := math.Max(0, out[3]-s.MetabolismRate*out[3]*dt)
		dexmed := math.Max(0, out[4]-s.MetabolismRate*out[4]*dt)

		effect := s.PropofolPotency*propofol + s.MidazolamPotency*midazolam + s.DexmedPotency*dexmed
		wake := math.Max(0, (100.0-consciousness)*0.1*dt)
		consciousness = clamp(consciousness+wake-effect*dt, 0, 100)

		out[0] = sedationScore(consciousness)
		out[1], out[2], out[3], out[4] = consciousness, propofol, midazolam, dexmed
	})
}

func sedationScore(consciousness float64) float64 {
	switch {
	case consciousness >= 90:
		return 0
	case consciousness >= 70:
		return 1
	case consciousness >= 50:
		return 2
	case consciousness >= 30:
		return 3
	case consciousness >= 10:
		return 4
	}
	return 5
}
