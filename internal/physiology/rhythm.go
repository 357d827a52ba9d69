package physiology

import (
	"math"
	"math/rand/v2"

	"github.com/san-kum/physim/internal/engine"
)

// Rhythm classifications stored in rhythm_type.
const (
	RhythmSinus = iota
	RhythmAFib
	RhythmVFib
	RhythmVTach
	RhythmArrest
)

// Rhythm switches between cardiac rhythms at random, with a hazard set by
// heart rate, potassium and oxygen debt, and tracks the conduction intervals
// of the current rhythm. Each lane draws from its own source seeded from
// Seed, so a run is reproducible whichever backend executes it.
type Rhythm struct {
	ArrhythmiaThreshold    float64
	ConductionRecoveryRate float64
	Seed                   int64

	rngs []*rand.Rand
}

func NewRhythm() *Rhythm {
	return &Rhythm{ArrhythmiaThreshold: 0.7, ConductionRecoveryRate: 0.05}
}

func (r *Rhythm) Name() string { return "rhythm" }

func (r *Rhythm) OwnedKeys() []string {
	return []string{KeyRhythmType, KeyPRInterval, KeyQRSDuration, KeyQTInterval, KeyHeartBlock, KeyRRVariability}
}

func (r *Rhythm) InitialState() map[string]float64 {
	return map[string]float64{
		KeyRhythmType:    RhythmSinus,
		KeyPRInterval:    160.0,
		KeyQRSDuration:   80.0,
		KeyQTInterval:    400.0,
		KeyHeartBlock:    0,
		KeyRRVariability: 0,
	}
}

// Reseed restarts every lane's random source from seed.
func (r *Rhythm) Reseed(seed int64) {
	r.Seed = seed
	r.rngs = nil
}

func (r *Rhythm) lanes(n int) {
	for lane := len(r.rngs); lane < n; lane++ {
		r.rngs = append(r.rngs, rand.New(rand.NewPCG(uint64(r.Seed), uint64(lane))))
	}
}

func (r *Rhythm) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	rec := r.ConductionRecoveryRate
	r.lanes(sc.Lanes())

	in := []port{maybe(KeyHeartRate, 80), maybe(KeyPotassium, 4), maybe(KeyOxygenDebt, 0)}
	return laneKernel(sc, in, r.OwnedKeys(), func(lane int, in, out []float64) {
		rng := r.rngs[lane]
		hr, k, debt := in[0], in[1], in[2]

		var risk float64
		if hr > 150 || hr < 40 {
			risk += 0.3
		}
		if k > 6.0 || k < 2.5 {
			risk += 0.4
		}
		risk += math.Min(0.5, debt/100.0)

		rhythm := int(out[0])
		if rng.Float64() < risk*dt {
			if risk > r.ArrhythmiaThreshold {
				switch {
				case k > 7.0:
					rhythm = RhythmArrest
				case debt > 50:
					rhythm = RhythmVFib
				case hr > 180:
					rhythm = RhythmVTach
				default:
					rhythm = RhythmAFib
				}
			}
		} else if rhythm != RhythmSinus && rng.Float64() < rec*dt {
			rhythm = RhythmSinus
		}

		pr, qrs, qt, block, rr := out[1], out[2], out[3], out[4], out[5]
		switch rhythm {
		case RhythmSinus:
			pr += (160.0 - pr) * rec * dt
			qrs += (80.0 - qrs) * rec * dt
			qtTarget := 400.0 - 0.5*(hr-60)
			if k < 3.5 {
				qtTarget += (3.5 - k) * 50
			}
			qt += (qtTarget - qt) * 0.1 * dt
			rr = math.Max(0, rr-0.2*dt)
		case RhythmAFib:
			rr = math.Min(1, rr+0.3*dt)
			pr = 0
		case RhythmVFib:
			rr, pr, qrs = 1, 0, 300
		case RhythmVTach:
			rr, pr = 0.1, 0
			qrs = math.Min(200, qrs+20*dt)
		case RhythmArrest:
			rr, pr, qrs, qt = 0, 0, 0, 0
		}

		if k > 6.0 {
			if rng.Float64() < 0.1*dt {
				block = math.Min(3, block+1)
			}
		} else if block > 0 && rng.Float64() < rec*dt {
			block = math.Max(0, block-1)
		}

		out[0], out[1], out[2], out[3], out[4], out[5] = float64(rhythm), pr, qrs, qt, block, rr
	})
}
