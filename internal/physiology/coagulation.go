package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Coagulation balances platelet and fibrinogen turnover and lets clotting
// times recover toward normal. Production rates default to the values that
// hold a healthy patient at equilibrium.
type Coagulation struct {
	PlateletProduction   float64
	PlateletDecay        float64
	PTRecovery           float64
	PTTRecovery          float64
	FibrinogenProduction float64
	FibrinogenDecay      float64
	DDimerClearance      float64
}

func NewCoagulation() *Coagulation {
	return &Coagulation{
		PlateletProduction:   12.5,
		PlateletDecay:        0.05,
		PTRecovery:           0.01,
		PTTRecovery:          0.02,
		FibrinogenProduction: 3.0,
		FibrinogenDecay:      0.01,
		DDimerClearance:      0.1,
	}
}

func (c *Coagulation) Name() string { return "coagulation" }

func (c *Coagulation) OwnedKeys() []string {
	return []string{KeyPlateletCount, KeyPT, KeyPTT, KeyFibrinogen, KeyDDimer}
}

func (c *Coagulation) CoupledKeys() []string { return []string{KeyPlateletCount} }

func (c *Coagulation) InitialState() map[string]float64 {
	return map[string]float64{
		KeyPlateletCount: 250.0,
		KeyPT:            12.0,
		KeyPTT:           30.0,
		KeyFibrinogen:    300.0,
		KeyDDimer:        0.5,
	}
}

func (c *Coagulation) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, nil, c.OwnedKeys(), func(_, out []float64) {
		platelets, pt, ptt, fib, dd := out[0], out[1], out[2], out[3], out[4]

		out[0] = math.Max(0, platelets+(c.PlateletProduction-c.PlateletDecay*platelets)*dt)
		out[1] = math.Max(0, pt+c.PTRecovery*(12.0-pt)*dt)
		out[2] = math.Max(0, ptt+c.PTTRecovery*(30.0-ptt)*dt)
		out[3] = math.Max(0, fib+(c.FibrinogenProduction-c.FibrinogenDecay*fib)*dt)
		out[4] = math.Max(0, dd-c.DDimerClearance*dd*dt)
	})
}
