package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// CRP follows inflammation, which itself lags the infection level.
type CRP struct {
	BaselineProduction      float64
	InflammationSensitivity float64
	ClearanceRate           float64
	InflammationLag         float64
}

func NewCRP() *CRP {
	return &CRP{
		BaselineProduction:      0.01,
		InflammationSensitivity: 0.2,
		ClearanceRate:           0.05,
		InflammationLag:         0.1,
	}
}

func (c *CRP) Name() string        { return "crp" }
func (c *CRP) OwnedKeys() []string { return []string{KeyCRP, KeyInflammation} }

func (c *CRP) InitialState() map[string]float64 {
	return map[string]float64{KeyCRP: 1.0, KeyInflammation: 0.0}
}

func (c *CRP) Solve(sc *engine.Scope) error {
	dt := sc.Dt()
	return kernel(sc, []port{maybe(KeyInfectionLevel, 0)}, c.OwnedKeys(), func(in, out []float64) {
		infection := in[0]
		crp, inflammation := out[0], out[1]

		inflammation = clamp(inflammation+(infection-inflammation)*c.InflammationLag*dt, 0, 100)
		production := c.BaselineProduction + c.InflammationSensitivity*inflammation

		out[0] = math.Max(0, crp+(production-c.ClearanceRate*crp)*dt)
		out[1] = inflammation
	})
}
