package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// Drains reports surgical drain output per step and the running total.
// Base rates are mL per hour with dt in minutes.
type Drains struct {
	ChestTubeRate float64
	JPDrainRate   float64
	NGTubeRate    float64
}

func NewDrains() *Drains {
	return &Drains{ChestTubeRate: 10.0, JPDrainRate: 5.0, NGTubeRate: 20.0}
}

func (d *Drains) Name() string { return "drains" }

func (d *Drains) OwnedKeys() []string {
	return []string{KeyChestTubeOutput, KeyJPDrainOutput, KeyNGTubeOutput, KeyTotalDrainOutput}
}

func (d *Drains) InitialState() map[string]float64 {
	return map[string]float64{
		KeyChestTubeOutput:  0,
		KeyJPDrainOutput:    0,
		KeyNGTubeOutput:     0,
		KeyTotalDrainOutput: 0,
	}
}

func (d *Drains) Solve(sc *engine.Scope) error {
	hours := sc.Dt() / 60.0
	return kernel(sc, nil, d.OwnedKeys(), func(_, out []float64) {
		total := out[3]
		chest := d.ChestTubeRate * hours
		jp := math.Max(0, d.JPDrainRate*(1.0-total/5000.0)) * hours
		ng := d.NGTubeRate * hours
		out[0], out[1], out[2], out[3] = chest, jp, ng, total+chest+jp+ng
	})
}
