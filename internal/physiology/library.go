package physiology

import "github.com/san-kum/physim/internal/engine"

// Solvers returns one instance of every solver with default parameters.
func Solvers() []engine.Solver {
	return []engine.Solver{
		NewCardio(),
		NewMeds(),
		NewFluids(),
		NewFever(),
		NewLactate(),
		NewCRP(),
		NewElectrolytes(),
		NewCoagulation(),
		NewHemogram(),
		NewTSS(),
		NewDrains(),
		NewRhythm(),
		NewSedation(),
		NewUrine(),
		NewMetabolytes(),
	}
}

// Couplers returns one instance of every coupler. Together with Solvers
// they form a valid engine.
func Couplers() []engine.Coupler {
	return []engine.Coupler{
		NewMedsVitals(),
		NewFeverMetabolic(),
		NewInfectionHemogram(),
		NewCoagulationFluid(),
		NewFluidElectrolytes(),
	}
}
