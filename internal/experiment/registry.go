package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/interventions"
	"github.com/san-kum/physim/internal/metrics"
	"github.com/san-kum/physim/internal/physiology"
)

var ErrUnknownModule = errors.New("experiment: unknown module")

// Registry maps module names to factories so every run gets fresh instances.
type Registry struct {
	solvers      map[string]func() engine.Solver
	couplers     map[string]func() engine.Coupler
	solverOrder  []string
	couplerOrder []string
	actions      interventions.Catalog
}

func NewRegistry() *Registry {
	r := &Registry{
		solvers:  make(map[string]func() engine.Solver),
		couplers: make(map[string]func() engine.Coupler),
		actions:  interventions.DefaultCatalog(),
	}

	r.AddSolver("cardio", func() engine.Solver { return physiology.NewCardio() })
	r.AddSolver("meds", func() engine.Solver { return physiology.NewMeds() })
	r.AddSolver("fluids", func() engine.Solver { return physiology.NewFluids() })
	r.AddSolver("fever", func() engine.Solver { return physiology.NewFever() })
	r.AddSolver("lactate", func() engine.Solver { return physiology.NewLactate() })
	r.AddSolver("crp", func() engine.Solver { return physiology.NewCRP() })
	r.AddSolver("electrolytes", func() engine.Solver { return physiology.NewElectrolytes() })
	r.AddSolver("coagulation", func() engine.Solver { return physiology.NewCoagulation() })
	r.AddSolver("hemogram", func() engine.Solver { return physiology.NewHemogram() })
	r.AddSolver("tss", func() engine.Solver { return physiology.NewTSS() })
	r.AddSolver("drains", func() engine.Solver { return physiology.NewDrains() })
	r.AddSolver("rhythm", func() engine.Solver { return physiology.NewRhythm() })
	r.AddSolver("sedation", func() engine.Solver { return physiology.NewSedation() })
	r.AddSolver("urine", func() engine.Solver { return physiology.NewUrine() })
	r.AddSolver("metabolytes", func() engine.Solver { return physiology.NewMetabolytes() })

	r.AddCoupler("meds_vitals", func() engine.Coupler { return physiology.NewMedsVitals() })
	r.AddCoupler("fever_metabolic", func() engine.Coupler { return physiology.NewFeverMetabolic() })
	r.AddCoupler("infection_hemogram", func() engine.Coupler { return physiology.NewInfectionHemogram() })
	r.AddCoupler("coagulation_fluid", func() engine.Coupler { return physiology.NewCoagulationFluid() })
	r.AddCoupler("fluid_electrolytes", func() engine.Coupler { return physiology.NewFluidElectrolytes() })

	return r
}

// AddSolver registers or replaces a solver factory.
func (r *Registry) AddSolver(name string, fn func() engine.Solver) {
	if _, ok := r.solvers[name]; !ok {
		r.solverOrder = append(r.solverOrder, name)
	}
	r.solvers[name] = fn
}

func (r *Registry) AddCoupler(name string, fn func() engine.Coupler) {
	if _, ok := r.couplers[name]; !ok {
		r.couplerOrder = append(r.couplerOrder, name)
	}
	r.couplers[name] = fn
}

// Solvers instantiates the named solvers, or every registered one in
// registration order when names is empty.
func (r *Registry) Solvers(names []string) ([]engine.Solver, error) {
	if len(names) == 0 {
		names = r.solverOrder
	}
	out := make([]engine.Solver, 0, len(names))
	for _, n := range names {
		fn, ok := r.solvers[n]
		if !ok {
			return nil, fmt.Errorf("%w: solver %q", ErrUnknownModule, n)
		}
		out = append(out, fn())
	}
	return out, nil
}

func (r *Registry) Couplers(names []string) ([]engine.Coupler, error) {
	if len(names) == 0 {
		names = r.couplerOrder
	}
	out := make([]engine.Coupler, 0, len(names))
	for _, n := range names {
		fn, ok := r.couplers[n]
		if !ok {
			return nil, fmt.Errorf("%w: coupler %q", ErrUnknownModule, n)
		}
		out = append(out, fn())
	}
	return out, nil
}

// AddAction registers or replaces an intervention.
func (r *Registry) AddAction(name string, a interventions.Action) {
	r.actions[name] = a
}

func (r *Registry) Action(name string) (interventions.Action, error) {
	return r.actions.Lookup(name)
}

func (r *Registry) ListSolvers() []string  { return append([]string(nil), r.solverOrder...) }
func (r *Registry) ListCouplers() []string { return append([]string(nil), r.couplerOrder...) }
func (r *Registry) ListActions() []string  { return r.actions.Names() }

// clinicalBands are the normal ranges reported by DefaultMetrics.
var clinicalBands = map[string][2]float64{
	physiology.KeyBloodPressure: {65, 110},
	physiology.KeyHeartRate:     {50, 120},
	physiology.KeyOxySaturation: {92, 100},
	physiology.KeyTemperature:   {36, 38},
	physiology.KeyLactate:       {0.5, 2},
	physiology.KeySodium:        {135, 145},
	physiology.KeyPotassium:     {3.5, 5},
	physiology.KeyHemoglobin:    {12, 17},
}

// DefaultMetrics tracks mean, peak and nadir of each key, plus the out of
// range fraction for keys with a known clinical band.
func (r *Registry) DefaultMetrics(keys []string) []metrics.Metric {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var out []metrics.Metric
	for _, k := range sorted {
		out = append(out, metrics.NewMean(k), metrics.NewPeak(k), metrics.NewNadir(k))
		if band, ok := clinicalBands[k]; ok {
			out = append(out, metrics.NewOutOfRange(k, band[0], band[1]))
		}
	}
	return out
}
