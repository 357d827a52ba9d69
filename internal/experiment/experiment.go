package experiment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"

	"github.com/rs/zerolog"

	"github.com/san-kum/physim/internal/compute"
	"github.com/san-kum/physim/internal/config"
	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/interventions"
	"github.com/san-kum/physim/internal/metrics"
	"github.com/san-kum/physim/internal/state"
)

// LabReport is the panel read by a blood test.
type LabReport struct {
	Step   int
	Lane   int
	Values map[string]float64
}

type Result struct {
	Snapshots  []state.Snapshot
	Metrics    map[string]float64
	Labs       []LabReport
	StepsTaken int
	Err        error
}

// seeder is implemented by modules that draw random numbers.
type seeder interface {
	Reseed(seed int64)
}

// Experiment runs one configured simulation.
type Experiment struct {
	cfg     *config.Config
	reg     *Registry
	eng     *engine.Engine
	metrics []metrics.Metric
	log     zerolog.Logger
}

// New validates cfg and builds the engine with the registry's modules. Extra
// engine options are applied after the ones derived from cfg.
func New(cfg *config.Config, reg *Registry, log zerolog.Logger, opts ...engine.Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	solvers, err := reg.Solvers(cfg.Solvers)
	if err != nil {
		return nil, err
	}
	couplers, err := reg.Couplers(cfg.Couplers)
	if err != nil {
		return nil, err
	}
	for _, iv := range cfg.Interventions {
		if _, err := reg.Action(iv.Action); err != nil {
			return nil, err
		}
	}

	for _, s := range solvers {
		if sd, ok := s.(seeder); ok {
			sd.Reseed(cfg.Seed)
		}
	}

	backend, err := selectBackend(cfg.Backend, cfg.Workers)
	if err != nil {
		return nil, err
	}

	base := []engine.Option{
		engine.WithBatch(cfg.Batch),
		engine.WithBackend(backend),
		engine.WithLogger(log),
	}
	if len(cfg.Initial) > 0 {
		base = append(base, engine.WithInitialState(cfg.Initial))
	}
	eng, err := engine.New(solvers, couplers, cfg.Dt, append(base, opts...)...)
	if err != nil {
		backend.Cleanup()
		return nil, err
	}

	e := &Experiment{cfg: cfg, reg: reg, eng: eng, log: log}
	if err := e.jitter(); err != nil {
		eng.Close()
		return nil, err
	}
	return e, nil
}

func selectBackend(name string, workers int) (compute.Backend, error) {
	if name == "" || name == config.DefaultBackend {
		return compute.AutoSelectBackend(), nil
	}
	return compute.ByName(name, workers)
}

func (e *Experiment) AddMetric(m metrics.Metric) { e.metrics = append(e.metrics, m) }

func (e *Experiment) Engine() *engine.Engine { return e.eng }

func (e *Experiment) Close() { e.eng.Close() }

// jitter spreads each configured key across lanes by up to ±fraction of its
// initial value, deterministically from the seed.
func (e *Experiment) jitter() error {
	if len(e.cfg.Jitter) == 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(uint64(e.cfg.Seed), uint64(e.cfg.Seed)>>1|1))
	snap := e.eng.Snapshot()

	keys := make([]string, 0, len(e.cfg.Jitter))
	for k := range e.cfg.Jitter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok := snap.Get(k)
		if !ok {
			return fmt.Errorf("experiment: jitter %q: %w", k, state.ErrMissingKey)
		}
		frac := e.cfg.Jitter[k]
		for lane := range snap.LaneCount() {
			d := v.At(lane) * frac * (2*rng.Float64() - 1)
			if err := e.eng.Apply(map[string]float64{k: d}, lane); err != nil {
				return fmt.Errorf("experiment: jitter %q: %w", k, err)
			}
		}
	}
	return nil
}

// Run advances the configured number of steps. Interventions scheduled at
// step k are applied after k committed steps. A failed run returns the
// partial result along with the error.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		Snapshots: make([]state.Snapshot, 0, e.cfg.Steps),
		Metrics:   make(map[string]float64),
	}

	schedule := slices.Clone(e.cfg.Interventions)
	sort.SliceStable(schedule, func(i, j int) bool { return schedule[i].Step < schedule[j].Step })

	for _, m := range e.metrics {
		m.Reset()
	}

	next := 0
	for step := 0; step < e.cfg.Steps; step++ {
		for next < len(schedule) && schedule[next].Step == step {
			labs, err := e.Intervene(schedule[next])
			res.Labs = append(res.Labs, labs...)
			if err != nil {
				return e.finish(res, err)
			}
			next++
		}

		snap, err := e.eng.Step(ctx)
		if err != nil {
			return e.finish(res, err)
		}
		res.Snapshots = append(res.Snapshots, snap)
		res.StepsTaken++
		for _, m := range e.metrics {
			m.Observe(snap)
		}
	}
	return e.finish(res, nil)
}

func (e *Experiment) finish(res *Result, err error) (*Result, error) {
	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Err = err
	if err != nil {
		e.log.Warn().Err(err).Int("steps", res.StepsTaken).Str("run", e.cfg.Name).Msg("run stopped early")
	}
	return res, err
}

// Intervene applies one intervention to the current state. Blood tests
// return one lab report per targeted lane.
func (e *Experiment) Intervene(iv config.Intervention) ([]LabReport, error) {
	action, err := e.reg.Action(iv.Action)
	if err != nil {
		return nil, err
	}
	snap := e.eng.Snapshot()

	lanes := iv.Lanes
	if len(lanes) == 0 {
		lanes = make([]int, snap.LaneCount())
		for i := range lanes {
			lanes[i] = i
		}
	}

	var labs []LabReport
	perLane := make(map[int]map[string]float64, len(lanes))
	for _, lane := range lanes {
		if lane < 0 || lane >= snap.LaneCount() {
			return nil, fmt.Errorf("experiment: %s: %w: %d", iv.Action, engine.ErrLaneOutOfRange, lane)
		}
		values := snap.Lane(lane)
		deltas, err := action.Deltas(values, iv.Amount())
		if err != nil {
			return nil, fmt.Errorf("experiment: %s at step %d lane %d: %w", iv.Action, snap.Step, lane, err)
		}
		perLane[lane] = deltas
		if bt, ok := action.(*interventions.BloodTest); ok {
			labs = append(labs, LabReport{Step: snap.Step, Lane: lane, Values: bt.Observe(values)})
		}
	}
	if err := e.eng.ApplyLanes(perLane); err != nil {
		return nil, fmt.Errorf("experiment: %s at step %d: %w", iv.Action, snap.Step, err)
	}
	e.log.Info().Str("action", action.Name()).Int("step", snap.Step).Ints("lanes", lanes).Float64("dose", iv.Amount()).Msg("intervention")
	return labs, nil
}

// Config returns the configuration the experiment was built from.
func (e *Experiment) Config() *config.Config { return e.cfg }
