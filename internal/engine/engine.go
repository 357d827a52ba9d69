package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/physim/internal/compute"
	"github.com/san-kum/physim/internal/state"
)

// ErrLaneOutOfRange indicates an intervention targeted a lane that does not
// exist.
var ErrLaneOutOfRange = errors.New("engine: lane out of range")

// Engine owns the shared state and drives solvers and couplers through
// discrete steps. It is safe to inspect (Snapshot, Status, Clock) from other
// goroutines while a step runs; Step and Apply are serialized by the status
// machine and reject overlapping calls.
type Engine struct {
	sched   *schedule
	backend compute.Backend
	log     zerolog.Logger
	tracer  trace.Tracer
	obs     []Observer
	lanes   int

	status atomic.Int32

	mu      sync.RWMutex
	store   *state.Store
	clock   Clock
	haltErr error
}

// New validates the module declarations and builds an engine ready to step.
// Every failure is a *ConfigError and no engine is returned.
func New(solvers []Solver, couplers []Coupler, dt float64, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
		return nil, &ConfigError{Kind: ErrInvalidDt, Detail: fmt.Sprintf("got %v", dt)}
	}
	if o.batch < 0 {
		return nil, &ConfigError{Kind: ErrInvalidBatch, Detail: fmt.Sprintf("got %d", o.batch)}
	}

	sched, err := buildSchedule(solvers, couplers)
	if err != nil {
		return nil, err
	}

	store, err := initialStore(sched, solvers, couplers, o)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		sched:   sched,
		backend: o.backend,
		log:     o.logger.With().Str("component", "engine").Logger(),
		tracer:  o.tracer,
		obs:     o.observers,
		lanes:   o.batch,
		store:   store,
		clock:   Clock{dt: dt},
	}

	e.log.Info().
		Int("solvers", len(sched.solvers)).
		Int("couplers", len(sched.couplers)).
		Int("levels", len(sched.levels)).
		Int("keys", len(sched.keys)).
		Int("initialized", store.Len()).
		Int("lanes", o.batch).
		Float64("dt", dt).
		Str("backend", o.backend.Name()).
		Msg("engine ready")

	return e, nil
}

// initialStore seeds values in increasing priority: coupler defaults, solver
// defaults, then explicit options.
func initialStore(s *schedule, solvers []Solver, couplers []Coupler, o options) (*state.Store, error) {
	store := state.New(o.batch)

	seed := func(module string, defaults map[string]float64) error {
		writable := s.writable(module)
		keys := make([]string, 0, len(defaults))
		for k := range defaults {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !writable.Has(k) {
				return &ConfigError{Kind: ErrInvalidInitial, Module: module, Key: k, Detail: "default for a key the module does not write"}
			}
			if err := store.Put(k, state.Broadcast(defaults[k], o.batch)); err != nil {
				return &ConfigError{Kind: ErrInvalidInitial, Module: module, Key: k, Detail: err.Error()}
			}
		}
		return nil
	}

	for _, cp := range couplers {
		if in, ok := cp.(Initializer); ok {
			if err := seed(cp.Name(), in.InitialState()); err != nil {
				return nil, err
			}
		}
	}
	for _, sv := range solvers {
		if in, ok := sv.(Initializer); ok {
			if err := seed(sv.Name(), in.InitialState()); err != nil {
				return nil, err
			}
		}
	}

	keys := make([]string, 0, len(o.initial))
	for k := range o.initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !s.keys.Has(k) {
			return nil, &ConfigError{Kind: ErrUnknownKey, Key: k, Detail: "initial value for an undeclared key"}
		}
		iv := o.initial[k]
		v := state.Broadcast(iv.scalar, o.batch)
		if iv.lanes != nil {
			if o.batch == 0 {
				return nil, &ConfigError{Kind: ErrInvalidInitial, Key: k, Detail: "per-lane values in scalar mode"}
			}
			v = state.Batch(iv.lanes)
		}
		if err := store.Put(k, v); err != nil {
			return nil, &ConfigError{Kind: ErrInvalidInitial, Key: k, Detail: err.Error()}
		}
	}
	return store, nil
}

// Step advances the simulation by one dt. It either commits the new state
// and returns its snapshot, or halts the engine and leaves the previous
// committed state in place. Cancellation is checked only before the step
// starts.
func (e *Engine) Step(ctx context.Context) (state.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return state.Snapshot{}, err
	}
	if err := e.acquire(); err != nil {
		return state.Snapshot{}, err
	}

	start := time.Now()

	e.mu.RLock()
	base, clock := e.store, e.clock
	e.mu.RUnlock()

	ctx, span := e.tracer.Start(ctx, "engine.Step", trace.WithAttributes(
		attribute.Int("step", clock.step+1),
		attribute.Int("lanes", e.lanes),
	))
	defer span.End()

	next, err := e.advance(context.WithoutCancel(ctx), base, clock)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "step failed")
		e.halt(err)
		return state.Snapshot{}, err
	}

	clock = clock.tick()
	snap := next.Snapshot(clock.step, clock.Elapsed())

	e.mu.Lock()
	e.store = next
	e.clock = clock
	e.mu.Unlock()
	e.status.Store(int32(StatusIdle))

	wall := time.Since(start)
	e.log.Debug().
		Int("step", clock.step).
		Float64("t", clock.Elapsed()).
		Dur("wall", wall).
		Msg("step committed")

	for _, o := range e.obs {
		o.OnStep(snap, wall)
	}
	return snap, nil
}

// Run returns a lazy sequence that advances up to n steps, yielding the
// snapshot after each. It stops after the first error. Ranging over it again
// continues from the current state.
func (e *Engine) Run(ctx context.Context, n int) iter.Seq2[state.Snapshot, error] {
	return func(yield func(state.Snapshot, error) bool) {
		for i := 0; i < n; i++ {
			snap, err := e.Step(ctx)
			if !yield(snap, err) || err != nil {
				return
			}
		}
	}
}

// Collect runs n steps and returns every committed snapshot. On failure
// it returns the snapshots committed before the error.
func (e *Engine) Collect(ctx context.Context, n int) ([]state.Snapshot, error) {
	out := make([]state.Snapshot, 0, n)
	for snap, err := range e.Run(ctx, n) {
		if err != nil {
			return out, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Apply adds deltas to existing keys between steps, on the given lanes or on
// every lane when none are given. It is all or nothing and never halts.
func (e *Engine) Apply(deltas map[string]float64, lanes ...int) error {
	if len(lanes) == 0 {
		lanes = make([]int, max(e.lanes, 1))
		for i := range lanes {
			lanes[i] = i
		}
	}
	perLane := make(map[int]map[string]float64, len(lanes))
	for _, l := range lanes {
		perLane[l] = deltas
	}
	return e.ApplyLanes(perLane)
}

// ApplyLanes adds a separate set of deltas to each listed lane. Either every
// lane is updated or none is.
func (e *Engine) ApplyLanes(deltas map[int]map[string]float64) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.status.Store(int32(StatusIdle))

	laneCount := max(e.lanes, 1)
	lanes := make([]int, 0, len(deltas))
	touched := state.NewKeySet()
	for l, d := range deltas {
		if l < 0 || l >= laneCount {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrLaneOutOfRange, l, laneCount)
		}
		lanes = append(lanes, l)
		for k := range d {
			touched.Add(k)
		}
	}
	sort.Ints(lanes)
	keys := touched.Sorted()

	e.mu.RLock()
	next := e.store.Clone()
	e.mu.RUnlock()

	for _, k := range keys {
		cur, err := next.Get(k)
		if err != nil {
			return err
		}
		xs := cur.Floats()
		for _, l := range lanes {
			if d, ok := deltas[l][k]; ok {
				xs[l] += d
			}
		}
		v := state.Batch(xs)
		if !cur.IsBatched() {
			v = state.Scalar(xs[0])
		}
		if err := next.Put(k, v); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.store = next
	e.mu.Unlock()

	e.log.Debug().Strs("keys", keys).Ints("lanes", lanes).Msg("intervention applied")
	return nil
}

// Snapshot returns the last committed state.
func (e *Engine) Snapshot() state.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Snapshot(e.clock.step, e.clock.Elapsed())
}

func (e *Engine) Status() Status { return Status(e.status.Load()) }

func (e *Engine) Clock() Clock {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clock
}

func (e *Engine) Plan() Plan { return e.sched.plan() }

// Keys lists every key a module may write.
func (e *Engine) Keys() []string { return e.sched.keys.Sorted() }

func (e *Engine) Lanes() int                { return e.lanes }
func (e *Engine) Backend() compute.Backend { return e.backend }

// Err returns the failure that halted the engine, or nil.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.haltErr
}

func (e *Engine) Close() {
	e.backend.Cleanup()
}

func (e *Engine) acquire() error {
	if e.status.CompareAndSwap(int32(StatusIdle), int32(StatusStepping)) {
		return nil
	}
	if e.Status() == StatusHalted {
		return fmt.Errorf("%w: %v", ErrHalted, e.Err())
	}
	return ErrReentrantStep
}

func (e *Engine) halt(err error) {
	e.mu.Lock()
	e.haltErr = err
	e.mu.Unlock()
	e.status.Store(int32(StatusHalted))

	e.log.Error().Err(err).Msg("simulation halted")
	for _, o := range e.obs {
		o.OnHalt(err)
	}
}

// advance computes the next state from base without touching it.
func (e *Engine) advance(ctx context.Context, base *state.Store, clock Clock) (*state.Store, error) {
	work := base.Clone()

	views := make([]*state.View, len(e.sched.solvers))
	names := make([]string, len(e.sched.solvers))
	tasks := make([]compute.Task, len(e.sched.solvers))
	for i, se := range e.sched.solvers {
		v := base.View(se.solver.Name(), nil, se.owned)
		sc := &Scope{ctx: ctx, view: v, backend: e.backend, clock: clock}
		views[i], names[i] = v, se.solver.Name()
		tasks[i] = e.task(PhaseSolve, names[i], v, clock, func() error { return se.solver.Solve(sc) })
	}
	if err := e.phase(ctx, PhaseSolve, work, views, names, tasks, clock); err != nil {
		return nil, err
	}

	for _, level := range e.sched.levels {
		views = make([]*state.View, len(level))
		names = make([]string, len(level))
		tasks = make([]compute.Task, len(level))
		for i, idx := range level {
			ce := e.sched.couplers[idx]
			v := work.View(ce.coupler.Name(), ce.inputs, ce.outputs)
			sc := &Scope{ctx: ctx, view: v, backend: e.backend, clock: clock}
			views[i], names[i] = v, ce.coupler.Name()
			tasks[i] = e.task(PhaseCouple, names[i], v, clock, func() error { return ce.coupler.Couple(sc) })
		}
		if err := e.phase(ctx, PhaseCouple, work, views, names, tasks, clock); err != nil {
			return nil, err
		}
	}
	return work, nil
}

func (e *Engine) task(p Phase, module string, v *state.View, clock Clock, call func() error) compute.Task {
	return func(context.Context) error {
		err := call()
		if err == nil {
			err = v.Err()
		}
		if err != nil {
			return stepError(clock, p, module, err)
		}
		return nil
	}
}

// phase dispatches tasks, waits for all of them, then merges their writes
// into work in registration order.
func (e *Engine) phase(ctx context.Context, p Phase, work *state.Store, views []*state.View, names []string, tasks []compute.Task, clock Clock) error {
	if len(tasks) == 0 {
		return nil
	}
	ctx, span := e.tracer.Start(ctx, "engine.phase."+p.String(), trace.WithAttributes(
		attribute.Int("modules", len(tasks)),
	))
	defer span.End()

	if err := e.backend.Dispatch(ctx, tasks); err != nil {
		var se *StepError
		if !errors.As(err, &se) {
			module := ""
			var pe *compute.PanicError
			if errors.As(err, &pe) && pe.Task < len(names) {
				module = names[pe.Task]
			}
			err = stepError(clock, p, module, err)
		}
		span.RecordError(err)
		return err
	}

	for i, v := range views {
		if err := work.Commit(v); err != nil {
			return stepError(clock, p, names[i], err)
		}
	}
	return nil
}

func stepError(clock Clock, p Phase, module string, err error) *StepError {
	return &StepError{
		Step:   clock.step + 1,
		Time:   clock.Elapsed(),
		Phase:  p,
		Module: module,
		Err:    err,
	}
}
