package engine_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/physim/internal/compute"
	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/state"
)

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("stepping", func() {
		It("advances heart_rate by dt every step", func() {
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60}),
			)
			Expect(err).NotTo(HaveOccurred())

			snaps, err := eng.Collect(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(snaps).To(HaveLen(5))
			Expect(snaps[4].Float("heart_rate")).To(Equal(65.0))
			Expect(eng.Clock().Step()).To(Equal(5))
			Expect(eng.Clock().Elapsed()).To(Equal(5.0))
			Expect(eng.Status()).To(Equal(engine.StatusIdle))
		})

		It("lets a coupler read the value a solver produced in the same step", func() {
			bp := &engine.CouplerFunc{
				ID:      "meds_vitals",
				Inputs:  []string{"drug_level", "blood_pressure"},
				Outputs: []string{"blood_pressure"},
				Fn: func(sc *engine.Scope) error {
					drug, err := sc.Float("drug_level")
					if err != nil {
						return err
					}
					p, err := sc.Float("blood_pressure")
					if err != nil {
						return err
					}
					return sc.SetFloat("blood_pressure", p-0.5*drug)
				},
			}
			eng, err := engine.New(
				[]engine.Solver{decay("meds", "drug_level", 0.9)},
				[]engine.Coupler{bp}, 1.0,
				engine.WithInitialState(map[string]float64{"drug_level": 10, "blood_pressure": 120}),
			)
			Expect(err).NotTo(HaveOccurred())

			snap, err := eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Float("drug_level")).To(BeNumerically("~", 9, 1e-12))
			Expect(snap.Float("blood_pressure")).To(BeNumerically("~", 115.5, 1e-12))
		})

		It("matches one large step after N small ones for time-linear solvers", func() {
			build := func(dt float64) *engine.Engine {
				eng, err := engine.New(
					[]engine.Solver{incrementer("cardio", "heart_rate")}, nil, dt,
					engine.WithInitialState(map[string]float64{"heart_rate": 60}),
				)
				Expect(err).NotTo(HaveOccurred())
				return eng
			}

			small := build(1.0)
			_, err := small.Collect(ctx, 5)
			Expect(err).NotTo(HaveOccurred())

			large := build(5.0)
			_, err = large.Step(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(small.Clock().Elapsed()).To(Equal(large.Clock().Elapsed()))
			Expect(small.Snapshot().Float("heart_rate")).To(Equal(large.Snapshot().Float("heart_rate")))
		})

		It("is deterministic across identical engines", func() {
			build := func() *engine.Engine {
				eng, err := engine.New(
					[]engine.Solver{decay("meds", "drug_level", 0.93), incrementer("cardio", "heart_rate")},
					[]engine.Coupler{passthrough("sum", []string{"drug_level", "heart_rate"}, "score")},
					0.1,
					engine.WithInitialState(map[string]float64{"drug_level": 10, "heart_rate": 70}),
				)
				Expect(err).NotTo(HaveOccurred())
				return eng
			}

			a, err := build().Collect(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			b, err := build().Collect(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			for i := range a {
				for _, k := range a[i].Keys() {
					Expect(a[i].Float(k)).To(Equal(b[i].Float(k)), "step %d key %s", i, k)
				}
			}
		})

		It("gives every solver the pre-step snapshot", func() {
			var seen float64
			reader := &engine.SolverFunc{
				ID:   "reader",
				Owns: []string{"copy"},
				Fn: func(sc *engine.Scope) error {
					v, err := sc.Float("heart_rate")
					if err != nil {
						return err
					}
					seen = v
					return sc.SetFloat("copy", v)
				},
			}
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate"), reader}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60}),
			)
			Expect(err).NotTo(HaveOccurred())

			snap, err := eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal(60.0))
			Expect(snap.Float("copy")).To(Equal(60.0))
			Expect(snap.Float("heart_rate")).To(Equal(61.0))
		})

		It("runs coupler levels in dependency order", func() {
			eng, err := engine.New(
				[]engine.Solver{incrementer("src", "a")},
				[]engine.Coupler{
					passthrough("second", []string{"b"}, "c"),
					passthrough("first", []string{"a"}, "b"),
				},
				1.0,
				engine.WithInitialState(map[string]float64{"a": 0}),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(eng.Plan().Levels).To(Equal([][]string{{"first"}, {"second"}}))

			snap, err := eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Float("b")).To(Equal(1.0))
			Expect(snap.Float("c")).To(Equal(1.0))
		})

		It("notifies observers after each commit", func() {
			rec := &recorder{}
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60}),
				engine.WithObserver(rec),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Collect(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.steps).To(Equal([]int{1, 2, 3}))
			Expect(rec.halted).To(BeEmpty())
		})

		It("does not start a step on a cancelled context", func() {
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60}),
			)
			Expect(err).NotTo(HaveOccurred())

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = eng.Step(cancelled)
			Expect(err).To(MatchError(context.Canceled))
			Expect(eng.Status()).To(Equal(engine.StatusIdle))
			Expect(eng.Clock().Step()).To(Equal(0))
		})
	})

	Describe("halting", func() {
		It("halts on an unowned write and keeps the last committed state", func() {
			calls := 0
			rogue := &engine.SolverFunc{
				ID:   "rogue",
				Owns: []string{"mine"},
				Fn: func(sc *engine.Scope) error {
					calls++
					if err := sc.SetFloat("mine", float64(calls)); err != nil {
						return err
					}
					if calls == 2 {
						return sc.SetFloat("heart_rate", 0)
					}
					return nil
				},
			}
			rec := &recorder{}
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate"), rogue}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60, "mine": 0}),
				engine.WithObserver(rec),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			before := eng.Snapshot()

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, state.ErrUnownedKey)).To(BeTrue())

			var se *engine.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Module).To(Equal("rogue"))
			Expect(se.Phase).To(Equal(engine.PhaseSolve))
			Expect(se.Step).To(Equal(2))

			var ke *state.KeyError
			Expect(errors.As(err, &ke)).To(BeTrue())
			Expect(ke.Key).To(Equal("heart_rate"))

			Expect(eng.Status()).To(Equal(engine.StatusHalted))
			after := eng.Snapshot()
			Expect(after.Step).To(Equal(1))
			Expect(after.Float("heart_rate")).To(Equal(before.Float("heart_rate")))
			Expect(after.Float("mine")).To(Equal(1.0))
			Expect(rec.halted).To(HaveLen(1))

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, engine.ErrHalted)).To(BeTrue())
			Expect(eng.Err()).To(HaveOccurred())
		})

		It("halts on a missing key read", func() {
			eng, err := engine.New([]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, state.ErrMissingKey)).To(BeTrue())
			Expect(eng.Status()).To(Equal(engine.StatusHalted))
		})

		It("halts when a module swallows its own violation", func() {
			sneaky := &engine.SolverFunc{
				ID:   "sneaky",
				Owns: []string{"x"},
				Fn: func(sc *engine.Scope) error {
					_ = sc.SetFloat("y", 1)
					return sc.SetFloat("x", 1)
				},
			}
			eng, err := engine.New([]engine.Solver{sneaky}, nil, 1.0)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, state.ErrUnownedKey)).To(BeTrue())
			Expect(eng.Snapshot().Has("x")).To(BeFalse())
		})

		It("halts on a non-finite write", func() {
			eng, err := engine.New(
				[]engine.Solver{decay("meds", "drug_level", math.Inf(1))}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"drug_level": 1}),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, state.ErrNonFinite)).To(BeTrue())
			Expect(eng.Snapshot().Float("drug_level")).To(Equal(1.0))
		})

		It("recovers a panicking coupler into a halt", func() {
			boom := &engine.CouplerFunc{
				ID:      "boom",
				Inputs:  []string{"heart_rate"},
				Outputs: []string{"z"},
				Fn:      func(*engine.Scope) error { panic("kaboom") },
			}
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate")},
				[]engine.Coupler{boom}, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60}),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			var pe *compute.PanicError
			Expect(errors.As(err, &pe)).To(BeTrue())
			var se *engine.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Module).To(Equal("boom"))
			Expect(se.Phase).To(Equal(engine.PhaseCouple))
			Expect(eng.Snapshot().Float("heart_rate")).To(Equal(60.0))
		})

		It("rejects coupler reads outside its declared inputs", func() {
			peek := &engine.CouplerFunc{
				ID:      "peek",
				Inputs:  []string{"a"},
				Outputs: []string{"out"},
				Fn: func(sc *engine.Scope) error {
					v, err := sc.Float("b")
					if err != nil {
						return err
					}
					return sc.SetFloat("out", v)
				},
			}
			eng, err := engine.New(
				[]engine.Solver{incrementer("sa", "a"), incrementer("sb", "b")},
				[]engine.Coupler{peek}, 1.0,
				engine.WithInitialState(map[string]float64{"a": 0, "b": 0}),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, state.ErrUndeclaredRead)).To(BeTrue())
		})

		It("rejects a re-entrant step without disturbing the outer one", func() {
			var eng *engine.Engine
			var inner error
			nested := &engine.SolverFunc{
				ID:   "nested",
				Owns: []string{"x"},
				Fn: func(sc *engine.Scope) error {
					_, inner = eng.Step(sc.Context())
					return sc.SetFloat("x", 1)
				},
			}
			var err error
			eng, err = engine.New([]engine.Solver{nested}, nil, 1.0)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(inner).To(MatchError(engine.ErrReentrantStep))
			Expect(eng.Clock().Step()).To(Equal(1))
			Expect(eng.Status()).To(Equal(engine.StatusIdle))
		})
	})

	Describe("Run", func() {
		It("is lazy and continues where it stopped", func() {
			eng, err := engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0,
				engine.WithInitialState(map[string]float64{"heart_rate": 60}),
			)
			Expect(err).NotTo(HaveOccurred())

			seq := eng.Run(ctx, 10)
			Expect(eng.Clock().Step()).To(Equal(0))

			for snap, err := range seq {
				Expect(err).NotTo(HaveOccurred())
				if snap.Step == 2 {
					break
				}
			}
			Expect(eng.Clock().Step()).To(Equal(2))

			var last state.Snapshot
			for snap, err := range eng.Run(ctx, 3) {
				Expect(err).NotTo(HaveOccurred())
				last = snap
			}
			Expect(last.Step).To(Equal(5))
			Expect(last.Float("heart_rate")).To(Equal(65.0))
		})

		It("stops after the first error", func() {
			eng, err := engine.New([]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0)
			Expect(err).NotTo(HaveOccurred())

			var errs int
			for _, err := range eng.Run(ctx, 5) {
				Expect(err).To(HaveOccurred())
				errs++
			}
			Expect(errs).To(Equal(1))

			snaps, err := eng.Collect(ctx, 3)
			Expect(snaps).To(BeEmpty())
			Expect(errors.Is(err, engine.ErrHalted)).To(BeTrue())
		})
	})

	Describe("batched lanes", func() {
		lanes := func(n int, f func(i int) float64) []float64 {
			out := make([]float64, n)
			for i := range out {
				out[i] = f(i)
			}
			return out
		}

		It("evolves lanes independently", func() {
			eng, err := engine.New(
				[]engine.Solver{decay("meds", "drug_level", 0.5), incrementer("cardio", "heart_rate")},
				[]engine.Coupler{passthrough("sum", []string{"drug_level", "heart_rate"}, "score")},
				1.0,
				engine.WithBatch(3),
				engine.WithInitialLanes(map[string][]float64{
					"drug_level": {2, 4, 8},
					"heart_rate": {60, 70, 80},
				}),
			)
			Expect(err).NotTo(HaveOccurred())

			snap, err := eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Lanes()).To(Equal(3))

			score, ok := snap.Get("score")
			Expect(ok).To(BeTrue())
			Expect(score.Floats()).To(Equal([]float64{62, 73, 85}))
		})

		It("gives the same result on serial and parallel backends", func() {
			const n = 257
			build := func(b compute.Backend) *engine.Engine {
				eng, err := engine.New(
					[]engine.Solver{decay("meds", "drug_level", 0.97), incrementer("cardio", "heart_rate")},
					[]engine.Coupler{passthrough("sum", []string{"drug_level", "heart_rate"}, "score")},
					0.5,
					engine.WithBatch(n),
					engine.WithBackend(b),
					engine.WithInitialLanes(map[string][]float64{
						"drug_level": lanes(n, func(i int) float64 { return float64(i) }),
						"heart_rate": lanes(n, func(i int) float64 { return 60 + float64(i%7) }),
					}),
				)
				Expect(err).NotTo(HaveOccurred())
				return eng
			}

			serial := build(compute.NewSerialBackend())
			parallel := build(compute.NewCPUBackend(8))
			_, err := serial.Collect(ctx, 20)
			Expect(err).NotTo(HaveOccurred())
			_, err = parallel.Collect(ctx, 20)
			Expect(err).NotTo(HaveOccurred())

			a, b := serial.Snapshot(), parallel.Snapshot()
			for _, k := range a.Keys() {
				va, _ := a.Get(k)
				vb, _ := b.Get(k)
				Expect(va.Equal(vb)).To(BeTrue(), "key %s", k)
			}
		})

		It("halts when a lane kernel panics on the parallel backend", func() {
			var missing []float64
			faulty := &engine.SolverFunc{
				ID:       "faulty",
				Owns:     []string{"x"},
				Defaults: map[string]float64{"x": 1},
				Fn: func(sc *engine.Scope) error {
					xs, err := sc.Floats("x")
					if err != nil {
						return err
					}
					sc.ForLanes(func(i int) { xs[i] += missing[i] })
					return sc.SetFloats("x", xs)
				},
			}
			eng, err := engine.New([]engine.Solver{faulty}, nil, 1.0,
				engine.WithBatch(64),
				engine.WithBackend(compute.NewCPUBackend(4)),
			)
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			var pe *compute.PanicError
			Expect(errors.As(err, &pe)).To(BeTrue())
			var se *engine.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Module).To(Equal("faulty"))
			Expect(eng.Status()).To(Equal(engine.StatusHalted))
			Expect(eng.Snapshot().Float("x")).To(Equal(1.0))
		})

		It("rejects a scalar write in batch mode", func() {
			bad := &engine.SolverFunc{
				ID:   "bad",
				Owns: []string{"x"},
				Fn: func(sc *engine.Scope) error {
					return sc.Set("x", state.Scalar(1))
				},
			}
			eng, err := engine.New([]engine.Solver{bad}, nil, 1.0, engine.WithBatch(2))
			Expect(err).NotTo(HaveOccurred())

			_, err = eng.Step(ctx)
			Expect(errors.Is(err, state.ErrShapeMismatch)).To(BeTrue())
		})
	})

	Describe("Apply", func() {
		var eng *engine.Engine

		BeforeEach(func() {
			var err error
			eng, err = engine.New(
				[]engine.Solver{incrementer("cardio", "heart_rate"), decay("meds", "drug_level", 0.9)}, nil, 1.0,
				engine.WithBatch(2),
				engine.WithInitialState(map[string]float64{"heart_rate": 60, "drug_level": 0}),
			)
			Expect(err).NotTo(HaveOccurred())
		})

		It("adds deltas to every lane", func() {
			Expect(eng.Apply(map[string]float64{"drug_level": 10})).To(Succeed())
			v, _ := eng.Snapshot().Get("drug_level")
			Expect(v.Floats()).To(Equal([]float64{10, 10}))

			snap, err := eng.Step(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Lane(0)["drug_level"]).To(BeNumerically("~", 9, 1e-12))
		})

		It("targets selected lanes", func() {
			Expect(eng.Apply(map[string]float64{"heart_rate": 5}, 1)).To(Succeed())
			v, _ := eng.Snapshot().Get("heart_rate")
			Expect(v.Floats()).To(Equal([]float64{60, 65}))
		})

		It("is all or nothing", func() {
			err := eng.Apply(map[string]float64{"drug_level": 1, "heart_rate": math.Inf(1)})
			Expect(errors.Is(err, state.ErrNonFinite)).To(BeTrue())
			Expect(eng.Snapshot().Lane(0)["drug_level"]).To(Equal(0.0))
			Expect(eng.Status()).To(Equal(engine.StatusIdle))
		})

		It("applies separate deltas per lane together or not at all", func() {
			Expect(eng.ApplyLanes(map[int]map[string]float64{
				0: {"heart_rate": 1},
				1: {"heart_rate": 2, "drug_level": 3},
			})).To(Succeed())
			v, _ := eng.Snapshot().Get("heart_rate")
			Expect(v.Floats()).To(Equal([]float64{61, 62}))
			Expect(eng.Snapshot().Lane(1)["drug_level"]).To(Equal(3.0))

			err := eng.ApplyLanes(map[int]map[string]float64{
				0: {"heart_rate": 10},
				1: {"heart_rate": math.Inf(-1)},
			})
			Expect(errors.Is(err, state.ErrNonFinite)).To(BeTrue())
			v, _ = eng.Snapshot().Get("heart_rate")
			Expect(v.Floats()).To(Equal([]float64{61, 62}))
			Expect(eng.Status()).To(Equal(engine.StatusIdle))
		})

		It("rejects unknown keys and lanes", func() {
			Expect(errors.Is(eng.Apply(map[string]float64{"nope": 1}), state.ErrMissingKey)).To(BeTrue())
			Expect(errors.Is(eng.Apply(map[string]float64{"heart_rate": 1}, 2), engine.ErrLaneOutOfRange)).To(BeTrue())
		})

		It("refuses to touch a halted engine", func() {
			halting, err := engine.New([]engine.Solver{incrementer("cardio", "heart_rate")}, nil, 1.0)
			Expect(err).NotTo(HaveOccurred())
			_, _ = halting.Step(ctx)
			Expect(errors.Is(halting.Apply(map[string]float64{"heart_rate": 1}), engine.ErrHalted)).To(BeTrue())
		})
	})
})
