package engine_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/physim/internal/engine"
)

type coupledSolver struct {
	*engine.SolverFunc
	coupled []string
}

func (c coupledSolver) CoupledKeys() []string { return c.coupled }

func writer(name string, out ...string) *engine.CouplerFunc {
	return &engine.CouplerFunc{ID: name, Outputs: out, Fn: func(*engine.Scope) error { return nil }}
}

func reader(name string, in []string, out ...string) *engine.CouplerFunc {
	return &engine.CouplerFunc{ID: name, Inputs: in, Outputs: out, Fn: func(*engine.Scope) error { return nil }}
}

var _ = Describe("construction", func() {
	DescribeTable("rejects invalid registrations",
		func(solvers []engine.Solver, couplers []engine.Coupler, dt float64, opts []engine.Option, kind error) {
			eng, err := engine.New(solvers, couplers, dt, opts...)
			Expect(eng).To(BeNil())
			Expect(errors.Is(err, engine.ErrConfiguration)).To(BeTrue(), "got %v", err)
			Expect(errors.Is(err, kind)).To(BeTrue(), "got %v", err)

			var ce *engine.ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
		},
		Entry("zero dt", []engine.Solver{incrementer("a", "x")}, nil, 0.0, nil, engine.ErrInvalidDt),
		Entry("negative dt", []engine.Solver{incrementer("a", "x")}, nil, -1.0, nil, engine.ErrInvalidDt),
		Entry("NaN dt", []engine.Solver{incrementer("a", "x")}, nil, math.NaN(), nil, engine.ErrInvalidDt),
		Entry("infinite dt", []engine.Solver{incrementer("a", "x")}, nil, math.Inf(1), nil, engine.ErrInvalidDt),
		Entry("negative batch", []engine.Solver{incrementer("a", "x")}, nil, 1.0,
			[]engine.Option{engine.WithBatch(-1)}, engine.ErrInvalidBatch),
		Entry("nil solver", []engine.Solver{nil}, nil, 1.0, nil, engine.ErrInvalidModule),
		Entry("duplicate names", []engine.Solver{incrementer("a", "x"), incrementer("a", "y")}, nil, 1.0, nil,
			engine.ErrInvalidModule),
		Entry("solver without keys", []engine.Solver{&engine.SolverFunc{ID: "empty"}}, nil, 1.0, nil,
			engine.ErrInvalidModule),
		Entry("coupler without outputs", []engine.Solver{incrementer("a", "x")},
			[]engine.Coupler{reader("c", []string{"x"})}, 1.0, nil, engine.ErrInvalidModule),
		Entry("overlapping solver ownership",
			[]engine.Solver{incrementer("a", "heart_rate"), incrementer("b", "heart_rate")}, nil, 1.0, nil,
			engine.ErrOwnershipConflict),
		Entry("coupler writing an undesignated solver key",
			[]engine.Solver{incrementer("a", "heart_rate")},
			[]engine.Coupler{writer("c", "heart_rate")}, 1.0, nil, engine.ErrUndesignatedOverlap),
		Entry("designating a key the solver does not own",
			[]engine.Solver{coupledSolver{incrementer("a", "x"), []string{"y"}}}, nil, 1.0, nil,
			engine.ErrInvalidModule),
		Entry("two couplers writing one key",
			[]engine.Solver{incrementer("a", "x")},
			[]engine.Coupler{writer("c1", "z"), writer("c2", "z")}, 1.0, nil, engine.ErrAmbiguousWriter),
		Entry("coupler reading an undeclared key",
			[]engine.Solver{incrementer("a", "x")},
			[]engine.Coupler{reader("c", []string{"ghost"}, "z")}, 1.0, nil, engine.ErrUnknownKey),
		Entry("two-coupler cycle",
			[]engine.Solver{incrementer("a", "x")},
			[]engine.Coupler{reader("c1", []string{"p"}, "q"), reader("c2", []string{"q"}, "p")}, 1.0, nil,
			engine.ErrCouplerCycle),
		Entry("initial value for an undeclared key",
			[]engine.Solver{incrementer("a", "x")}, nil, 1.0,
			[]engine.Option{engine.WithInitialState(map[string]float64{"ghost": 1})}, engine.ErrUnknownKey),
		Entry("non-finite initial value",
			[]engine.Solver{incrementer("a", "x")}, nil, 1.0,
			[]engine.Option{engine.WithInitialState(map[string]float64{"x": math.NaN()})}, engine.ErrInvalidInitial),
		Entry("per-lane initial values of the wrong length",
			[]engine.Solver{incrementer("a", "x")}, nil, 1.0,
			[]engine.Option{engine.WithBatch(3), engine.WithInitialLanes(map[string][]float64{"x": {1, 2}})},
			engine.ErrInvalidInitial),
		Entry("per-lane initial values in scalar mode",
			[]engine.Solver{incrementer("a", "x")}, nil, 1.0,
			[]engine.Option{engine.WithInitialLanes(map[string][]float64{"x": {1}})}, engine.ErrInvalidInitial),
		Entry("module default for a key it does not write",
			[]engine.Solver{
				incrementer("a", "x"),
				&engine.SolverFunc{ID: "b", Owns: []string{"y"}, Defaults: map[string]float64{"x": 1}},
			}, nil, 1.0, nil, engine.ErrInvalidInitial),
	)

	It("names the cycle path", func() {
		_, err := engine.New(
			[]engine.Solver{incrementer("a", "x")},
			[]engine.Coupler{
				reader("c1", []string{"x", "r"}, "p"),
				reader("c2", []string{"p"}, "q"),
				reader("c3", []string{"q"}, "r"),
			},
			1.0,
		)
		var ce *engine.ConfigError
		Expect(errors.As(err, &ce)).To(BeTrue())
		Expect(ce.Path).To(Equal([]string{"c1", "c2", "c3", "c1"}))
		Expect(err.Error()).To(ContainSubstring("c1 -> c2 -> c3 -> c1"))
	})

	It("allows a coupler to read its own outputs", func() {
		_, err := engine.New(
			[]engine.Solver{incrementer("a", "x")},
			[]engine.Coupler{reader("c", []string{"x", "z"}, "z")},
			1.0,
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("allows couplers to adjust designated solver keys", func() {
		eng, err := engine.New(
			[]engine.Solver{coupledSolver{incrementer("a", "heart_rate"), []string{"heart_rate"}}},
			[]engine.Coupler{reader("c", []string{"heart_rate"}, "heart_rate")},
			1.0,
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.Keys()).To(Equal([]string{"heart_rate"}))
	})

	It("groups independent couplers into levels in registration order", func() {
		eng, err := engine.New(
			[]engine.Solver{incrementer("s", "x")},
			[]engine.Coupler{
				reader("late", []string{"a", "b"}, "c"),
				reader("b", []string{"x"}, "b"),
				reader("a", []string{"x"}, "a"),
				reader("solo", []string{"x"}, "d"),
			},
			1.0,
		)
		Expect(err).NotTo(HaveOccurred())

		plan := eng.Plan()
		Expect(plan.Solvers).To(Equal([]string{"s"}))
		Expect(plan.Levels).To(Equal([][]string{{"b", "a", "solo"}, {"late"}}))
		Expect(plan.Keys).To(Equal([]string{"a", "b", "c", "d", "x"}))
		Expect(plan.String()).To(ContainSubstring("couple[1]: late"))
	})

	It("seeds module defaults below explicit initial values", func() {
		s := &engine.SolverFunc{
			ID:       "s",
			Owns:     []string{"x", "y"},
			Defaults: map[string]float64{"x": 1, "y": 2},
			Fn:       func(*engine.Scope) error { return nil },
		}
		c := &engine.CouplerFunc{
			ID:       "c",
			Outputs:  []string{"z"},
			Defaults: map[string]float64{"z": 3},
			Fn:       func(*engine.Scope) error { return nil },
		}
		eng, err := engine.New([]engine.Solver{s}, []engine.Coupler{c}, 1.0,
			engine.WithInitialState(map[string]float64{"y": 20}))
		Expect(err).NotTo(HaveOccurred())

		snap := eng.Snapshot()
		Expect(snap.Step).To(Equal(0))
		Expect(snap.Float("x")).To(Equal(1.0))
		Expect(snap.Float("y")).To(Equal(20.0))
		Expect(snap.Float("z")).To(Equal(3.0))
	})
})
