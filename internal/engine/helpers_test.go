package engine_test

import (
	"sync"
	"time"

	"github.com/san-kum/physim/internal/engine"
	"github.com/san-kum/physim/internal/state"
)

// incrementer adds dt to key on every lane.
func incrementer(name, key string) *engine.SolverFunc {
	return &engine.SolverFunc{
		ID:   name,
		Owns: []string{key},
		Fn: func(sc *engine.Scope) error {
			xs, err := sc.Floats(key)
			if err != nil {
				return err
			}
			sc.ForLanes(func(i int) { xs[i] += sc.Dt() })
			return sc.SetFloats(key, xs)
		},
	}
}

// decay multiplies key by factor each step.
func decay(name, key string, factor float64) *engine.SolverFunc {
	return &engine.SolverFunc{
		ID:   name,
		Owns: []string{key},
		Fn: func(sc *engine.Scope) error {
			xs, err := sc.Floats(key)
			if err != nil {
				return err
			}
			for i := range xs {
				xs[i] *= factor
			}
			return sc.SetFloats(key, xs)
		},
	}
}

// passthrough is a coupler that writes out = sum of its other inputs, per lane.
func passthrough(name string, inputs []string, out string) *engine.CouplerFunc {
	return &engine.CouplerFunc{
		ID:      name,
		Inputs:  inputs,
		Outputs: []string{out},
		Fn: func(sc *engine.Scope) error {
			sum := make([]float64, sc.Lanes())
			for _, k := range inputs {
				if k == out {
					continue
				}
				xs, err := sc.Floats(k)
				if err != nil {
					return err
				}
				for i := range sum {
					sum[i] += xs[i]
				}
			}
			return sc.SetFloats(out, sum)
		},
	}
}

type recorder struct {
	mu     sync.Mutex
	steps  []int
	halted []error
}

func (r *recorder) OnStep(snap state.Snapshot, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, snap.Step)
}

func (r *recorder) OnHalt(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halted = append(r.halted, err)
}
