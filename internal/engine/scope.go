package engine

import (
	"context"
	"fmt"

	"github.com/san-kum/physim/internal/compute"
	"github.com/san-kum/physim/internal/state"
)

// Scope is what a module sees during one call: a guarded view of the state,
// the clock as it stood before the step, and the backend for lane loops.
type Scope struct {
	ctx     context.Context
	view    *state.View
	backend compute.Backend
	clock   Clock
}

func (sc *Scope) Context() context.Context { return sc.ctx }
func (sc *Scope) Dt() float64              { return sc.clock.dt }

// Step is the number of steps committed before this one.
func (sc *Scope) Step() int { return sc.clock.step }

// Time is the elapsed simulated time at the start of this step.
func (sc *Scope) Time() float64 { return sc.clock.Elapsed() }

// Lanes is the number of independent instances, 1 in scalar mode.
func (sc *Scope) Lanes() int {
	if n := sc.view.Lanes(); n > 0 {
		return n
	}
	return 1
}

func (sc *Scope) Batched() bool { return sc.view.Lanes() > 0 }

// Has reports whether key can be read, without failing the step.
func (sc *Scope) Has(key string) bool { return sc.view.Has(key) }

func (sc *Scope) Get(key string) (state.Value, error) { return sc.view.Get(key) }

func (sc *Scope) Set(key string, v state.Value) error { return sc.view.Set(key, v) }

// Float reads a key in scalar mode.
func (sc *Scope) Float(key string) (float64, error) {
	v, err := sc.view.Get(key)
	if err != nil {
		return 0, err
	}
	if v.IsBatched() {
		return 0, fmt.Errorf("%w: %q is batched, use Floats", state.ErrShapeMismatch, key)
	}
	return v.Float(), nil
}

// SetFloat writes x to every lane.
func (sc *Scope) SetFloat(key string, x float64) error {
	return sc.view.Set(key, state.Broadcast(x, sc.view.Lanes()))
}

// Floats reads a key as one float per lane.
func (sc *Scope) Floats(key string) ([]float64, error) {
	v, err := sc.view.Get(key)
	if err != nil {
		return nil, err
	}
	if !v.IsBatched() {
		return []float64{v.Float()}, nil
	}
	return v.Floats(), nil
}

// SetFloats writes one float per lane. In scalar mode xs must hold one value.
func (sc *Scope) SetFloats(key string, xs []float64) error {
	if !sc.Batched() && len(xs) == 1 {
		return sc.view.Set(key, state.Scalar(xs[0]))
	}
	return sc.view.Set(key, state.Batch(xs))
}

// ForLanes calls fn once per lane through the backend. fn must only touch
// data indexed by its own lane.
func (sc *Scope) ForLanes(fn func(lane int)) {
	sc.backend.Lanes(sc.Lanes(), func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}
