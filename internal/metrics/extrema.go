package metrics

import (
	"math"

	"github.com/san-kum/physim/internal/state"
)

type extremum struct {
	name string
	key  string
	best float64
	seen bool
	more func(a, b float64) bool
}

func (e *extremum) Name() string { return e.name + "_" + e.key }

func (e *extremum) Observe(snap state.Snapshot) {
	samples(snap, e.key, func(x float64) {
		if !e.seen || e.more(x, e.best) {
			e.best = x
			e.seen = true
		}
	})
}

func (e *extremum) Value() float64 {
	if !e.seen {
		return math.NaN()
	}
	return e.best
}

func (e *extremum) Reset() {
	e.best = 0
	e.seen = false
}

// Peak is the largest value of a key across all lanes and steps.
type Peak struct{ extremum }

func NewPeak(key string) *Peak {
	return &Peak{extremum{name: "peak", key: key, more: func(a, b float64) bool { return a > b }}}
}

// Nadir is the smallest value of a key across all lanes and steps.
type Nadir struct{ extremum }

func NewNadir(key string) *Nadir {
	return &Nadir{extremum{name: "nadir", key: key, more: func(a, b float64) bool { return a < b }}}
}
