package metrics

import (
	"fmt"

	"github.com/san-kum/physim/internal/state"
)

// OutOfRange is the fraction of lane samples outside [lo, hi].
type OutOfRange struct {
	key        string
	lo, hi     float64
	violations int
	samples    int
}

func NewOutOfRange(key string, lo, hi float64) *OutOfRange {
	return &OutOfRange{key: key, lo: lo, hi: hi}
}

func (o *OutOfRange) Name() string { return "out_of_range_" + o.key }

func (o *OutOfRange) Band() string { return fmt.Sprintf("[%g, %g]", o.lo, o.hi) }

func (o *OutOfRange) Observe(snap state.Snapshot) {
	samples(snap, o.key, func(x float64) {
		o.samples++
		if x < o.lo || x > o.hi {
			o.violations++
		}
	})
}

func (o *OutOfRange) Value() float64 {
	if o.samples == 0 {
		return 0
	}
	return float64(o.violations) / float64(o.samples)
}

func (o *OutOfRange) Reset() {
	o.violations = 0
	o.samples = 0
}
