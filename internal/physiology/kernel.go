package physiology

import (
	"math"

	"github.com/san-kum/physim/internal/engine"
)

// port is a kernel input. Optional ports fall back to a constant when the
// key is not present, so a module still works when its neighbour is not
// registered.
type port struct {
	key      string
	fallback float64
	optional bool
}

func need(key string) port { return port{key: key} }

func maybe(key string, fallback float64) port {
	return port{key: key, fallback: fallback, optional: true}
}

// kernel runs fn once per lane. in holds the lane's inputs in port order;
// out starts with the lane's current output values and is written back once
// every lane has run.
func kernel(sc *engine.Scope, in []port, out []string, fn func(in, out []float64)) error {
	return laneKernel(sc, in, out, func(_ int, in, out []float64) { fn(in, out) })
}

// laneKernel is kernel with the lane index passed through, for modules that
// keep per-lane state of their own.
func laneKernel(sc *engine.Scope, in []port, out []string, fn func(lane int, in, out []float64)) error {
	lanes := sc.Lanes()

	ins := make([][]float64, len(in))
	for i, p := range in {
		if p.optional && !sc.Has(p.key) {
			ins[i] = fill(lanes, p.fallback)
			continue
		}
		xs, err := sc.Floats(p.key)
		if err != nil {
			return err
		}
		ins[i] = xs
	}

	outs := make([][]float64, len(out))
	for i, k := range out {
		xs, err := sc.Floats(k)
		if err != nil {
			return err
		}
		outs[i] = xs
	}

	sc.ForLanes(func(lane int) {
		a := make([]float64, len(ins))
		b := make([]float64, len(outs))
		for i := range ins {
			a[i] = ins[i][lane]
		}
		for i := range outs {
			b[i] = outs[i][lane]
		}
		fn(lane, a, b)
		for i := range outs {
			outs[i][lane] = b[i]
		}
	})

	for i, k := range out {
		if err := sc.SetFloats(k, outs[i]); err != nil {
			return err
		}
	}
	return nil
}

func fill(n int, v float64) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = v
	}
	return xs
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// settle keeps old unless next moved by more than threshold.
func settle(old, next, threshold float64) float64 {
	if math.Abs(next-old) > threshold {
		return next
	}
	return old
}
