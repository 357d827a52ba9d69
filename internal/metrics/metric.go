package metrics

import (
	"math"

	"github.com/san-kum/physim/internal/state"
)

// Metric folds snapshots into a single number. Batched snapshots contribute
// one sample per lane.
type Metric interface {
	Name() string
	Observe(snap state.Snapshot)
	Value() float64
	Reset()
}

// samples calls fn for every lane value of key. Missing keys are skipped.
func samples(snap state.Snapshot, key string, fn func(float64)) {
	v, ok := snap.Get(key)
	if !ok {
		return
	}
	for i := range snap.LaneCount() {
		fn(v.At(i))
	}
}

type Mean struct {
	key string
	sum float64
	n   int
}

func NewMean(key string) *Mean { return &Mean{key: key} }

func (m *Mean) Name() string { return "mean_" + m.key }

func (m *Mean) Observe(snap state.Snapshot) {
	samples(snap, m.key, func(x float64) {
		m.sum += x
		m.n++
	})
}

func (m *Mean) Value() float64 {
	if m.n == 0 {
		return math.NaN()
	}
	return m.sum / float64(m.n)
}

func (m *Mean) Reset() {
	m.sum = 0
	m.n = 0
}
