package state

import (
	"math"
	"sort"
)

// Snapshot is a read-only copy of the store after a committed step.
type Snapshot struct {
	Step   int
	Time   float64
	lanes  int
	values map[string]Value
}

func (s Snapshot) Lanes() int { return s.lanes }

func (s Snapshot) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Float returns the scalar value of key (lane 0 when batched), or NaN.
func (s Snapshot) Float(key string) float64 {
	v, ok := s.values[key]
	if !ok {
		return math.NaN()
	}
	return v.Float()
}

func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lane flattens one batch lane into plain floats.
func (s Snapshot) Lane(i int) map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v.At(i)
	}
	return out
}

// LaneCount is the number of lanes to iterate: 1 in scalar mode.
func (s Snapshot) LaneCount() int {
	if s.lanes == 0 {
		return 1
	}
	return s.lanes
}
