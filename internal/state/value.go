package state

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a physiological quantity: a scalar, or one float per batch lane.
// Values are immutable; every constructor copies its input.
type Value struct {
	data    []float64
	batched bool
}

func Scalar(v float64) Value {
	return Value{data: []float64{v}}
}

// Batch returns a batched value holding a copy of vs.
func Batch(vs []float64) Value {
	data := make([]float64, len(vs))
	copy(data, vs)
	return Value{data: data, batched: true}
}

// Fill returns a batched value with n lanes set to v.
func Fill(n int, v float64) Value {
	data := make([]float64, n)
	for i := range data {
		data[i] = v
	}
	return Value{data: data, batched: true}
}

// Broadcast returns v shaped for a store with the given lane count.
// Scalar mode (lanes == 0) keeps a scalar.
func Broadcast(v float64, lanes int) Value {
	if lanes == 0 {
		return Scalar(v)
	}
	return Fill(lanes, v)
}

func (v Value) IsBatched() bool { return v.batched }
func (v Value) Len() int        { return len(v.data) }
func (v Value) IsZero() bool    { return v.data == nil }

// At returns lane i. A scalar answers every lane with its single value.
func (v Value) At(i int) float64 {
	if !v.batched {
		return v.data[0]
	}
	return v.data[i]
}

// Float returns the scalar, or lane 0 of a batched value.
func (v Value) Float() float64 {
	if len(v.data) == 0 {
		return math.NaN()
	}
	return v.data[0]
}

func (v Value) Floats() []float64 {
	out := make([]float64, len(v.data))
	copy(out, v.data)
	return out
}

// Map applies fn elementwise and keeps the shape.
func (v Value) Map(fn func(float64) float64) Value {
	data := make([]float64, len(v.data))
	for i, x := range v.data {
		data[i] = fn(x)
	}
	return Value{data: data, batched: v.batched}
}

// SameShape reports whether v and o could be assigned to each other.
func (v Value) SameShape(o Value) bool {
	return v.batched == o.batched && len(v.data) == len(o.data)
}

func (v Value) IsFinite() bool {
	for _, x := range v.data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func (v Value) Equal(o Value) bool {
	if !v.SameShape(o) {
		return false
	}
	for i := range v.data {
		if v.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

func (v Value) shape() string {
	if !v.batched {
		return "scalar"
	}
	return fmt.Sprintf("batch[%d]", len(v.data))
}

func (v Value) String() string {
	if !v.batched {
		return strconv.FormatFloat(v.Float(), 'f', 4, 64)
	}
	parts := make([]string, len(v.data))
	for i, x := range v.data {
		parts[i] = strconv.FormatFloat(x, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
