package engine

import (
	"time"

	"github.com/san-kum/physim/internal/state"
)

// Solver advances the keys it owns by one step.
//
// During the solve phase every solver reads the committed pre-step state,
// never another solver's partial output, and may write only OwnedKeys.
type Solver interface {
	Name() string
	OwnedKeys() []string
	Solve(sc *Scope) error
}

// Coupler applies a cross-system effect after all solvers have run.
// It may read only InputKeys and write only OutputKeys.
type Coupler interface {
	Name() string
	InputKeys() []string
	OutputKeys() []string
	Couple(sc *Scope) error
}

// Initializer is implemented by modules that supply default values for the
// keys they write.
type Initializer interface {
	InitialState() map[string]float64
}

// Coupled is implemented by solvers that allow couplers to adjust some of
// their owned keys after the solve phase.
type Coupled interface {
	CoupledKeys() []string
}

// Observer is notified after each committed step and once on halt.
type Observer interface {
	OnStep(snap state.Snapshot, wall time.Duration)
	OnHalt(err error)
}

type Phase int

const (
	PhaseSolve Phase = iota
	PhaseCouple
)

func (p Phase) String() string {
	switch p {
	case PhaseSolve:
		return "solve"
	case PhaseCouple:
		return "couple"
	default:
		return "unknown"
	}
}

type Status int32

const (
	StatusIdle Status = iota
	StatusStepping
	StatusHalted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStepping:
		return "stepping"
	case StatusHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// SolverFunc adapts a function into a Solver.
type SolverFunc struct {
	ID       string
	Owns     []string
	Defaults map[string]float64
	Fn       func(sc *Scope) error
}

func (f *SolverFunc) Name() string                     { return f.ID }
func (f *SolverFunc) OwnedKeys() []string              { return f.Owns }
func (f *SolverFunc) Solve(sc *Scope) error            { return f.Fn(sc) }
func (f *SolverFunc) InitialState() map[string]float64 { return f.Defaults }

// CouplerFunc adapts a function into a Coupler.
type CouplerFunc struct {
	ID       string
	Inputs   []string
	Outputs  []string
	Defaults map[string]float64
	Fn       func(sc *Scope) error
}

func (f *CouplerFunc) Name() string                     { return f.ID }
func (f *CouplerFunc) InputKeys() []string              { return f.Inputs }
func (f *CouplerFunc) OutputKeys() []string             { return f.Outputs }
func (f *CouplerFunc) Couple(sc *Scope) error           { return f.Fn(sc) }
func (f *CouplerFunc) InitialState() map[string]float64 { return f.Defaults }
