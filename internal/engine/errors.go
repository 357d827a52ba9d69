package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is matched by every construction-time failure.
	ErrConfiguration = errors.New("engine: invalid configuration")

	ErrInvalidDt           = errors.New("engine: dt must be finite and positive")
	ErrInvalidBatch        = errors.New("engine: batch size must not be negative")
	ErrInvalidModule       = errors.New("engine: invalid module declaration")
	ErrOwnershipConflict   = errors.New("engine: key owned by more than one solver")
	ErrUndesignatedOverlap = errors.New("engine: coupler output overlaps a solver key not designated as coupled")
	ErrAmbiguousWriter     = errors.New("engine: key written by more than one coupler")
	ErrUnknownKey          = errors.New("engine: key is not declared by any module")
	ErrCouplerCycle        = errors.New("engine: coupler dependency cycle")
	ErrInvalidInitial      = errors.New("engine: invalid initial value")

	// ErrReentrantStep indicates Step (or Apply) was called while a step was
	// in progress. The engine state is untouched.
	ErrReentrantStep = errors.New("engine: step already in progress")

	// ErrHalted indicates the engine stopped after a failed step and must be
	// rebuilt.
	ErrHalted = errors.New("engine: simulation halted")
)

// ConfigError describes why construction failed. It matches both
// ErrConfiguration and its Kind with errors.Is.
type ConfigError struct {
	Kind   error
	Module string
	Key    string
	Path   []string
	Detail string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Module != "" {
		fmt.Fprintf(&b, ": module %q", e.Module)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	if len(e.Path) > 0 {
		b.WriteString(": " + strings.Join(e.Path, " -> "))
	}
	if e.Detail != "" {
		b.WriteString(": " + e.Detail)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Kind }

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// StepError wraps a module failure with the step it happened in.
type StepError struct {
	Step   int
	Time   float64
	Phase  Phase
	Module string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f) %s phase, module %s: %v", e.Step, e.Time, e.Phase, e.Module, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
