package interventions

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnknownAction = errors.New("interventions: unknown action")
	ErrInvalidDose   = errors.New("interventions: dose must be finite and positive")
	ErrRequiredKey   = errors.New("interventions: required key not in state")
)

// Action is a bedside intervention. Deltas computes the change to apply to
// one lane given that lane's current values; the engine applies it between
// steps.
type Action interface {
	Name() string
	Description() string
	Deltas(lane map[string]float64, dose float64) (map[string]float64, error)
}

func checkDose(dose float64) error {
	if math.IsNaN(dose) || math.IsInf(dose, 0) || dose <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidDose, dose)
	}
	return nil
}

func require(lane map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := lane[k]; !ok {
			return fmt.Errorf("%w: %q", ErrRequiredKey, k)
		}
	}
	return nil
}

// Catalog indexes actions by name.
type Catalog map[string]Action

func (c Catalog) Lookup(name string) (Action, error) {
	a, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
	return a, nil
}

func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultCatalog returns the medications, fluids and the blood test.
func DefaultCatalog() Catalog {
	c := Catalog{"blood_test": NewBloodTest()}
	for name, m := range Medications() {
		c[name] = m
	}
	for name, f := range Fluids() {
		c[name] = f
	}
	return c
}
