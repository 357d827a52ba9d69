package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/physim/internal/state"
)

type solverEntry struct {
	index  int
	solver Solver
	owned  state.KeySet
}

type couplerEntry struct {
	index   int
	coupler Coupler
	inputs  state.KeySet
	outputs state.KeySet
}

// schedule is the validated, immutable execution order.
type schedule struct {
	solvers  []solverEntry
	couplers []couplerEntry
	levels   [][]int
	keys     state.KeySet
}

// Plan describes the execution order of a built engine.
type Plan struct {
	Solvers []string
	Levels  [][]string
	Keys    []string
}

func (p Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "solve:  %s\n", strings.Join(p.Solvers, ", "))
	for i, level := range p.Levels {
		fmt.Fprintf(&b, "couple[%d]: %s\n", i, strings.Join(level, ", "))
	}
	return b.String()
}

func buildSchedule(solvers []Solver, couplers []Coupler) (*schedule, error) {
	if err := checkNames(solvers, couplers); err != nil {
		return nil, err
	}

	s := &schedule{keys: state.NewKeySet()}
	owner := make(map[string]string)
	designated := state.NewKeySet()

	for i, sv := range solvers {
		owned := state.NewKeySet()
		for _, k := range sv.OwnedKeys() {
			if k == "" {
				return nil, &ConfigError{Kind: ErrInvalidModule, Module: sv.Name(), Detail: "empty key"}
			}
			if prev, ok := owner[k]; ok && prev != sv.Name() {
				return nil, &ConfigError{Kind: ErrOwnershipConflict, Module: sv.Name(), Key: k, Detail: "already owned by " + prev}
			}
			owner[k] = sv.Name()
			owned.Add(k)
		}
		if len(owned) == 0 {
			return nil, &ConfigError{Kind: ErrInvalidModule, Module: sv.Name(), Detail: "solver owns no keys"}
		}
		if c, ok := sv.(Coupled); ok {
			for _, k := range c.CoupledKeys() {
				if !owned.Has(k) {
					return nil, &ConfigError{Kind: ErrInvalidModule, Module: sv.Name(), Key: k, Detail: "designates a coupled key it does not own"}
				}
				designated.Add(k)
			}
		}
		s.solvers = append(s.solvers, solverEntry{index: i, solver: sv, owned: owned})
		s.keys.Add(owned.Sorted()...)
	}

	writer := make(map[string]string)
	for i, cp := range couplers {
		outputs := state.NewKeySet(cp.OutputKeys()...)
		if len(outputs) == 0 {
			return nil, &ConfigError{Kind: ErrInvalidModule, Module: cp.Name(), Detail: "coupler has no outputs"}
		}
		for _, k := range outputs.Sorted() {
			if k == "" {
				return nil, &ConfigError{Kind: ErrInvalidModule, Module: cp.Name(), Detail: "empty key"}
			}
			if so, ok := owner[k]; ok && !designated.Has(k) {
				return nil, &ConfigError{Kind: ErrUndesignatedOverlap, Module: cp.Name(), Key: k, Detail: "owned by solver " + so}
			}
			if prev, ok := writer[k]; ok {
				return nil, &ConfigError{Kind: ErrAmbiguousWriter, Module: cp.Name(), Key: k, Detail: "also written by " + prev}
			}
			writer[k] = cp.Name()
		}
		s.couplers = append(s.couplers, couplerEntry{
			index:   i,
			coupler: cp,
			inputs:  state.NewKeySet(cp.InputKeys()...),
			outputs: outputs,
		})
		s.keys.Add(outputs.Sorted()...)
	}

	for _, ce := range s.couplers {
		for _, k := range ce.inputs.Sorted() {
			if !s.keys.Has(k) {
				return nil, &ConfigError{Kind: ErrUnknownKey, Module: ce.coupler.Name(), Key: k, Detail: "coupler input"}
			}
		}
	}

	adj := s.edges()
	if cycle := findCycle(adj); cycle != nil {
		path := make([]string, len(cycle))
		for i, idx := range cycle {
			path[i] = s.couplers[idx].coupler.Name()
		}
		return nil, &ConfigError{Kind: ErrCouplerCycle, Path: path}
	}
	s.levels = levels(adj)
	return s, nil
}

func checkNames(solvers []Solver, couplers []Coupler) error {
	seen := make(map[string]bool)
	check := func(kind string, i int, name string, isNil bool) error {
		if isNil {
			return &ConfigError{Kind: ErrInvalidModule, Detail: fmt.Sprintf("nil %s at index %d", kind, i)}
		}
		if name == "" {
			return &ConfigError{Kind: ErrInvalidModule, Detail: fmt.Sprintf("%s at index %d has no name", kind, i)}
		}
		if seen[name] {
			return &ConfigError{Kind: ErrInvalidModule, Module: name, Detail: "duplicate module name"}
		}
		seen[name] = true
		return nil
	}
	for i, sv := range solvers {
		name := ""
		if sv != nil {
			name = sv.Name()
		}
		if err := check("solver", i, name, sv == nil); err != nil {
			return err
		}
	}
	for i, cp := range couplers {
		name := ""
		if cp != nil {
			name = cp.Name()
		}
		if err := check("coupler", i, name, cp == nil); err != nil {
			return err
		}
	}
	return nil
}

// edges returns, for each coupler, the couplers that must run after it.
// A coupler reading its own outputs does not depend on itself.
func (s *schedule) edges() [][]int {
	adj := make([][]int, len(s.couplers))
	for _, a := range s.couplers {
		for _, b := range s.couplers {
			if a.index == b.index {
				continue
			}
			if len(b.inputs.Intersect(a.outputs)) > 0 {
				adj[a.index] = append(adj[a.index], b.index)
			}
		}
	}
	return adj
}

// findCycle runs a depth-first search in registration order and returns the
// first cycle found as a closed path, or nil.
func findCycle(adj [][]int) []int {
	visited := make([]bool, len(adj))
	onStack := make([]bool, len(adj))
	var path []int

	var visit func(n int) []int
	visit = func(n int) []int {
		visited[n] = true
		onStack[n] = true
		path = append(path, n)
		for _, m := range adj[n] {
			if !visited[m] {
				if c := visit(m); c != nil {
					return c
				}
			} else if onStack[m] {
				for i, id := range path {
					if id == m {
						cycle := append([]int{}, path[i:]...)
						return append(cycle, m)
					}
				}
			}
		}
		onStack[n] = false
		path = path[:len(path)-1]
		return nil
	}

	for n := range adj {
		if !visited[n] {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// levels groups an acyclic graph with Kahn's algorithm. Members of a level
// have no dependency on each other and are sorted by registration index.
func levels(adj [][]int) [][]int {
	inDegree := make([]int, len(adj))
	for _, next := range adj {
		for _, m := range next {
			inDegree[m]++
		}
	}

	var current []int
	for n, d := range inDegree {
		if d == 0 {
			current = append(current, n)
		}
	}

	var out [][]int
	for len(current) > 0 {
		out = append(out, current)
		var next []int
		for _, n := range current {
			for _, m := range adj[n] {
				inDegree[m]--
				if inDegree[m] == 0 {
					next = append(next, m)
				}
			}
		}
		sort.Ints(next)
		current = next
	}
	return out
}

func (s *schedule) plan() Plan {
	p := Plan{Keys: s.keys.Sorted()}
	for _, se := range s.solvers {
		p.Solvers = append(p.Solvers, se.solver.Name())
	}
	for _, level := range s.levels {
		names := make([]string, len(level))
		for i, idx := range level {
			names[i] = s.couplers[idx].coupler.Name()
		}
		p.Levels = append(p.Levels, names)
	}
	return p
}

// writable reports the keys a module may write, for checking its defaults.
func (s *schedule) writable(name string) state.KeySet {
	for _, se := range s.solvers {
		if se.solver.Name() == name {
			return se.owned
		}
	}
	for _, ce := range s.couplers {
		if ce.coupler.Name() == name {
			return ce.outputs
		}
	}
	return nil
}
