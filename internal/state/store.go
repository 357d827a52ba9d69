package state

import (
	"fmt"
	"sort"
)

// Store is the flat mapping of named quantities shared by every module.
// It is not safe for concurrent mutation; the engine serializes commits and
// hands modules guarded views instead of the store itself.
type Store struct {
	lanes  int
	values map[string]Value
}

// New creates an empty store. lanes == 0 selects scalar mode; otherwise every
// value must be a batch of exactly lanes entries.
func New(lanes int) *Store {
	return &Store{lanes: lanes, values: make(map[string]Value)}
}

func (s *Store) Lanes() int { return s.lanes }
func (s *Store) Len() int   { return len(s.values) }

func (s *Store) Get(key string) (Value, error) {
	v, ok := s.values[key]
	if !ok {
		return Value{}, &KeyError{Key: key, Op: "read", Err: ErrMissingKey}
	}
	return v, nil
}

func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Put writes a value without ownership checks. Only the engine calls it, for
// initial values and interventions between steps.
func (s *Store) Put(key string, v Value) error {
	if err := s.check(key, v); err != nil {
		return err
	}
	s.values[key] = v
	return nil
}

// Clone returns an independent store. Values are immutable so they are shared.
func (s *Store) Clone() *Store {
	c := &Store{lanes: s.lanes, values: make(map[string]Value, len(s.values))}
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Commit applies the pending writes of a view.
func (s *Store) Commit(v *View) error {
	if v.err != nil {
		return v.err
	}
	for _, key := range v.order {
		val := v.writes[key]
		if err := s.check(key, val); err != nil {
			err.(*KeyError).Owner = v.owner
			return err
		}
		s.values[key] = val
	}
	return nil
}

// Snapshot freezes the current values.
func (s *Store) Snapshot(step int, t float64) Snapshot {
	values := make(map[string]Value, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return Snapshot{Step: step, Time: t, lanes: s.lanes, values: values}
}

func (s *Store) check(key string, v Value) error {
	if !s.fits(v) {
		return &KeyError{
			Key:    key,
			Op:     "write",
			Detail: fmt.Sprintf("got %s, store holds %s", v.shape(), s.shape()),
			Err:    ErrShapeMismatch,
		}
	}
	if !v.IsFinite() {
		return &KeyError{Key: key, Op: "write", Detail: v.String(), Err: ErrNonFinite}
	}
	return nil
}

func (s *Store) fits(v Value) bool {
	if s.lanes == 0 {
		return !v.batched && len(v.data) == 1
	}
	return v.batched && len(v.data) == s.lanes
}

func (s *Store) shape() string {
	if s.lanes == 0 {
		return "scalar"
	}
	return fmt.Sprintf("batch[%d]", s.lanes)
}
