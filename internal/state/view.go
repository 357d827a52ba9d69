package state

// View is the access-controlled window a single module gets for one phase.
// Reads come from the module's own pending writes first, then from the
// underlying store, which must not change while the view is in use. Writes are
// buffered until the engine commits them.
type View struct {
	owner    string
	base     *Store
	readable KeySet
	writable KeySet
	writes   map[string]Value
	order    []string
	err      error
}

// View opens a guarded view. A nil readable set allows any key to be read.
func (s *Store) View(owner string, readable, writable KeySet) *View {
	return &View{
		owner:    owner,
		base:     s,
		readable: readable,
		writable: writable,
		writes:   make(map[string]Value, len(writable)),
	}
}

func (v *View) Owner() string { return v.owner }
func (v *View) Lanes() int    { return v.base.lanes }

func (v *View) Get(key string) (Value, error) {
	if val, ok := v.writes[key]; ok {
		return val, nil
	}
	if v.readable != nil && !v.readable.Has(key) {
		return Value{}, v.fail(&KeyError{Owner: v.owner, Key: key, Op: "read", Err: ErrUndeclaredRead})
	}
	val, ok := v.base.values[key]
	if !ok {
		return Value{}, v.fail(&KeyError{Owner: v.owner, Key: key, Op: "read", Err: ErrMissingKey})
	}
	return val, nil
}

// Has reports whether key is readable and holds a value. It never records a
// violation, so modules can probe optional inputs.
func (v *View) Has(key string) bool {
	if _, ok := v.writes[key]; ok {
		return true
	}
	if v.readable != nil && !v.readable.Has(key) {
		return false
	}
	_, ok := v.base.values[key]
	return ok
}

func (v *View) Set(key string, val Value) error {
	if !v.writable.Has(key) {
		return v.fail(&KeyError{Owner: v.owner, Key: key, Op: "write", Err: ErrUnownedKey})
	}
	if err := v.base.check(key, val); err != nil {
		err.(*KeyError).Owner = v.owner
		return v.fail(err)
	}
	if _, seen := v.writes[key]; !seen {
		v.order = append(v.order, key)
	}
	v.writes[key] = val
	return nil
}

// Err returns the first contract violation seen by this view.
func (v *View) Err() error { return v.err }

// Written lists keys written so far, in first-write order.
func (v *View) Written() []string {
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

func (v *View) fail(err error) error {
	if v.err == nil {
		v.err = err
	}
	return err
}
