package state

import "sort"

// KeySet is a set of state keys.
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s KeySet) Add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// Intersect returns the sorted keys present in both sets.
func (s KeySet) Intersect(o KeySet) []string {
	var out []string
	for k := range s {
		if o.Has(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
