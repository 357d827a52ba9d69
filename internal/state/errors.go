package state

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey indicates a read of a key that has no value yet.
	ErrMissingKey = errors.New("state: missing key")

	// ErrUnownedKey indicates a write by a module that does not own the key
	// in the current phase.
	ErrUnownedKey = errors.New("state: write to unowned key")

	// ErrUndeclaredRead indicates a read outside the module's declared inputs.
	ErrUndeclaredRead = errors.New("state: read of undeclared key")

	// ErrShapeMismatch indicates a scalar/batched or lane-count disagreement.
	ErrShapeMismatch = errors.New("state: shape mismatch")

	// ErrNonFinite indicates a NaN or Inf value.
	ErrNonFinite = errors.New("state: non-finite value")
)

// KeyError localizes a contract violation to a module and a key.
type KeyError struct {
	Owner  string
	Key    string
	Op     string
	Detail string
	Err    error
}

func (e *KeyError) Error() string {
	msg := fmt.Sprintf("%s %q", e.Op, e.Key)
	if e.Owner != "" {
		msg += " by " + e.Owner
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
