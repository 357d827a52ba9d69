package compute

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
)

// Task is one unit of per-phase work, usually a single module's update.
type Task func(ctx context.Context) error

// Backend executes a phase's tasks and waits for all of them before
// returning. The engine's ordering guarantees do not depend on which backend
// runs a phase, only on Dispatch being a barrier.
type Backend interface {
	Name() string
	Workers() int

	// Dispatch runs every task and returns the error of the lowest-indexed
	// task that failed, so the result does not depend on scheduling.
	Dispatch(ctx context.Context, tasks []Task) error

	// Lanes splits [0, n) into contiguous chunks and calls fn for each.
	// Chunks never overlap, so fn may write lane-indexed slices directly.
	Lanes(n int, fn func(start, end int))

	Cleanup()
}

// PanicError is returned by Dispatch when a task panics.
type PanicError struct {
	Task  int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %d panicked: %v", e.Task, e.Value)
}

var factories = map[string]func(workers int) Backend{
	"serial": func(int) Backend { return NewSerialBackend() },
	"cpu":    func(w int) Backend { return NewCPUBackend(w) },
}

// ByName builds a registered backend. workers <= 0 picks the default.
func ByName(name string, workers int) (Backend, error) {
	f, ok := factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(workers), nil
}

func Names() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AutoSelectBackend picks the parallel CPU backend when more than one worker
// is available, else the serial one.
func AutoSelectBackend() Backend {
	cpu := NewCPUBackend(0)
	if cpu.Workers() > 1 {
		return cpu
	}
	return NewSerialBackend()
}

func runTask(ctx context.Context, i int, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: i, Value: r, Stack: debug.Stack()}
		}
	}()
	return t(ctx)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
