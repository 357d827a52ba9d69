package compute

import "context"

// SerialBackend runs tasks one after another on the calling goroutine.
type SerialBackend struct{}

func NewSerialBackend() *SerialBackend { return &SerialBackend{} }

func (s *SerialBackend) Name() string { return "serial" }
func (s *SerialBackend) Workers() int { return 1 }
func (s *SerialBackend) Cleanup()     {}

// Dispatch still runs tasks after a failure so every module gets the same
// chance to report, matching the parallel backend.
func (s *SerialBackend) Dispatch(ctx context.Context, tasks []Task) error {
	errs := make([]error, len(tasks))
	for i, t := range tasks {
		errs[i] = runTask(ctx, i, t)
	}
	return firstError(errs)
}

func (s *SerialBackend) Lanes(n int, fn func(start, end int)) {
	if n > 0 {
		fn(0, n)
	}
}
