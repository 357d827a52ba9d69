package compute

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// minLanesPerChunk keeps tiny batches on one goroutine.
const minLanesPerChunk = 16

// CPUBackend fans tasks and lane chunks out over a bounded goroutine pool.
type CPUBackend struct {
	workers int
}

func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{workers: workers}
}

func (c *CPUBackend) Name() string { return "cpu" }
func (c *CPUBackend) Workers() int { return c.workers }
func (c *CPUBackend) Cleanup()     {}

func (c *CPUBackend) Dispatch(ctx context.Context, tasks []Task) error {
	if len(tasks) == 1 {
		return runTask(ctx, 0, tasks[0])
	}

	errs := make([]error, len(tasks))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, t := range tasks {
		g.Go(func() error {
			errs[i] = runTask(ctx, i, t)
			return nil
		})
	}
	g.Wait()
	return firstError(errs)
}

func (c *CPUBackend) Lanes(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < minLanesPerChunk*2 || c.workers == 1 {
		fn(0, n)
		return
	}

	chunks := c.workers
	if limit := n / minLanesPerChunk; chunks > limit {
		chunks = limit
	}
	chunkSize := (n + chunks - 1) / chunks

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		panicked bool
		first    any
	)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if !panicked {
						panicked, first = true, r
					}
					mu.Unlock()
				}
			}()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()

	// Re-raise on the caller so the task's recover turns it into a PanicError.
	if panicked {
		panic(first)
	}
}
