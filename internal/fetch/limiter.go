package fetch

import (
	"context"
	"sync"
)

// DefaultConcurrency caps simultaneous in-flight fetches when the
// caller does not configure a limit.
const DefaultConcurrency = 5

// Outcome is a per-task result: failures are values, never panics or
// aborts crossing the fan-out boundary.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the task succeeded.
func (o Outcome[T]) Ok() bool { return o.Err == nil }

// RunLimited executes every task with at most limit running at once.
// Tasks are admitted in submission order; each runs to completion
// independently, and one task's failure never cancels or blocks the
// others. Outcomes are returned in task order.
func RunLimited[T any](ctx context.Context, tasks []func(context.Context) (T, error), limit int) []Outcome[T] {
	if limit < 1 {
		limit = DefaultConcurrency
	}

	sem := make(chan struct{}, limit)
	outcomes := make([]Outcome[T], len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		sem <- struct{}{} // FIFO admission
		wg.Add(1)
		go func(i int, task func(context.Context) (T, error)) {
			defer wg.Done()
			defer func() { <-sem }()
			v, err := task(ctx)
			// Each goroutine writes only its own slot; no shared
			// mutable list to interleave on.
			outcomes[i] = Outcome[T]{Value: v, Err: err}
		}(i, task)
	}

	wg.Wait()
	return outcomes
}
