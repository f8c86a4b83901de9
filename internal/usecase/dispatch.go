package usecase

import (
	"context"
	"sync"
)

// runTasks executes fn once per index with at most maxConcurrent goroutines
// in flight, and returns results indexed by submission order. Every task is
// scheduled and the call only returns once all of them have settled; tasks
// are never dropped. Completion order is unconstrained, which is why results
// are keyed by index rather than collected from a channel.
func runTasks[T any](ctx context.Context, n, maxConcurrent int, fn func(ctx context.Context, idx int) T) []T {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]T, n)
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = fn(ctx, idx)
		}(i)
	}

	wg.Wait()
	return results
}
