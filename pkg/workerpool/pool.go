// Package workerpool runs a function over a slice with a bounded number of
// goroutines.
package workerpool

import (
	"context"
	"sync"
)

// DefaultConcurrency is used when callers pass a non-positive concurrency.
const DefaultConcurrency = 2

// RunConcurrent calls fn once for every item using at most concurrency
// workers that drain a shared queue. Items are not processed in order.
// It returns after every item has been handed to fn and fn has returned.
// Every item reaches fn even after ctx is cancelled; fn sees the cancelled
// context and decides how to record it.
func RunConcurrent[T any](ctx context.Context, items []T, concurrency int, fn func(ctx context.Context, item T)) {
	if len(items) == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	workers := max(1, min(concurrency, len(items)))

	queue := make(chan T, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range queue {
				fn(ctx, item)
			}
		}()
	}
	wg.Wait()
}
