package concurrency

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Result pairs one input item with the outcome of its mapper call. Output
// order always matches input order regardless of completion order.
type Result[T any] struct {
	Value T
	Err   error
}

// MapConcurrent runs fn over items with at most maxConcurrent calls in
// flight. Slots are released item by item, so a fast item never waits behind
// a slow one beyond the window cap. A failing item records its error in the
// corresponding Result and does not disturb the other in-flight calls; the
// caller decides whether individual failures are tolerable.
//
// maxConcurrent < 1 is treated as 1. An empty input returns an empty slice
// immediately. The context is passed through to fn; cancellation before an
// item acquires a slot records ctx.Err() for that item.
func MapConcurrent[In, Out any](ctx context.Context, items []In, fn func(context.Context, In) (Out, error), maxConcurrent int) []Result[Out] {
	results := make([]Result[Out], len(items))
	if len(items) == 0 {
		return results
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	var wg sync.WaitGroup
	for i := range items {
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx].Value, results[idx].Err = fn(ctx, items[idx])
		}(i)
	}
	wg.Wait()
	return results
}
