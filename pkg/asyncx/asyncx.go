// Package asyncx bundles small concurrency helpers used across the app:
// futures, fire-and-forget goroutines, retries, and deadline wrappers.
package asyncx

import (
	"context"
	"sync"
	"time"
)

// ─── Future ──────────────────────────────────────────────────────────────────

// result holds the outcome of an async computation.
type result[T any] struct {
	value T
	err   error
}

// Future represents a value that will be available asynchronously.
// Create one with Run and retrieve its value with Await.
type Future[T any] struct {
	ch  chan result[T]
	res *result[T]
	mu  sync.Mutex
}

// Run executes fn in a goroutine and returns a Future for its result.
// The goroutine starts immediately.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{ch: make(chan result[T], 1)}
	go func() {
		v, err := fn()
		f.ch <- result[T]{value: v, err: err}
	}()
	return f
}

// Await blocks until the Future completes and returns its value and error.
// Safe to call multiple times — subsequent calls return the cached result.
func (f *Future[T]) Await() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.res == nil {
		r := <-f.ch
		f.res = &r
	}
	return f.res.value, f.res.err
}

// ─── Concurrency Primitives ───────────────────────────────────────────────────

// Do fires fn in a goroutine and forgets it (fire-and-forget).
func Do(fn func()) {
	go fn()
}

// DoCtx fires fn in a goroutine only if ctx is not already done.
func DoCtx(ctx context.Context, fn func(context.Context)) {
	go func() {
		select {
		case <-ctx.Done():
			return
		default:
			fn(ctx)
		}
	}()
}

// ─── All ──────────────────────────────────────────────────────────────────────

// All runs all fns concurrently and waits for every one to finish.
// Returns a slice of results in the same order as the input functions.
// If any function returns an error the first error is returned; other
// goroutines are still awaited so resources are not leaked.
func All[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	results := make([]T, len(fns))
	errs := make([]error, len(fns))

	var wg sync.WaitGroup
	wg.Add(len(fns))

	for i, fn := range fns {
		i, fn := i, fn
		go func() {
			defer wg.Done()
			results[i], errs[i] = fn(ctx)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ─── Retry ────────────────────────────────────────────────────────────────────

// Retry calls fn up to attempts times, returning as soon as fn succeeds.
// Returns the last error if all attempts fail.
func Retry[T any](ctx context.Context, attempts int, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero T
		err  error
		val  T
	)
	for range attempts {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
	}
	return zero, err
}

// RetryWithBackoff calls fn up to attempts times with exponential backoff
// starting at initialDelay. The delay doubles after each failed attempt.
// Respects context cancellation between retries.
func RetryWithBackoff[T any](
	ctx context.Context,
	attempts int,
	initialDelay time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	var (
		zero  T
		err   error
		val   T
		delay = initialDelay
	)
	for i := range attempts {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return zero, err
}

// ─── Timeout ──────────────────────────────────────────────────────────────────

// WithTimeout runs fn with a deadline of d.
// Returns context.DeadlineExceeded if fn does not finish in time.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type res struct {
		v   T
		err error
	}

	ch := make(chan res, 1)
	go func() {
		v, err := fn(ctx)
		ch <- res{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
