// Package future provides a single-assignment pending computation.
//
// A Future is started once, runs on its own goroutine and settles exactly
// once with either a value or an error. Awaiting a Future never cancels the
// computation behind it; a caller that stops waiting simply stops observing.
package future

import (
	"context"
	"fmt"
)

// Future is the eventual result of one asynchronous computation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// PanicError is returned by a Future whose computation panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("future: computation panicked: %v", e.Value)
}

// Go starts fn on a new goroutine and returns the Future of its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.val, f.err = zero, &PanicError{Value: r}
			}
		}()
		f.val, f.err = fn()
	}()
	return f
}

// Resolved returns an already settled Future holding v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), val: v}
	close(f.done)
	return f
}

// Rejected returns an already settled Future holding err.
func Rejected[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the Future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the Future has a result without blocking.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future settles and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Await blocks until the Future settles or ctx is done, whichever is first.
// When ctx wins the computation keeps running; only the caller gives up.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err waits for the Future and returns only its error.
func (f *Future[T]) Err() error {
	<-f.done
	return f.err
}

// Catch returns a Future that recovers from a rejection of f through fn.
// A successful f is passed through untouched.
func (f *Future[T]) Catch(fn func(error) (T, error)) *Future[T] {
	return Go(func() (T, error) {
		v, err := f.Wait()
		if err != nil {
			return fn(err)
		}
		return v, nil
	})
}

// Finally returns a Future that settles like f after fn has run.
// Unlike a terminal callback, the result can be chained further.
func (f *Future[T]) Finally(fn func()) *Future[T] {
	return Go(func() (T, error) {
		v, err := f.Wait()
		fn()
		return v, err
	})
}

// Then maps the value of f through fn. A rejected f propagates its error and
// fn is never called.
func Then[T, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	return Go(func() (R, error) {
		v, err := f.Wait()
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(v)
	})
}

// Chain is Then for functions that themselves return a Future. The result
// settles with the inner Future.
func Chain[T, R any](f *Future[T], fn func(T) *Future[R]) *Future[R] {
	return Go(func() (R, error) {
		v, err := f.Wait()
		if err != nil {
			var zero R
			return zero, err
		}
		return fn(v).Wait()
	})
}

// All waits for every future and returns their values in input order.
// The first error in input order wins.
func All[T any](fs ...*Future[T]) *Future[[]T] {
	return Go(func() ([]T, error) {
		out := make([]T, len(fs))
		for i, f := range fs {
			v, err := f.Wait()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	})
}

// Void is the value type of futures that carry no result.
type Void = struct{}
