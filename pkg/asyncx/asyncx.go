// Package asyncx runs work on goroutines and collects the results.
package asyncx

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// PanicError is returned by a Future whose function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("asyncx: panic: %v", e.Value)
}

type result[T any] struct {
	value T
	err   error
}

// Future is a value computed on another goroutine.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	res  result[T]
}

// Run starts fn on a new goroutine. A panic inside fn is turned into a
// *PanicError instead of crashing the process.
func Run[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.finish(result[T]{err: &PanicError{Value: r, Stack: debug.Stack()}})
			}
		}()
		v, err := fn(ctx)
		f.finish(result[T]{value: v, err: err})
	}()
	return f
}

func (f *Future[T]) finish(r result[T]) {
	f.once.Do(func() {
		f.res = r
		close(f.done)
	})
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.res.value, f.res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Go runs fn on a new goroutine and reports a recovered panic to onPanic.
func Go(fn func(), onPanic func(*PanicError)) {
	go func() {
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(&PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		fn()
	}()
}
