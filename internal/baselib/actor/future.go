package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promiseImpl is the shared state backing a Promise and its Future. The done
// channel is closed exactly once, after which result is immutable.
type promiseImpl[T any] struct {
	once   sync.Once
	done   chan struct{}
	result fn.Result[T]
}

// NewPromise creates an incomplete promise.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{
		done: make(chan struct{}),
	}
}

// NewCompletedFuture returns a future that is already resolved with the given
// result. Useful for fast-path returns that skip an actor round trip.
func NewCompletedFuture[T any](result fn.Result[T]) Future[T] {
	p := &promiseImpl[T]{done: make(chan struct{})}
	p.Complete(result)
	return p.Future()
}

// Complete sets the result if no result has been set yet, reporting whether
// this call performed the completion.
func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		completed = true
	})

	return completed
}

// Future returns the read side of this promise.
func (p *promiseImpl[T]) Future() Future[T] {
	return (*futureImpl[T])(p)
}

// futureImpl is the Future view over the same state as promiseImpl.
type futureImpl[T any] promiseImpl[T]

// Await blocks until the promise completes or the context is cancelled.
func (f *futureImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-f.done:
		return f.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// OnComplete invokes the callback once the result is ready, from a separate
// goroutine. Context cancellation delivers the context's error instead.
func (f *futureImpl[T]) OnComplete(ctx context.Context,
	callback func(fn.Result[T])) {

	go func() {
		callback(f.Await(ctx))
	}()
}
