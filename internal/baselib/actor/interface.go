// Package actor implements a minimal typed actor runtime. Each actor owns its
// mutable state and processes messages sequentially from a mailbox, so callers
// never need locks to interact with it. Request/response interactions are
// modelled with futures.
package actor

import (
	"context"
	"fmt"
	"iter"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrActorTerminated indicates that an operation failed because the target
// actor was terminated or shutting down.
var ErrActorTerminated = fmt.Errorf("actor terminated")

// ErrServiceKeyTypeMismatch indicates a registration attempt for a service
// key name that is already bound to different message or response types.
var ErrServiceKeyTypeMismatch = fmt.Errorf("service key type mismatch")

// BaseMessage can be embedded by message types defined outside this package
// to satisfy the sealed Message interface.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// Message is the sealed interface all actor messages implement. Types embed
// BaseMessage to satisfy the unexported marker method.
type Message interface {
	messageMarker()

	// MessageType returns the type name of the message for routing and
	// log lines.
	MessageType() string
}

// Future is the read side of an asynchronous result.
type Future[T any] interface {
	// Await blocks until the result is available or the context is
	// cancelled, then returns it.
	Await(ctx context.Context) fn.Result[T]

	// OnComplete registers a function invoked once the result is ready.
	// If the context is cancelled first, the callback receives the
	// context's error.
	OnComplete(ctx context.Context, f func(fn.Result[T]))
}

// Promise is the write side of a Future. The producer completes it exactly
// once; subsequent completions are ignored.
type Promise[T any] interface {
	// Future returns the Future associated with this promise.
	Future() Future[T]

	// Complete attempts to set the result. It returns true if this call
	// won the race to complete the future.
	Complete(result fn.Result[T]) bool
}

// BaseActorRef is the non-generic base of all actor references, letting
// heterogeneous refs live in one registry.
type BaseActorRef interface {
	// ID returns the unique identifier for this actor.
	ID() string
}

// TellOnlyRef is a reference supporting only fire-and-forget sends.
type TellOnlyRef[M Message] interface {
	BaseActorRef

	// Tell sends a message without waiting for a response. The message
	// may be dropped if the context is cancelled before enqueue.
	Tell(ctx context.Context, msg M)
}

// ActorRef is a reference supporting both tell and ask interactions.
type ActorRef[M Message, R any] interface {
	TellOnlyRef[M]

	// Ask sends a message and returns a Future for the response.
	Ask(ctx context.Context, msg M) Future[R]
}

// Behavior encapsulates how an actor reacts to messages. Receive is always
// invoked from the actor's own goroutine, so implementations may mutate
// internal state freely.
type Behavior[M Message, R any] interface {
	// Receive processes one message. The context merges the actor's
	// lifecycle context with the caller's request context for ask
	// interactions, so it cancels on either shutdown or caller deadline.
	Receive(ctx context.Context, msg M) fn.Result[R]
}

// Stoppable is an optional interface behaviors implement to release external
// resources during actor shutdown.
type Stoppable interface {
	// OnStop runs after the message loop exits, bounded by a cleanup
	// deadline on the supplied context.
	OnStop(ctx context.Context) error
}

// Mailbox is the actor's message queue abstraction.
//
// Send and TrySend may be called concurrently; Receive and Drain are only
// called from the actor's process loop; Close is idempotent. Sends fail after
// Close.
type Mailbox[M Message, R any] interface {
	// Send enqueues an envelope, blocking until accepted or either the
	// caller's or the actor's context is cancelled. It reports whether
	// the envelope was accepted.
	Send(ctx context.Context, env envelope[M, R]) bool

	// TrySend enqueues without blocking, reporting success.
	TrySend(env envelope[M, R]) bool

	// Receive iterates envelopes as they arrive, stopping when ctx is
	// cancelled or the mailbox closes.
	Receive(ctx context.Context) iter.Seq[envelope[M, R]]

	// Close stops further sends. Remaining envelopes stay drainable.
	Close()

	// IsClosed reports whether Close has been called.
	IsClosed() bool

	// Drain iterates envelopes left after Close.
	Drain() iter.Seq[envelope[M, R]]
}
