// Package actorutil provides convenience helpers over the baselib actor
// runtime for synchronous ask/await round trips.
package actorutil

import (
	"context"
	"fmt"

	"github.com/roasbeef/marquee/internal/baselib/actor"
)

// AskAwait sends an Ask message and blocks until the response is available,
// unpacking the Result into a value and error.
func AskAwait[M actor.Message, R any](ctx context.Context,
	ref actor.ActorRef[M, R], msg M) (R, error) {

	future := ref.Ask(ctx, msg)
	return future.Await(ctx).Unpack()
}

// AskAwaitTyped is AskAwait plus a type assertion on the response, for actors
// whose response type is a union interface.
func AskAwaitTyped[M actor.Message, R any, T any](ctx context.Context,
	ref actor.ActorRef[M, R], msg M) (T, error) {

	resp, err := AskAwait(ctx, ref, msg)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := any(resp).(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected response type: got %T, "+
			"want %T", resp, zero)
	}

	return typed, nil
}
