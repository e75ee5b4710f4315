package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// BehaviorFunc adapts a plain function to the Behavior interface, in the same
// spirit as http.HandlerFunc.
type BehaviorFunc[M Message, R any] func(ctx context.Context,
	msg M) fn.Result[R]

// Receive invokes the wrapped function.
func (f BehaviorFunc[M, R]) Receive(ctx context.Context,
	msg M) fn.Result[R] {

	return f(ctx, msg)
}
