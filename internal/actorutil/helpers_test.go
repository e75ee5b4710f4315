package actorutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/roasbeef/marquee/internal/baselib/actor"
	"github.com/stretchr/testify/require"
)

// addMsg asks a worker to add a delta to its base value.
type addMsg struct {
	actor.BaseMessage
	delta int
}

func (addMsg) MessageType() string { return "add" }

// startAdder spawns an actor that adds its configured base to each message's
// delta, failing on negative deltas.
func startAdder(t *testing.T, base int) actor.ActorRef[addMsg, int] {
	t.Helper()

	a := actor.NewActor(actor.Config[addMsg, int]{
		ID: fmt.Sprintf("adder-%d", base),
		Behavior: actor.BehaviorFunc[addMsg, int](
			func(_ context.Context, msg addMsg) fn.Result[int] {
				if msg.delta < 0 {
					return fn.Err[int](fmt.Errorf(
						"negative delta %d", msg.delta,
					))
				}
				return fn.Ok(base + msg.delta)
			},
		),
		MailboxSize: 8,
	})
	a.Start()
	t.Cleanup(a.Stop)

	return a.Ref()
}

func TestAskAwait(t *testing.T) {
	t.Parallel()

	ref := startAdder(t, 10)

	got, err := AskAwait(context.Background(), ref, addMsg{delta: 5})
	require.NoError(t, err)
	require.Equal(t, 15, got)

	_, err = AskAwait(context.Background(), ref, addMsg{delta: -1})
	require.Error(t, err)
}

func TestAskAwaitTyped(t *testing.T) {
	t.Parallel()

	ref := startAdder(t, 10)

	got, err := AskAwaitTyped[addMsg, int, int](
		context.Background(), ref, addMsg{delta: 5},
	)
	require.NoError(t, err)
	require.Equal(t, 15, got)

	_, err = AskAwaitTyped[addMsg, int, string](
		context.Background(), ref, addMsg{delta: 5},
	)
	require.ErrorContains(t, err, "unexpected response type")
}
