package actor

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// defaultCleanupTimeout bounds how long a Stoppable behavior may spend in
// OnStop during shutdown.
const defaultCleanupTimeout = 5 * time.Second

// envelope pairs a message with the promise used to deliver an ask response.
// A nil promise marks a tell (fire-and-forget) send. The caller context lets
// the actor honor request-scoped deadlines for asks.
type envelope[M Message, R any] struct {
	message   M
	promise   Promise[R]
	callerCtx context.Context
}

// Config holds the parameters for creating an Actor.
type Config[M Message, R any] struct {
	// ID uniquely identifies the actor.
	ID string

	// Behavior defines how the actor responds to messages.
	Behavior Behavior[M, R]

	// DLO receives messages drained from the mailbox during shutdown.
	// May be nil, in which case drained messages are dropped.
	DLO ActorRef[Message, any]

	// MailboxSize is the buffer capacity of the actor's mailbox.
	MailboxSize int

	// Wg, when non-nil, tracks the actor goroutine so the owning system
	// can wait for deterministic shutdown.
	Wg *sync.WaitGroup

	// CleanupTimeout overrides the default OnStop deadline.
	CleanupTimeout fn.Option[time.Duration]
}

// Actor runs a Behavior over a mailbox in a dedicated goroutine, processing
// messages strictly one at a time.
type Actor[M Message, R any] struct {
	id       string
	behavior Behavior[M, R]
	mailbox  Mailbox[M, R]

	ctx    context.Context
	cancel context.CancelFunc

	dlo            ActorRef[Message, any]
	wg             *sync.WaitGroup
	cleanupTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once

	ref ActorRef[M, R]
}

// NewActor creates an actor without starting its process loop. Call Start to
// begin handling messages.
func NewActor[M Message, R any](cfg Config[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	capacity := cfg.MailboxSize
	if capacity <= 0 {
		capacity = 1
	}

	a := &Actor[M, R]{
		id:             cfg.ID,
		behavior:       cfg.Behavior,
		mailbox:        NewChannelMailbox[M, R](ctx, capacity),
		ctx:            ctx,
		cancel:         cancel,
		dlo:            cfg.DLO,
		wg:             cfg.Wg,
		cleanupTimeout: cfg.CleanupTimeout.UnwrapOr(defaultCleanupTimeout),
	}
	a.ref = &actorRef[M, R]{actor: a}

	return a
}

// Start launches the process loop. Repeated calls are no-ops.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		log.DebugS(a.ctx, "Starting actor", "actor_id", a.id)

		if a.wg != nil {
			a.wg.Add(1)
		}
		go a.process()
	})
}

// Stop cancels the actor's context, terminating the process loop. The loop
// closes the mailbox and routes any remaining messages to the DLO.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(a.cancel)
}

// Ref returns a reference for sending messages to this actor.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}

// TellRef returns a capability-restricted reference that only permits tells.
func (a *Actor[M, R]) TellRef() TellOnlyRef[M] {
	return a.ref
}

// process is the actor's event loop. It runs until the lifecycle context is
// cancelled, then drains the mailbox and runs optional behavior cleanup.
func (a *Actor[M, R]) process() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	for env := range a.mailbox.Receive(a.ctx) {
		// Asks observe both the actor lifecycle and the caller's
		// deadline. Tells only observe the lifecycle: once enqueued,
		// a fire-and-forget message is not cancellable by its sender.
		procCtx := a.ctx
		cancel := context.CancelFunc(func() {})
		if env.promise != nil {
			procCtx, cancel = mergeContexts(a.ctx, env.callerCtx)
		}

		result := a.behavior.Receive(procCtx, env.message)
		cancel()

		if env.promise != nil {
			env.promise.Complete(result)
		}
	}

	// Shutdown: refuse new sends, then hand undelivered messages to the
	// DLO and fail their pending asks.
	a.mailbox.Close()
	for env := range a.mailbox.Drain() {
		if a.dlo != nil {
			a.dlo.Tell(context.Background(), env.message)
		}
		if env.promise != nil {
			env.promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	if stoppable, ok := a.behavior.(Stoppable); ok {
		cleanupCtx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTimeout,
		)
		if err := stoppable.OnStop(cleanupCtx); err != nil {
			log.WarnS(a.ctx, "Actor cleanup failed", err,
				"actor_id", a.id)
		}
		cancel()
	}

	log.DebugS(a.ctx, "Actor terminated", "actor_id", a.id)
}

// mergeContexts derives a context that cancels when either parent cancels,
// keeping the earlier of the two deadlines. The watcher goroutine exits as
// soon as any of the three contexts is done.
func mergeContexts(ctx1, ctx2 context.Context) (context.Context,
	context.CancelFunc) {

	base := ctx1
	if d2, ok := ctx2.Deadline(); ok {
		d1, ok1 := ctx1.Deadline()
		if !ok1 || d2.Before(d1) {
			base = ctx2
		}
	}

	merged, cancel := context.WithCancel(base)
	go func() {
		select {
		case <-ctx1.Done():
			cancel()
		case <-ctx2.Done():
			cancel()
		case <-merged.Done():
		}
	}()

	return merged, cancel
}

// actorRef implements ActorRef against a local actor instance.
type actorRef[M Message, R any] struct {
	actor *Actor[M, R]
}

// ID returns the target actor's identifier.
func (r *actorRef[M, R]) ID() string {
	return r.actor.id
}

// Tell sends a fire-and-forget message. Failures caused by actor termination
// are routed to the DLO; failures caused by caller cancellation drop the
// message silently.
func (r *actorRef[M, R]) Tell(ctx context.Context, msg M) {
	env := envelope[M, R]{message: msg, callerCtx: ctx}
	if r.actor.mailbox.Send(ctx, env) {
		return
	}

	if ctx.Err() == nil || r.actor.ctx.Err() != nil {
		if r.actor.dlo != nil {
			r.actor.dlo.Tell(context.Background(), msg)
		}
	}
}

// Ask sends a message and returns a future completed with the behavior's
// response, or with an error if the send fails.
func (r *actorRef[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	promise := NewPromise[R]()

	if r.actor.ctx.Err() != nil {
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}

	env := envelope[M, R]{
		message:   msg,
		promise:   promise,
		callerCtx: ctx,
	}
	if !r.actor.mailbox.Send(ctx, env) {
		// Actor termination takes precedence over caller cancellation
		// when explaining the failure.
		switch {
		case r.actor.ctx.Err() != nil:
			promise.Complete(fn.Err[R](ErrActorTerminated))

		case ctx.Err() != nil:
			promise.Complete(fn.Err[R](ctx.Err()))

		default:
			promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	return promise.Future()
}
