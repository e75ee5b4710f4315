package actor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// stoppable lets the system shut down heterogeneous actors uniformly.
type stoppable interface {
	Stop()
}

// SystemConfig holds system-wide configuration.
type SystemConfig struct {
	// MailboxCapacity is the default mailbox buffer for spawned actors.
	MailboxCapacity int
}

// DefaultConfig returns the default system configuration.
func DefaultConfig() SystemConfig {
	return SystemConfig{
		MailboxCapacity: 100,
	}
}

// ActorSystem owns actor lifecycles, provides service discovery through a
// receptionist, and routes undeliverable messages to a dead letter actor.
type ActorSystem struct {
	receptionist *Receptionist
	config       SystemConfig

	deadLetterActor ActorRef[Message, any]

	mu     sync.RWMutex
	actors map[string]stoppable

	ctx    context.Context
	cancel context.CancelFunc

	// actorWg tracks running actor goroutines for deterministic shutdown.
	actorWg sync.WaitGroup
}

// NewActorSystem creates a system with default configuration.
func NewActorSystem() *ActorSystem {
	return NewActorSystemWithConfig(DefaultConfig())
}

// NewActorSystemWithConfig creates a system with custom configuration.
func NewActorSystemWithConfig(config SystemConfig) *ActorSystem {
	ctx, cancel := context.WithCancel(context.Background())

	system := &ActorSystem{
		receptionist: newReceptionist(),
		config:       config,
		actors:       make(map[string]stoppable),
		ctx:          ctx,
		cancel:       cancel,
	}

	// The dead letter actor simply rejects everything it receives. Its
	// own DLO is nil to avoid delivery loops.
	dlo := NewActor(Config[Message, any]{
		ID: "dead-letters",
		Behavior: BehaviorFunc[Message, any](func(_ context.Context,
			msg Message) fn.Result[any] {

			return fn.Err[any](errors.New(
				"message undeliverable: " + msg.MessageType(),
			))
		}),
		MailboxSize: config.MailboxCapacity,
		Wg:          &system.actorWg,
	})
	dlo.Start()
	system.deadLetterActor = dlo.Ref()
	system.actors[dlo.id] = dlo

	return system
}

// Receptionist returns the system's service discovery registry.
func (as *ActorSystem) Receptionist() *Receptionist {
	return as.receptionist
}

// DeadLetters returns the dead letter actor reference.
func (as *ActorSystem) DeadLetters() ActorRef[Message, any] {
	return as.deadLetterActor
}

// Shutdown stops all managed actors and waits for their goroutines to exit,
// bounded by the supplied context.
func (as *ActorSystem) Shutdown(ctx context.Context) error {
	// Cancelling first prevents registrations racing the WaitGroup wait
	// below.
	as.cancel()

	as.mu.Lock()
	actorsToStop := make([]stoppable, 0, len(as.actors))
	for _, a := range as.actors {
		actorsToStop = append(actorsToStop, a)
	}
	as.actors = nil
	as.mu.Unlock()

	log.InfoS(ctx, "Actor system shutting down",
		"num_actors", len(actorsToStop))

	for _, a := range actorsToStop {
		a.Stop()
	}

	done := make(chan struct{})
	go func() {
		as.actorWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.InfoS(ctx, "Actor system shutdown complete")
		return nil

	case <-ctx.Done():
		log.ErrorS(ctx, "Actor system shutdown incomplete", ctx.Err())
		return ctx.Err()
	}
}

// StopAndRemoveActor stops one actor by ID, reporting whether it was found.
func (as *ActorSystem) StopAndRemoveActor(id string) bool {
	as.mu.Lock()
	defer as.mu.Unlock()

	a, ok := as.actors[id]
	if !ok {
		return false
	}

	a.Stop()
	delete(as.actors, id)

	return true
}

// ServiceKey is a typed name under which actors register with the
// receptionist. The type parameters guarantee that lookups only yield refs
// with compatible message and response types.
type ServiceKey[M Message, R any] struct {
	name string
}

// NewServiceKey creates a service key with the given name.
func NewServiceKey[M Message, R any](name string) ServiceKey[M, R] {
	return ServiceKey[M, R]{name: name}
}

// Spawn creates, starts, and registers an actor with the system under this
// key, returning its reference. If the system is already shut down or the key
// name collides with different types, the returned ref fails all operations
// with ErrActorTerminated.
func (sk ServiceKey[M, R]) Spawn(as *ActorSystem, id string,
	behavior Behavior[M, R]) ActorRef[M, R] {

	if as.ctx.Err() != nil {
		return newStoppedActorRef[M, R](id)
	}

	a := NewActor(Config[M, R]{
		ID:          id,
		Behavior:    behavior,
		DLO:         as.deadLetterActor,
		MailboxSize: as.config.MailboxCapacity,
		Wg:          &as.actorWg,
	})
	a.Start()

	as.mu.Lock()
	as.actors[a.id] = a
	as.mu.Unlock()

	if err := RegisterWithReceptionist(as.receptionist, sk, a.Ref()); err != nil {
		a.Stop()
		as.mu.Lock()
		delete(as.actors, a.id)
		as.mu.Unlock()

		return newStoppedActorRef[M, R](id)
	}

	log.DebugS(as.ctx, "Actor registered", "actor_id", id,
		"service_key", sk.name)

	return a.Ref()
}

// newStoppedActorRef builds a non-nil reference whose every operation fails
// with ErrActorTerminated, avoiding nil panics for callers of failed spawns.
func newStoppedActorRef[M Message, R any](id string) ActorRef[M, R] {
	a := NewActor(Config[M, R]{ID: id})
	a.Stop()
	return a.Ref()
}

// serviceTypeInfo records the message/response types bound to a key name.
type serviceTypeInfo struct {
	msgTypeName  string
	respTypeName string
}

// Receptionist provides service discovery: actors register under service keys
// and are later found by other components.
type Receptionist struct {
	mu            sync.RWMutex
	registrations map[string][]BaseActorRef
	typeRegistry  map[string]serviceTypeInfo
}

func newReceptionist() *Receptionist {
	return &Receptionist{
		registrations: make(map[string][]BaseActorRef),
		typeRegistry:  make(map[string]serviceTypeInfo),
	}
}

// RegisterWithReceptionist adds a ref under a key, validating that the key
// name is not already bound to different types. Package-level because Go
// methods cannot introduce type parameters.
func RegisterWithReceptionist[M Message, R any](r *Receptionist,
	key ServiceKey[M, R], ref ActorRef[M, R]) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	expected := serviceTypeInfo{
		msgTypeName:  reflect.TypeOf((*M)(nil)).Elem().String(),
		respTypeName: reflect.TypeOf((*R)(nil)).Elem().String(),
	}

	if existing, ok := r.typeRegistry[key.name]; ok {
		if existing != expected {
			return fmt.Errorf("%w: service %q bound to (%s, %s)",
				ErrServiceKeyTypeMismatch, key.name,
				existing.msgTypeName, existing.respTypeName)
		}
	} else {
		r.typeRegistry[key.name] = expected
	}

	r.registrations[key.name] = append(r.registrations[key.name], ref)

	return nil
}

// FindInReceptionist returns all refs registered under a key.
func FindInReceptionist[M Message, R any](r *Receptionist,
	key ServiceKey[M, R]) []ActorRef[M, R] {

	r.mu.RLock()
	defer r.mu.RUnlock()

	baseRefs, ok := r.registrations[key.name]
	if !ok {
		return nil
	}

	refs := make([]ActorRef[M, R], 0, len(baseRefs))
	for _, base := range baseRefs {
		if typed, ok := base.(ActorRef[M, R]); ok {
			refs = append(refs, typed)
		}
	}

	return refs
}
