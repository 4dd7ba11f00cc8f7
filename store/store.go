// Package store provides the serialized entry point for a composed state
// tree. All mutation flows through Send: reduces on one tree never
// interleave, effects run concurrently and feed their results back in as
// new actions, and retiring a case cancels its in-flight effects before
// anything that could collide with them starts.
package store

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/observability"
	"github.com/composable-features/runtime/reducer"
	"github.com/composable-features/runtime/tracking"
)

// Store owns one state tree. Create it with New, feed it with Send, and
// read it with State. No locks are exposed: the serialization discipline
// lives entirely behind the Send entry point.
type Store[S, A any] struct {
	mu        sync.Mutex
	state     S
	reduce    reducer.ReduceFunc[S, A]
	rootID    identity.ID
	registry  *identity.Registry
	registrar *tracking.Registrar
	runner    *runner[A]
	observer  observability.Observer
}

// Option configures a Store after its defaults are in place, the same
// override pattern the constructors of every other layer use.
type Option[S, A any] func(*options)

type options struct {
	registry  *identity.Registry
	registrar *tracking.Registrar
	observer  observability.Observer
}

// WithRegistry shares an identity registry with the store. Required when
// the initial state already contains composites allocated from one.
func WithRegistry[S, A any](registry *identity.Registry) Option[S, A] {
	return func(o *options) { o.registry = registry }
}

// WithRegistrar shares an observation registrar with the store.
func WithRegistrar[S, A any](registrar *tracking.Registrar) Option[S, A] {
	return func(o *options) { o.registrar = registrar }
}

// WithObserver sets the diagnostics observer. Wrap a Metrics value and a
// SlogObserver in a MultiObserver to get both counting and logs.
func WithObserver[S, A any](observer observability.Observer) Option[S, A] {
	return func(o *options) { o.observer = observer }
}

// New creates a Store over the initial state. The root instance gets a
// fresh identity; effects emitted by reducers that never stamped an owner
// are owned by it.
func New[S, A any](initial S, reduce reducer.ReduceFunc[S, A], opts ...Option[S, A]) *Store[S, A] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.observer == nil {
		o.observer = observability.NoOpObserver{}
	}
	if o.registry == nil {
		o.registry = identity.NewRegistry()
	}
	if o.registrar == nil {
		o.registrar = tracking.NewRegistrar(o.observer)
	}

	return &Store[S, A]{
		state:     initial,
		reduce:    reduce,
		rootID:    o.registry.Allocate(),
		registry:  o.registry,
		registrar: o.registrar,
		runner:    newRunner[A](o.registry, o.observer),
		observer:  o.observer,
	}
}

// Send feeds an action into the tree. Fire-and-forget: the reduce runs
// synchronously under the tree's serialization lock, effects are scheduled
// internally, and their eventual results re-enter through Send.
func (s *Store[S, A]) Send(action A) {
	s.mu.Lock()
	defer s.mu.Unlock()

	observability.Emit(s.observer, observability.EventStoreSend, observability.LevelVerbose,
		"store.Send", map[string]any{"action": fmt.Sprintf("%T", action)})

	newState, effects := s.reduce(s.state, action)
	s.state = newState

	// Teardown before startup: effects owned by identities the reduce
	// retired must be cancelled before anything from the new batch could
	// collide with them.
	s.runner.cancelRetired()

	for _, e := range effects {
		e = e.WithOwner(s.rootID)
		switch {
		case e.IsStop():
			// Merge-internal signal; nothing to run at the top level.
		case e.IsCancel():
			s.runner.cancelKey(e.Key())
		default:
			s.runner.launch(e, s.Send)
		}
	}
}

// State returns the current state. The value is a snapshot copy; holders
// never alias the store's own storage.
func (s *Store[S, A]) State() S {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Observe runs read with obs installed as the access recorder, so every
// tracked field read inside registers obs for exactly the fields it
// touched. This is the subscription surface consumed by rendering glue.
func (s *Store[S, A]) Observe(obs tracking.Observer, read func(state S)) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	s.registrar.Observe(obs, func() {
		read(state)
	})
}

// RootID returns the identity of the tree's root instance.
func (s *Store[S, A]) RootID() identity.ID {
	return s.rootID
}

// Registry returns the identity registry serving this tree.
func (s *Store[S, A]) Registry() *identity.Registry {
	return s.registry
}

// Registrar returns the observation registrar serving this tree.
func (s *Store[S, A]) Registrar() *tracking.Registrar {
	return s.registrar
}

// Wait blocks until every in-flight effect has finished. Intended for
// tests and orderly shutdown sequencing, not for the steady-state path.
func (s *Store[S, A]) Wait() {
	s.runner.wait()
}

// Close cancels all in-flight effects and waits for them to stop.
func (s *Store[S, A]) Close() {
	s.runner.close()
}

// Snapshot renders the current state as JSON for diagnostics. Tracked
// fields and composites marshal as their wrapped values, so the dump reads
// like the logical state tree.
func (s *Store[S, A]) Snapshot() ([]byte, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	data, err := jsoniter.ConfigFastest.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	return data, nil
}
