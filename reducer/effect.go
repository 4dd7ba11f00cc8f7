// Package reducer composes feature transition functions. A feature is a
// State value, an Action value, and a pure ReduceFunc from (State, Action)
// to (State, effects); this package combines many of them into one
// function, routing actions sequentially, by key path, or by enum case.
package reducer

import (
	"context"

	"github.com/composable-features/runtime/identity"
)

// ReduceFunc is a feature's transition function. It must be pure: all
// asynchronous work is described by the returned effects, never performed
// inline.
type ReduceFunc[S, A any] func(state S, action A) (S, []Effect[A])

type effectKind int

const (
	kindRun effectKind = iota
	kindCancel
	kindStop
)

// Effect describes asynchronous work emitted by a transition function. Its
// cancellation key derives from the owning instance's identity; the routing
// layer stamps the owner, so a feature only ever chooses a label.
type Effect[A any] struct {
	kind effectKind
	key  identity.CancelKey
	op   func(ctx context.Context, send func(A))
}

// Run describes cancellable asynchronous work. The op receives a send
// callback feeding actions back into the serialized reduce entry point;
// it must stop promptly when ctx is cancelled. Launching a second effect
// with the same cancellation key cancels the first.
//
// Failures have no special channel: an op that fails sends an ordinary
// action carrying the failure payload.
func Run[A any](label string, op func(ctx context.Context, send func(A))) Effect[A] {
	return Effect[A]{
		kind: kindRun,
		key:  identity.CancelKey{Label: label},
		op:   op,
	}
}

// Emit describes an effect that immediately feeds a single action back in.
func Emit[A any](action A) Effect[A] {
	return Effect[A]{
		kind: kindRun,
		op: func(ctx context.Context, send func(A)) {
			send(action)
		},
	}
}

// Cancel describes cancellation of the in-flight effect started under the
// same owner with the given label.
func Cancel[A any](label string) Effect[A] {
	return Effect[A]{
		kind: kindCancel,
		key:  identity.CancelKey{Label: label},
	}
}

// StopPropagation is the designated signal that halts sequential merge:
// reducers combined after the one returning it do not see the action.
func StopPropagation[A any]() Effect[A] {
	return Effect[A]{kind: kindStop}
}

// Key returns the effect's cancellation key. The owner is Nil until the
// routing layer stamps it.
func (e Effect[A]) Key() identity.CancelKey {
	return e.key
}

// IsCancel reports whether the effect is a cancellation directive.
func (e Effect[A]) IsCancel() bool {
	return e.kind == kindCancel
}

// IsStop reports whether the effect is the stop-propagation signal.
func (e Effect[A]) IsStop() bool {
	return e.kind == kindStop
}

// Execute runs the effect's op. Cancellation directives and stop signals
// have no op and return immediately.
func (e Effect[A]) Execute(ctx context.Context, send func(A)) {
	if e.op == nil {
		return
	}
	e.op(ctx, send)
}

// WithOwner returns a copy of the effect whose cancellation key is bound
// to owner, unless an owner was already stamped by an inner routing layer.
func (e Effect[A]) WithOwner(owner identity.ID) Effect[A] {
	if e.key.Owner.IsNil() {
		e.key.Owner = owner
	}
	return e
}

// mapEffect rebases a child effect into the parent action space. The
// cancellation key, kind, and owner stamp are preserved.
func mapEffect[CA, PA any](e Effect[CA], wrap func(CA) PA) Effect[PA] {
	mapped := Effect[PA]{
		kind: e.kind,
		key:  e.key,
	}
	if e.op != nil {
		childOp := e.op
		mapped.op = func(ctx context.Context, send func(PA)) {
			childOp(ctx, func(ca CA) {
				send(wrap(ca))
			})
		}
	}
	return mapped
}

func mapEffects[CA, PA any](effects []Effect[CA], wrap func(CA) PA, owner identity.ID) []Effect[PA] {
	if len(effects) == 0 {
		return nil
	}
	mapped := make([]Effect[PA], 0, len(effects))
	for _, e := range effects {
		mapped = append(mapped, mapEffect(e, wrap).WithOwner(owner))
	}
	return mapped
}
