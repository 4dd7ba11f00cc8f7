package store

import (
	"context"
	"sync"

	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/observability"
	"github.com/composable-features/runtime/reducer"
)

// runner executes effects concurrently and tracks them by cancellation key.
// Delivery is double-gated: an effect whose context was cancelled, or whose
// owner identity was retired, cannot feed a result back into the store.
type runner[A any] struct {
	mu       sync.Mutex
	base     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight map[identity.CancelKey]*task
	registry *identity.Registry
	observer observability.Observer
}

type task struct {
	cancel context.CancelFunc
	owner  identity.ID
	label  string
}

func newRunner[A any](registry *identity.Registry, observer observability.Observer) *runner[A] {
	base, cancel := context.WithCancel(context.Background())
	return &runner[A]{
		base:     base,
		cancel:   cancel,
		inflight: make(map[identity.CancelKey]*task),
		registry: registry,
		observer: observer,
	}
}

// launch starts the effect on its own goroutine. A labelled effect whose
// cancellation key collides with an in-flight one cancels the old effect
// before the new one starts; unlabelled effects are not collision-tracked.
func (r *runner[A]) launch(e reducer.Effect[A], send func(A)) {
	key := e.Key()
	ctx, cancel := context.WithCancel(r.base)
	t := &task{cancel: cancel, owner: key.Owner, label: key.Label}

	tracked := key.Label != ""
	if tracked {
		r.mu.Lock()
		if prev, ok := r.inflight[key]; ok {
			prev.cancel()
			r.emitCancel(prev, "superseded")
		}
		r.inflight[key] = t
		r.mu.Unlock()
	}

	observability.Emit(r.observer, observability.EventEffectLaunch, observability.LevelVerbose,
		"store.runner", map[string]any{
			"owner": key.Owner.String(),
			"label": key.Label,
		})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			if tracked {
				r.mu.Lock()
				if r.inflight[key] == t {
					delete(r.inflight, key)
				}
				r.mu.Unlock()
			}
		}()

		e.Execute(ctx, func(action A) {
			if ctx.Err() != nil {
				return
			}
			if !t.owner.IsNil() && !r.registry.IsLive(t.owner) {
				return
			}
			send(action)
		})
	}()
}

// cancelKey cancels the in-flight effect with the given key, if any.
func (r *runner[A]) cancelKey(key identity.CancelKey) {
	r.mu.Lock()
	t, ok := r.inflight[key]
	if ok {
		delete(r.inflight, key)
	}
	r.mu.Unlock()

	if ok {
		t.cancel()
		r.emitCancel(t, "directive")
	}
}

// cancelRetired cancels every in-flight effect whose owner is no longer
// live. Called after each reduce, before the new effect batch launches, so
// a cancelled effect from a retired case can never outlive the case that
// replaced it.
func (r *runner[A]) cancelRetired() {
	var stale []*task

	r.mu.Lock()
	for key, t := range r.inflight {
		if !t.owner.IsNil() && !r.registry.IsLive(t.owner) {
			stale = append(stale, t)
			delete(r.inflight, key)
		}
	}
	r.mu.Unlock()

	for _, t := range stale {
		t.cancel()
		r.emitCancel(t, "owner_retired")
	}
}

func (r *runner[A]) emitCancel(t *task, reason string) {
	observability.Emit(r.observer, observability.EventEffectCancel, observability.LevelVerbose,
		"store.runner", map[string]any{
			"owner":  t.owner.String(),
			"label":  t.label,
			"reason": reason,
		})
}

// wait blocks until every in-flight effect has finished.
func (r *runner[A]) wait() {
	r.wg.Wait()
}

// close cancels all in-flight effects and waits for them to finish.
func (r *runner[A]) close() {
	r.cancel()
	r.wg.Wait()
}
