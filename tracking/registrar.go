// Package tracking implements field-level observation for state values. A
// Registrar records which observers depend on which (identity, field) pairs
// and notifies them immediately before a tracked field's value changes.
// Registration is observe-once: a fired observer must re-register to see
// the next change.
package tracking

import (
	"sync"

	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/observability"
)

// FieldKey names one field of a state value. Keys are stable per field and
// unique within the enclosing instance.
type FieldKey string

// Observer is a registered interest in field mutations.
type Observer interface {
	FieldWillChange(id identity.ID, field FieldKey)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(id identity.ID, field FieldKey)

func (f ObserverFunc) FieldWillChange(id identity.ID, field FieldKey) {
	f(id, field)
}

type interest struct {
	id    identity.ID
	field FieldKey
}

// Registrar is the per-tree observation bookkeeping. Observers attach via
// TrackAccess (or lazily through Observe + Tracked.Get) and are notified by
// WillModify before the underlying value is overwritten, so an observer
// reading state from inside its callback still sees the pre-mutation value.
//
// All methods are safe for concurrent use, but notification delivery for a
// single tree is serialized by the store's reduce entry point.
type Registrar struct {
	mu        sync.Mutex
	interests map[interest][]Observer
	current   []Observer // access-recording stack, innermost last
	flushing  bool
	deferred  []interest
	observer  observability.Observer
}

// NewRegistrar creates a Registrar emitting diagnostics to obs. A nil obs
// is replaced with NoOpObserver.
func NewRegistrar(obs observability.Observer) *Registrar {
	if obs == nil {
		obs = observability.NoOpObserver{}
	}
	return &Registrar{
		interests: make(map[interest][]Observer),
		observer:  obs,
	}
}

// TrackAccess records that obs depends on field of the instance tagged id.
// The registration fires at most once and is cleared by WillModify.
func (r *Registrar) TrackAccess(id identity.ID, field FieldKey, obs Observer) {
	if obs == nil || id.IsNil() {
		return
	}

	key := interest{id: id, field: field}

	r.mu.Lock()
	r.interests[key] = append(r.interests[key], obs)
	r.mu.Unlock()
}

// Observe installs obs as the current access recorder for the duration of
// read. Every Tracked.Get executed inside read registers obs for that
// field, which is how view glue subscribes without explicit TrackAccess
// calls at each use site.
func (r *Registrar) Observe(obs Observer, read func()) {
	if obs == nil {
		read()
		return
	}

	r.mu.Lock()
	r.current = append(r.current, obs)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.current = r.current[:len(r.current)-1]
		r.mu.Unlock()
	}()

	read()
}

// RecordAccess registers all currently installed access recorders for
// (id, field). Called by Tracked.Get and by composite tag reads.
func (r *Registrar) RecordAccess(id identity.ID, field FieldKey) {
	if id.IsNil() {
		return
	}

	key := interest{id: id, field: field}

	r.mu.Lock()
	if len(r.current) > 0 {
		r.interests[key] = append(r.interests[key], r.current...)
	}
	r.mu.Unlock()
}

// WillModify synchronously notifies every observer registered for
// (id, field) and clears their registration. Calling it for an identity
// with no registered observers is a no-op.
//
// Observers must not trigger another mutation of the same tree from inside
// their callback; a nested WillModify arriving while a flush is in progress
// is queued and delivered after the current flush completes, which bounds
// notification recursion but means the queued notification may fire after
// its field's value was installed.
func (r *Registrar) WillModify(id identity.ID, field FieldKey) {
	if id.IsNil() {
		return
	}

	key := interest{id: id, field: field}

	r.mu.Lock()
	if r.flushing {
		r.deferred = append(r.deferred, key)
		r.mu.Unlock()
		return
	}
	r.flushing = true
	r.mu.Unlock()

	r.flush(key)
}

// flush delivers notifications for key, then drains any notifications
// queued by callbacks. Runs with flushing set; callbacks execute unlocked.
func (r *Registrar) flush(key interest) {
	pending := []interest{key}

	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]

		r.mu.Lock()
		observers := r.interests[next]
		delete(r.interests, next)
		r.mu.Unlock()

		for _, obs := range observers {
			obs.FieldWillChange(next.id, next.field)
		}

		r.mu.Lock()
		pending = append(pending, r.deferred...)
		r.deferred = nil
		if len(pending) == 0 {
			r.flushing = false
		}
		r.mu.Unlock()
	}
}

// DidModify emits the post-mutation diagnostics event carrying the old and
// new values. It performs no observer bookkeeping.
func (r *Registrar) DidModify(id identity.ID, field FieldKey, oldValue, newValue any) {
	observability.Emit(r.observer, observability.EventFieldChange, observability.LevelVerbose,
		"tracking.Registrar", map[string]any{
			"identity": id.String(),
			"field":    string(field),
			"old":      oldValue,
			"new":      newValue,
		})
}

// Diagnostics returns the registrar's diagnostics observer, so layers that
// already hold the registrar can emit events to the same chain.
func (r *Registrar) Diagnostics() observability.Observer {
	return r.observer
}

// PendingObservers returns how many registrations exist for (id, field).
// Diagnostic accessor used by tests and debugging tooling.
func (r *Registrar) PendingObservers(id identity.ID, field FieldKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.interests[interest{id: id, field: field}])
}
