package tracking

import (
	"encoding/json"

	"github.com/composable-features/runtime/identity"
)

// Tracked wraps one field of a state value. Get registers the current
// access recorders with the enclosing Registrar; Set notifies registered
// observers before installing the new value, then emits the old/new diff
// as a diagnostics event.
//
// Set always notifies, even when the new value equals the old one:
// suppressing notification on no-op writes is a policy decision left to
// callers, not a runtime guarantee.
//
// Mutation is serialized by the owning store's reduce entry point; Tracked
// itself holds no lock.
type Tracked[V any] struct {
	value     V
	field     FieldKey
	owner     identity.ID
	registrar *Registrar
	untracked bool
}

// NewTracked creates a tracked field owned by the instance tagged owner.
func NewTracked[V any](registrar *Registrar, owner identity.ID, field FieldKey, initial V) Tracked[V] {
	return Tracked[V]{
		value:     initial,
		field:     field,
		owner:     owner,
		registrar: registrar,
	}
}

// NewUntracked creates a field whose writes never notify. Used for internal
// bookkeeping whose change must not trigger observer re-render.
func NewUntracked[V any](registrar *Registrar, owner identity.ID, field FieldKey, initial V) Tracked[V] {
	t := NewTracked(registrar, owner, field, initial)
	t.untracked = true
	return t
}

// Get returns the value, registering the access with the Registrar.
func (t *Tracked[V]) Get() V {
	if t.registrar != nil && !t.untracked {
		t.registrar.RecordAccess(t.owner, t.field)
	}
	return t.value
}

// Peek returns the value without registering an access.
func (t *Tracked[V]) Peek() V {
	return t.value
}

// Set installs newValue. For tracked fields the registered observers are
// notified first, while the pre-mutation value is still readable.
func (t *Tracked[V]) Set(newValue V) {
	if t.untracked || t.registrar == nil {
		t.value = newValue
		return
	}

	t.registrar.WillModify(t.owner, t.field)
	oldValue := t.value
	t.value = newValue
	t.registrar.DidModify(t.owner, t.field, oldValue, newValue)
}

// Field returns the field's stable key.
func (t *Tracked[V]) Field() FieldKey {
	return t.field
}

// Owner returns the identity of the enclosing instance.
func (t *Tracked[V]) Owner() identity.ID {
	return t.owner
}

// Rebind attaches the field to a new owner and registrar. Called by
// generated glue when a state value is adopted into a different tree.
func (t *Tracked[V]) Rebind(registrar *Registrar, owner identity.ID) {
	t.registrar = registrar
	t.owner = owner
}

// MarshalJSON renders the wrapped value, so state snapshots read naturally.
func (t Tracked[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.value)
}
