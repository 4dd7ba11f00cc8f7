// Package identity assigns stable, process-unique identities to tracked
// state instances. An ID travels with the logical instance it was attached
// to: a mutated copy of a state value keeps its parent's ID, so identity
// change (a different child presented into the same case) is distinguishable
// from value change.
package identity

import "github.com/google/uuid"

// ID is an opaque identity token. The zero value is Nil.
type ID struct {
	value uuid.UUID
}

// Nil is the absent identity. Values that have never been tracked carry Nil.
var Nil = ID{}

// IsNil reports whether the ID is the absent identity.
func (id ID) IsNil() bool {
	return id.value == uuid.Nil
}

// String returns the canonical textual form of the ID.
func (id ID) String() string {
	return id.value.String()
}

// CancelKey identifies in-flight asynchronous work for cancellation. Keys
// derive from the owning instance's ID, so retiring an instance cancels
// exactly the work it started and never work started by an unrelated
// instance reusing the same label.
type CancelKey struct {
	Owner ID
	Label string
}

// CancelKey derives a cancellation key owned by this ID.
func (id ID) CancelKey(label string) CancelKey {
	return CancelKey{Owner: id, Label: label}
}

// Identifiable is implemented by state values that carry their own identity.
type Identifiable interface {
	StateIdentity() ID
}

// Of returns the identity attached to v, or false if v has never been
// tracked. This is the lookup path for values passed around as any.
func Of(v any) (ID, bool) {
	ident, ok := v.(Identifiable)
	if !ok {
		return Nil, false
	}
	id := ident.StateIdentity()
	if id.IsNil() {
		return Nil, false
	}
	return id, true
}
