// Package enum models enum-shaped composite state: a tagged cell where
// exactly one case is live at a time. A Scope narrows the cell to one case
// and carries a back-channel for writing the case's mutated payload back
// into the parent, atomically with a staleness check, so a write-back
// racing a dismissal can never corrupt a different, now-active case.
package enum

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/composable-features/runtime/identity"
	"github.com/composable-features/runtime/observability"
	"github.com/composable-features/runtime/tracking"
)

// Composite holds the active case of an enum-shaped state. It is the one
// piece of shared mutable storage in a tree: scopes taken by the routing
// engine write back through it, and a case transition re-identifies the
// payload so effects owned by the old case can be torn down.
//
// The composite behaves as a field of its parent instance: tag and payload
// reads register an access on (parent, field) with the registrar, and
// every mutation notifies that same pair before it lands.
type Composite[Tag comparable] struct {
	mu      sync.Mutex
	tag     Tag
	payload any
	caseID  identity.ID

	parent    identity.ID
	field     tracking.FieldKey
	registry  *identity.Registry
	registrar *tracking.Registrar
}

// NewComposite creates a composite in the given initial case with a fresh
// case identity.
func NewComposite[Tag comparable](registry *identity.Registry, registrar *tracking.Registrar,
	parent identity.ID, field tracking.FieldKey, tag Tag, payload any) *Composite[Tag] {

	return &Composite[Tag]{
		tag:       tag,
		payload:   payload,
		caseID:    registry.Allocate(),
		parent:    parent,
		field:     field,
		registry:  registry,
		registrar: registrar,
	}
}

// Tag returns the active case tag, registering an access.
func (c *Composite[Tag]) Tag() Tag {
	c.mu.Lock()
	tag := c.tag
	c.mu.Unlock()

	c.registrar.RecordAccess(c.parent, c.field)
	return tag
}

// Payload returns the active case's payload, registering an access.
func (c *Composite[Tag]) Payload() any {
	c.mu.Lock()
	payload := c.payload
	c.mu.Unlock()

	c.registrar.RecordAccess(c.parent, c.field)
	return payload
}

// CaseID returns the identity of the active case's sub-state.
func (c *Composite[Tag]) CaseID() identity.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.caseID
}

// Scope narrows the composite to the given case. Returns false unless the
// active tag equals tag. The returned scope captures the case identity it
// was taken under; a later write-back is honored only while that identity
// is still the active one.
func (c *Composite[Tag]) Scope(tag Tag) (Scope[Tag], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tag != tag {
		return Scope[Tag]{}, false
	}
	return Scope[Tag]{
		composite: c,
		tag:       tag,
		caseID:    c.caseID,
		payload:   c.payload,
	}, true
}

// Transition replaces the active case. The old case's identity is retired
// and a fresh identity is allocated for the new one; the retired ID is
// returned so the caller can cancel effects owned by it before the
// transition is considered complete. Observers of the composite are
// notified before the switch lands.
func (c *Composite[Tag]) Transition(tag Tag, payload any) identity.ID {
	c.registrar.WillModify(c.parent, c.field)

	c.mu.Lock()
	retired := c.caseID
	oldTag := c.tag
	c.tag = tag
	c.payload = payload
	c.caseID = c.registry.Allocate()
	c.mu.Unlock()

	c.registry.Retire(retired)
	c.emitRetire(oldTag, retired)
	c.emitActivate(tag)
	c.registrar.DidModify(c.parent, c.field, oldTag, tag)
	return retired
}

// Replace installs a new payload for the active case as a new logical
// instance: the tag is unchanged but the case identity is re-allocated.
// This is the "present a different child into the same case" path, where
// identity change must be distinguishable from value change.
func (c *Composite[Tag]) Replace(payload any) identity.ID {
	c.registrar.WillModify(c.parent, c.field)

	c.mu.Lock()
	retired := c.caseID
	tag := c.tag
	old := c.payload
	c.payload = payload
	c.caseID = c.registry.Allocate()
	c.mu.Unlock()

	c.registry.Retire(retired)
	c.emitRetire(tag, retired)
	c.emitActivate(tag)
	c.registrar.DidModify(c.parent, c.field, old, payload)
	return retired
}

func (c *Composite[Tag]) emitRetire(tag Tag, retired identity.ID) {
	observability.Emit(c.registrar.Diagnostics(), observability.EventCaseRetire,
		observability.LevelVerbose, "enum.Composite", map[string]any{
			"case":     fmt.Sprintf("%v", tag),
			"identity": retired.String(),
		})
}

func (c *Composite[Tag]) emitActivate(tag Tag) {
	observability.Emit(c.registrar.Diagnostics(), observability.EventCaseActivate,
		observability.LevelVerbose, "enum.Composite", map[string]any{
			"case":     fmt.Sprintf("%v", tag),
			"identity": c.CaseID().String(),
		})
}

// MarshalJSON renders the active case for diagnostics snapshots.
func (c *Composite[Tag]) MarshalJSON() ([]byte, error) {
	c.mu.Lock()
	view := struct {
		Case    Tag    `json:"case"`
		ID      string `json:"identity"`
		Payload any    `json:"payload,omitempty"`
	}{
		Case:    c.tag,
		ID:      c.caseID.String(),
		Payload: c.payload,
	}
	c.mu.Unlock()

	return json.Marshal(view)
}

// Scope is a view over one case of a Composite, valid while that case's
// identity remains active. The zero value is inactive.
type Scope[Tag comparable] struct {
	composite *Composite[Tag]
	tag       Tag
	caseID    identity.ID
	payload   any
}

// State returns the case payload captured when the scope was taken.
func (s Scope[Tag]) State() any {
	return s.payload
}

// ID returns the identity of the scoped case's sub-state.
func (s Scope[Tag]) ID() identity.ID {
	return s.caseID
}

// WriteBack installs payload into the parent composite. The write is
// atomic with the staleness check: if the composite's active case or case
// identity changed since the scope was taken, the write is discarded and
// WriteBack returns false. Observers are notified before the value lands.
func (s Scope[Tag]) WriteBack(payload any) bool {
	c := s.composite
	if c == nil {
		return false
	}

	c.mu.Lock()
	stale := c.tag != s.tag || c.caseID != s.caseID
	c.mu.Unlock()
	if stale {
		return false
	}

	// Notify while the pre-mutation payload is still in place. The
	// staleness check repeats under the lock afterwards, so a transition
	// racing this notification still wins.
	c.registrar.WillModify(c.parent, c.field)

	c.mu.Lock()
	if c.tag != s.tag || c.caseID != s.caseID {
		c.mu.Unlock()
		return false
	}
	old := c.payload
	c.payload = payload
	c.mu.Unlock()

	c.registrar.DidModify(c.parent, c.field, old, payload)
	return true
}
