package identity

import (
	"sync"

	"github.com/google/uuid"
)

// Registry allocates identities and tracks which of them are still live.
// Liveness drives effect delivery gating: work owned by a retired identity
// must never deliver a result into whatever instance now occupies its slot.
// All methods are safe for concurrent use from independent feature subtrees.
type Registry struct {
	mu   sync.RWMutex
	live map[ID]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		live: make(map[ID]struct{}),
	}
}

// Allocate returns a fresh, process-unique ID and records it as live.
func (r *Registry) Allocate() ID {
	id := ID{value: uuid.Must(uuid.NewV7())}

	r.mu.Lock()
	r.live[id] = struct{}{}
	r.mu.Unlock()

	return id
}

// Retire marks an ID as no longer live. Retiring Nil or an already retired
// ID is a no-op.
func (r *Registry) Retire(id ID) {
	if id.IsNil() {
		return
	}

	r.mu.Lock()
	delete(r.live, id)
	r.mu.Unlock()
}

// IsLive reports whether the ID was allocated by this registry and has not
// been retired.
func (r *Registry) IsLive(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.live[id]
	return ok
}

// LiveCount returns the number of identities currently live.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.live)
}
