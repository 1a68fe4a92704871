package device

import (
	"sync"
)

// Registry is the single source of truth for device state: one State per
// device identity, with subscriber notification. UI surfaces subscribe
// instead of holding their own copies.
type Registry struct {
	mu     sync.RWMutex
	states map[ID]*State
	subs   []chan Update
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[ID]*State)}
}

// Ensure returns the State for the device, creating and seeding it on first
// sight. An already-known device keeps its current state; its capability
// values are reconciled from the reported state instead of reseeded.
func (r *Registry) Ensure(d Device) *State {
	r.mu.Lock()
	s, ok := r.states[d.ID]
	if !ok {
		s = NewState(d)
		s.onChange = r.broadcast
		r.states[d.ID] = s
	}
	r.mu.Unlock()

	if ok {
		s.Reconcile(d.State)
	} else {
		s.notify()
	}
	return s
}

// Get returns the State for the device id.
func (r *Registry) Get(id ID) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.states[id]
	return s, ok
}

// All returns every known State.
func (r *Registry) All() []*State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*State, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s)
	}
	return out
}

// Forget drops the State for a device that no longer exists server-side.
func (r *Registry) Forget(id ID) {
	r.mu.Lock()
	delete(r.states, id)
	r.mu.Unlock()
}

// Subscribe returns a channel receiving a state snapshot after every change.
// A slow subscriber misses updates rather than blocking the writers.
func (r *Registry) Subscribe() <-chan Update {
	ch := make(chan Update, 64)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

func (r *Registry) broadcast(u Update) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- u:
		default:
		}
	}
}
