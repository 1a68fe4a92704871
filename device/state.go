package device

import (
	"fmt"
	"sync"

	"github.com/domotik/hubms/capability"
)

type (
	// Provenance tells whether a capability value is server-confirmed or a
	// local optimistic write awaiting confirmation.
	Provenance int

	value struct {
		v       interface{}
		prov    Provenance
		prev    interface{}
		hasPrev bool
	}

	// State is the in-memory capability -> value view of one device. All
	// methods are safe for concurrent use.
	State struct {
		mu     sync.RWMutex
		meta   Meta
		caps   []string
		values map[string]value
		local  map[string]interface{}
		seq    uint64

		onChange func(Update)
	}

	// Update is a snapshot handed to state subscribers after every change.
	Update struct {
		Device  Meta                   `json:"device"`
		State   map[string]interface{} `json:"state"`
		Local   map[string]interface{} `json:"local"`
		Pending []string               `json:"pending,omitempty"`
	}
)

// Value provenances.
const (
	Confirmed Provenance = iota
	Pending
)

// NewState seeds local state from the device's reported state, defaulting any
// capability the device exposes but did not report. Seeding is idempotent:
// the same device always yields the same state mapping.
func NewState(d Device) *State {
	s := &State{
		meta:   d.Meta,
		caps:   append([]string(nil), d.Capabilities...),
		values: make(map[string]value, len(d.Capabilities)),
		local:  make(map[string]interface{}),
	}

	for _, cap := range d.Capabilities {
		if v, ok := d.State[cap]; ok {
			s.values[cap] = value{v: v, prov: Confirmed}
			continue
		}
		if desc, ok := capability.Describe(cap); ok {
			s.values[cap] = value{v: desc.Default, prov: Confirmed}
		}
		// unknown capability without a reported value: no control, no state
	}

	return s
}

// Meta returns the device identity.
func (s *State) Meta() Meta {
	return s.meta
}

// Capabilities returns the capability set the device exposes.
func (s *State) Capabilities() []string {
	return append([]string(nil), s.caps...)
}

// Has reports whether the device exposes the given capability.
func (s *State) Has(cap string) bool {
	for _, c := range s.caps {
		if c == cap {
			return true
		}
	}
	return false
}

// SetLocal applies an optimistic write: the value is clamped to the
// capability's domain, stored immediately, marked pending, and the prior
// value is snapshotted for rollback. It returns the clamped value and the
// sequence number of the write.
func (s *State) SetLocal(cap string, v interface{}) (interface{}, uint64, error) {
	if !s.Has(cap) {
		return nil, 0, fmt.Errorf("device %s does not expose capability %s", s.meta.ID, cap)
	}

	if desc, ok := capability.Describe(cap); ok {
		v = desc.Clamp(v)
	}

	s.mu.Lock()
	cur := s.values[cap]
	next := value{v: v, prov: Pending}
	if !cur.hasPrev {
		// keep the last confirmed value across successive optimistic writes
		next.prev = cur.v
		next.hasPrev = true
	} else {
		next.prev = cur.prev
		next.hasPrev = true
	}
	s.values[cap] = next
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.notify()
	return v, seq, nil
}

// Rollback restores the snapshotted pre-optimistic value for the capability.
// It is a no-op if the capability has no pending write.
func (s *State) Rollback(cap string) {
	s.mu.Lock()
	cur, ok := s.values[cap]
	if !ok || cur.prov != Pending || !cur.hasPrev {
		s.mu.Unlock()
		return
	}
	s.values[cap] = value{v: cur.prev, prov: Confirmed}
	s.mu.Unlock()

	s.notify()
}

// Reconcile overwrites pending values with server-confirmed ones for every
// capability present in serverState. Capabilities absent from serverState
// keep their last known value; capabilities not already known are never
// introduced.
func (s *State) Reconcile(serverState map[string]interface{}) {
	s.mu.Lock()
	for cap, v := range serverState {
		if _, known := s.values[cap]; !known {
			continue
		}
		s.values[cap] = value{v: v, prov: Confirmed}
	}
	s.mu.Unlock()

	s.notify()
}

// TryReconcile applies serverState only if seq is the most recent sequence
// issued for this device, discarding stale in-flight responses. It reports
// whether the reconciliation was applied.
func (s *State) TryReconcile(seq uint64, serverState map[string]interface{}) bool {
	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return false
	}
	for cap, v := range serverState {
		if _, known := s.values[cap]; !known {
			continue
		}
		s.values[cap] = value{v: v, prov: Confirmed}
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Get returns the current value and provenance for the capability.
func (s *State) Get(cap string) (interface{}, Provenance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[cap]
	return v.v, v.prov, ok
}

// Values returns a snapshot of the current capability values.
func (s *State) Values() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.values))
	for cap, v := range s.values {
		out[cap] = v.v
	}
	return out
}

// SetDerived stores a display-only field (estimated cycle duration, activity
// status). Derived fields are never dispatched or reconciled.
func (s *State) SetDerived(name string, v interface{}) {
	s.mu.Lock()
	s.local[name] = v
	s.mu.Unlock()

	s.notify()
}

// Derived returns the display-only field value.
func (s *State) Derived(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.local[name]
	return v, ok
}

// Snapshot returns the current state view handed to subscribers and API
// surfaces.
func (s *State) Snapshot() Update {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u := Update{
		Device: s.meta,
		State:  make(map[string]interface{}, len(s.values)),
		Local:  make(map[string]interface{}, len(s.local)),
	}
	for cap, v := range s.values {
		u.State[cap] = v.v
		if v.prov == Pending {
			u.Pending = append(u.Pending, cap)
		}
	}
	for k, v := range s.local {
		u.Local[k] = v
	}
	return u
}

func (s *State) notify() {
	if s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}
