package device

import (
	"sync"
	"time"
)

// Step is one (capability, value) write produced by the coupled-capability
// rules for a single user intent.
type Step struct {
	Capability string
	Value      interface{}
}

// Derived display-only field names.
const (
	DerivedCycleDuration = "cycle_duration_min"
	DerivedActivity      = "activity"
)

// cycleDurations maps a wash cycle name to its estimated duration in
// minutes. The estimate feeds a display-only field and is never sent to
// the platform.
var cycleDurations = map[string]int{
	"Eco":         180,
	"Rapide":      30,
	"Intensif":    150,
	"Coton":       120,
	"Synthetique": 90,
	"Delicat":     60,
}

// CycleDuration returns the estimated duration in minutes for a named wash
// cycle.
func CycleDuration(cycle string) (int, bool) {
	d, ok := cycleDurations[cycle]
	return d, ok
}

// ExpandSteps applies the coupled-capability rules to a single user intent
// and returns the ordered writes to dispatch.
//
// Shutter rule: when a device exposes both on_off and position they must
// stay consistent (on_off <=> position == 100). Toggling on_off moves the
// position to 100 or 0; moving the position to exactly 100 switches on_off
// on, any other value switches it off. The position write always comes
// first.
func (s *State) ExpandSteps(cap string, v interface{}) []Step {
	if !s.Has("on_off") || !s.Has("position") {
		return []Step{{Capability: cap, Value: v}}
	}

	switch cap {
	case "position":
		pos, ok := asPosition(v)
		if !ok {
			return []Step{{Capability: cap, Value: v}}
		}
		return []Step{
			{Capability: "position", Value: pos},
			{Capability: "on_off", Value: pos == 100},
		}
	case "on_off":
		on, ok := v.(bool)
		if !ok {
			return []Step{{Capability: cap, Value: v}}
		}
		pos := 0
		if on {
			pos = 100
		}
		return []Step{
			{Capability: "position", Value: pos},
			{Capability: "on_off", Value: on},
		}
	default:
		return []Step{{Capability: cap, Value: v}}
	}
}

func asPosition(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Scheduler arms one-shot delay timers that flip a device's local activity
// status from scheduled to running once the delay elapses. The transition is
// purely cosmetic: it is client-side only, does not survive a restart and is
// never reconciled with the platform.
type Scheduler struct {
	mu     sync.Mutex
	timers map[ID]*time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[ID]*time.Timer)}
}

// Arm schedules the activity transition after the given delay. Hours are
// clamped to [0,23] and minutes to [0,59]. Arming a device that already has
// a pending timer cancels the previous one: at most one outstanding timer
// per device.
func (sc *Scheduler) Arm(s *State, hours, minutes int, fired func(*State)) time.Duration {
	if hours < 0 {
		hours = 0
	}
	if hours > 23 {
		hours = 23
	}
	if minutes < 0 {
		minutes = 0
	}
	if minutes > 59 {
		minutes = 59
	}
	delay := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	sc.arm(s, delay, fired)
	return delay
}

func (sc *Scheduler) arm(s *State, delay time.Duration, fired func(*State)) {
	sc.mu.Lock()
	if t, ok := sc.timers[s.Meta().ID]; ok {
		t.Stop()
	}
	id := s.Meta().ID
	sc.timers[id] = time.AfterFunc(delay, func() {
		sc.mu.Lock()
		delete(sc.timers, id)
		sc.mu.Unlock()

		s.SetDerived(DerivedActivity, ActivityRunning)
		if fired != nil {
			fired(s)
		}
	})
	sc.mu.Unlock()

	s.SetDerived(DerivedActivity, ActivityScheduled)
}

// Cancel stops the pending timer for the device, if any.
func (sc *Scheduler) Cancel(id ID) {
	sc.mu.Lock()
	if t, ok := sc.timers[id]; ok {
		t.Stop()
		delete(sc.timers, id)
	}
	sc.mu.Unlock()
}
