package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func shutterDevice() Device {
	return Device{
		Meta:         Meta{ID: "sh1", Type: "shutter", Name: "living room shutter"},
		Capabilities: []string{"on_off", "position"},
		State:        map[string]interface{}{"on_off": false, "position": 0},
	}
}

func TestExpandStepsShutterPositionFull(t *testing.T) {
	s := NewState(shutterDevice())

	steps := s.ExpandSteps("position", 100)

	assert.Equal(t, []Step{
		{Capability: "position", Value: 100},
		{Capability: "on_off", Value: true},
	}, steps)
}

func TestExpandStepsShutterPositionPartial(t *testing.T) {
	s := NewState(shutterDevice())

	steps := s.ExpandSteps("position", 45)

	assert.Equal(t, []Step{
		{Capability: "position", Value: 45},
		{Capability: "on_off", Value: false},
	}, steps)
}

func TestExpandStepsShutterToggle(t *testing.T) {
	s := NewState(shutterDevice())

	steps := s.ExpandSteps("on_off", true)
	assert.Equal(t, []Step{
		{Capability: "position", Value: 100},
		{Capability: "on_off", Value: true},
	}, steps)

	steps = s.ExpandSteps("on_off", false)
	assert.Equal(t, []Step{
		{Capability: "position", Value: 0},
		{Capability: "on_off", Value: false},
	}, steps)
}

func TestExpandStepsUncoupledDevice(t *testing.T) {
	s := NewState(testDevice())

	steps := s.ExpandSteps("brightness", 70)

	assert.Equal(t, []Step{{Capability: "brightness", Value: 70}}, steps)
}

func TestCycleDuration(t *testing.T) {
	d, ok := CycleDuration("Eco")
	assert.True(t, ok)
	assert.Equal(t, 180, d)

	d, ok = CycleDuration("Intensif")
	assert.True(t, ok)
	assert.Equal(t, 150, d)

	_, ok = CycleDuration("Turbo")
	assert.False(t, ok)
}

func TestSchedulerClampsDelay(t *testing.T) {
	sc := NewScheduler()
	s := NewState(testDevice())
	defer sc.Cancel(s.Meta().ID)

	delay := sc.Arm(s, 30, 75, nil)
	assert.Equal(t, 23*time.Hour+59*time.Minute, delay)

	delay = sc.Arm(s, -1, -1, nil)
	assert.Equal(t, time.Duration(0), delay)
}

func TestSchedulerSingleOutstandingTimer(t *testing.T) {
	sc := NewScheduler()
	s := NewState(testDevice())

	fired := make(chan struct{}, 2)

	sc.arm(s, 100*time.Millisecond, func(*State) { fired <- struct{}{} })

	v, _ := s.Derived(DerivedActivity)
	assert.Equal(t, ActivityScheduled, v)

	// re-arming cancels the first timer
	sc.arm(s, 200*time.Millisecond, func(*State) { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	// only one transition fires per arm sequence
	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(200 * time.Millisecond):
	}

	v, _ = s.Derived(DerivedActivity)
	assert.Equal(t, ActivityRunning, v)
}

func TestSchedulerCancel(t *testing.T) {
	sc := NewScheduler()
	s := NewState(testDevice())

	sc.Arm(s, 1, 0, nil)
	sc.Cancel(s.Meta().ID)

	sc.mu.Lock()
	_, pending := sc.timers[s.Meta().ID]
	sc.mu.Unlock()
	assert.False(t, pending)
}
