package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryEnsureSeedsOnce(t *testing.T) {
	r := NewRegistry()

	s1 := r.Ensure(testDevice())
	s2 := r.Ensure(testDevice())

	// same identity, same State: no per-view copies
	assert.True(t, s1 == s2)
	assert.Equal(t, 1, len(r.All()))
}

func TestRegistryEnsureReconcilesKnownDevice(t *testing.T) {
	r := NewRegistry()
	r.Ensure(testDevice())

	d := testDevice()
	d.State = map[string]interface{}{"on_off": true, "brightness": 55}
	s := r.Ensure(d)

	v, _, _ := s.Get("brightness")
	assert.Equal(t, 55, v)
}

func TestRegistrySubscribe(t *testing.T) {
	r := NewRegistry()
	updates := r.Subscribe()

	s := r.Ensure(testDevice())

	// seeding notifies subscribers
	select {
	case u := <-updates:
		assert.Equal(t, ID("d1"), u.Device.ID)
	case <-time.After(time.Second):
		t.Fatal("no update after seeding")
	}

	_, _, err := s.SetLocal("brightness", 70)
	assert.Nil(t, err)

	select {
	case u := <-updates:
		assert.Equal(t, 70, u.State["brightness"])
		assert.Equal(t, []string{"brightness"}, u.Pending)
	case <-time.After(time.Second):
		t.Fatal("no update after optimistic write")
	}
}

func TestRegistryForget(t *testing.T) {
	r := NewRegistry()
	r.Ensure(testDevice())

	r.Forget("d1")

	_, ok := r.Get("d1")
	assert.False(t, ok)
}
