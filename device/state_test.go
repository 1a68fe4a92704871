package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDevice() Device {
	return Device{
		Meta:         Meta{ID: "d1", Type: "light", Name: "desk lamp", HomeID: "h1", RoomID: "r1"},
		Capabilities: []string{"on_off", "brightness"},
		State:        map[string]interface{}{"on_off": false},
	}
}

func TestNewStateDefaultsMissingCapabilities(t *testing.T) {
	s := NewState(testDevice())

	v, prov, ok := s.Get("on_off")
	assert.True(t, ok)
	assert.Equal(t, false, v)
	assert.Equal(t, Confirmed, prov)

	// brightness was not reported, seeded from the registry default
	v, _, ok = s.Get("brightness")
	assert.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestNewStateIdempotent(t *testing.T) {
	a := NewState(testDevice())
	b := NewState(testDevice())
	assert.Equal(t, a.Values(), b.Values())
}

func TestNewStateSkipsUnknownCapability(t *testing.T) {
	d := testDevice()
	d.Capabilities = append(d.Capabilities, "teleport")
	s := NewState(d)

	_, _, ok := s.Get("teleport")
	assert.False(t, ok)
}

func TestSetLocalClampsRange(t *testing.T) {
	s := NewState(testDevice())

	v, _, err := s.SetLocal("brightness", 140)
	assert.Nil(t, err)
	assert.Equal(t, 100, v)

	v, _, err = s.SetLocal("brightness", -5)
	assert.Nil(t, err)
	assert.Equal(t, 0, v)

	got, prov, _ := s.Get("brightness")
	assert.Equal(t, 0, got)
	assert.Equal(t, Pending, prov)
}

func TestSetLocalUnknownCapability(t *testing.T) {
	s := NewState(testDevice())

	_, _, err := s.SetLocal("position", 50)
	assert.NotNil(t, err)
}

func TestReconcileServerWins(t *testing.T) {
	s := NewState(testDevice())

	_, _, err := s.SetLocal("brightness", 70)
	assert.Nil(t, err)

	s.Reconcile(map[string]interface{}{"on_off": true, "brightness": 65})

	assert.Equal(t, map[string]interface{}{"on_off": true, "brightness": 65}, s.Values())

	_, prov, _ := s.Get("brightness")
	assert.Equal(t, Confirmed, prov)
}

func TestReconcileNeverIntroducesCapabilities(t *testing.T) {
	s := NewState(testDevice())

	s.Reconcile(map[string]interface{}{"volume": 30})

	_, _, ok := s.Get("volume")
	assert.False(t, ok)
}

func TestReconcileRetainsAbsentCapabilities(t *testing.T) {
	s := NewState(testDevice())

	_, _, err := s.SetLocal("brightness", 40)
	assert.Nil(t, err)

	s.Reconcile(map[string]interface{}{"on_off": true})

	v, _, _ := s.Get("brightness")
	assert.Equal(t, 40, v)
}

func TestRollbackRestoresConfirmedValue(t *testing.T) {
	s := NewState(testDevice())
	s.Reconcile(map[string]interface{}{"brightness": 25})

	_, _, err := s.SetLocal("brightness", 80)
	assert.Nil(t, err)
	_, _, err = s.SetLocal("brightness", 90)
	assert.Nil(t, err)

	// rollback skips intermediate optimistic writes and restores the last
	// confirmed value
	s.Rollback("brightness")

	v, prov, _ := s.Get("brightness")
	assert.Equal(t, 25, v)
	assert.Equal(t, Confirmed, prov)
}

func TestRollbackNoopWithoutPendingWrite(t *testing.T) {
	s := NewState(testDevice())

	s.Rollback("brightness")

	v, prov, _ := s.Get("brightness")
	assert.Equal(t, 0, v)
	assert.Equal(t, Confirmed, prov)
}

func TestTryReconcileDiscardsStaleSequence(t *testing.T) {
	s := NewState(testDevice())

	_, seq1, err := s.SetLocal("brightness", 30)
	assert.Nil(t, err)
	_, seq2, err := s.SetLocal("brightness", 60)
	assert.Nil(t, err)

	// the response for the first command arrives after the second was issued
	assert.False(t, s.TryReconcile(seq1, map[string]interface{}{"brightness": 30}))

	v, _, _ := s.Get("brightness")
	assert.Equal(t, 60, v)

	assert.True(t, s.TryReconcile(seq2, map[string]interface{}{"brightness": 60}))

	v, prov, _ := s.Get("brightness")
	assert.Equal(t, 60, v)
	assert.Equal(t, Confirmed, prov)
}

func TestDerivedFields(t *testing.T) {
	s := NewState(testDevice())

	s.SetDerived(DerivedActivity, ActivityScheduled)

	v, ok := s.Derived(DerivedActivity)
	assert.True(t, ok)
	assert.Equal(t, ActivityScheduled, v)

	// derived fields never leak into capability state
	_, _, ok = s.Get(DerivedActivity)
	assert.False(t, ok)
}
