package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/log"
	"github.com/domotik/hubms/metric"
)

type sentCmd struct {
	Capability string
	Value      interface{}
}

// fakeClient fakes the platform API for dispatcher tests. Sent commands are
// applied to the remote state; override entries win over applied commands in
// refetch responses.
type fakeClient struct {
	mu       sync.Mutex
	sent     []sentCmd
	failOn   map[string]error
	remote   map[string]interface{}
	override map[string]interface{}
	consumpt *float64
	getErr   error
	ingested []float64
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		failOn: make(map[string]error),
		remote: make(map[string]interface{}),
	}
}

func (f *fakeClient) SendCommand(_ context.Context, _ device.Meta, capability string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[capability]; ok {
		return err
	}
	f.sent = append(f.sent, sentCmd{Capability: capability, Value: value})
	f.remote[capability] = value
	return nil
}

func (f *fakeClient) GetDevice(_ context.Context, id device.ID) (*device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	state := make(map[string]interface{}, len(f.remote))
	for k, v := range f.remote {
		state[k] = v
	}
	for k, v := range f.override {
		state[k] = v
	}
	return &device.Device{
		Meta:        device.Meta{ID: id},
		State:       state,
		Consumption: f.consumpt,
	}, nil
}

func (f *fakeClient) IngestConsumption(_ context.Context, _ device.ID, _ time.Time, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, value)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []Notification
}

func (f *fakeNotifier) Notify(n Notification) {
	f.mu.Lock()
	f.notices = append(f.notices, n)
	f.mu.Unlock()
}

var testMetric = metric.New("dispatch-test")

func newTestDispatcher(client PlatformClient, notifier Notifier) *Dispatcher {
	return New(&Cfg{
		Log:      log.New("test", "error"),
		Metric:   testMetric,
		Client:   client,
		Notifier: notifier,
	})
}

func lampState() *device.State {
	return device.NewState(device.Device{
		Meta:         device.Meta{ID: "d1", Type: "light"},
		Capabilities: []string{"on_off", "brightness"},
		State:        map[string]interface{}{"on_off": false, "brightness": 0},
	})
}

func shutterState() *device.State {
	return device.NewState(device.Device{
		Meta:         device.Meta{ID: "sh1", Type: "shutter"},
		Capabilities: []string{"on_off", "position"},
		State:        map[string]interface{}{"on_off": false, "position": 0},
	})
}

func TestDispatchServerWinsOnReconcile(t *testing.T) {
	client := newFakeClient()
	// the server adjusts the commanded value and flips on_off itself
	client.override = map[string]interface{}{"on_off": true, "brightness": 65}

	st := lampState()
	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "brightness", 70)
	assert.Nil(t, err)

	v, prov, _ := st.Get("brightness")
	assert.Equal(t, 65, v)
	assert.Equal(t, device.Confirmed, prov)

	v, _, _ = st.Get("on_off")
	assert.Equal(t, true, v)
}

func TestDispatchClampsBeforeSending(t *testing.T) {
	client := newFakeClient()
	st := lampState()
	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "brightness", 140)
	assert.Nil(t, err)

	assert.Equal(t, []sentCmd{{Capability: "brightness", Value: 100}}, client.sent)
}

func TestDispatchFailureRollsBackAndNotifies(t *testing.T) {
	client := newFakeClient()
	client.failOn["brightness"] = fmt.Errorf("gateway timeout")

	notifier := &fakeNotifier{}
	st := lampState()
	st.Reconcile(map[string]interface{}{"brightness": 20})

	d := newTestDispatcher(client, notifier)

	err := d.Dispatch(context.Background(), st, "brightness", 80)
	assert.NotNil(t, err)

	// optimistic value rolled back to the last confirmed one
	v, prov, _ := st.Get("brightness")
	assert.Equal(t, 20, v)
	assert.Equal(t, device.Confirmed, prov)

	assert.Equal(t, 1, len(notifier.notices))
	assert.Equal(t, NoticeCommandFailed, notifier.notices[0].Kind)
	assert.Equal(t, "brightness", notifier.notices[0].Capability)
}

func TestDispatchReconcileFailureKeepsOptimisticValue(t *testing.T) {
	client := newFakeClient()
	client.getErr = fmt.Errorf("connection reset")

	notifier := &fakeNotifier{}
	st := lampState()
	d := newTestDispatcher(client, notifier)

	// the command succeeded, only the refetch failed: not a dispatch error
	err := d.Dispatch(context.Background(), st, "brightness", 55)
	assert.Nil(t, err)

	v, prov, _ := st.Get("brightness")
	assert.Equal(t, 55, v)
	assert.Equal(t, device.Pending, prov)

	assert.Equal(t, 1, len(notifier.notices))
	assert.Equal(t, NoticeReconcileFailed, notifier.notices[0].Kind)
}

func TestDispatchShutterCommandOrder(t *testing.T) {
	client := newFakeClient()
	st := shutterState()
	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "position", 100)
	assert.Nil(t, err)

	// exactly two commands: position first, then on_off
	assert.Equal(t, []sentCmd{
		{Capability: "position", Value: 100},
		{Capability: "on_off", Value: true},
	}, client.sent)

	v, _, _ := st.Get("on_off")
	assert.Equal(t, true, v)
}

func TestDispatchShutterPartialPositionSwitchesOff(t *testing.T) {
	client := newFakeClient()
	client.remote["on_off"] = true
	client.remote["position"] = 100

	st := shutterState()
	st.Reconcile(map[string]interface{}{"on_off": true, "position": 100})

	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "position", 45)
	assert.Nil(t, err)

	v, _, _ := st.Get("on_off")
	assert.Equal(t, false, v)
	v, _, _ = st.Get("position")
	assert.Equal(t, 45, v)
}

func TestDispatchShutterCompensation(t *testing.T) {
	client := newFakeClient()
	client.failOn["on_off"] = fmt.Errorf("device busy")

	st := shutterState()
	d := newTestDispatcher(client, &fakeNotifier{})

	err := d.Dispatch(context.Background(), st, "position", 100)
	assert.NotNil(t, err)

	// the position write is reverted so the coupled pair stays consistent
	v, _, _ := st.Get("position")
	assert.Equal(t, 0, v)
	v, _, _ = st.Get("on_off")
	assert.Equal(t, false, v)

	// a compensating position command was sent after the rollback
	last := client.sent[len(client.sent)-1]
	assert.Equal(t, sentCmd{Capability: "position", Value: 0}, last)
}

func TestDispatchIngestsConsumptionIncludingZero(t *testing.T) {
	client := newFakeClient()
	zero := 0.0
	client.consumpt = &zero

	st := lampState()
	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "on_off", true)
	assert.Nil(t, err)

	assert.Equal(t, []float64{0}, client.ingested)
}

func TestDispatchCycleSelectionSetsDerivedDuration(t *testing.T) {
	client := newFakeClient()
	st := device.NewState(device.Device{
		Meta:         device.Meta{ID: "w1", Type: "washing_machine"},
		Capabilities: []string{"on_off", "cycle_selection", "spin_speed_control"},
		State:        map[string]interface{}{"on_off": false},
	})

	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "cycle_selection", "Intensif")
	assert.Nil(t, err)

	v, ok := st.Derived(device.DerivedCycleDuration)
	assert.True(t, ok)
	assert.Equal(t, 150, v)
}

func TestDispatchUnknownCapability(t *testing.T) {
	client := newFakeClient()
	st := lampState()
	d := newTestDispatcher(client, nil)

	err := d.Dispatch(context.Background(), st, "position", 50)
	assert.NotNil(t, err)
	assert.Equal(t, 0, len(client.sent))
}
