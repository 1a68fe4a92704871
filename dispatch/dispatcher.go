// Package dispatch translates UI-level intents into outbound device commands
// and reconciles the authoritative state back after each round trip. It is
// the only component talking to the platform's command and refetch endpoints.
package dispatch

import (
	"context"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/log"
	"github.com/domotik/hubms/metric"
)

type (
	// PlatformClient is a contract for the platform command/refetch API.
	PlatformClient interface {
		SendCommand(ctx context.Context, meta device.Meta, capability string, value interface{}) error
		GetDevice(ctx context.Context, id device.ID) (*device.Device, error)
		IngestConsumption(ctx context.Context, id device.ID, at time.Time, value float64) error
	}

	// Notifier surfaces user-visible failure notifications.
	Notifier interface {
		Notify(n Notification)
	}

	// Notification is a user-visible, non-fatal failure notice.
	Notification struct {
		DeviceID   device.ID `json:"device_id"`
		Kind       string    `json:"kind"`
		Capability string    `json:"capability"`
		Message    string    `json:"message"`
	}

	// Command is a single (capability, value) write against one device.
	// Ephemeral: its only persisted effect is the updated device state.
	Command struct {
		ID         string
		Device     device.Meta
		Capability string
		Value      interface{}
		IssuedAt   time.Time
	}

	// Cfg is used to initialize an instance of Dispatcher.
	Cfg struct {
		Log      log.Logger
		Metric   *metric.Metric
		Client   PlatformClient
		Notifier Notifier
	}

	// Dispatcher owns the optimistic-write / send / reconcile pipeline.
	Dispatcher struct {
		log      log.Logger
		metric   *metric.Metric
		client   PlatformClient
		notifier Notifier
	}
)

// Notification kinds. Command and reconciliation failures are distinct
// notices: after a reconciliation failure the command itself is presumed to
// have succeeded server-side.
const (
	NoticeCommandFailed   = "command_failed"
	NoticeReconcileFailed = "reconcile_failed"
)

// New creates and initializes a new instance of Dispatcher.
func New(c *Cfg) *Dispatcher {
	return &Dispatcher{
		log:      c.Log.With("component", "dispatch"),
		metric:   c.Metric,
		client:   c.Client,
		notifier: c.Notifier,
	}
}

// Dispatch applies the coupled-capability rules to the intent and runs the
// resulting writes in order. When a later write fails, the earlier ones are
// compensated so a coupled pair is not left inconsistent.
func (d *Dispatcher) Dispatch(ctx context.Context, st *device.State, capability string, value interface{}) error {
	steps := st.ExpandSteps(capability, value)

	prior := make(map[string]interface{}, len(steps))
	for _, step := range steps {
		if v, _, ok := st.Get(step.Capability); ok {
			prior[step.Capability] = v
		}
	}

	for i, step := range steps {
		if err := d.dispatchStep(ctx, st, step); err != nil {
			for j := i - 1; j >= 0; j-- {
				d.compensate(ctx, st, steps[j].Capability, prior[steps[j].Capability])
			}
			return err
		}
	}
	return nil
}

// dispatchStep runs one write: optimistic local update, command round trip,
// authoritative refetch, reconciliation and consumption ingestion.
func (d *Dispatcher) dispatchStep(ctx context.Context, st *device.State, step device.Step) error {
	applied, seq, err := st.SetLocal(step.Capability, step.Value)
	if err != nil {
		return err
	}

	cmd := Command{
		ID:         uuid.NewV4().String(),
		Device:     st.Meta(),
		Capability: step.Capability,
		Value:      applied,
		IssuedAt:   time.Now(),
	}

	if err := d.client.SendCommand(ctx, cmd.Device, cmd.Capability, cmd.Value); err != nil {
		st.Rollback(cmd.Capability)
		d.metric.DispatchCounter(cmd.Capability, "failed")
		d.log.With("event", log.EventCmdFailed, "cmd_id", cmd.ID).
			Errorf("device [%s] capability [%s]: %s", cmd.Device.ID, cmd.Capability, err)
		d.notify(Notification{
			DeviceID:   cmd.Device.ID,
			Kind:       NoticeCommandFailed,
			Capability: cmd.Capability,
			Message:    err.Error(),
		})
		return err
	}

	d.metric.DispatchCounter(cmd.Capability, "ok")
	d.log.With("event", log.EventCmdDispatched, "cmd_id", cmd.ID).
		Infof("device [%s] capability [%s] value [%v]", cmd.Device.ID, cmd.Capability, applied)

	if cmd.Capability == "cycle_selection" {
		if cycle, ok := applied.(string); ok {
			if mins, ok := device.CycleDuration(cycle); ok {
				st.SetDerived(device.DerivedCycleDuration, mins)
			}
		}
	}

	refreshed, err := d.client.GetDevice(ctx, cmd.Device.ID)
	if err != nil {
		// the command itself succeeded server-side, keep the optimistic
		// value and surface a distinct notice
		d.log.Errorf("func GetDevice: device [%s]: %s", cmd.Device.ID, err)
		d.notify(Notification{
			DeviceID:   cmd.Device.ID,
			Kind:       NoticeReconcileFailed,
			Capability: cmd.Capability,
			Message:    err.Error(),
		})
		return nil
	}

	if st.TryReconcile(seq, refreshed.State) {
		d.log.With("event", log.EventStateReconciled).
			Debugf("device [%s] seq [%d]", cmd.Device.ID, seq)
	} else {
		d.log.With("event", log.EventStaleReconcile).
			Infof("device [%s] seq [%d]", cmd.Device.ID, seq)
	}

	if refreshed.Consumption != nil {
		// unconditionally, zero readings included
		if err := d.client.IngestConsumption(ctx, cmd.Device.ID, time.Now(), *refreshed.Consumption); err != nil {
			d.log.Errorf("func IngestConsumption: device [%s]: %s", cmd.Device.ID, err)
		}
	}
	return nil
}

// compensate reverts an already-dispatched step after a later coupled step
// failed: the pre-dispatch value is re-sent to the device and, once the
// compensating command succeeds, restored locally. Best effort: a second
// failure leaves the pair inconsistent and is only logged.
func (d *Dispatcher) compensate(ctx context.Context, st *device.State, capability string, prior interface{}) {
	if prior == nil {
		return
	}
	if err := d.client.SendCommand(ctx, st.Meta(), capability, prior); err != nil {
		d.log.Errorf("func compensate: device [%s] capability [%s]: %s", st.Meta().ID, capability, err)
		return
	}

	st.Reconcile(map[string]interface{}{capability: prior})
	d.log.With("event", log.EventCmdRolledBack).
		Infof("device [%s] capability [%s] restored [%v]", st.Meta().ID, capability, prior)
}

func (d *Dispatcher) notify(n Notification) {
	if d.notifier != nil {
		d.notifier.Notify(n)
	}
}
