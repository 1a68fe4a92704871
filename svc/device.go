package svc

import (
	"fmt"
	"time"

	"golang.org/x/net/context"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/log"
	"github.com/domotik/hubms/metric"
)

type (
	// Dispatcher is a contract for the command dispatcher.
	Dispatcher interface {
		Dispatch(ctx context.Context, st *device.State, capability string, value interface{}) error
	}

	// DeviceFetcher is a contract for the platform device endpoints.
	DeviceFetcher interface {
		ListDevices(ctx context.Context) ([]device.Device, error)
	}

	// StateStorer persists device state snapshots.
	StateStorer interface {
		SaveDeviceState(id string, state map[string]interface{}) error
	}

	// Publisher is a contract for the event publisher.
	Publisher interface {
		Publish(deviceID, eventType string, data interface{}) error
	}

	// DeviceServiceCfg is used to initialize an instance of deviceService.
	DeviceServiceCfg struct {
		Log             log.Logger
		Ctrl            Ctrl
		Metric          *metric.Metric
		Registry        *device.Registry
		Dispatcher      Dispatcher
		Fetcher         DeviceFetcher
		Store           StateStorer
		Publisher       Publisher
		RefreshInterval time.Duration
	}

	// deviceService owns the device registry: it keeps it refreshed from the
	// platform, dispatches commands against it and fans state changes out to
	// the store and the event publisher.
	deviceService struct {
		log             log.Logger
		ctrl            Ctrl
		metric          *metric.Metric
		registry        *device.Registry
		dispatcher      Dispatcher
		fetcher         DeviceFetcher
		storer          StateStorer
		publisher       Publisher
		refreshInterval time.Duration
		scheduler       *device.Scheduler
	}
)

// NewDeviceService creates and initializes a new instance of deviceService.
func NewDeviceService(c *DeviceServiceCfg) *deviceService { // nolint
	return &deviceService{
		log:             c.Log.With("component", "device"),
		ctrl:            c.Ctrl,
		metric:          c.Metric,
		registry:        c.Registry,
		dispatcher:      c.Dispatcher,
		fetcher:         c.Fetcher,
		storer:          c.Store,
		publisher:       c.Publisher,
		refreshInterval: c.RefreshInterval,
		scheduler:       device.NewScheduler(),
	}
}

// Run launches the service: the periodic platform refresh, the state-change
// fan-out and the termination listener.
func (s *deviceService) Run() {
	s.log.With("event", log.EventComponentStarted).Infof("")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		if r := recover(); r != nil {
			s.log.With("event", log.EventPanic).Errorf("func Run: %s", r)
			s.metric.ErrorCounter(log.EventPanic)
			cancel()
			s.ctrl.Terminate()
		}
	}()

	go s.listenToTermination(cancel)
	go s.listenToStateChanges(ctx)

	s.refresh(ctx)
	go s.refreshLoop(ctx)
}

func (s *deviceService) listenToTermination(cancel context.CancelFunc) {
	<-s.ctrl.StopChan
	cancel()
	s.log.With("event", log.EventComponentShutdown).Infof("")
	_ = s.log.Flush()
}

func (s *deviceService) refreshLoop(ctx context.Context) {
	t := time.NewTicker(s.refreshInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx)
		}
	}
}

// refresh pulls the device list from the platform and reconciles every
// device into the registry.
func (s *deviceService) refresh(ctx context.Context) {
	devs, err := s.fetcher.ListDevices(ctx)
	if err != nil {
		s.log.Errorf("func refresh: func ListDevices: %s", err)
		s.metric.ErrorCounter("refresh")
		return
	}

	for _, d := range devs {
		s.registry.Ensure(d)
	}
}

// listenToStateChanges persists and publishes every registry update.
func (s *deviceService) listenToStateChanges(ctx context.Context) {
	sub := s.registry.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-sub:
			if err := s.storer.SaveDeviceState(string(u.Device.ID), u.State); err != nil {
				s.log.Errorf("func SaveDeviceState: %s", err)
			}
			if err := s.publisher.Publish(string(u.Device.ID), "state_changed", u); err != nil {
				s.log.Errorf("func Publish: %s", err)
			}
		}
	}
}

// Devices returns a snapshot of every known device.
func (s *deviceService) Devices() []device.Update {
	states := s.registry.All()
	out := make([]device.Update, 0, len(states))
	for _, st := range states {
		out = append(out, st.Snapshot())
	}
	return out
}

// Device returns a snapshot of one device.
func (s *deviceService) Device(id device.ID) (*device.Update, error) {
	st, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown device %s", id)
	}
	u := st.Snapshot()
	return &u, nil
}

// Dispatch sends a capability write through the command dispatcher.
func (s *deviceService) Dispatch(ctx context.Context, id device.ID, capability string, value interface{}) error {
	st, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("unknown device %s", id)
	}
	return s.dispatcher.Dispatch(ctx, st, capability, value)
}

// Schedule arms the delay timer for the device: its local activity turns
// scheduled now and running once the delay elapses. The transition is
// client-side only and does not survive a restart.
func (s *deviceService) Schedule(id device.ID, hours, minutes int) (time.Duration, error) {
	st, ok := s.registry.Get(id)
	if !ok {
		return 0, fmt.Errorf("unknown device %s", id)
	}

	delay := s.scheduler.Arm(st, hours, minutes, func(st *device.State) {
		s.log.With("event", log.EventTimerFired).Infof("device [%s]", st.Meta().ID)
	})
	s.log.With("event", log.EventTimerArmed).Infof("device [%s] delay [%s]", id, delay)
	return delay, nil
}

// CancelSchedule stops the pending delay timer for the device, if any.
func (s *deviceService) CancelSchedule(id device.ID) error {
	st, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("unknown device %s", id)
	}
	s.scheduler.Cancel(id)
	st.SetDerived(device.DerivedActivity, device.ActivityIdle)
	return nil
}
