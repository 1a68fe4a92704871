package svc

import (
	"context"
	"time"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/energy"
	"github.com/domotik/hubms/log"
	"github.com/domotik/hubms/metric"
	"github.com/domotik/hubms/platform"
)

type (
	// ConsumptionQuerier is a contract for the platform aggregation endpoint.
	ConsumptionQuerier interface {
		QueryConsumption(ctx context.Context, q platform.ConsumptionQuery) (*platform.ConsumptionReport, error)
	}

	// ConsumptionStorer persists the bucketed consumption cache.
	ConsumptionStorer interface {
		SaveConsumption(id, granularity string, buckets map[string]float64) error
		Consumption(id, granularity string) (map[string]float64, error)
	}

	// EnergyServiceCfg is used to initialize an instance of energyService.
	EnergyServiceCfg struct {
		Log          log.Logger
		Ctrl         Ctrl
		Metric       *metric.Metric
		Querier      ConsumptionQuerier
		Store        ConsumptionStorer
		Registry     *device.Registry
		Aggregator   *energy.Aggregator
		PollInterval time.Duration
	}

	// energyService polls the platform's consumption aggregation endpoint
	// and merges the samples into the rolling chart cache.
	energyService struct {
		log          log.Logger
		ctrl         Ctrl
		metric       *metric.Metric
		querier      ConsumptionQuerier
		storer       ConsumptionStorer
		registry     *device.Registry
		agg          *energy.Aggregator
		pollInterval time.Duration
	}
)

// NewEnergyService creates and initializes a new instance of energyService.
func NewEnergyService(c *EnergyServiceCfg) *energyService { // nolint
	return &energyService{
		log:          c.Log.With("component", "energy"),
		ctrl:         c.Ctrl,
		metric:       c.Metric,
		querier:      c.Querier,
		storer:       c.Store,
		registry:     c.Registry,
		agg:          c.Aggregator,
		pollInterval: c.PollInterval,
	}
}

// Run launches the polling loop and the termination listener.
func (s *energyService) Run() {
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

	s.warmStart()
	s.poll(ctx)
	go s.pollLoop(ctx)
}

func (s *energyService) listenToTermination(cancel context.CancelFunc) {
	<-s.ctrl.StopChan
	cancel()
	s.log.With("event", log.EventComponentShutdown).Infof("")
	_ = s.log.Flush()
}

func (s *energyService) pollLoop(ctx context.Context) {
	t := time.NewTicker(s.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.poll(ctx)
		}
	}
}

// warmStart reloads the persisted consumption cache for every known device
// at the active granularity. The merge policy protects recorded history, so
// replaying persisted buckets is safe.
func (s *energyService) warmStart() {
	g := string(s.agg.Granularity())
	for _, st := range s.registry.All() {
		id := string(st.Meta().ID)
		buckets, err := s.storer.Consumption(id, g)
		if err != nil {
			s.log.Errorf("func warmStart: func Consumption: %s", err)
			continue
		}
		if len(buckets) > 0 {
			s.agg.Merge(id, st.Meta().Name, buckets)
		}
	}
}

// poll queries the platform for the current lookback window and merges the
// returned samples. A query failure is non-fatal: the previous chart data
// stays served and the cache is left untouched.
func (s *energyService) poll(ctx context.Context) {
	g := s.agg.Granularity()
	start, end := g.Window(time.Now())

	rep, err := s.querier.QueryConsumption(ctx, platform.ConsumptionQuery{
		DateStart:   start,
		DateEnd:     end,
		Granularity: string(g),
	})
	if err != nil {
		s.log.Errorf("func poll: func QueryConsumption: %s", err)
		s.metric.ErrorCounter("consumption_query")
		return
	}

	for _, d := range rep.Devices {
		s.agg.Merge(d.DeviceID, d.DeviceName, d.Consumption)
		if err := s.storer.SaveConsumption(d.DeviceID, string(g), s.agg.Snapshot(d.DeviceID)); err != nil {
			s.log.Errorf("func poll: func SaveConsumption: %s", err)
		}
	}
}

// Series returns the chart-ready series for the active granularity.
func (s *energyService) Series() energy.ChartData {
	return s.agg.Series(time.Now())
}

// SetGranularity switches the active granularity, purging cache entries
// whose keys no longer match, and refreshes the window immediately.
func (s *energyService) SetGranularity(ctx context.Context, g energy.Granularity) {
	if !s.agg.SetGranularity(g) {
		return
	}
	s.warmStart()
	s.poll(ctx)
}
