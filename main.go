package main

import (
	"context"
	log_ "log"

	"github.com/joho/godotenv"

	"github.com/domotik/hubms/api"
	"github.com/domotik/hubms/cfg"
	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/dispatch"
	"github.com/domotik/hubms/energy"
	"github.com/domotik/hubms/event/pub"
	"github.com/domotik/hubms/log"
	"github.com/domotik/hubms/metric"
	"github.com/domotik/hubms/platform"
	"github.com/domotik/hubms/store"
	"github.com/domotik/hubms/svc"
)

func init() {
	if err := godotenv.Load(".env"); err != nil {
		log_.Printf("Load() failed: %s", err)
	}
}

func main() {
	conf, err := cfg.NewConfig()
	if err != nil {
		log_.Fatalf("NewConfig(): %s", err)
	}

	logger := log.New(conf.Service.AppID, conf.Service.LogLevel)
	mtrc := metric.New(conf.Service.AppID)

	redis := store.New(&store.Cfg{
		Log:           logger,
		Addr:          conf.Store.Addr,
		Password:      conf.Store.Password,
		AgentName:     conf.Store.AgentName,
		TTL:           conf.Store.TTL,
		RetryTimeout:  conf.Service.RetryTimeout,
		RetryAttempts: conf.Service.RetryAttempts,
	})
	if err := redis.Init(); err != nil {
		logger.With("event", log.EventStoreInit).Fatalf("func Init: %s", err)
	}

	client := platform.NewClient(&platform.ClientCfg{
		Log:            logger,
		BaseURL:        conf.Platform.BaseURL,
		Email:          conf.Platform.Email,
		Password:       conf.Platform.Password,
		RequestTimeout: conf.Platform.RequestTimeout,
		TokenStore:     redis,
	})
	if err := client.Login(context.Background()); err != nil {
		logger.Fatalf("func Login: %s", err)
	}

	publisher := pub.New(&pub.Cfg{
		Addr:          conf.NATS.Addr,
		EventTopic:    conf.NATS.EventTopic,
		Log:           logger,
		RetryTimeout:  conf.Service.RetryTimeout,
		RetryAttempts: conf.Service.RetryAttempts,
	})

	registry := device.NewRegistry()

	dispatcher := dispatch.New(&dispatch.Cfg{
		Log:      logger,
		Metric:   mtrc,
		Client:   client,
		Notifier: svc.NewEventNotifier(logger, publisher),
	})

	ctrl := svc.Ctrl{StopChan: make(chan struct{})}

	deviceSvc := svc.NewDeviceService(&svc.DeviceServiceCfg{
		Log:             logger,
		Ctrl:            ctrl,
		Metric:          mtrc,
		Registry:        registry,
		Dispatcher:      dispatcher,
		Fetcher:         client,
		Store:           redis,
		Publisher:       publisher,
		RefreshInterval: conf.Service.RefreshInterval,
	})
	go deviceSvc.Run()

	energySvc := svc.NewEnergyService(&svc.EnergyServiceCfg{
		Log:          logger,
		Ctrl:         ctrl,
		Metric:       mtrc,
		Querier:      client,
		Store:        redis,
		Registry:     registry,
		Aggregator:   energy.NewAggregator(energy.Hour),
		PollInterval: conf.Service.RefreshInterval,
	})
	go energySvc.Run()

	streamSvc := svc.NewStreamService(&svc.StreamServiceCfg{
		Log:      logger,
		Ctrl:     ctrl,
		Registry: registry,
		PortWS:   conf.Service.PortWebSocket,
	})
	go streamSvc.Run()

	apiSvc := api.New(&api.Cfg{
		Log:            logger,
		Ctrl:           ctrl,
		Metric:         mtrc,
		PortREST:       conf.Service.PortREST,
		DeviceProvider: deviceSvc,
		EnergyProvider: energySvc,
		RequestTimeout: conf.Platform.RequestTimeout,
		SigningKey:     conf.Token.SigningKey,
	})
	go apiSvc.Run()

	ctrl.Wait(conf.Service.TerminationTimeout)

	logger.With("event", log.EventMSTerminated).Infof("%s is down", conf.Service.AppID)
	_ = logger.Flush()
}
