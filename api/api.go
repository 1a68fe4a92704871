// Package api exposes the hub's REST surface consumed by the web client
// (dashboard).
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/energy"
	"github.com/domotik/hubms/log"
	"github.com/domotik/hubms/metric"
	"github.com/domotik/hubms/svc"
)

type (
	// DeviceProvider is a contract for the device service.
	DeviceProvider interface {
		Devices() []device.Update
		Device(id device.ID) (*device.Update, error)
		Dispatch(ctx context.Context, id device.ID, capability string, value interface{}) error
		Schedule(id device.ID, hours, minutes int) (time.Duration, error)
		CancelSchedule(id device.ID) error
	}

	// EnergyProvider is a contract for the energy service.
	EnergyProvider interface {
		Series() energy.ChartData
		SetGranularity(ctx context.Context, g energy.Granularity)
	}

	// Cfg is used to initialize an instance of api.
	Cfg struct {
		Log            log.Logger
		Ctrl           svc.Ctrl
		Metric         *metric.Metric
		PortREST       uint64
		DeviceProvider DeviceProvider
		EnergyProvider EnergyProvider
		RequestTimeout time.Duration
		SigningKey     string
	}

	// api serves the rest endpoints.
	api struct {
		log            log.Logger
		ctrl           svc.Ctrl
		metric         *metric.Metric
		portREST       uint64
		deviceProvider DeviceProvider
		energyProvider EnergyProvider
		requestTimeout time.Duration
		router         *mux.Router
		token          *token
	}
)

// New creates and initializes a new instance of api.
func New(c *Cfg) *api { // nolint
	return &api{
		log:            c.Log.With("component", "api"),
		ctrl:           c.Ctrl,
		metric:         c.Metric,
		portREST:       c.PortREST,
		deviceProvider: c.DeviceProvider,
		energyProvider: c.EnergyProvider,
		requestTimeout: c.RequestTimeout,
		token:          newToken(c.SigningKey),
	}
}

// Run launches the service by running goroutines for listening to the service
// termination and queries from the web client.
func (a *api) Run() {
	a.log.With("event", log.EventComponentStarted).
		Infof("rest port [%d]", a.portREST)

	go a.listenToTermination()

	a.router = mux.NewRouter()
	a.registerRoutes()
	a.serveHTTP()
}

func (a *api) listenToTermination() {
	<-a.ctrl.StopChan
	a.terminate()
}

func (a *api) terminate() {
	a.log.With("event", log.EventComponentShutdown).Info()
	_ = a.log.Flush()
	a.ctrl.Terminate()
}

func (a *api) registerRoutes() {
	middleware := []func(next http.HandlerFunc, name string) http.HandlerFunc{
		a.requestLogger,
		a.token.validator,
		a.metric.TimeTracker,
	}

	a.registerRoute(http.MethodGet, "/health", a.health)
	a.registerRoute(http.MethodGet, "/metrics", a.metric.RouterHandlerHTTP())

	a.registerRoute(http.MethodGet, "/v1/token", a.token.getTokenHandler)

	a.registerRoute(http.MethodGet, "/v1/device", a.getDevicesHandler, middleware...)
	a.registerRoute(http.MethodGet, "/v1/device/{id}", a.getDeviceHandler, middleware...)
	a.registerRoute(http.MethodPatch, "/v1/device/{id}/command", a.patchCommandHandler, middleware...)
	a.registerRoute(http.MethodPost, "/v1/device/{id}/schedule", a.postScheduleHandler, middleware...)
	a.registerRoute(http.MethodDelete, "/v1/device/{id}/schedule", a.deleteScheduleHandler, middleware...)
	a.registerRoute(http.MethodGet, "/v1/energy/consumption", a.getConsumptionHandler, middleware...)
}

func (a *api) registerRoute(method, path string, handler http.HandlerFunc,
	middlewares ...func(next http.HandlerFunc, name string) http.HandlerFunc) {
	for _, mw := range middlewares {
		handler = mw(handler, path)
	}
	a.router.Handle(path, handler).Methods(method)
}

func (a *api) requestLogger(next http.HandlerFunc, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		a.log.With("method", r.Method, "uri", r.RequestURI, "name", name, "duration", time.Since(start)).Info()
	}
}

func (a *api) serveHTTP() {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	s := &http.Server{
		Handler: c.Handler(a.router),
		Addr:    fmt.Sprintf(":%d", a.portREST),
	}

	if err := s.ListenAndServe(); err != nil {
		a.log.Errorf("func ListenAndServe: %s", err)
		a.terminate()
	}
}
