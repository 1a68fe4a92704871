package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/domotik/hubms/device"
	"github.com/domotik/hubms/energy"
)

type (
	commandReq struct {
		Capability string      `json:"capability"`
		Value      interface{} `json:"value"`
	}

	scheduleReq struct {
		Hours   int `json:"hours"`
		Minutes int `json:"minutes"`
	}

	scheduleResp struct {
		Delay string `json:"delay"`
	}
)

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		a.log.Errorf("func Write: %s", err)
	}
}

func (a *api) getDevicesHandler(w http.ResponseWriter, r *http.Request) {
	a.resp(w, a.deviceProvider.Devices())
}

func (a *api) getDeviceHandler(w http.ResponseWriter, r *http.Request) {
	id := device.ID(mux.Vars(r)["id"])

	d, err := a.deviceProvider.Device(id)
	if err != nil {
		a.respError(w, newNotFoundError())
		return
	}
	a.resp(w, d)
}

// patchCommandHandler applies a single capability write. The response
// carries the optimistic device snapshot: the command may still be in
// flight against the platform when it is written.
func (a *api) patchCommandHandler(w http.ResponseWriter, r *http.Request) {
	id := device.ID(mux.Vars(r)["id"])

	var req commandReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respError(w, newBadRequestError(err.Error()))
		return
	}
	if req.Capability == "" {
		a.respError(w, newBadParamError("capability"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
	defer cancel()

	if err := a.deviceProvider.Dispatch(ctx, id, req.Capability, req.Value); err != nil {
		a.log.Errorf("func patchCommandHandler: func Dispatch: %s", err)
		a.respError(w, newBadRequestError(err.Error()))
		return
	}

	d, err := a.deviceProvider.Device(id)
	if err != nil {
		a.respError(w, newNotFoundError())
		return
	}
	a.resp(w, d)
}

func (a *api) postScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id := device.ID(mux.Vars(r)["id"])

	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.respError(w, newBadRequestError(err.Error()))
		return
	}

	delay, err := a.deviceProvider.Schedule(id, req.Hours, req.Minutes)
	if err != nil {
		a.respError(w, newNotFoundError())
		return
	}
	a.resp(w, scheduleResp{Delay: delay.String()})
}

func (a *api) deleteScheduleHandler(w http.ResponseWriter, r *http.Request) {
	id := device.ID(mux.Vars(r)["id"])

	if err := a.deviceProvider.CancelSchedule(id); err != nil {
		a.respError(w, newNotFoundError())
		return
	}
	a.resp(w, map[string]string{"status": "cancelled"})
}

// getConsumptionHandler serves the chart series at the active granularity.
// An explicit granularity query switches the active one first.
func (a *api) getConsumptionHandler(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("granularity"); raw != "" {
		g, err := energy.ParseGranularity(raw)
		if err != nil {
			a.respError(w, newBadParamError("granularity"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), a.requestTimeout)
		defer cancel()
		a.energyProvider.SetGranularity(ctx, g)
	}

	a.resp(w, a.energyProvider.Series())
}
