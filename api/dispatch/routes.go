package dispatch

import (
	"net/http"
	"time"

	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/core/store"
)

func (h *Handler) planRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID  string   `json:"driver_id"`
		VehicleID string   `json:"vehicle_id"`
		RouteDate string   `json:"route_date"`
		OrderIDs  []string `json:"order_ids"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.RouteDate)
	if err != nil {
		h.fail(w, invalid(err))
		return
	}
	route, err := h.routes.PlanRoute(r.Context(), routes.PlanInput{
		DriverID:  req.DriverID,
		VehicleID: req.VehicleID,
		RouteDate: date,
		OrderIDs:  req.OrderIDs,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, route)
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RouteFilter{
		DriverID: q.Get("driver_id"),
		Status:   model.RouteStatus(q.Get("status")),
	}
	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			h.fail(w, invalid(err))
			return
		}
		f.Date = d
	}
	list, err := h.routes.List(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) getRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.routes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, route)
}

func (h *Handler) startRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	route, err := h.routes.Start(r.Context(), r.PathValue("id"), req.DriverID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, route)
}

func (h *Handler) completeRoute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	route, err := h.routes.Complete(r.Context(), r.PathValue("id"), req.DriverID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, route)
}

func (h *Handler) cancelRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.routes.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, route)
}
