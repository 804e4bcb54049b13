package dispatch

import (
	"net/http"
	"time"

	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/orders"
	"github.com/fleetops/dispatchd/core/store"
)

type orderRequest struct {
	ClientID         string  `json:"client_id"`
	Title            string  `json:"title"`
	Price            float64 `json:"price"`
	PickupLocation   string  `json:"pickup_location"`
	PickupAddress    string  `json:"pickup_address"`
	PickupDate       string  `json:"pickup_date"` // 2006-01-02
	DeliveryLocation string  `json:"delivery_location"`
	DeliveryAddress  string  `json:"delivery_address"`
	DeliveryDeadline string  `json:"delivery_deadline"`
	CargoWeight      float64 `json:"cargo_weight"`
	Description      string  `json:"description"`
	VehicleType      *string `json:"vehicle_type,omitempty"`
}

func (req orderRequest) dates() (pickup, deadline time.Time, err error) {
	pickup, err = time.Parse(time.DateOnly, req.PickupDate)
	if err != nil {
		return pickup, deadline, invalid(err)
	}
	deadline, err = time.Parse(time.DateOnly, req.DeliveryDeadline)
	if err != nil {
		return pickup, deadline, invalid(err)
	}
	return pickup, deadline, nil
}

func (req orderRequest) vehicleType() (*model.VehicleType, error) {
	if req.VehicleType == nil || *req.VehicleType == "" {
		return nil, nil
	}
	vt, err := model.VehicleTypeFromString(*req.VehicleType)
	if err != nil {
		return nil, err
	}
	return &vt, nil
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	pickup, deadline, err := req.dates()
	if err != nil {
		h.fail(w, err)
		return
	}
	vt, err := req.vehicleType()
	if err != nil {
		h.fail(w, err)
		return
	}
	o, err := h.orders.Create(r.Context(), orders.CreateInput{
		ClientID:         req.ClientID,
		Title:            req.Title,
		Price:            req.Price,
		PickupLocation:   req.PickupLocation,
		PickupAddress:    req.PickupAddress,
		PickupDate:       pickup,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryDeadline: deadline,
		CargoWeight:      req.CargoWeight,
		Description:      req.Description,
		VehicleType:      vt,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusCreated, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.OrderFilter{
		Status:     model.OrderStatus(q.Get("status")),
		ClientID:   q.Get("client_id"),
		DriverID:   q.Get("driver_id"),
		Unassigned: q.Get("unassigned") == "true",
	}
	list, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, o)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	pickup, deadline, err := req.dates()
	if err != nil {
		h.fail(w, err)
		return
	}
	vt, err := req.vehicleType()
	if err != nil {
		h.fail(w, err)
		return
	}
	o, err := h.orders.Update(r.Context(), r.PathValue("id"), orders.UpdateInput{
		Title:            req.Title,
		Price:            req.Price,
		PickupLocation:   req.PickupLocation,
		PickupAddress:    req.PickupAddress,
		PickupDate:       pickup,
		DeliveryLocation: req.DeliveryLocation,
		DeliveryAddress:  req.DeliveryAddress,
		DeliveryDeadline: deadline,
		CargoWeight:      req.CargoWeight,
		Description:      req.Description,
		VehicleType:      vt,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, o)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, o)
}

func (h *Handler) pickupOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	o, err := h.orders.Pickup(r.Context(), r.PathValue("id"), req.DriverID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, o)
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := decode(r, &req); err != nil {
		h.fail(w, err)
		return
	}
	o, err := h.orders.Deliver(r.Context(), r.PathValue("id"), req.DriverID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.respond(w, http.StatusOK, o)
}
