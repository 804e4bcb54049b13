// Package dispatch exposes the coordination core over HTTP as JSON. The
// handler is a thin adapter: it decodes requests, calls the managers and maps
// the error taxonomy to status codes.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetops/dispatchd/core/availability"
	"github.com/fleetops/dispatchd/core/logger"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/orders"
	"github.com/fleetops/dispatchd/core/planning"
	"github.com/fleetops/dispatchd/core/routes"
	"github.com/fleetops/dispatchd/core/store"
)

// Handler wires the HTTP surface to the core managers.
type Handler struct {
	store    store.Store
	orders   *orders.Manager
	routes   *routes.Planner
	planning *planning.Engine
	resolver *availability.Resolver
	log      logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(st store.Store, om *orders.Manager, rp *routes.Planner, pe *planning.Engine, res *availability.Resolver, log logger.Logger) *Handler {
	return &Handler{store: st, orders: om, routes: rp, planning: pe, resolver: res, log: log}
}

// Routes returns the full API mux, including /metrics and /healthz.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /api/orders/{id}", h.updateOrder)
	mux.HandleFunc("POST /api/orders/{id}/confirm", h.confirmOrder)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/pickup", h.pickupOrder)
	mux.HandleFunc("POST /api/orders/{id}/deliver", h.deliverOrder)

	mux.HandleFunc("PUT /api/drivers/{id}", h.putDriver)
	mux.HandleFunc("GET /api/drivers", h.listDrivers)
	mux.HandleFunc("PUT /api/drivers/{id}/schedule", h.putSchedule)

	mux.HandleFunc("PUT /api/vehicles/{id}", h.putVehicle)
	mux.HandleFunc("GET /api/vehicles", h.listVehicles)

	mux.HandleFunc("GET /api/availability/drivers", h.availableDrivers)
	mux.HandleFunc("GET /api/availability/vehicles", h.availableVehicles)

	mux.HandleFunc("POST /api/routes", h.planRoute)
	mux.HandleFunc("GET /api/routes", h.listRoutes)
	mux.HandleFunc("GET /api/routes/{id}", h.getRoute)
	mux.HandleFunc("POST /api/routes/{id}/start", h.startRoute)
	mux.HandleFunc("POST /api/routes/{id}/complete", h.completeRoute)
	mux.HandleFunc("POST /api/routes/{id}/cancel", h.cancelRoute)

	mux.HandleFunc("POST /api/planning", h.requestPlanning)
	mux.HandleFunc("GET /api/planning", h.listPlanning)
	mux.HandleFunc("GET /api/planning/unconsumed", h.unconsumedPlanning)
	mux.HandleFunc("GET /api/planning/{id}", h.getPlanning)
	mux.HandleFunc("POST /api/planning/{id}/accept", h.acceptPlanning)
	mux.HandleFunc("POST /api/planning/{id}/reject", h.rejectPlanning)
	mux.HandleFunc("POST /api/planning/{id}/consume", h.consumePlanning)
	mux.HandleFunc("POST /api/planning/{id}/cancel", h.cancelPlanning)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrConcurrencyConflict),
		errors.Is(err, model.ErrOrderNotEligible),
		errors.Is(err, model.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, model.ErrResourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrPlanningFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Errorf("request failed: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (h *Handler) respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			h.log.Errorf("encoding response: %v", err)
		}
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
}

func parseDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: date query parameter is required", model.ErrInvalidInput)
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, invalid(err)
	}
	return d, nil
}
