// Package orders implements the order lifecycle: intake, confirmation,
// cancellation with route detachment, and the driver-side pickup and
// delivery transitions.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fleetops/dispatchd/core/geo"
	"github.com/fleetops/dispatchd/core/logger"
	"github.com/fleetops/dispatchd/core/metrics"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
)

// RouteRecalculator refreshes a route's distance and time estimates after its
// stop set changes. The planner provides the production implementation.
type RouteRecalculator interface {
	Recalculate(ctx context.Context, r model.Route, orders []model.Order) (model.Route, error)
}

// Manager drives order state transitions. All mutations go through the store;
// multi-entity changes (detachment, route completion) are applied atomically.
type Manager struct {
	store     store.Store
	validator geo.AddressValidator
	recalc    RouteRecalculator
	sink      metrics.MetricsSink
	log       logger.Logger
	now       func() time.Time
}

// NewManager creates an order Manager. validator and recalc may be nil;
// address validation and route re-estimation are then skipped.
func NewManager(st store.Store, validator geo.AddressValidator, recalc RouteRecalculator, sink metrics.MetricsSink, log logger.Logger) *Manager {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		store:     st,
		validator: validator,
		recalc:    recalc,
		sink:      sink,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// CreateInput is a client's shipment request.
type CreateInput struct {
	ClientID         string
	Title            string
	Price            float64
	PickupLocation   string
	PickupAddress    string
	PickupDate       time.Time
	DeliveryLocation string
	DeliveryAddress  string
	DeliveryDeadline time.Time
	CargoWeight      float64
	Description      string

	// VehicleType pins the vehicle class. When nil the smallest class able
	// to carry the cargo is selected.
	VehicleType *model.VehicleType
}

// Create registers a new PENDING order. The pickup date must be at least one
// day in the future.
func (m *Manager) Create(ctx context.Context, in CreateInput) (model.Order, error) {
	o := model.Order{
		ClientID:         in.ClientID,
		Title:            in.Title,
		Price:            in.Price,
		PickupLocation:   in.PickupLocation,
		PickupAddress:    in.PickupAddress,
		PickupDate:       in.PickupDate,
		DeliveryLocation: in.DeliveryLocation,
		DeliveryAddress:  in.DeliveryAddress,
		DeliveryDeadline: in.DeliveryDeadline,
		CargoWeight:      in.CargoWeight,
		Description:      in.Description,
		Status:           model.OrderPending,
	}
	if in.VehicleType != nil {
		o.VehicleType = *in.VehicleType
	} else {
		o.VehicleType = model.SmallestVehicleTypeFor(in.CargoWeight)
	}
	if err := o.Validate(); err != nil {
		return model.Order{}, err
	}
	tomorrow := model.Day(m.now()).AddDate(0, 0, 1)
	if model.Day(o.PickupDate).Before(tomorrow) {
		return model.Order{}, fmt.Errorf("%w: pickup date must be at least tomorrow", model.ErrInvalidInput)
	}
	if err := m.validateAddress(ctx, &o.PickupAddress); err != nil {
		return model.Order{}, fmt.Errorf("pickup address: %w", err)
	}
	if err := m.validateAddress(ctx, &o.DeliveryAddress); err != nil {
		return model.Order{}, fmt.Errorf("delivery address: %w", err)
	}

	created, err := m.store.CreateOrder(ctx, o)
	if err != nil {
		return model.Order{}, err
	}
	m.log.Infof("order %s created for client %s (%.0f kg, %s)", created.ID, created.ClientID, created.CargoWeight, created.VehicleType)
	m.emitOrder(created.ID, "", model.OrderPending)
	return created, nil
}

func (m *Manager) validateAddress(ctx context.Context, addr *string) error {
	if m.validator == nil || *addr == "" {
		return nil
	}
	res, err := m.validator.ValidateAddress(ctx, *addr)
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("%w: %s", model.ErrInvalidInput, res.Reason)
	}
	*addr = res.NormalizedAddress
	return nil
}

// Get returns one order.
func (m *Manager) Get(ctx context.Context, id string) (model.Order, error) {
	return m.store.GetOrder(ctx, id)
}

// List returns orders matching the filter.
func (m *Manager) List(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	return m.store.ListOrders(ctx, f)
}

// AssignableFor returns CONFIRMED unassigned orders whose pickup/deadline
// window covers the given route date.
func (m *Manager) AssignableFor(ctx context.Context, date time.Time) ([]model.Order, error) {
	candidates, err := m.store.ListOrders(ctx, store.OrderFilter{Status: model.OrderConfirmed, Unassigned: true})
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, o := range candidates {
		if o.EligibleFor(date) {
			out = append(out, o)
		}
	}
	return out, nil
}

// UpdateInput carries the mutable order details.
type UpdateInput struct {
	Title            string
	Price            float64
	PickupLocation   string
	PickupAddress    string
	PickupDate       time.Time
	DeliveryLocation string
	DeliveryAddress  string
	DeliveryDeadline time.Time
	CargoWeight      float64
	Description      string
	VehicleType      *model.VehicleType
}

// Update replaces the details of an order that has not been assigned yet.
func (m *Manager) Update(ctx context.Context, id string, in UpdateInput) (model.Order, error) {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status != model.OrderPending && o.Status != model.OrderConfirmed {
		return model.Order{}, fmt.Errorf("%w: order %s is %s, only pending or confirmed orders can be updated", model.ErrInvalidStateTransition, id, o.Status)
	}
	o.Title = in.Title
	o.Price = in.Price
	o.PickupLocation = in.PickupLocation
	o.PickupAddress = in.PickupAddress
	o.PickupDate = in.PickupDate
	o.DeliveryLocation = in.DeliveryLocation
	o.DeliveryAddress = in.DeliveryAddress
	o.DeliveryDeadline = in.DeliveryDeadline
	o.CargoWeight = in.CargoWeight
	o.Description = in.Description
	if in.VehicleType != nil {
		o.VehicleType = *in.VehicleType
	} else {
		o.VehicleType = model.SmallestVehicleTypeFor(in.CargoWeight)
	}
	if err := o.Validate(); err != nil {
		return model.Order{}, err
	}
	if err := m.validateAddress(ctx, &o.PickupAddress); err != nil {
		return model.Order{}, fmt.Errorf("pickup address: %w", err)
	}
	if err := m.validateAddress(ctx, &o.DeliveryAddress); err != nil {
		return model.Order{}, fmt.Errorf("delivery address: %w", err)
	}
	return m.store.UpdateOrder(ctx, o)
}

// Confirm moves a PENDING order to CONFIRMED, making it assignable.
func (m *Manager) Confirm(ctx context.Context, id string) (model.Order, error) {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status != model.OrderPending {
		return model.Order{}, fmt.Errorf("%w: order %s is %s, expected %s", model.ErrInvalidStateTransition, id, o.Status, model.OrderPending)
	}
	prev := o.Status
	o.Status = model.OrderConfirmed
	o.ConfirmedAt = m.now().UTC()
	updated, err := m.store.UpdateOrder(ctx, o)
	if err != nil {
		return model.Order{}, err
	}
	m.emitOrder(id, string(prev), model.OrderConfirmed)
	return updated, nil
}

// Cancel cancels an order that has not started moving. A non-blank reason is
// mandatory. An ASSIGNED order is detached from its route first; the route's
// remaining stops are resequenced and its estimates refreshed in the same
// atomic mutation.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (model.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Order{}, fmt.Errorf("%w: a cancellation reason is required", model.ErrInvalidInput)
	}
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if !o.Status.Cancellable() {
		return model.Order{}, fmt.Errorf("%w: order %s is %s and can no longer be cancelled", model.ErrInvalidStateTransition, id, o.Status)
	}
	prev := o.Status

	if o.Assigned() {
		if err := m.detach(ctx, &o, reason); err != nil {
			return model.Order{}, err
		}
	} else {
		o.Status = model.OrderCancelled
		o.CancelledAt = m.now().UTC()
		o.CancellationReason = reason
		if o, err = m.store.UpdateOrder(ctx, o); err != nil {
			return model.Order{}, err
		}
	}
	m.log.Infof("order %s cancelled (was %s): %s", id, prev, reason)
	m.emitOrder(id, string(prev), model.OrderCancelled)
	return o, nil
}

// detach removes the order from its route and cancels it, atomically with the
// route update. An emptied PLANNED route is cancelled outright.
func (m *Manager) detach(ctx context.Context, o *model.Order, reason string) error {
	r, err := m.store.GetRoute(ctx, o.RouteID)
	if err != nil {
		return err
	}
	r.RemoveOrder(o.ID)

	o.Status = model.OrderCancelled
	o.CancelledAt = m.now().UTC()
	o.CancellationReason = reason
	o.RouteID = ""
	o.DriverID = ""
	o.OrderSequence = 0

	updates := []model.Order{*o}
	if len(r.OrderIDs) == 0 {
		if r.Status == model.RoutePlanned {
			r.Status = model.RouteCancelled
		}
		r.TotalDistanceKm = 0
		r.EstimatedTimeMinutes = 0
	} else {
		remaining := make([]model.Order, 0, len(r.OrderIDs))
		for seq, oid := range r.OrderIDs {
			other, err := m.store.GetOrder(ctx, oid)
			if err != nil {
				return err
			}
			other.OrderSequence = seq + 1
			remaining = append(remaining, other)
		}
		if m.recalc != nil {
			if r, err = m.recalc.Recalculate(ctx, r, remaining); err != nil {
				return err
			}
		}
		updates = append(updates, remaining...)
	}
	return m.store.UpdateRouteAndOrders(ctx, r, updates)
}

// Pickup marks the cargo as collected. Only the route's driver may pick up,
// and only once the route is IN_PROGRESS.
func (m *Manager) Pickup(ctx context.Context, id, driverID string) (model.Order, error) {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status != model.OrderAssigned {
		return model.Order{}, fmt.Errorf("%w: order %s is %s, expected %s", model.ErrInvalidStateTransition, id, o.Status, model.OrderAssigned)
	}
	r, err := m.store.GetRoute(ctx, o.RouteID)
	if err != nil {
		return model.Order{}, err
	}
	if r.Status != model.RouteInProgress {
		return model.Order{}, fmt.Errorf("%w: route %s has not started", model.ErrInvalidStateTransition, r.ID)
	}
	if r.DriverID != driverID {
		return model.Order{}, fmt.Errorf("%w: order %s is not on driver %s's route", model.ErrResourceUnavailable, id, driverID)
	}
	o.Status = model.OrderInProgress
	updated, err := m.store.UpdateOrder(ctx, o)
	if err != nil {
		return model.Order{}, err
	}
	m.emitOrder(id, string(model.OrderAssigned), model.OrderInProgress)
	return updated, nil
}

// Deliver marks the cargo as delivered. When every order on the route is
// delivered the route completes in the same atomic mutation.
func (m *Manager) Deliver(ctx context.Context, id, driverID string) (model.Order, error) {
	o, err := m.store.GetOrder(ctx, id)
	if err != nil {
		return model.Order{}, err
	}
	if o.Status != model.OrderInProgress {
		return model.Order{}, fmt.Errorf("%w: order %s is %s, expected %s", model.ErrInvalidStateTransition, id, o.Status, model.OrderInProgress)
	}
	r, err := m.store.GetRoute(ctx, o.RouteID)
	if err != nil {
		return model.Order{}, err
	}
	if r.DriverID != driverID {
		return model.Order{}, fmt.Errorf("%w: order %s is not on driver %s's route", model.ErrResourceUnavailable, id, driverID)
	}
	o.Status = model.OrderCompleted

	allDone := true
	for _, oid := range r.OrderIDs {
		if oid == o.ID {
			continue
		}
		other, err := m.store.GetOrder(ctx, oid)
		if err != nil {
			return model.Order{}, err
		}
		if other.Status != model.OrderCompleted {
			allDone = false
			break
		}
	}
	if allDone {
		prev := r.Status
		r.Status = model.RouteCompleted
		if err := m.store.UpdateRouteAndOrders(ctx, r, []model.Order{o}); err != nil {
			return model.Order{}, err
		}
		m.log.Infof("route %s completed with delivery of order %s", r.ID, id)
		m.emitRoute(r, string(prev), model.RouteCompleted)
	} else if o, err = m.store.UpdateOrder(ctx, o); err != nil {
		return model.Order{}, err
	}
	m.emitOrder(id, string(model.OrderInProgress), model.OrderCompleted)
	if allDone {
		return m.store.GetOrder(ctx, id)
	}
	return o, nil
}

func (m *Manager) emitOrder(id, from string, to model.OrderStatus) {
	if rec, ok := m.sink.(metrics.OrderStatusRecorder); ok {
		if err := rec.RecordOrderStatus(metrics.OrderStatusEvent{OrderID: id, From: from, To: string(to), Time: m.now().UTC()}); err != nil {
			m.log.Warnf("order metrics: %v", err)
		}
	}
}

func (m *Manager) emitRoute(r model.Route, from string, to model.RouteStatus) {
	if rec, ok := m.sink.(metrics.RouteStatusRecorder); ok {
		if err := rec.RecordRouteStatus(metrics.RouteStatusEvent{RouteID: r.ID, DriverID: r.DriverID, From: from, To: string(to), Time: m.now().UTC()}); err != nil {
			m.log.Warnf("route metrics: %v", err)
		}
	}
}
