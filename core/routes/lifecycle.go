package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetops/dispatchd/core/metrics"
	"github.com/fleetops/dispatchd/core/model"
	"github.com/fleetops/dispatchd/core/store"
)

// Get returns one route.
func (p *Planner) Get(ctx context.Context, id string) (model.Route, error) {
	return p.store.GetRoute(ctx, id)
}

// List returns routes matching the filter.
func (p *Planner) List(ctx context.Context, f store.RouteFilter) ([]model.Route, error) {
	return p.store.ListRoutes(ctx, f)
}

// Start moves a PLANNED route to IN_PROGRESS. Only the route's driver may
// start it. Attached orders stay ASSIGNED until each one is picked up.
func (p *Planner) Start(ctx context.Context, routeID, driverID string) (model.Route, error) {
	r, err := p.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if r.Status != model.RoutePlanned {
		return model.Route{}, fmt.Errorf("%w: route %s is %s, expected %s", model.ErrInvalidStateTransition, routeID, r.Status, model.RoutePlanned)
	}
	if r.DriverID != driverID {
		return model.Route{}, fmt.Errorf("%w: route %s belongs to another driver", model.ErrResourceUnavailable, routeID)
	}
	r.Status = model.RouteInProgress
	if err := p.store.UpdateRouteAndOrders(ctx, r, nil); err != nil {
		return model.Route{}, err
	}
	p.log.Infof("route %s started by driver %s", routeID, driverID)
	p.emitStatus(r, string(model.RoutePlanned), model.RouteInProgress)
	return r, nil
}

// Complete moves an IN_PROGRESS route to COMPLETED once every attached order
// has been delivered. Undelivered orders block completion.
func (p *Planner) Complete(ctx context.Context, routeID, driverID string) (model.Route, error) {
	r, err := p.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if r.Status != model.RouteInProgress {
		return model.Route{}, fmt.Errorf("%w: route %s is %s, expected %s", model.ErrInvalidStateTransition, routeID, r.Status, model.RouteInProgress)
	}
	if r.DriverID != driverID {
		return model.Route{}, fmt.Errorf("%w: route %s belongs to another driver", model.ErrResourceUnavailable, routeID)
	}
	for _, oid := range r.OrderIDs {
		o, err := p.store.GetOrder(ctx, oid)
		if err != nil {
			return model.Route{}, err
		}
		if o.Status != model.OrderCompleted {
			return model.Route{}, fmt.Errorf("%w: order %s is still %s", model.ErrInvalidStateTransition, oid, o.Status)
		}
	}
	r.Status = model.RouteCompleted
	if err := p.store.UpdateRouteAndOrders(ctx, r, nil); err != nil {
		return model.Route{}, err
	}
	p.log.Infof("route %s completed by driver %s", routeID, driverID)
	p.emitStatus(r, string(model.RouteInProgress), model.RouteCompleted)
	return r, nil
}

// Cancel cancels a PLANNED route, reverting every attached order to
// CONFIRMED with its assignment cleared, atomically. Started routes cannot be
// cancelled.
func (p *Planner) Cancel(ctx context.Context, routeID string) (model.Route, error) {
	r, err := p.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, err
	}
	if r.Status != model.RoutePlanned {
		return model.Route{}, fmt.Errorf("%w: route %s is %s, only planned routes can be cancelled", model.ErrInvalidStateTransition, routeID, r.Status)
	}
	reverted := make([]model.Order, 0, len(r.OrderIDs))
	for _, oid := range r.OrderIDs {
		o, err := p.store.GetOrder(ctx, oid)
		if err != nil {
			return model.Route{}, err
		}
		o.Status = model.OrderConfirmed
		o.RouteID = ""
		o.DriverID = ""
		o.OrderSequence = 0
		reverted = append(reverted, o)
	}
	r.Status = model.RouteCancelled
	if err := p.store.UpdateRouteAndOrders(ctx, r, reverted); err != nil {
		return model.Route{}, err
	}
	p.log.Infof("route %s cancelled, %d orders released", routeID, len(reverted))
	p.emitStatus(r, string(model.RoutePlanned), model.RouteCancelled)
	return r, nil
}

func (p *Planner) emitStatus(r model.Route, from string, to model.RouteStatus) {
	if rec, ok := p.sink.(metrics.RouteStatusRecorder); ok {
		ev := metrics.RouteStatusEvent{RouteID: r.ID, DriverID: r.DriverID, From: from, To: string(to), Time: time.Now().UTC()}
		if err := rec.RecordRouteStatus(ev); err != nil {
			p.log.Warnf("route metrics: %v", err)
		}
	}
}
